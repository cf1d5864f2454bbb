// Package zone defines the time-to-failure classes produced by the model.
package zone

import "fmt"

// Label is a time-to-failure class. Valid labels are 0..5; anything else is
// reported as Unknown.
type Label int

const (
	Fault  Label = iota // motor already faulted
	LT15                // failure within 15 minutes
	LT30                // failure within 30 minutes
	LT60                // failure within 60 minutes
	LT90                // failure within 90 minutes
	Normal              // no impending failure

	// Unknown marks a value the model should never produce.
	Unknown Label = -1
)

// Count is the number of classes the model distinguishes.
const Count = 6

var displayNames = [Count]string{
	Fault:  "FAULT",
	LT15:   "<15 MIN",
	LT30:   "<30 MIN",
	LT60:   "<60 MIN",
	LT90:   "<90 MIN",
	Normal: "NORMAL",
}

// Valid reports whether l is one of the six model classes.
func (l Label) Valid() bool {
	return l >= Fault && l <= Normal
}

// Normalize maps out-of-range values to Unknown.
func (l Label) Normalize() Label {
	if !l.Valid() {
		return Unknown
	}
	return l
}

// String returns the canonical display text for the label.
func (l Label) String() string {
	if !l.Valid() {
		return "UNKNOWN"
	}
	return displayNames[l]
}

// training-time encodings of the labels (minutes to failure, 9999 = normal)
var trainingLabels = map[int]Label{
	0:    Fault,
	15:   LT15,
	30:   LT30,
	60:   LT60,
	90:   LT90,
	9999: Normal,
}

// FromTraining converts a training label (0, 15, 30, 60, 90, 9999) to the
// prediction label space.
func FromTraining(v int) (Label, error) {
	if l, ok := trainingLabels[v]; ok {
		return l, nil
	}
	return Unknown, fmt.Errorf("unknown training label %d", v)
}

// Parse accepts either a prediction label (0..5) or a training label and
// returns the prediction label.
func Parse(v int) (Label, error) {
	if l := Label(v); l.Valid() {
		return l, nil
	}
	return FromTraining(v)
}
