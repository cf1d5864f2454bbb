// Package warning maps predicted time-to-failure classes to indicator states
// and, when ground truth is known, grades the prediction.
package warning

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericogr/motor-pdm/pkg/zone"
)

// State is what the indicators show.
type State int

const (
	Unknown  State = iota // both off
	Safe                  // green steady
	Imminent              // red steady
	Warn                  // green steady, red blinking
)

func (s State) String() string {
	switch s {
	case Safe:
		return "SAFE"
	case Imminent:
		return "IMMINENT"
	case Warn:
		return "WARN"
	default:
		return "UNKNOWN"
	}
}

// Indicators is the desired output for each LED. When Blink is set the red
// LED is toggled by the blinker and Red is its starting level.
type Indicators struct {
	Green bool
	Red   bool
	Blink bool
}

// StateFor returns the state for a predicted label.
func StateFor(l zone.Label) State {
	switch l {
	case zone.Normal:
		return Safe
	case zone.Fault, zone.LT15, zone.LT30:
		return Imminent
	case zone.LT60, zone.LT90:
		return Warn
	default:
		return Unknown
	}
}

// Indicators returns the LED levels for s.
func (s State) Indicators() Indicators {
	switch s {
	case Safe:
		return Indicators{Green: true}
	case Imminent:
		return Indicators{Red: true}
	case Warn:
		return Indicators{Green: true, Red: true, Blink: true}
	default:
		return Indicators{}
	}
}

// Outcome is the full result of one Apply.
type Outcome struct {
	Predicted  zone.Label
	State      State
	Indicators Indicators
	Display    string
	// Diagnosis is set only when ground truth was supplied.
	Diagnosis *Diagnosis
}

// Diagnosis grades a prediction against the dataset label.
type Diagnosis struct {
	Actual     zone.Label
	Predicted  zone.Label
	ZoneError  int // -1 when either label is unknown
	FalseAlarm bool
}

// Diagnose compares predicted with actual.
func Diagnose(actual, predicted zone.Label) Diagnosis {
	d := Diagnosis{
		Actual:     actual,
		Predicted:  predicted,
		ZoneError:  -1,
		FalseAlarm: actual == zone.Normal && predicted != zone.Normal,
	}
	if actual.Valid() && predicted.Valid() {
		d.ZoneError = int(actual - predicted)
		if d.ZoneError < 0 {
			d.ZoneError = -d.ZoneError
		}
	}
	return d
}

// Correct reports whether the prediction matched.
func (d Diagnosis) Correct() bool { return d.ZoneError == 0 }

// Verdict describes the zone error.
func (d Diagnosis) Verdict() string {
	switch {
	case d.ZoneError < 0:
		return "UNKNOWN prediction"
	case d.ZoneError == 0:
		return "CORRECT prediction"
	case d.ZoneError == 1:
		return "Fair prediction. Single-zone error"
	default:
		return fmt.Sprintf("ERROR of %d zones in prediction", d.ZoneError)
	}
}

func (d Diagnosis) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Actual: %s | Predicted: %s | [%s]", d.Actual, d.Predicted, d.Verdict())
	if d.FalseAlarm {
		b.WriteString(" [FALSE ALARM despite normal operation]")
	}
	return b.String()
}

// Machine is memoryless: every call fully determines the outcome from its
// arguments. It only logs.
type Machine struct {
	log *slog.Logger
}

func NewMachine(log *slog.Logger) *Machine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Machine{log: log}
}

// Apply maps a prediction to its outcome.
func (m *Machine) Apply(predicted zone.Label) Outcome {
	predicted = predicted.Normalize()
	s := StateFor(predicted)
	o := Outcome{
		Predicted:  predicted,
		State:      s,
		Indicators: s.Indicators(),
		Display:    predicted.String(),
	}
	m.log.Info("predicted time-to-failure", "zone", o.Display, "state", s.String())
	return o
}

// ApplySimulated is Apply plus a diagnosis against the dataset label. The
// diagnosis never changes the indicator state.
func (m *Machine) ApplySimulated(predicted, actual zone.Label) Outcome {
	o := m.Apply(predicted)
	d := Diagnose(actual.Normalize(), o.Predicted)
	o.Diagnosis = &d

	attrs := []any{
		"actual", d.Actual.String(),
		"predicted", d.Predicted.String(),
		"zone_error", d.ZoneError,
		"verdict", d.Verdict(),
	}
	if d.FalseAlarm {
		attrs = append(attrs, "false_alarm", true)
	}
	if d.Correct() {
		m.log.Info("prediction check", attrs...)
	} else {
		m.log.Warn("prediction check", attrs...)
	}
	return o
}
