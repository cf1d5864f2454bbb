// Package features assembles the model input vector from sensor readings.
package features

import (
	"fmt"
	"math"
	"strings"

	"github.com/ericogr/motor-pdm/pkg/model"
	"github.com/ericogr/motor-pdm/pkg/sensor"
)

// Size is the number of input channels the model was trained on.
const Size = 6

// Channel positions inside a Vector.
const (
	ActiveCurrent = iota
	DCLinkVoltage
	Temperature
	VX
	VY
	VZ
)

// Names lists the channels in model order.
var Names = [Size]string{"active_current", "dc_link_voltage", "temperature", "vx", "vy", "vz"}

// Vector is one model input row. Every element is finite.
type Vector [Size]float32

// Build places a physical reading into model order. Current and DC link
// voltage are not wired on the board and stay at zero; vibration counts are
// passed through unscaled.
func Build(r sensor.Reading) Vector {
	var v Vector
	v[ActiveCurrent] = 0
	v[DCLinkVoltage] = 0
	v[Temperature] = finite(r.Temperature)
	v[VX] = finite(float64(r.Vibration[0]))
	v[VY] = finite(float64(r.Vibration[1]))
	v[VZ] = finite(float64(r.Vibration[2]))
	return v
}

// FromSample copies a simulated sample's features.
func FromSample(s sensor.Sample) Vector {
	var v Vector
	for i, x := range s.Features {
		v[i] = finite(x)
	}
	return v
}

func finite(x float64) float32 {
	f := float32(x)
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return 0
	}
	return f
}

// Tensor wraps the vector as a [1, Size] float32 tensor.
func (v Vector) Tensor() (*model.Tensor, error) {
	return model.NewFloat32([]int{1, Size}, v[:])
}

func (v Vector) String() string {
	var b strings.Builder
	for i, x := range v {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%.2f", Names[i], x)
	}
	return b.String()
}
