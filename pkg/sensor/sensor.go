// Package sensor reads the motor's temperature and vibration sensors and
// provides the labeled sample dataset used in simulated mode.
package sensor

import (
	"errors"

	"github.com/ericogr/motor-pdm/pkg/zone"
)

// ErrDeviceID is returned when a probed device reports an unexpected ID.
var ErrDeviceID = errors.New("unexpected device id")

// Reading is one snapshot of the physical sensors.
type Reading struct {
	Temperature float64 // degrees Celsius
	Vibration   [3]int  // vx, vy, vz in 13-bit counts, 4 mg/LSB
}

// Sample is a labeled feature row from the simulation dataset.
type Sample struct {
	Index    int
	Features [6]float64
	Label    zone.Label
}

type TemperatureSensor interface {
	// Init prepares the device. It may be called more than once.
	Init() error
	ReadTemperature() (float64, error)
	Close() error
}

type VibrationSensor interface {
	// Init prepares the device. It may be called more than once.
	Init() error
	ReadVibration() ([3]int, error)
	Close() error
}
