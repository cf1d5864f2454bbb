package sensor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Facade combines both physical sensors into one best-effort Read. A failed
// read keeps the previous value for that sensor. Each sensor sits behind a
// circuit breaker so a wedged bus is not hammered every cycle.
type Facade struct {
	temp TemperatureSensor
	vib  VibrationSensor
	log  *slog.Logger

	tempBreaker *gobreaker.CircuitBreaker
	vibBreaker  *gobreaker.CircuitBreaker
	onError     func(sensor string, err error)

	last Reading
}

// FacadeOption configures a Facade.
type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	tripAfter uint32
	openFor   time.Duration
	onError   func(sensor string, err error)
}

// WithBreaker sets how many consecutive failures open a breaker and how long
// it stays open.
func WithBreaker(tripAfter uint32, openFor time.Duration) FacadeOption {
	return func(o *facadeOptions) {
		o.tripAfter = tripAfter
		o.openFor = openFor
	}
}

// WithErrorHook is called for every failed or skipped read.
func WithErrorHook(fn func(sensor string, err error)) FacadeOption {
	return func(o *facadeOptions) { o.onError = fn }
}

func NewFacade(temp TemperatureSensor, vib VibrationSensor, log *slog.Logger, opts ...FacadeOption) *Facade {
	o := facadeOptions{tripAfter: 5, openFor: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     o.openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= o.tripAfter
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("sensor breaker state changed", "sensor", name, "from", from.String(), "to", to.String())
			},
		}
	}
	f := &Facade{
		temp:        temp,
		vib:         vib,
		log:         log,
		tempBreaker: gobreaker.NewCircuitBreaker(settings("temperature")),
		vibBreaker:  gobreaker.NewCircuitBreaker(settings("vibration")),
		onError:     o.onError,
	}
	return f
}

// Init initializes both sensors. Failures are logged and do not stop the
// caller: an uninitialized sensor keeps reporting its last (or zero) value.
func (f *Facade) Init() {
	if err := f.temp.Init(); err != nil {
		f.log.Error("temperature sensor init failed", "err", err)
	}
	if err := f.vib.Init(); err != nil {
		f.log.Error("vibration sensor init failed", "err", err)
	}
}

// Read returns the current reading. It never fails.
func (f *Facade) Read() Reading {
	if v, err := f.tempBreaker.Execute(func() (interface{}, error) {
		return f.temp.ReadTemperature()
	}); err != nil {
		f.failed("temperature", err)
	} else {
		f.last.Temperature = v.(float64)
	}

	if v, err := f.vibBreaker.Execute(func() (interface{}, error) {
		return f.vib.ReadVibration()
	}); err != nil {
		f.failed("vibration", err)
	} else {
		f.last.Vibration = v.([3]int)
	}
	return f.last
}

func (f *Facade) failed(sensor string, err error) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		f.log.Debug("sensor read skipped, reusing last value", "sensor", sensor, "err", err)
	} else {
		f.log.Warn("sensor read failed, reusing last value", "sensor", sensor, "err", err)
	}
	if f.onError != nil {
		f.onError(sensor, err)
	}
}

func (f *Facade) Close() error {
	return errors.Join(f.temp.Close(), f.vib.Close())
}
