// Package monitor runs the acquisition loop: read, build features, infer,
// apply the warning state, repeat.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/ericogr/motor-pdm/pkg/display"
	"github.com/ericogr/motor-pdm/pkg/features"
	"github.com/ericogr/motor-pdm/pkg/indicator"
	"github.com/ericogr/motor-pdm/pkg/sensor"
	"github.com/ericogr/motor-pdm/pkg/warning"
	"github.com/ericogr/motor-pdm/pkg/zone"
)

const (
	Product     = "Motor Predictive Maintenance"
	Description = "Time-to-failure classifier, quantized dense network, 6 inputs / 6 zones"
	Version     = "1.0.0"

	DefaultInterval   = 2 * time.Second
	DefaultScrollStep = 175 * time.Millisecond
)

// SplashText returns the title scrolled at startup.
func SplashText(simulated bool) string {
	if simulated {
		return " - PREDICTIVE MAINTENANCE-Test"
	}
	return " - PREDICTIVE MAINTENANCE-Connected"
}

// Sensors is satisfied by *sensor.Facade.
type Sensors interface {
	Read() sensor.Reading
}

// Classifier is satisfied by *inference.Engine.
type Classifier interface {
	Infer(ctx context.Context, v features.Vector) (zone.Label, error)
}

// Observer is told about every cycle. *metrics.Metrics implements it.
type Observer interface {
	ObserveOutcome(simulated bool, o warning.Outcome)
	CycleSkipped()
}

type Options struct {
	Simulated bool
	Sensors   Sensors         // real mode
	Dataset   *sensor.Dataset // simulated mode
	Rand      *rand.Rand

	Classifier Classifier
	Machine    *warning.Machine
	Green      indicator.LED
	Blinker    *indicator.Blinker
	Display    display.Display
	Observer   Observer
	Logger     *slog.Logger

	Interval   time.Duration
	ScrollStep time.Duration
}

type Monitor struct {
	simulated  bool
	sensors    Sensors
	dataset    *sensor.Dataset
	rng        *rand.Rand
	classifier Classifier
	machine    *warning.Machine
	green      indicator.LED
	blinker    *indicator.Blinker
	display    display.Display
	observer   Observer
	log        *slog.Logger
	interval   time.Duration
	scrollStep time.Duration
}

func New(o Options) (*Monitor, error) {
	var errs []error
	if o.Classifier == nil {
		errs = append(errs, errors.New("classifier is required"))
	}
	if o.Green == nil {
		errs = append(errs, errors.New("green led is required"))
	}
	if o.Blinker == nil {
		errs = append(errs, errors.New("blinker is required"))
	}
	if o.Simulated && o.Dataset == nil {
		errs = append(errs, errors.New("simulated mode needs a dataset"))
	}
	if !o.Simulated && o.Sensors == nil {
		errs = append(errs, errors.New("real mode needs sensors"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	m := &Monitor{
		simulated:  o.Simulated,
		sensors:    o.Sensors,
		dataset:    o.Dataset,
		rng:        o.Rand,
		classifier: o.Classifier,
		machine:    o.Machine,
		green:      o.Green,
		blinker:    o.Blinker,
		display:    o.Display,
		observer:   o.Observer,
		log:        o.Logger,
		interval:   o.Interval,
		scrollStep: o.ScrollStep,
	}
	if m.log == nil {
		m.log = slog.New(slog.DiscardHandler)
	}
	if m.machine == nil {
		m.machine = warning.NewMachine(m.log)
	}
	if m.display == nil {
		m.display = display.None{}
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.scrollStep <= 0 {
		m.scrollStep = DefaultScrollStep
	}
	return m, nil
}

// Run starts the blinker, shows the splash and then runs acquisition cycles
// until ctx is done. Failed cycles are logged and the loop carries on.
func (m *Monitor) Run(ctx context.Context) error {
	blinkCtx, stopBlink := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() { _ = m.blinker.Run(blinkCtx) })
	defer func() {
		stopBlink()
		wg.Wait()
	}()

	if err := m.Startup(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if _, err := m.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Error("cycle failed", "err", err)
		}
		timer.Reset(m.interval)
	}
}

// Startup prints the banner and scrolls the title once. Only cancellation
// is reported as an error.
func (m *Monitor) Startup(ctx context.Context) error {
	m.log.Info(Product, "version", Version)
	m.log.Info(Description)
	m.log.Info("Initialising System UI...")
	mode := "Real sensor data"
	if m.simulated {
		mode = "Test Data"
	}
	m.log.Info("data source", "mode", mode)

	if err := m.display.Clear(); err != nil {
		m.log.Warn("display clear failed", "err", err)
	}
	if err := m.display.ScrollSentence(ctx, SplashText(m.simulated), 1, m.scrollStep); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Warn("splash failed", "err", err)
	}
	return nil
}

// Cycle runs one acquisition. When inference fails the indicators and
// display keep their previous state.
func (m *Monitor) Cycle(ctx context.Context) (warning.Outcome, error) {
	var (
		vec    features.Vector
		sample sensor.Sample
	)
	if m.simulated {
		sample = m.dataset.Draw(m.rng)
		vec = features.FromSample(sample)
		m.log.Info("sample", "index", sample.Index, "features", vec.String())
	} else {
		r := m.sensors.Read()
		vec = features.Build(r)
		m.log.Info("reading",
			"vx", r.Vibration[0], "vy", r.Vibration[1], "vz", r.Vibration[2],
			"t", fmt.Sprintf("%.2f", r.Temperature))
	}

	label, err := m.classifier.Infer(ctx, vec)
	if err != nil {
		if m.observer != nil {
			m.observer.CycleSkipped()
		}
		return warning.Outcome{}, fmt.Errorf("infer: %w", err)
	}

	var o warning.Outcome
	if m.simulated {
		o = m.machine.ApplySimulated(label, sample.Label)
	} else {
		o = m.machine.Apply(label)
	}
	if m.observer != nil {
		m.observer.ObserveOutcome(m.simulated, o)
	}
	return o, m.apply(ctx, o)
}

// apply drives the outputs. Green belongs to this loop; red is only ever
// written through the blinker.
func (m *Monitor) apply(ctx context.Context, o warning.Outcome) error {
	var errs []error
	if err := m.green.Set(o.Indicators.Green); err != nil {
		errs = append(errs, fmt.Errorf("green led: %w", err))
	}

	cmd := indicator.SolidOff
	switch {
	case o.Indicators.Blink:
		cmd = indicator.Blink
	case o.Indicators.Red:
		cmd = indicator.SolidOn
	}
	if err := m.blinker.Command(ctx, cmd); err != nil {
		errs = append(errs, fmt.Errorf("red led %s: %w", cmd, err))
	}

	if err := m.display.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("display clear: %w", err))
	}
	if err := m.display.DisplayString(o.Display); err != nil {
		errs = append(errs, fmt.Errorf("display: %w", err))
	}
	return errors.Join(errs...)
}
