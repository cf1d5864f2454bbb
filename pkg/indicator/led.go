// Package indicator drives the status LEDs.
package indicator

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// LED is a single discrete output.
type LED interface {
	Set(on bool) error
}

// GPIO drives an LED wired to a GPIO pin, active high.
type GPIO struct {
	pin gpio.PinOut
}

// OpenGPIO initializes the host and looks the pin up by name, e.g. "GPIO17".
func OpenGPIO(name string) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return NewGPIO(p), nil
}

func NewGPIO(pin gpio.PinOut) *GPIO {
	return &GPIO{pin: pin}
}

func (g *GPIO) Set(on bool) error {
	if err := g.pin.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("set %s: %w", g.pin, err)
	}
	return nil
}

// Log reports level changes on a logger, for hosts without LEDs.
type Log struct {
	name string
	log  *slog.Logger

	mu    sync.Mutex
	on    bool
	known bool
}

func NewLog(name string, log *slog.Logger) *Log {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Log{name: name, log: log}
}

func (l *Log) Set(on bool) error {
	l.mu.Lock()
	changed := !l.known || l.on != on
	l.on, l.known = on, true
	l.mu.Unlock()
	if changed {
		l.log.Debug("led", "name", l.name, "on", on)
	}
	return nil
}

// Memory keeps the LED level in memory and counts changes.
type Memory struct {
	mu      sync.Mutex
	on      bool
	writes  int
	changes int
	err     error
}

func (m *Memory) Set(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if on != m.on {
		m.changes++
	}
	m.on = on
	m.writes++
	return nil
}

// On returns the current level.
func (m *Memory) On() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on
}

// Changes returns how many times the level flipped.
func (m *Memory) Changes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changes
}

// Writes returns how many times Set succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Fail makes subsequent Set calls return err; nil restores normal operation.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
