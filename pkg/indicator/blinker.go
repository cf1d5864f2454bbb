package indicator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Command tells the blinker what the red LED should do.
type Command int

const (
	SolidOff Command = iota
	SolidOn
	Blink
)

func (c Command) String() string {
	switch c {
	case SolidOff:
		return "SOLID_OFF"
	case SolidOn:
		return "SOLID_ON"
	case Blink:
		return "BLINK"
	default:
		return "UNKNOWN"
	}
}

type request struct {
	cmd  Command
	done chan error
}

// Blinker is the only writer of the warning LED once Run has started. Other
// goroutines change the LED by sending commands.
type Blinker struct {
	led    LED
	period time.Duration
	log    *slog.Logger
	cmds   chan request

	blinking atomic.Bool
	toggles  atomic.Int64
}

func NewBlinker(led LED, period time.Duration, log *slog.Logger) *Blinker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Blinker{
		led:    led,
		period: period,
		log:    log,
		cmds:   make(chan request),
	}
}

// Command applies cmd and returns once the LED reflects it. Solid commands
// always rewrite the pin. Blink starts with the LED on; repeating Blink
// while already blinking keeps the current phase.
func (b *Blinker) Command(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, done: make(chan error, 1)}
	select {
	case b.cmds <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Blinking reports whether the LED is currently being toggled.
func (b *Blinker) Blinking() bool { return b.blinking.Load() }

// Toggles returns how many times the LED has been toggled while blinking.
func (b *Blinker) Toggles() int64 { return b.toggles.Load() }

// Run serves commands and toggles the LED until ctx is done.
func (b *Blinker) Run(ctx context.Context) error {
	var (
		level  bool
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-b.cmds:
			var err error
			switch req.cmd {
			case Blink:
				if ticker == nil {
					level = true
					err = b.led.Set(level)
					ticker = time.NewTicker(b.period)
					tick = ticker.C
				}
				b.blinking.Store(true)
			case SolidOn:
				stop()
				b.blinking.Store(false)
				level = true
				err = b.led.Set(level)
			default:
				stop()
				b.blinking.Store(false)
				level = false
				err = b.led.Set(level)
			}
			req.done <- err

		case <-tick:
			level = !level
			if err := b.led.Set(level); err != nil {
				b.log.Warn("warning led toggle failed", "err", err)
				continue
			}
			b.toggles.Add(1)
		}
	}
}
