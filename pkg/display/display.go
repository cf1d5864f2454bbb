// Package display renders short status strings on the character display.
package display

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Display is a small write-only character display.
type Display interface {
	Clear() error
	DisplayString(s string) error
	// ScrollSentence moves s across the display one character per step,
	// times times. It blocks until done or ctx is cancelled.
	ScrollSentence(ctx context.Context, s string, times int, step time.Duration) error
}

// Frames returns the successive windows of width w seen while s scrolls in
// from the right and out to the left.
func Frames(s string, w int) []string {
	if w <= 0 {
		return nil
	}
	pad := strings.Repeat(" ", w)
	track := pad + s + pad
	n := len(track) - w + 1
	out := make([]string, 0, n)
	for i := range n {
		out = append(out, track[i:i+w])
	}
	return out
}

// Scroll drives show over the frames of s. Implementations share it.
func Scroll(ctx context.Context, s string, w, times int, step time.Duration, show func(string) error) error {
	frames := Frames(s, w)
	for range times {
		for _, f := range frames {
			if err := show(f); err != nil {
				return err
			}
			t := time.NewTimer(step)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return nil
}

// Log writes display contents to a logger.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Log{log: log}
}

func (l *Log) Clear() error { return nil }

func (l *Log) DisplayString(s string) error {
	l.log.Info("display", "text", s)
	return nil
}

func (l *Log) ScrollSentence(ctx context.Context, s string, times int, step time.Duration) error {
	l.log.Info("display scroll", "text", s, "times", times)
	t := time.NewTimer(time.Duration(times*len(s)) * step)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// None discards everything.
type None struct{}

func (None) Clear() error { return nil }

func (None) DisplayString(string) error { return nil }

func (None) ScrollSentence(context.Context, string, int, time.Duration) error {
	return nil
}

// Memory records what was shown, for tests and headless runs.
type Memory struct {
	mu      sync.Mutex
	text    string
	shown   []string
	clears  int
	scrolls []string
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = ""
	m.clears++
	return nil
}

func (m *Memory) DisplayString(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = s
	m.shown = append(m.shown, s)
	return nil
}

func (m *Memory) ScrollSentence(_ context.Context, s string, times int, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for range times {
		m.scrolls = append(m.scrolls, s)
	}
	return nil
}

// Text returns what the display currently shows.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Shown returns every string passed to DisplayString, in order.
func (m *Memory) Shown() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.shown...)
}

// Scrolled returns every scrolled sentence, once per repetition.
func (m *Memory) Scrolled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.scrolls...)
}

func (m *Memory) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}
