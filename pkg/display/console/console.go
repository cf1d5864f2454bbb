// Package console renders the character display as a framed box on a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ericogr/motor-pdm/pkg/display"
)

type Console struct {
	out   io.Writer
	width int
	style lipgloss.Style

	mu    sync.Mutex
	lines int // height of the last frame, for redrawing in place
}

// New returns a console display of width characters writing to stdout.
func New(width int) *Console {
	return NewWriter(os.Stdout, width)
}

func NewWriter(out io.Writer, width int) *Console {
	if width <= 0 {
		width = 8
	}
	return &Console{
		out:   out,
		width: width,
		style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Bold(true),
	}
}

var _ display.Display = (*Console)(nil)

func (c *Console) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lines == 0 {
		return nil
	}
	// Move to the top of the last frame and erase to the end of the screen.
	if _, err := fmt.Fprintf(c.out, "\x1b[%dA\x1b[J", c.lines); err != nil {
		return err
	}
	c.lines = 0
	return nil
}

func (c *Console) DisplayString(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.render(c.fit(s), false)
}

func (c *Console) ScrollSentence(ctx context.Context, s string, times int, step time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = 0
	return display.Scroll(ctx, s, c.width, times, step, func(f string) error {
		return c.render(f, true)
	})
}

func (c *Console) fit(s string) string {
	if len(s) > c.width {
		return s[:c.width]
	}
	return s + strings.Repeat(" ", c.width-len(s))
}

func (c *Console) render(s string, inPlace bool) error {
	frame := c.style.Render(s)
	if inPlace && c.lines > 0 {
		if _, err := fmt.Fprintf(c.out, "\x1b[%dA", c.lines); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(c.out, frame); err != nil {
		return err
	}
	c.lines = strings.Count(frame, "\n") + 1
	return nil
}
