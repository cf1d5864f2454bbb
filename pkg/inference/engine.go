// Package inference runs the frozen model on one feature vector at a time.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericogr/motor-pdm/pkg/features"
	"github.com/ericogr/motor-pdm/pkg/model"
	"github.com/ericogr/motor-pdm/pkg/zone"
)

// ErrEvaluate wraps any failure to build, bind or evaluate a context.
var ErrEvaluate = errors.New("inference failed")

// Observer receives the duration of every evaluation and its outcome.
type Observer interface {
	ObserveInference(d time.Duration, label zone.Label, err error)
}

// Engine evaluates a Graph. Every call to Infer builds a new context around
// a freshly allocated input tensor; contexts are never reused because the
// graph may hold on to its input after evaluation.
type Engine struct {
	graph    model.Graph
	output   string
	log      *slog.Logger
	observer Observer
}

type Option func(*Engine)

// WithOutput overrides the output tensor name.
func WithOutput(name string) Option {
	return func(e *Engine) { e.output = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func New(g model.Graph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, errors.New("inference: nil graph")
	}
	if shape := g.InputShape(); len(shape) != 2 || shape[0] != 1 || shape[1] != features.Size {
		return nil, fmt.Errorf("inference: %w: graph expects %v, features are [1 %d]", model.ErrShape, shape, features.Size)
	}
	e := &Engine{graph: g, output: model.OutputName}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

// Infer classifies v. A label outside 0..5 is returned as zone.Unknown
// without error. Errors leave the label as zone.Unknown.
func (e *Engine) Infer(ctx context.Context, v features.Vector) (zone.Label, error) {
	start := time.Now()
	label, err := e.infer(ctx, v)
	if e.observer != nil {
		e.observer.ObserveInference(time.Since(start), label, err)
	}
	return label, err
}

func (e *Engine) infer(ctx context.Context, v features.Vector) (zone.Label, error) {
	if err := ctx.Err(); err != nil {
		return zone.Unknown, err
	}
	input, err := v.Tensor()
	if err != nil {
		return zone.Unknown, fmt.Errorf("%w: build input: %w", ErrEvaluate, err)
	}
	c, err := e.graph.NewContext(input)
	if err != nil {
		return zone.Unknown, fmt.Errorf("%w: bind %s: %w", ErrEvaluate, e.graph.InputName(), err)
	}
	out, err := c.Get(e.output)
	if err != nil {
		return zone.Unknown, fmt.Errorf("%w: %w", ErrEvaluate, err)
	}
	if err := c.Eval(); err != nil {
		return zone.Unknown, fmt.Errorf("%w: eval: %w", ErrEvaluate, err)
	}
	raw, err := out.Int32At(0, 0)
	if err != nil {
		return zone.Unknown, fmt.Errorf("%w: read %s: %w", ErrEvaluate, e.output, err)
	}
	label := zone.Label(raw)
	if !label.Valid() {
		e.log.Warn("model produced an out-of-range label", "label", raw)
		return zone.Unknown, nil
	}
	return label, nil
}
