package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericogr/motor-pdm/pkg/features"
	"github.com/ericogr/motor-pdm/pkg/model"
	"github.com/ericogr/motor-pdm/pkg/zone"
)

// stubGraph returns a fixed label and records every bound input.
type stubGraph struct {
	label   int32
	bindErr error
	evalErr error
	inputs  []*model.Tensor
	evals   int
}

func (g *stubGraph) InputName() string { return "x:0" }

func (g *stubGraph) InputShape() []int { return []int{1, features.Size} }

func (g *stubGraph) NewContext(in *model.Tensor) (model.Context, error) {
	if g.bindErr != nil {
		return nil, g.bindErr
	}
	g.inputs = append(g.inputs, in)
	out, _ := model.NewInt32([]int{1, 1}, []int32{-1})
	return &stubContext{g: g, out: out}, nil
}

type stubContext struct {
	g    *stubGraph
	out  *model.Tensor
	done bool
}

func (c *stubContext) Get(name string) (*model.Tensor, error) {
	if name != model.OutputName {
		return nil, model.ErrTensorNotFound
	}
	return c.out, nil
}

func (c *stubContext) Eval() error {
	if c.done {
		return model.ErrContextConsumed
	}
	c.done = true
	c.g.evals++
	if c.g.evalErr != nil {
		return c.g.evalErr
	}
	// the real graph fills the tensor it handed out before Eval
	*c.out = *mustInt32(c.g.label)
	return nil
}

func mustInt32(v int32) *model.Tensor {
	t, _ := model.NewInt32([]int{1, 1}, []int32{v})
	return t
}

type recordObserver struct {
	labels []zone.Label
	errs   []error
}

func (o *recordObserver) ObserveInference(_ time.Duration, l zone.Label, err error) {
	o.labels = append(o.labels, l)
	o.errs = append(o.errs, err)
}

func TestInferReturnsLabel(t *testing.T) {
	for l := int32(0); l < zone.Count; l++ {
		g := &stubGraph{label: l}
		e, err := New(g)
		require.NoError(t, err)
		got, err := e.Infer(context.Background(), features.Vector{})
		require.NoError(t, err)
		require.Equal(t, zone.Label(l), got)
	}
}

func TestInferOutOfRangeIsUnknown(t *testing.T) {
	for _, l := range []int32{6, 7, 99, -1} {
		e, err := New(&stubGraph{label: l})
		require.NoError(t, err)
		got, err := e.Infer(context.Background(), features.Vector{})
		require.NoError(t, err)
		require.Equal(t, zone.Unknown, got, "raw %d", l)
	}
}

func TestInferBindsFreshInputEachCall(t *testing.T) {
	g := &stubGraph{label: 5}
	e, err := New(g)
	require.NoError(t, err)

	v1 := features.Vector{0, 0, 24.49, 10, -20, 30}
	v2 := features.Vector{1, 2, 3, 4, 5, 6}
	_, err = e.Infer(context.Background(), v1)
	require.NoError(t, err)
	_, err = e.Infer(context.Background(), v2)
	require.NoError(t, err)

	require.Len(t, g.inputs, 2)
	require.NotSame(t, g.inputs[0], g.inputs[1])
	require.Equal(t, 2, g.evals)
	for _, in := range g.inputs {
		require.True(t, in.HasShape(1, features.Size))
		require.Equal(t, model.Float32, in.DType())
	}
	require.Equal(t, []float32{0, 0, 24.49, 10, -20, 30}, g.inputs[0].Float32s())
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, g.inputs[1].Float32s())
}

func TestInferErrors(t *testing.T) {
	obs := &recordObserver{}
	e, err := New(&stubGraph{bindErr: errors.New("no memory")}, WithObserver(obs))
	require.NoError(t, err)
	got, err := e.Infer(context.Background(), features.Vector{})
	require.ErrorIs(t, err, ErrEvaluate)
	require.Equal(t, zone.Unknown, got)

	e, err = New(&stubGraph{evalErr: errors.New("kernel fault")}, WithObserver(obs))
	require.NoError(t, err)
	_, err = e.Infer(context.Background(), features.Vector{})
	require.ErrorIs(t, err, ErrEvaluate)

	e, err = New(&stubGraph{}, WithOutput("missing:0"), WithObserver(obs))
	require.NoError(t, err)
	_, err = e.Infer(context.Background(), features.Vector{})
	require.ErrorIs(t, err, model.ErrTensorNotFound)

	require.Len(t, obs.errs, 3)
	for _, err := range obs.errs {
		require.Error(t, err)
	}
}

func TestInferHonoursCancelledContext(t *testing.T) {
	g := &stubGraph{label: 5}
	e, err := New(g)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Infer(ctx, features.Vector{})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, g.inputs)
}

func TestNewRejectsWrongInputShape(t *testing.T) {
	spec := model.ReferenceSpec()
	spec.InputShape = []int{1, 4}
	spec.Layers[0].In = 4
	spec.Layers[0].Weights = model.Quantize(make([]float32, 4*8))
	g, err := model.Compile(spec)
	require.NoError(t, err)

	_, err = New(g)
	require.ErrorIs(t, err, model.ErrShape)
}

func TestReferenceModelIsDeterministic(t *testing.T) {
	e, err := New(model.Reference())
	require.NoError(t, err)
	v := features.Vector{0, 0, 24.49, 10, -20, 30}
	first, err := e.Infer(context.Background(), v)
	require.NoError(t, err)
	require.True(t, first.Valid())
	for i := 0; i < 10; i++ {
		got, err := e.Infer(context.Background(), v)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}
