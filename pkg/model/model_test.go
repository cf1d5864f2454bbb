package model

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustInput(t *testing.T, v ...float32) *Tensor {
	t.Helper()
	in, err := NewFloat32([]int{1, len(v)}, v)
	require.NoError(t, err)
	return in
}

func predict(t *testing.T, g Graph, in *Tensor) int32 {
	t.Helper()
	ctx, err := g.NewContext(in)
	require.NoError(t, err)
	out, err := ctx.Get(OutputName)
	require.NoError(t, err)
	require.NoError(t, ctx.Eval())
	label, err := out.Int32At(0, 0)
	require.NoError(t, err)
	return label
}

func TestTensorIndexing(t *testing.T) {
	tn, err := NewFloat32([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	v, err := tn.Float32At(1, 2)
	require.NoError(t, err)
	require.Equal(t, float32(6), v)

	_, err = tn.Float32At(2, 0)
	require.ErrorIs(t, err, ErrIndex)
	_, err = tn.Float32At(0)
	require.ErrorIs(t, err, ErrIndex)
	_, err = tn.Int32At(0, 0)
	require.ErrorIs(t, err, ErrDType)

	_, err = NewFloat32([]int{1, 6}, []float32{1, 2})
	require.ErrorIs(t, err, ErrShape)
	_, err = NewInt32([]int{0}, nil)
	require.ErrorIs(t, err, ErrShape)
}

func TestTensorCopiesData(t *testing.T) {
	data := []float32{1, 2}
	tn, err := NewFloat32([]int{1, 2}, data)
	require.NoError(t, err)
	data[0] = 9
	require.Equal(t, []float32{1, 2}, tn.Float32s())
}

func TestQuantizeKeepsZeroExact(t *testing.T) {
	values := []float32{-0.004, 0, 0.004, 0.1}
	q := Quantize(values)
	got, err := q.dequantize(len(values))
	require.NoError(t, err)
	require.Equal(t, float32(0), got[1])
	for i := range values {
		require.InDelta(t, values[i], got[i], 0.0005)
	}
}

func TestCompileRejectsBadSpecs(t *testing.T) {
	spec := ReferenceSpec()
	spec.InputShape = []int{1, 4}
	_, err := Compile(spec)
	require.ErrorIs(t, err, ErrShape)

	spec = ReferenceSpec()
	spec.Layers[1].In = 7
	_, err = Compile(spec)
	require.ErrorIs(t, err, ErrShape)

	spec = ReferenceSpec()
	spec.Layers[0].Activation = "softsign"
	_, err = Compile(spec)
	require.Error(t, err)

	spec = ReferenceSpec()
	spec.Layers[2].Bias.Data[0] = 300
	_, err = Compile(spec)
	require.Error(t, err)
}

func TestCompileRejectsSharedTensorNames(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Spec)
	}{
		{"output is a layer tensor", func(s *Spec) { s.Output = "dense_1:0" }},
		{"input is a layer tensor", func(s *Spec) { s.Input = "severity:0" }},
		{"output is the input", func(s *Spec) { s.Output = s.Input }},
		{"two layers with one name", func(s *Spec) { s.Layers[2].Name = "dense_1" }},
		{"named layer clashes with default name", func(s *Spec) {
			s.Layers[0].Name = ""
			s.Layers[1].Name = "dense_1"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := ReferenceSpec()
			tt.modify(&spec)
			_, err := Compile(spec)
			require.ErrorIs(t, err, ErrDuplicateName)
		})
	}
}

func TestIdentityLayerKeepsInput(t *testing.T) {
	g, err := Compile(Spec{
		Input:      "x:0",
		InputShape: []int{1, 2},
		Layers: []LayerSpec{{
			Name: "dense_1", In: 2, Out: 2,
			Weights: Quantize([]float32{1, 0, 0, 1}),
			Bias:    Quantize([]float32{0, 0}),
		}},
	})
	require.NoError(t, err)

	in, err := NewFloat32([]int{1, 2}, []float32{0, 5})
	require.NoError(t, err)
	c, err := g.NewContext(in)
	require.NoError(t, err)
	out, err := c.Get(OutputName)
	require.NoError(t, err)
	require.NoError(t, c.Eval())
	label, err := out.Int32At(0, 0)
	require.NoError(t, err)
	require.Equal(t, int32(1), label)
}

func TestLoadJSON(t *testing.T) {
	f, err := os.Open("testdata/tiny.json")
	require.NoError(t, err)
	defer f.Close()

	g, err := Load(f)
	require.NoError(t, err)
	require.Equal(t, "in:0", g.InputName())
	require.Equal(t, []int{1, 2}, g.InputShape())

	require.Equal(t, int32(1), predict(t, g, mustInput(t, 3, 5)))
	require.Equal(t, int32(2), predict(t, g, mustInput(t, -1, -2)))
	require.Equal(t, int32(0), predict(t, g, mustInput(t, 7, 1)))
}

func TestNewContextValidatesInput(t *testing.T) {
	g := Reference()

	_, err := g.NewContext(nil)
	require.ErrorIs(t, err, ErrNoInput)

	_, err = g.NewContext(mustInput(t, 1, 2, 3, 4))
	require.ErrorIs(t, err, ErrShape)

	ints, err := NewInt32([]int{1, 6}, make([]int32, 6))
	require.NoError(t, err)
	_, err = g.NewContext(ints)
	require.ErrorIs(t, err, ErrDType)
}

func TestContextIsSingleUse(t *testing.T) {
	g := Reference()
	ctx, err := g.NewContext(mustInput(t, 0, 0, 24, 0, 0, 250))
	require.NoError(t, err)

	out, err := ctx.Get(OutputName)
	require.NoError(t, err)
	require.NoError(t, ctx.Eval())
	require.ErrorIs(t, ctx.Eval(), ErrContextConsumed)

	again, err := ctx.Get(OutputName)
	require.NoError(t, err)
	require.Same(t, out, again)

	in, err := ctx.Get(ReferenceInput)
	require.NoError(t, err)
	require.True(t, in.HasShape(1, 6))

	_, err = ctx.Get("nope:0")
	require.ErrorIs(t, err, ErrTensorNotFound)
}

func TestReferenceGraph(t *testing.T) {
	g := Reference()
	tests := []struct {
		name string
		in   []float32
		want int32
	}{
		{"at rest", []float32{0, 0, 24, 0, 0, 250}, 5},
		{"warm and shaking", []float32{0, 0, 45, 120, 0, 250}, 4},
		{"hot and shaking", []float32{15, 400, 50, 250, 0, 250}, 3},
		{"overheated", []float32{15, 400, 55, 0, -370, 250}, 2},
		{"overloaded", []float32{28, 400, 60, 300, 0, 250}, 1},
		{"failing", []float32{29, 400, 65, 400, 0, 250}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, predict(t, g, mustInput(t, tt.in...)))
		})
	}
}

func TestReferenceGraphIsDeterministic(t *testing.T) {
	g := Reference()
	in := []float32{3, 210, 41.5, -87, 12, 260}
	first := predict(t, g, mustInput(t, in...))
	for i := 0; i < 20; i++ {
		require.Equal(t, first, predict(t, g, mustInput(t, in...)))
	}
}
