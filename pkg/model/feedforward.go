package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Quantized is a uint8 affine-quantized tensor as written by the exporter.
// Values are reconstructed as (q - zeroPoint) * scale where
// scale = (Max - Min) / 255 and zeroPoint = round(-Min / scale).
type Quantized struct {
	Min  float32 `json:"min"`
	Max  float32 `json:"max"`
	Data []int   `json:"data"`
}

// LayerSpec describes one dense layer; Weights are row-major [In][Out].
type LayerSpec struct {
	Name       string    `json:"name"`
	In         int       `json:"in"`
	Out        int       `json:"out"`
	Activation string    `json:"activation"`
	Weights    Quantized `json:"weights"`
	Bias       Quantized `json:"bias"`
}

// Spec is the serialized form of a frozen feed-forward graph.
type Spec struct {
	Input      string      `json:"input"`
	Output     string      `json:"output"`
	InputShape []int       `json:"input_shape"`
	Layers     []LayerSpec `json:"layers"`
}

type activation func(float32) float32

func relu(v float32) float32 {
	if v < 0 {
		return 0
	}
	return v
}

func linear(v float32) float32 { return v }

var activations = map[string]activation{
	"":       linear,
	"linear": linear,
	"relu":   relu,
}

type dense struct {
	name    string
	in, out int
	w, b    []float32
	act     activation
}

func (d *dense) tensorName() string { return d.name + ":0" }

// FeedForward is a compiled frozen graph: a chain of dense layers followed by
// an arg-max producing the class label.
type FeedForward struct {
	input      string
	output     string
	inputShape []int
	layers     []dense
}

// Load decodes a JSON Spec and compiles it.
func Load(r io.Reader) (*FeedForward, error) {
	var spec Spec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return Compile(spec)
}

// Compile validates spec and dequantizes its constants.
func Compile(spec Spec) (*FeedForward, error) {
	if spec.Input == "" {
		return nil, fmt.Errorf("model: missing input name")
	}
	if spec.Output == "" {
		spec.Output = OutputName
	}
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("model: no layers")
	}
	if len(spec.InputShape) != 2 || spec.InputShape[0] != 1 || spec.InputShape[1] != spec.Layers[0].In {
		return nil, fmt.Errorf("model: %w: input shape %v for first layer width %d", ErrShape, spec.InputShape, spec.Layers[0].In)
	}
	g := &FeedForward{
		input:      spec.Input,
		output:     spec.Output,
		inputShape: append([]int(nil), spec.InputShape...),
		layers:     make([]dense, 0, len(spec.Layers)),
	}
	// Input, layer outputs and the label share one tensor table.
	seen := map[string]bool{spec.Input: true}
	claim := func(name string) error {
		if seen[name] {
			return fmt.Errorf("model: %w: %q", ErrDuplicateName, name)
		}
		seen[name] = true
		return nil
	}
	prev := spec.Layers[0].In
	for i, ls := range spec.Layers {
		if ls.Name == "" {
			ls.Name = fmt.Sprintf("dense_%d", i+1)
		}
		if err := claim(ls.Name + ":0"); err != nil {
			return nil, err
		}
		if ls.In != prev || ls.Out <= 0 {
			return nil, fmt.Errorf("model: layer %s: %w: %dx%d after width %d", ls.Name, ErrShape, ls.In, ls.Out, prev)
		}
		act, ok := activations[ls.Activation]
		if !ok {
			return nil, fmt.Errorf("model: layer %s: unsupported activation %q", ls.Name, ls.Activation)
		}
		w, err := ls.Weights.dequantize(ls.In * ls.Out)
		if err != nil {
			return nil, fmt.Errorf("model: layer %s weights: %w", ls.Name, err)
		}
		b, err := ls.Bias.dequantize(ls.Out)
		if err != nil {
			return nil, fmt.Errorf("model: layer %s bias: %w", ls.Name, err)
		}
		g.layers = append(g.layers, dense{name: ls.Name, in: ls.In, out: ls.Out, w: w, b: b, act: act})
		prev = ls.Out
	}
	if err := claim(spec.Output); err != nil {
		return nil, err
	}
	return g, nil
}

func (q Quantized) params() (scale float32, zero int) {
	lo, hi := math.Min(float64(q.Min), 0), math.Max(float64(q.Max), 0)
	if hi == lo {
		return 1, 0
	}
	s := (hi - lo) / 255
	z := int(math.Round(-lo / s))
	return float32(s), z
}

func (q Quantized) dequantize(n int) ([]float32, error) {
	if len(q.Data) != n {
		return nil, fmt.Errorf("%w: %d values, want %d", ErrShape, len(q.Data), n)
	}
	scale, zero := q.params()
	out := make([]float32, n)
	for i, v := range q.Data {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("quantized value %d out of range", v)
		}
		out[i] = float32(v-zero) * scale
	}
	return out, nil
}

// Quantize encodes values with the same scheme the exporter uses. The range
// is widened to include zero so that zero is represented exactly.
func Quantize(values []float32) Quantized {
	q := Quantized{Data: make([]int, len(values))}
	for _, v := range values {
		q.Min = min(q.Min, v)
		q.Max = max(q.Max, v)
	}
	scale, zero := q.params()
	for i, v := range values {
		n := int(math.Round(float64(v/scale))) + zero
		q.Data[i] = max(0, min(255, n))
	}
	return q
}

func (g *FeedForward) InputName() string { return g.input }

func (g *FeedForward) InputShape() []int { return append([]int(nil), g.inputShape...) }

// NewContext binds input to a fresh context. The context keeps a reference
// to input; callers must not modify it until Eval returns.
func (g *FeedForward) NewContext(input *Tensor) (Context, error) {
	if input == nil {
		return nil, ErrNoInput
	}
	if input.DType() != Float32 {
		return nil, fmt.Errorf("bind %s: %w: %s", g.input, ErrDType, input.DType())
	}
	if !input.HasShape(g.inputShape...) {
		return nil, fmt.Errorf("bind %s: %w: have %v, want %v", g.input, ErrShape, input.Shape(), g.inputShape)
	}
	c := &ffContext{
		graph:   g,
		tensors: make(map[string]*Tensor, len(g.layers)+2),
	}
	c.tensors[g.input] = input
	for i := range g.layers {
		c.tensors[g.layers[i].tensorName()] = zeros([]int{1, g.layers[i].out}, Float32)
	}
	c.tensors[g.output] = zeros([]int{1, 1}, Int32)
	return c, nil
}

type ffContext struct {
	graph     *FeedForward
	tensors   map[string]*Tensor
	evaluated bool
}

func (c *ffContext) Get(name string) (*Tensor, error) {
	t, ok := c.tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
	}
	return t, nil
}

func (c *ffContext) Eval() error {
	if c.evaluated {
		return ErrContextConsumed
	}
	c.evaluated = true

	x := c.tensors[c.graph.input].f32
	for i := range c.graph.layers {
		l := &c.graph.layers[i]
		y := c.tensors[l.tensorName()].f32
		for j := 0; j < l.out; j++ {
			acc := l.b[j]
			for k := 0; k < l.in; k++ {
				acc += x[k] * l.w[k*l.out+j]
			}
			y[j] = l.act(acc)
		}
		x = y
	}

	best := 0
	for j := 1; j < len(x); j++ {
		if x[j] > x[best] {
			best = j
		}
	}
	c.tensors[c.graph.output].i32[0] = int32(best)
	return nil
}
