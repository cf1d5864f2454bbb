package model

import (
	"errors"
	"fmt"
)

// DType is the element type of a tensor.
type DType uint8

const (
	Float32 DType = iota + 1
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

var (
	ErrShape = errors.New("tensor shape mismatch")
	ErrDType = errors.New("tensor dtype mismatch")
	ErrIndex = errors.New("tensor index out of range")
)

// Tensor is a dense row-major tensor of float32 or int32 elements.
type Tensor struct {
	shape []int
	dtype DType
	f32   []float32
	i32   []int32
}

func elements(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%w: empty shape", ErrShape)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("%w: dimension %d in %v", ErrShape, d, shape)
		}
		n *= d
	}
	return n, nil
}

// NewFloat32 wraps data as a float32 tensor of the given shape. The slice is
// copied.
func NewFloat32(shape []int, data []float32) (*Tensor, error) {
	n, err := elements(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrShape, len(data), shape)
	}
	return &Tensor{
		shape: append([]int(nil), shape...),
		dtype: Float32,
		f32:   append([]float32(nil), data...),
	}, nil
}

// NewInt32 wraps data as an int32 tensor of the given shape. The slice is
// copied.
func NewInt32(shape []int, data []int32) (*Tensor, error) {
	n, err := elements(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrShape, len(data), shape)
	}
	return &Tensor{
		shape: append([]int(nil), shape...),
		dtype: Int32,
		i32:   append([]int32(nil), data...),
	}, nil
}

func zeros(shape []int, dtype DType) *Tensor {
	n, _ := elements(shape)
	t := &Tensor{shape: append([]int(nil), shape...), dtype: dtype}
	switch dtype {
	case Float32:
		t.f32 = make([]float32, n)
	case Int32:
		t.i32 = make([]int32, n)
	}
	return t
}

// Shape returns a copy of the tensor dimensions.
func (t *Tensor) Shape() []int { return append([]int(nil), t.shape...) }

func (t *Tensor) DType() DType { return t.dtype }

// HasShape reports whether the tensor dimensions equal shape.
func (t *Tensor) HasShape(shape ...int) bool {
	if len(shape) != len(t.shape) {
		return false
	}
	for i := range shape {
		if shape[i] != t.shape[i] {
			return false
		}
	}
	return true
}

// Float32s returns a copy of the elements of a float32 tensor.
func (t *Tensor) Float32s() []float32 {
	return append([]float32(nil), t.f32...)
}

func (t *Tensor) offset(idx []int) (int, error) {
	if len(idx) != len(t.shape) {
		return 0, fmt.Errorf("%w: %d indices for shape %v", ErrIndex, len(idx), t.shape)
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			return 0, fmt.Errorf("%w: %v for shape %v", ErrIndex, idx, t.shape)
		}
		off = off*t.shape[i] + v
	}
	return off, nil
}

// Float32At reads one element of a float32 tensor.
func (t *Tensor) Float32At(idx ...int) (float32, error) {
	if t.dtype != Float32 {
		return 0, fmt.Errorf("%w: want float32, have %s", ErrDType, t.dtype)
	}
	off, err := t.offset(idx)
	if err != nil {
		return 0, err
	}
	return t.f32[off], nil
}

// Int32At reads one element of an int32 tensor.
func (t *Tensor) Int32At(idx ...int) (int32, error) {
	if t.dtype != Int32 {
		return 0, fmt.Errorf("%w: want int32, have %s", ErrDType, t.dtype)
	}
	off, err := t.offset(idx)
	if err != nil {
		return 0, err
	}
	return t.i32[off], nil
}
