// Package model evaluates frozen feed-forward networks exported by the
// offline training toolchain.
//
// A Graph produces single-use evaluation contexts: every context is seeded
// with exactly one input tensor, evaluated once, and then discarded. Output
// tensors obtained from a context stay valid only as long as that context.
package model

import "errors"

// OutputName is the tensor holding the predicted class label.
const OutputName = "y_pred:0"

var (
	ErrNoInput         = errors.New("no input tensor bound")
	ErrTensorNotFound  = errors.New("tensor not found")
	ErrContextConsumed = errors.New("context already evaluated")
	ErrDuplicateName   = errors.New("duplicate tensor name")
)

// Graph is a frozen computation graph.
type Graph interface {
	// InputName is the name the input tensor is bound under.
	InputName() string
	// InputShape is the shape the input tensor must have.
	InputShape() []int
	// NewContext binds input to a fresh evaluation context.
	NewContext(input *Tensor) (Context, error)
}

// Context is a single-use evaluation of a Graph.
type Context interface {
	// Get returns the named tensor. Output tensors are filled in by Eval.
	Get(name string) (*Tensor, error)
	// Eval runs the graph. It may be called once.
	Eval() error
}
