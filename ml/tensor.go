// tensor.go - Tensor mit Reverse-Mode Autodiff
//
// Dieses Modul enthaelt:
// - Tensor: row-major float64 Daten, Shape, lazy Gradient, Graph-Verweise
// - Konstruktoren: New, Zeros, Full, Scalar, Param, FromFloat32s
// - Accessoren: Shape, Dim, Numel, Data, Grad, Floats, Float32s, Float16s
// - Backward: topologische Rueckwaertspropagation
//
// HINWEISE:
// - Shape-Fehler in ml-Operationen sind Programmierfehler und fuehren zu panic.
//   Aufrufer validieren Eingaben vorher und liefern ConfigurationError.
package ml

import (
	"fmt"
	"math"
	"slices"

	"github.com/x448/float16"
)

// Tensor represents a multi-dimensional float64 array that can take part in
// reverse-mode automatic differentiation.
type Tensor struct {
	data  []float64
	grad  []float64
	shape []int

	requiresGrad bool
	parents      []*Tensor
	backward     func()
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// New creates a tensor that takes ownership of data.
func New(data []float64, shape ...int) *Tensor {
	if n := numel(shape); n != len(data) {
		panic(fmt.Errorf("ml: data length %d does not match shape %v (%d)", len(data), shape, n))
	}
	return &Tensor{data: data, shape: slices.Clone(shape)}
}

// Zeros creates a zero-filled tensor.
func Zeros(shape ...int) *Tensor {
	return New(make([]float64, numel(shape)), shape...)
}

// Full creates a tensor filled with v.
func Full(v float64, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Scalar creates a rank-0 tensor.
func Scalar(v float64) *Tensor {
	return New([]float64{v})
}

// Param creates a trainable leaf tensor.
func Param(data []float64, shape ...int) *Tensor {
	t := New(data, shape...)
	t.requiresGrad = true
	return t
}

// FromFloat32s converts a float32 slice into a tensor.
func FromFloat32s(s []float32, shape ...int) *Tensor {
	data := make([]float64, len(s))
	for i, v := range s {
		data[i] = float64(v)
	}
	return New(data, shape...)
}

// =============================================================================
// Accessoren
// =============================================================================

// Shape returns a copy of the tensor shape.
func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of dimension n. Negative n counts from the end.
func (t *Tensor) Dim(n int) int {
	if n < 0 {
		n += len(t.shape)
	}
	return t.shape[n]
}

// Numel returns the number of elements.
func (t *Tensor) Numel() int {
	return len(t.data)
}

// Data returns the underlying storage. Callers must not modify it while the
// tensor takes part in a recorded graph.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Grad returns the accumulated gradient or nil if none was propagated.
func (t *Tensor) Grad() []float64 {
	return t.grad
}

// RequiresGrad reports whether gradients flow into this tensor.
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// SetRequiresGrad marks a leaf tensor as trainable or frozen.
func (t *Tensor) SetRequiresGrad(b bool) *Tensor {
	t.requiresGrad = b
	return t
}

// Floats returns a copy of the data.
func (t *Tensor) Floats() []float64 {
	return slices.Clone(t.data)
}

// Float32s returns the data converted to float32.
func (t *Tensor) Float32s() []float32 {
	s := make([]float32, len(t.data))
	for i, v := range t.data {
		s[i] = float32(v)
	}
	return s
}

// Float16s returns the data converted to IEEE half precision.
func (t *Tensor) Float16s() []float16.Float16 {
	s := make([]float16.Float16, len(t.data))
	for i, v := range t.data {
		s[i] = float16.Fromfloat32(float32(v))
	}
	return s
}

// Item returns the single value of a one-element tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Errorf("ml: Item on tensor with shape %v", t.shape))
	}
	return t.data[0]
}

// HasNonFinite reports whether any element is NaN or infinite.
func (t *Tensor) HasNonFinite() bool {
	for _, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// Detach returns a leaf tensor sharing no graph with t.
func (t *Tensor) Detach() *Tensor {
	return New(slices.Clone(t.data), t.shape...)
}

// ZeroGrad drops the accumulated gradient.
func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v)", t.shape)
}

// accGrad liefert den Gradientenpuffer und legt ihn bei Bedarf an
func (t *Tensor) accGrad() []float64 {
	if t.grad == nil {
		t.grad = make([]float64, len(t.data))
	}
	return t.grad
}

// =============================================================================
// Backward
// =============================================================================

// Backward propagates gradients from t to every tensor in its graph that
// requires them. The seed gradient is one for every element of t.
func (t *Tensor) Backward() {
	if !t.requiresGrad {
		return
	}

	var order []*Tensor
	visited := make(map[*Tensor]bool)
	var visit func(*Tensor)
	visit = func(n *Tensor) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, p := range n.parents {
			if p.requiresGrad {
				visit(p)
			}
		}
		order = append(order, n)
	}
	visit(t)

	g := t.accGrad()
	for i := range g {
		g[i] += 1
	}

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		if n.backward != nil && n.grad != nil {
			n.backward()
		}
	}
}
