// ops_shape.go - Shape-Operationen
//
// Dieses Modul enthaelt:
// - Reshape: neue Shape, gleiche Elementanzahl (-1 wird inferiert)
// - Permute: Achsen vertauschen
// - Concat: Tensoren entlang einer Achse verbinden
// - Narrow: Ausschnitt entlang einer Achse
package ml

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Reshape returns a tensor with the same data and a new shape. A single -1
// dimension is inferred.
func (t *Tensor) Reshape(ctx *Context, shape ...int) *Tensor {
	shape = slices.Clone(shape)
	infer, known := -1, 1
	for i, d := range shape {
		if d == -1 {
			infer = i
		} else {
			known *= d
		}
	}
	if infer >= 0 && known > 0 {
		shape[infer] = len(t.data) / known
	}
	if numel(shape) != len(t.data) {
		panic(fmt.Errorf("ml: cannot reshape %v into %v", t.shape, shape))
	}

	out := New(slices.Clone(t.data), shape...)
	return ctx.record(out, func() {
		floats.Add(t.accGrad(), out.grad)
	}, t)
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// Permute reorders the axes of t. Output axis i is input axis perm[i].
func (t *Tensor) Permute(ctx *Context, perm ...int) *Tensor {
	if len(perm) != t.Rank() {
		panic(fmt.Errorf("ml: permute %v on shape %v", perm, t.shape))
	}

	in := strides(t.shape)
	shape := make([]int, len(perm))
	src := make([]int, len(perm))
	for i, p := range perm {
		shape[i] = t.shape[p]
		src[i] = in[p]
	}

	out := Zeros(shape...)
	idx := make([]int, len(out.data))
	coord := make([]int, len(shape))
	off := 0
	for k := range out.data {
		idx[k] = off
		out.data[k] = t.data[off]
		for d := len(shape) - 1; d >= 0; d-- {
			coord[d]++
			off += src[d]
			if coord[d] < shape[d] {
				break
			}
			off -= src[d] * coord[d]
			coord[d] = 0
		}
	}

	return ctx.record(out, func() {
		g := t.accGrad()
		for k, v := range out.grad {
			g[idx[k]] += v
		}
	}, t)
}

// axisSplit liefert Produkt der Dims vor und nach axis
func axisSplit(shape []int, axis int) (outer, inner int) {
	return numel(shape[:axis]), numel(shape[axis+1:])
}

func normAxis(axis, rank int) int {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		panic(fmt.Errorf("ml: axis %d out of range for rank %d", axis, rank))
	}
	return axis
}

// Concat joins tensors along axis. All other dimensions must match.
func Concat(ctx *Context, axis int, ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("ml: concat of zero tensors")
	}

	first := ts[0]
	axis = normAxis(axis, first.Rank())
	shape := first.Shape()
	shape[axis] = 0
	for _, t := range ts {
		if t.Rank() != first.Rank() {
			panic(fmt.Errorf("ml: concat rank mismatch %v vs %v", first.shape, t.shape))
		}
		for d := range t.shape {
			if d != axis && t.shape[d] != first.shape[d] {
				panic(fmt.Errorf("ml: concat shape mismatch %v vs %v on axis %d", first.shape, t.shape, axis))
			}
		}
		shape[axis] += t.shape[axis]
	}

	outer, inner := axisSplit(shape, axis)
	out := Zeros(shape...)
	row := shape[axis] * inner
	offset := 0
	for _, t := range ts {
		block := t.shape[axis] * inner
		for o := range outer {
			copy(out.data[o*row+offset:o*row+offset+block], t.data[o*block:(o+1)*block])
		}
		offset += block
	}

	return ctx.record(out, func() {
		offset := 0
		for _, t := range ts {
			block := t.shape[axis] * inner
			if t.requiresGrad {
				g := t.accGrad()
				for o := range outer {
					floats.Add(g[o*block:(o+1)*block], out.grad[o*row+offset:o*row+offset+block])
				}
			}
			offset += block
		}
	}, ts...)
}

// Narrow returns length elements of axis starting at start.
func (t *Tensor) Narrow(ctx *Context, axis, start, length int) *Tensor {
	axis = normAxis(axis, t.Rank())
	if start < 0 || length < 0 || start+length > t.shape[axis] {
		panic(fmt.Errorf("ml: narrow [%d:%d] out of range for axis %d of %v", start, start+length, axis, t.shape))
	}

	shape := t.Shape()
	shape[axis] = length
	outer, inner := axisSplit(t.shape, axis)
	row := t.shape[axis] * inner
	block := length * inner

	out := Zeros(shape...)
	for o := range outer {
		copy(out.data[o*block:(o+1)*block], t.data[o*row+start*inner:o*row+start*inner+block])
	}

	return ctx.record(out, func() {
		g := t.accGrad()
		for o := range outer {
			floats.Add(g[o*row+start*inner:o*row+start*inner+block], out.grad[o*block:(o+1)*block])
		}
	}, t)
}
