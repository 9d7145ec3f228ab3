// ops_elementwise.go - Elementweise Operationen mit Broadcasting
//
// Dieses Modul enthaelt:
// - Add, Sub, Mul, Div mit NumPy-artigem Broadcasting
// - Scale, AddScalar
// - Unaere Funktionen: SiLU, GELU, Sigmoid, Tanh, Sin, Cos, Exp, Sqrt, Square, Clamp
package ml

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// =============================================================================
// Broadcasting
// =============================================================================

// broadcastShapes richtet Shapes rechtsbuendig aus
func broadcastShapes(a, b []int) []int {
	n := max(len(a), len(b))
	out := make([]int, n)
	for i := range n {
		da, db := 1, 1
		if j := i - (n - len(a)); j >= 0 {
			da = a[j]
		}
		if j := i - (n - len(b)); j >= 0 {
			db = b[j]
		}
		switch {
		case da == db, db == 1:
			out[i] = da
		case da == 1:
			out[i] = db
		default:
			panic(fmt.Errorf("ml: shapes %v and %v are not broadcastable", a, b))
		}
	}
	return out
}

// broadcastIndex bildet jeden flachen Index von out auf den Quellindex in ab
func broadcastIndex(out, in []int) []int {
	strides := make([]int, len(out))
	s := 1
	for i := len(out) - 1; i >= 0; i-- {
		if j := i - (len(out) - len(in)); j >= 0 {
			if in[j] != 1 {
				strides[i] = s
			}
			s *= in[j]
		}
	}

	n := numel(out)
	idx := make([]int, n)
	coord := make([]int, len(out))
	off := 0
	for k := range n {
		idx[k] = off
		for d := len(out) - 1; d >= 0; d-- {
			coord[d]++
			off += strides[d]
			if coord[d] < out[d] {
				break
			}
			off -= strides[d] * coord[d]
			coord[d] = 0
		}
	}
	return idx
}

// binary wendet f elementweise an; da und db sind die partiellen Ableitungen
func (t *Tensor) binary(ctx *Context, o *Tensor, f, da, db func(x, y float64) float64) *Tensor {
	shape := broadcastShapes(t.shape, o.shape)
	out := Zeros(shape...)
	ai := broadcastIndex(shape, t.shape)
	bi := broadcastIndex(shape, o.shape)
	for k := range out.data {
		out.data[k] = f(t.data[ai[k]], o.data[bi[k]])
	}

	return ctx.record(out, func() {
		if t.requiresGrad {
			g := t.accGrad()
			for k, v := range out.grad {
				g[ai[k]] += v * da(t.data[ai[k]], o.data[bi[k]])
			}
		}
		if o.requiresGrad {
			g := o.accGrad()
			for k, v := range out.grad {
				g[bi[k]] += v * db(t.data[ai[k]], o.data[bi[k]])
			}
		}
	}, t, o)
}

// Add returns t + o with broadcasting.
func (t *Tensor) Add(ctx *Context, o *Tensor) *Tensor {
	if !slices.Equal(t.shape, o.shape) {
		return t.binary(ctx, o,
			func(x, y float64) float64 { return x + y },
			func(x, y float64) float64 { return 1 },
			func(x, y float64) float64 { return 1 })
	}

	out := New(floats.AddTo(make([]float64, len(t.data)), t.data, o.data), t.shape...)
	return ctx.record(out, func() {
		if t.requiresGrad {
			floats.Add(t.accGrad(), out.grad)
		}
		if o.requiresGrad {
			floats.Add(o.accGrad(), out.grad)
		}
	}, t, o)
}

// Sub returns t - o with broadcasting.
func (t *Tensor) Sub(ctx *Context, o *Tensor) *Tensor {
	if !slices.Equal(t.shape, o.shape) {
		return t.binary(ctx, o,
			func(x, y float64) float64 { return x - y },
			func(x, y float64) float64 { return 1 },
			func(x, y float64) float64 { return -1 })
	}

	out := New(floats.SubTo(make([]float64, len(t.data)), t.data, o.data), t.shape...)
	return ctx.record(out, func() {
		if t.requiresGrad {
			floats.Add(t.accGrad(), out.grad)
		}
		if o.requiresGrad {
			floats.Sub(o.accGrad(), out.grad)
		}
	}, t, o)
}

// Mul returns the elementwise product t * o with broadcasting.
func (t *Tensor) Mul(ctx *Context, o *Tensor) *Tensor {
	if !slices.Equal(t.shape, o.shape) {
		return t.binary(ctx, o,
			func(x, y float64) float64 { return x * y },
			func(x, y float64) float64 { return y },
			func(x, y float64) float64 { return x })
	}

	out := New(floats.MulTo(make([]float64, len(t.data)), t.data, o.data), t.shape...)
	return ctx.record(out, func() {
		if t.requiresGrad {
			g := t.accGrad()
			for i, v := range out.grad {
				g[i] += v * o.data[i]
			}
		}
		if o.requiresGrad {
			g := o.accGrad()
			for i, v := range out.grad {
				g[i] += v * t.data[i]
			}
		}
	}, t, o)
}

// Div returns t / o with broadcasting.
func (t *Tensor) Div(ctx *Context, o *Tensor) *Tensor {
	return t.binary(ctx, o,
		func(x, y float64) float64 { return x / y },
		func(x, y float64) float64 { return 1 / y },
		func(x, y float64) float64 { return -x / (y * y) })
}

// Scale returns t * s.
func (t *Tensor) Scale(ctx *Context, s float64) *Tensor {
	out := New(slices.Clone(t.data), t.shape...)
	floats.Scale(s, out.data)
	return ctx.record(out, func() {
		floats.AddScaled(t.accGrad(), s, out.grad)
	}, t)
}

// AddScalar returns t + s.
func (t *Tensor) AddScalar(ctx *Context, s float64) *Tensor {
	out := New(slices.Clone(t.data), t.shape...)
	floats.AddConst(s, out.data)
	return ctx.record(out, func() {
		floats.Add(t.accGrad(), out.grad)
	}, t)
}

// =============================================================================
// Unaere Funktionen
// =============================================================================

// unary wendet f an; df erhaelt Eingabe x und Ausgabe y
func (t *Tensor) unary(ctx *Context, f func(x float64) float64, df func(x, y float64) float64) *Tensor {
	out := Zeros(t.shape...)
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return ctx.record(out, func() {
		g := t.accGrad()
		for i, v := range out.grad {
			g[i] += v * df(t.data[i], out.data[i])
		}
	}, t)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Sigmoid returns 1 / (1 + exp(-t)).
func (t *Tensor) Sigmoid(ctx *Context) *Tensor {
	return t.unary(ctx, sigmoid, func(_, y float64) float64 { return y * (1 - y) })
}

// SiLU returns t * sigmoid(t).
func (t *Tensor) SiLU(ctx *Context) *Tensor {
	return t.unary(ctx,
		func(x float64) float64 { return x * sigmoid(x) },
		func(x, _ float64) float64 {
			s := sigmoid(x)
			return s * (1 + x*(1-s))
		})
}

// GELU uses the exact erf formulation.
func (t *Tensor) GELU(ctx *Context) *Tensor {
	return t.unary(ctx,
		func(x float64) float64 { return 0.5 * x * (1 + math.Erf(x/math.Sqrt2)) },
		func(x, _ float64) float64 {
			return 0.5*(1+math.Erf(x/math.Sqrt2)) + x*math.Exp(-0.5*x*x)/math.Sqrt(2*math.Pi)
		})
}

// Tanh returns the hyperbolic tangent.
func (t *Tensor) Tanh(ctx *Context) *Tensor {
	return t.unary(ctx, math.Tanh, func(_, y float64) float64 { return 1 - y*y })
}

// Sin returns sin(t).
func (t *Tensor) Sin(ctx *Context) *Tensor {
	return t.unary(ctx, math.Sin, func(x, _ float64) float64 { return math.Cos(x) })
}

// Cos returns cos(t).
func (t *Tensor) Cos(ctx *Context) *Tensor {
	return t.unary(ctx, math.Cos, func(x, _ float64) float64 { return -math.Sin(x) })
}

// Exp returns e^t.
func (t *Tensor) Exp(ctx *Context) *Tensor {
	return t.unary(ctx, math.Exp, func(_, y float64) float64 { return y })
}

// Sqrt returns the square root.
func (t *Tensor) Sqrt(ctx *Context) *Tensor {
	return t.unary(ctx, math.Sqrt, func(_, y float64) float64 { return 0.5 / y })
}

// Square returns t².
func (t *Tensor) Square(ctx *Context) *Tensor {
	return t.unary(ctx,
		func(x float64) float64 { return x * x },
		func(x, _ float64) float64 { return 2 * x })
}

// Clamp limits values to [lo, hi]. The gradient is zero outside the range.
func (t *Tensor) Clamp(ctx *Context, lo, hi float64) *Tensor {
	return t.unary(ctx,
		func(x float64) float64 { return min(max(x, lo), hi) },
		func(x, _ float64) float64 {
			if x < lo || x > hi {
				return 0
			}
			return 1
		})
}
