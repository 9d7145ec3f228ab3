// ops_reduce.go - Reduktionen und Normalisierungen ueber die letzte Achse
//
// Dieses Modul enthaelt:
// - Sum, Mean: Reduktion auf einen Skalar
// - MeanAxis: Mittelwert entlang einer Achse
// - Softmax: numerisch stabil ueber die letzte Achse
// - LayerNorm: ohne affine Parameter
// - L2Norm: Normierung auf Einheitslaenge
package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sum returns the sum of all elements as a scalar.
func (t *Tensor) Sum(ctx *Context) *Tensor {
	out := Scalar(floats.Sum(t.data))
	return ctx.record(out, func() {
		floats.AddConst(out.grad[0], t.accGrad())
	}, t)
}

// Mean returns the mean of all elements as a scalar.
func (t *Tensor) Mean(ctx *Context) *Tensor {
	n := float64(len(t.data))
	out := Scalar(floats.Sum(t.data) / n)
	return ctx.record(out, func() {
		floats.AddConst(out.grad[0]/n, t.accGrad())
	}, t)
}

// MeanAxis averages over axis and removes it.
func (t *Tensor) MeanAxis(ctx *Context, axis int) *Tensor {
	axis = normAxis(axis, t.Rank())
	outer, inner := axisSplit(t.shape, axis)
	size := t.shape[axis]

	shape := append(t.Shape()[:axis], t.shape[axis+1:]...)
	out := Zeros(shape...)
	for o := range outer {
		for a := range size {
			floats.Add(out.data[o*inner:(o+1)*inner], t.data[(o*size+a)*inner:(o*size+a+1)*inner])
		}
	}
	floats.Scale(1/float64(size), out.data)

	return ctx.record(out, func() {
		g := t.accGrad()
		for o := range outer {
			for a := range size {
				floats.AddScaled(g[(o*size+a)*inner:(o*size+a+1)*inner], 1/float64(size), out.grad[o*inner:(o+1)*inner])
			}
		}
	}, t)
}

// rows iteriert ueber alle Zeilen der letzten Achse
func rows(data []float64, n int, fn func(i int, row []float64)) {
	for i := 0; i*n < len(data); i++ {
		fn(i, data[i*n:(i+1)*n])
	}
}

// Softmax normalizes the last axis to a probability distribution.
func (t *Tensor) Softmax(ctx *Context) *Tensor {
	n := t.Dim(-1)
	out := Zeros(t.shape...)
	rows(t.data, n, func(i int, row []float64) {
		y := out.data[i*n : (i+1)*n]
		m := floats.Max(row)
		for j, v := range row {
			y[j] = math.Exp(v - m)
		}
		floats.Scale(1/floats.Sum(y), y)
	})

	return ctx.record(out, func() {
		g := t.accGrad()
		rows(out.grad, n, func(i int, gy []float64) {
			y := out.data[i*n : (i+1)*n]
			dot := floats.Dot(gy, y)
			gx := g[i*n : (i+1)*n]
			for j := range gx {
				gx[j] += y[j] * (gy[j] - dot)
			}
		})
	}, t)
}

const layerNormEps = 1e-5

// LayerNorm normalizes the last axis to zero mean and unit variance.
func (t *Tensor) LayerNorm(ctx *Context) *Tensor {
	n := t.Dim(-1)
	out := Zeros(t.shape...)
	inv := make([]float64, len(t.data)/n)
	rows(t.data, n, func(i int, row []float64) {
		mean := floats.Sum(row) / float64(n)
		variance := 0.0
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(n)
		inv[i] = 1 / math.Sqrt(variance+layerNormEps)

		y := out.data[i*n : (i+1)*n]
		for j, v := range row {
			y[j] = (v - mean) * inv[i]
		}
	})

	return ctx.record(out, func() {
		g := t.accGrad()
		rows(out.grad, n, func(i int, gy []float64) {
			xhat := out.data[i*n : (i+1)*n]
			meanG := floats.Sum(gy) / float64(n)
			meanGX := floats.Dot(gy, xhat) / float64(n)
			gx := g[i*n : (i+1)*n]
			for j := range gx {
				gx[j] += inv[i] * (gy[j] - meanG - xhat[j]*meanGX)
			}
		})
	}, t)
}

const l2NormEps = 1e-12

// L2Norm scales the last axis to unit euclidean length.
func (t *Tensor) L2Norm(ctx *Context) *Tensor {
	n := t.Dim(-1)
	out := Zeros(t.shape...)
	norms := make([]float64, len(t.data)/n)
	rows(t.data, n, func(i int, row []float64) {
		norms[i] = max(floats.Norm(row, 2), l2NormEps)
		floats.ScaleTo(out.data[i*n:(i+1)*n], 1/norms[i], row)
	})

	return ctx.record(out, func() {
		g := t.accGrad()
		rows(out.grad, n, func(i int, gy []float64) {
			y := out.data[i*n : (i+1)*n]
			gx := g[i*n : (i+1)*n]
			if norms[i] == l2NormEps {
				floats.AddScaled(gx, 1/l2NormEps, gy)
				return
			}
			dot := floats.Dot(gy, y)
			for j := range gx {
				gx[j] += (gy[j] - y[j]*dot) / norms[i]
			}
		})
	}, t)
}
