// ops_matmul.go - Matrixmultiplikation auf gonum/mat
//
// Unterstuetzt:
// - [..., M, K] x [K, N]       (Gewichtsmatrix, fuehrende Dims werden geflacht)
// - [..., M, K] x [..., K, N]  (gebatcht, gleiche fuehrende Dims)
package ml

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matmul returns the matrix product of t and w.
func (t *Tensor) Matmul(ctx *Context, w *Tensor) *Tensor {
	if t.Rank() < 2 || w.Rank() < 2 {
		panic(fmt.Errorf("ml: matmul needs rank >= 2, got %v x %v", t.shape, w.shape))
	}
	if t.Dim(-1) != w.Dim(-2) {
		panic(fmt.Errorf("ml: matmul inner dims differ: %v x %v", t.shape, w.shape))
	}

	if w.Rank() == 2 {
		return t.matmul2D(ctx, w)
	}
	return t.matmulBatched(ctx, w)
}

func (t *Tensor) matmul2D(ctx *Context, w *Tensor) *Tensor {
	k, n := w.shape[0], w.shape[1]
	rows := len(t.data) / k

	shape := append(slices.Clone(t.shape[:t.Rank()-1]), n)
	out := Zeros(shape...)

	a := mat.NewDense(rows, k, t.data)
	b := mat.NewDense(k, n, w.data)
	mat.NewDense(rows, n, out.data).Mul(a, b)

	return ctx.record(out, func() {
		g := mat.NewDense(rows, n, out.grad)
		if t.requiresGrad {
			var da mat.Dense
			da.Mul(g, b.T())
			floats.Add(t.accGrad(), da.RawMatrix().Data)
		}
		if w.requiresGrad {
			var dw mat.Dense
			dw.Mul(a.T(), g)
			floats.Add(w.accGrad(), dw.RawMatrix().Data)
		}
	}, t, w)
}

func (t *Tensor) matmulBatched(ctx *Context, w *Tensor) *Tensor {
	lead := t.shape[:t.Rank()-2]
	if !slices.Equal(lead, w.shape[:w.Rank()-2]) {
		panic(fmt.Errorf("ml: batched matmul leading dims differ: %v x %v", t.shape, w.shape))
	}

	m, k, n := t.Dim(-2), t.Dim(-1), w.Dim(-1)
	batch := numel(lead)

	shape := append(slices.Clone(lead), m, n)
	out := Zeros(shape...)
	for i := range batch {
		a := mat.NewDense(m, k, t.data[i*m*k:(i+1)*m*k])
		b := mat.NewDense(k, n, w.data[i*k*n:(i+1)*k*n])
		mat.NewDense(m, n, out.data[i*m*n:(i+1)*m*n]).Mul(a, b)
	}

	return ctx.record(out, func() {
		var ga, gw []float64
		if t.requiresGrad {
			ga = t.accGrad()
		}
		if w.requiresGrad {
			gw = w.accGrad()
		}
		for i := range batch {
			a := mat.NewDense(m, k, t.data[i*m*k:(i+1)*m*k])
			b := mat.NewDense(k, n, w.data[i*k*n:(i+1)*k*n])
			g := mat.NewDense(m, n, out.grad[i*m*n:(i+1)*m*n])
			if ga != nil {
				var da mat.Dense
				da.Mul(g, b.T())
				floats.Add(ga[i*m*k:(i+1)*m*k], da.RawMatrix().Data)
			}
			if gw != nil {
				var dw mat.Dense
				dw.Mul(a.T(), g)
				floats.Add(gw[i*k*n:(i+1)*k*n], dw.RawMatrix().Data)
			}
		}
	}, t, w)
}
