// adam.go - Adam-Optimierer
// Aktualisiert Parameter in-place und setzt die Gradienten zurueck.
package nn

import (
	"math"

	"github.com/lucidrains/tri-lbm/ml"
)

// Adam implements the Adam optimizer with bias correction.
type Adam struct {
	LR, Beta1, Beta2, Eps float64

	step int
	m, v map[*ml.Tensor][]float64
}

// NewAdam returns Adam with the usual defaults and learning rate lr.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make(map[*ml.Tensor][]float64),
		v:     make(map[*ml.Tensor][]float64),
	}
}

// Step applies one update to every parameter that received a gradient.
func (a *Adam) Step(params []Parameter) {
	a.step++
	b1Corr := 1 - math.Pow(a.Beta1, float64(a.step))
	b2Corr := 1 - math.Pow(a.Beta2, float64(a.step))

	for _, p := range params {
		grad := p.Value.Grad()
		if grad == nil {
			continue
		}

		data := p.Value.Data()
		m, ok := a.m[p.Value]
		if !ok {
			m = make([]float64, len(data))
			a.m[p.Value] = m
		}
		v, ok := a.v[p.Value]
		if !ok {
			v = make([]float64, len(data))
			a.v[p.Value] = v
		}

		for j, g := range grad {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			data[j] -= a.LR * (m[j] / b1Corr) / (math.Sqrt(v[j]/b2Corr) + a.Eps)
		}
		p.Value.ZeroGrad()
	}
}
