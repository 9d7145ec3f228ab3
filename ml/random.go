// random.go - Seeded Zufallsgenerator
//
// Generator kapselt eine PCG-Quelle aus math/rand/v2 hinter einem Mutex,
// damit parallele Sample-Aufrufe auf demselben Modell sicher sind.
package ml

import (
	"math/rand/v2"
	"sync"
)

// Generator is a seeded random source safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a deterministic generator for seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Normal returns a tensor of standard normal samples.
func (g *Generator) Normal(shape ...int) *Tensor {
	t := Zeros(shape...)
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range t.data {
		t.data[i] = g.rng.NormFloat64()
	}
	return t
}

// Uniform returns a tensor of samples from [lo, hi).
func (g *Generator) Uniform(lo, hi float64, shape ...int) *Tensor {
	t := Zeros(shape...)
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range t.data {
		t.data[i] = lo + (hi-lo)*g.rng.Float64()
	}
	return t
}

// IntN returns a uniform integer in [0, n).
func (g *Generator) IntN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

// Uint64 returns a uniform 64 bit value, used to derive child seeds.
func (g *Generator) Uint64() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Uint64()
}
