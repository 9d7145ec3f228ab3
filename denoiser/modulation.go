// Package denoiser - Transformer-Encoder mit adaptiver Konditionierung.
//
// MODUL: denoiser
// ZWECK: Verrauschte Aktionssequenz + Zeitschritt + Beobachtung -> Vorhersage gleicher Form
// INPUT: x [B,L,A], t [B], obs [B, d_obs]
// OUTPUT: Vorhersage [B,L,A] (Rauschen, x0 oder v je nach Ziel des Diffusionsprozesses)
// NEBENEFFEKTE: keine, Parameter werden nur vom Optimierer veraendert
// ABHAENGIGKEITEN: ml, ml/nn, conditioning, types/errtypes
// HINWEISE:
//   - Jede Schicht wird global ueber den Bedingungsvektor moduliert (AdaLN + LayerScale),
//     es gibt keine Cross-Attention auf Bedingungs-Tokens
//   - Modulation ist ein einziger parametrisierter Typ fuer alle Stellen im Stack
package denoiser

import (
	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/ml/nn"
)

// ModulationKind selects how the condition modulates a tensor.
type ModulationKind int

const (
	// AdaptiveNorm: LayerNorm(x) * (1 + gamma(c)), gamma startet bei null
	AdaptiveNorm ModulationKind = iota
	// AdaptiveScale: x * sigmoid(beta(c)), beta startet bei -2
	AdaptiveScale
)

func (k ModulationKind) String() string {
	switch k {
	case AdaptiveNorm:
		return "adaptive_norm"
	case AdaptiveScale:
		return "adaptive_scale"
	default:
		return "unknown"
	}
}

// Modulation projects the condition vector to per-channel factors.
type Modulation struct {
	Kind ModulationKind `weight:"-"`
	Proj *nn.Linear     `weight:"proj"`
}

// NewModulation creates a modulation of kind from condDim condition channels to dim.
func NewModulation(g *ml.Generator, kind ModulationKind, condDim, dim int) *Modulation {
	var proj *nn.Linear
	switch kind {
	case AdaptiveScale:
		proj = nn.NewLinear(g, condDim, dim, nn.WithZeroInit(), nn.WithBiasInit(-2))
	default:
		proj = nn.NewLinear(g, condDim, dim, nn.WithZeroInit(), nn.WithoutBias())
	}
	return &Modulation{Kind: kind, Proj: proj}
}

// Apply modulates x [B,L,D] with cond [B,C].
func (m *Modulation) Apply(ctx *ml.Context, x, cond *ml.Tensor) *ml.Tensor {
	f := m.Proj.Forward(ctx, cond).Reshape(ctx, cond.Dim(0), 1, x.Dim(-1))
	switch m.Kind {
	case AdaptiveScale:
		return x.Mul(ctx, f.Sigmoid(ctx))
	default:
		return x.LayerNorm(ctx).Mul(ctx, f.AddScalar(ctx, 1))
	}
}
