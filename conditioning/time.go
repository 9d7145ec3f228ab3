// Package conditioning - Zeit-Embedding und Fusion des Bedingungsvektors.
//
// MODUL: conditioning
// ZWECK: Diffusions-Zeitschritt in Fourier-Features abbilden und mit Text-,
//        Bild- und Pose-Embeddings zu einem Bedingungsvektor verbinden
// INPUT: Zeitschritte [B] oder [B,1], Embeddings [B,d_text], [B,F,d_image], [B,d_pose]
// OUTPUT: Bedingungsvektor [B, 2*dim + d_text + F*d_image + d_pose]
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: ml, ml/nn, types/errtypes
// HINWEISE:
//   - Frequenzen werden einmal bei der Konstruktion gezogen und danach nie veraendert
//   - Dimensionsfehler sind ConfigurationError, es wird nichts umgeformt
package conditioning

import (
	"math"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/ml/nn"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// ============================================================================
// TimeEmbedding
// ============================================================================

// TimeEmbedding maps scalar timesteps to random fourier features.
type TimeEmbedding struct {
	// Freqs [dim/2], eingefroren
	Freqs *ml.Tensor `weight:"freqs"`

	dim int
}

// NewTimeEmbedding draws dim/2 frequencies from N(0,1). dim must be even.
func NewTimeEmbedding(g *ml.Generator, dim int) (*TimeEmbedding, error) {
	if dim <= 0 || dim%2 != 0 {
		return nil, errtypes.Configuration("time embedding", "dim", "positive even", dim)
	}
	return &TimeEmbedding{Freqs: g.Normal(dim / 2), dim: dim}, nil
}

// Dim returns the feature width.
func (e *TimeEmbedding) Dim() int {
	return e.dim
}

// Forward returns concat(sin(2πwt), cos(2πwt)) with shape [B, dim].
func (e *TimeEmbedding) Forward(ctx *ml.Context, t *ml.Tensor) (*ml.Tensor, error) {
	switch {
	case t.Rank() == 1:
	case t.Rank() == 2 && t.Dim(1) == 1:
	default:
		return nil, errtypes.Configuration("time embedding", "timesteps", "[batch] or [batch,1]", t.Shape())
	}

	phase := t.Reshape(ctx, t.Dim(0), 1).Mul(ctx, e.Freqs).Scale(ctx, 2*math.Pi)
	return ml.Concat(ctx, -1, phase.Sin(ctx), phase.Cos(ctx)), nil
}

// ============================================================================
// TimeConditioner
// ============================================================================

// TimeConditioner turns timesteps into the 2*dim time channels of the
// condition vector: fourier features, Linear(dim, 2*dim), SiLU.
type TimeConditioner struct {
	Embed *TimeEmbedding `weight:"embed"`
	Proj  *nn.Linear     `weight:"proj"`
}

// NewTimeConditioner creates a conditioner for model width dim.
func NewTimeConditioner(g *ml.Generator, dim int) (*TimeConditioner, error) {
	embed, err := NewTimeEmbedding(g, dim)
	if err != nil {
		return nil, err
	}
	return &TimeConditioner{Embed: embed, Proj: nn.NewLinear(g, dim, 2*dim)}, nil
}

// OutDim returns the number of time channels, 2*dim.
func (c *TimeConditioner) OutDim() int {
	return c.Proj.OutFeatures()
}

// Forward returns time features [B, 2*dim].
func (c *TimeConditioner) Forward(ctx *ml.Context, t *ml.Tensor) (*ml.Tensor, error) {
	feat, err := c.Embed.Forward(ctx, t)
	if err != nil {
		return nil, err
	}
	return c.Proj.Forward(ctx, feat).SiLU(ctx), nil
}
