package denoiser

import (
	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/ml/nn"
)

// Block is one encoder layer:
//
//	x = x + scale_c(attn(norm_c(x)))
//	x = x + scale_c(ff(norm_c(x)))
type Block struct {
	AttnNorm  *Modulation     `weight:"attn_norm"`
	Attn      *nn.Attention   `weight:"attn"`
	AttnScale *Modulation     `weight:"attn_scale"`
	FFNorm    *Modulation     `weight:"ff_norm"`
	FF        *nn.FeedForward `weight:"ff"`
	FFScale   *Modulation     `weight:"ff_scale"`
}

func newBlock(g *ml.Generator, cfg Config, condDim int) *Block {
	return &Block{
		AttnNorm:  NewModulation(g, AdaptiveNorm, condDim, cfg.Dim),
		Attn:      nn.NewAttention(g, cfg.Dim, cfg.Heads, cfg.DimHead),
		AttnScale: NewModulation(g, AdaptiveScale, condDim, cfg.Dim),
		FFNorm:    NewModulation(g, AdaptiveNorm, condDim, cfg.Dim),
		FF:        nn.NewFeedForward(g, cfg.Dim, cfg.FFMult),
		FFScale:   NewModulation(g, AdaptiveScale, condDim, cfg.Dim),
	}
}

// Forward applies the block to x [B,L,D] under cond [B,C].
func (b *Block) Forward(ctx *ml.Context, x, cond *ml.Tensor) *ml.Tensor {
	h := b.Attn.Forward(ctx, b.AttnNorm.Apply(ctx, x, cond))
	x = x.Add(ctx, b.AttnScale.Apply(ctx, h, cond))

	h = b.FF.Forward(ctx, b.FFNorm.Apply(ctx, x, cond))
	return x.Add(ctx, b.FFScale.Apply(ctx, h, cond))
}
