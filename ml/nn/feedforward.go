// feedforward.go - Feed-Forward-Block
// Enthaelt: Linear -> GELU -> Linear mit Breitenfaktor mult
package nn

import "github.com/lucidrains/tri-lbm/ml"

// FeedForward is a two layer GELU MLP.
type FeedForward struct {
	Proj *Linear `weight:"proj"`
	Out  *Linear `weight:"out"`
}

// NewFeedForward creates a feed-forward block of width dim*mult.
func NewFeedForward(g *ml.Generator, dim, mult int) *FeedForward {
	return &FeedForward{
		Proj: NewLinear(g, dim, dim*mult),
		Out:  NewLinear(g, dim*mult, dim),
	}
}

// Forward applies the block to the last axis of x.
func (f *FeedForward) Forward(ctx *ml.Context, x *ml.Tensor) *ml.Tensor {
	return f.Out.Forward(ctx, f.Proj.Forward(ctx, x).GELU(ctx))
}
