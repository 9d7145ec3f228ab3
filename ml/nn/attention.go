// attention.go - Multi-Head Self-Attention
// Enthaelt: Attention mit fusionierter QKV-Projektion ohne Bias
package nn

import (
	"math"

	"github.com/lucidrains/tri-lbm/ml"
)

// Attention implements multi-head scaled dot-product self-attention.
type Attention struct {
	ToQKV *Linear `weight:"to_qkv"`
	ToOut *Linear `weight:"to_out"`

	Heads   int `weight:"-"`
	HeadDim int `weight:"-"`
}

// NewAttention creates attention over dim features with heads x headDim inner width.
func NewAttention(g *ml.Generator, dim, heads, headDim int) *Attention {
	inner := heads * headDim
	return &Attention{
		ToQKV:   NewLinear(g, dim, 3*inner, WithoutBias()),
		ToOut:   NewLinear(g, inner, dim, WithoutBias()),
		Heads:   heads,
		HeadDim: headDim,
	}
}

// splitHeads formt [B, L, H*Dh] nach [B*H, L, Dh] um
func (a *Attention) splitHeads(ctx *ml.Context, x *ml.Tensor, b, l int) *ml.Tensor {
	x = x.Reshape(ctx, b, l, a.Heads, a.HeadDim)
	x = x.Permute(ctx, 0, 2, 1, 3)
	return x.Reshape(ctx, b*a.Heads, l, a.HeadDim)
}

// Forward attends over the sequence axis of x [B, L, D].
func (a *Attention) Forward(ctx *ml.Context, x *ml.Tensor) *ml.Tensor {
	b, l := x.Dim(0), x.Dim(1)
	inner := a.Heads * a.HeadDim

	qkv := a.ToQKV.Forward(ctx, x)
	q := a.splitHeads(ctx, qkv.Narrow(ctx, -1, 0, inner), b, l)
	k := a.splitHeads(ctx, qkv.Narrow(ctx, -1, inner, inner), b, l)
	v := a.splitHeads(ctx, qkv.Narrow(ctx, -1, 2*inner, inner), b, l)

	scores := q.Matmul(ctx, k.Permute(ctx, 0, 2, 1)).Scale(ctx, 1/math.Sqrt(float64(a.HeadDim)))
	out := scores.Softmax(ctx).Matmul(ctx, v)

	// [B*H, L, Dh] -> [B, L, H*Dh]
	out = out.Reshape(ctx, b, a.Heads, l, a.HeadDim).Permute(ctx, 0, 2, 1, 3).Reshape(ctx, b, l, inner)
	return a.ToOut.Forward(ctx, out)
}
