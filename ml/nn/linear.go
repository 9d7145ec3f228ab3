// linear.go - Lineare Schicht
//
// Gewicht im Layout [in, out], damit x @ W ohne Transponieren laeuft.
// Initialisierung wie PyTorch nn.Linear: U(-1/sqrt(in), 1/sqrt(in)).
package nn

import (
	"math"

	"github.com/lucidrains/tri-lbm/ml"
)

// Linear is a dense affine layer.
type Linear struct {
	Weight *ml.Tensor `weight:"weight"`
	Bias   *ml.Tensor `weight:"bias,optional"`
}

type linearOptions struct {
	noBias   bool
	zeroInit bool
	bias     *float64
}

// LinearOption configures NewLinear.
type LinearOption func(*linearOptions)

// WithoutBias drops the bias term.
func WithoutBias() LinearOption {
	return func(o *linearOptions) { o.noBias = true }
}

// WithZeroInit initialises weight and bias to zero.
func WithZeroInit() LinearOption {
	return func(o *linearOptions) { o.zeroInit = true }
}

// WithBiasInit sets every bias element to v.
func WithBiasInit(v float64) LinearOption {
	return func(o *linearOptions) { o.bias = &v }
}

// NewLinear creates a Linear layer mapping in features to out features.
func NewLinear(g *ml.Generator, in, out int, opts ...LinearOption) *Linear {
	var o linearOptions
	for _, opt := range opts {
		opt(&o)
	}

	bound := 1 / math.Sqrt(float64(in))
	l := &Linear{}
	if o.zeroInit {
		l.Weight = ml.Zeros(in, out)
	} else {
		l.Weight = g.Uniform(-bound, bound, in, out)
	}
	l.Weight.SetRequiresGrad(true)

	if o.noBias {
		return l
	}

	switch {
	case o.bias != nil:
		l.Bias = ml.Full(*o.bias, out)
	case o.zeroInit:
		l.Bias = ml.Zeros(out)
	default:
		l.Bias = g.Uniform(-bound, bound, out)
	}
	l.Bias.SetRequiresGrad(true)
	return l
}

// Forward applies x @ W + b over the last axis of x.
func (l *Linear) Forward(ctx *ml.Context, x *ml.Tensor) *ml.Tensor {
	y := x.Matmul(ctx, l.Weight)
	if l.Bias != nil {
		y = y.Add(ctx, l.Bias)
	}
	return y
}

// InFeatures returns the input width.
func (l *Linear) InFeatures() int { return l.Weight.Dim(0) }

// OutFeatures returns the output width.
func (l *Linear) OutFeatures() int { return l.Weight.Dim(1) }
