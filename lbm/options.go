package lbm

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/lucidrains/tri-lbm/ml"
)

// Option configures New.
type Option func(*Model)

// WithTracerProvider sets the provider for Loss and Sample spans.
// Default: the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Model) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// =============================================================================
// Sample
// =============================================================================

type sampleOptions struct {
	steps       int
	eta         float64
	noise       *ml.Tensor
	returnNoise bool
	checkFinite bool
	progress    func(step, total int)
	generator   *ml.Generator
}

// SampleOption configures one Sample call.
type SampleOption func(*sampleOptions)

// WithSteps sets the number of DDIM steps.
func WithSteps(n int) SampleOption {
	return func(o *sampleOptions) {
		o.steps = n
	}
}

// WithEta overrides Config.DDIMEta.
func WithEta(eta float64) SampleOption {
	return func(o *sampleOptions) {
		o.eta = eta
	}
}

// WithNoise starts the sampler from noise [B,L,A] instead of a fresh draw.
func WithNoise(noise *ml.Tensor) SampleOption {
	return func(o *sampleOptions) {
		o.noise = noise
	}
}

// WithReturnNoise keeps the initial noise in SampleResult.Noise.
func WithReturnNoise() SampleOption {
	return func(o *sampleOptions) {
		o.returnNoise = true
	}
}

func WithCheckFinite(check bool) SampleOption {
	return func(o *sampleOptions) {
		o.checkFinite = check
	}
}

// WithProgress registers a callback invoked after every step.
func WithProgress(fn func(step, total int)) SampleOption {
	return func(o *sampleOptions) {
		o.progress = fn
	}
}

// WithGenerator draws the sampling noise from g instead of the model generator.
func WithGenerator(g *ml.Generator) SampleOption {
	return func(o *sampleOptions) {
		o.generator = g
	}
}

// =============================================================================
// Loss
// =============================================================================

type lossOptions struct {
	timesteps []int
	noise     *ml.Tensor
	generator *ml.Generator
}

// LossOption pins the randomness of one Loss call.
type LossOption func(*lossOptions)

// WithTimesteps pins the diffusion timestep of every batch row.
func WithTimesteps(t ...int) LossOption {
	return func(o *lossOptions) {
		o.timesteps = t
	}
}

// WithLossNoise pins the forward noise [B,L,A].
func WithLossNoise(noise *ml.Tensor) LossOption {
	return func(o *lossOptions) {
		o.noise = noise
	}
}

func WithLossGenerator(g *ml.Generator) LossOption {
	return func(o *lossOptions) {
		o.generator = g
	}
}
