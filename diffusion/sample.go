package diffusion

import (
	"context"
	"math"

	"github.com/lucidrains/tri-lbm/logutil"
	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// SampleOptions configures one Sample call.
type SampleOptions struct {
	// Steps ist die Anzahl DDIM-Schritte, 0 = SamplingTimesteps
	Steps int
	// Eta = 0 ist deterministisch, 1 entspricht DDPM-Varianz
	Eta          float64
	ClipDenoised bool

	// Noise ist das Start-Rauschen x_T; nil = aus Generator ziehen
	Noise     *ml.Tensor
	Generator *ml.Generator

	CheckFinite bool
	Progress    func(step, total int)
}

// SampleResult is the output of Sample.
type SampleResult struct {
	Sample *ml.Tensor
	Noise  *ml.Tensor
}

// Sample runs the DDIM reverse process for every row of obs and returns the
// denoised sequences [B,L,A]. The context is checked before each step.
func (p *Process) Sample(ctx context.Context, obs *ml.Tensor, opts SampleOptions) (*SampleResult, error) {
	steps := opts.Steps
	if steps == 0 {
		steps = p.cfg.SamplingTimesteps
	}
	pairs, err := DDIMTimes(p.cfg.Timesteps, steps)
	if err != nil {
		return nil, err
	}
	if obs == nil || obs.Rank() != 2 {
		return nil, errtypes.Configuration("diffusion", "observation", "[batch, d_obs]", obs)
	}
	b := obs.Dim(0)

	noise := opts.Noise
	if noise == nil {
		if opts.Generator == nil {
			return nil, errtypes.Configuration("diffusion", "generator", "non-nil", nil)
		}
		noise = opts.Generator.Normal(b, p.cfg.SeqLength, p.cfg.Channels)
	}
	if err := p.checkSequence("noise", noise, b); err != nil {
		return nil, err
	}
	if opts.Eta > 0 && opts.Generator == nil {
		return nil, errtypes.Configuration("diffusion", "generator", "non-nil for eta > 0", nil)
	}

	mctx := ml.NewContext().NoGrad()
	x := noise
	t := make([]int, b)

	if opts.Progress != nil {
		opts.Progress(0, steps)
	}
	for i, pair := range pairs {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		tCur, tNext := pair[0], pair[1]
		for j := range t {
			t[j] = tCur
		}

		eps, x0, err := p.predictions(mctx, x, t, obs, opts.ClipDenoised)
		if err != nil {
			return nil, err
		}

		if tNext < 0 {
			x = x0
		} else {
			alpha := p.Schedule.AlphasCumprod[tCur]
			alphaNext := p.Schedule.AlphasCumprod[tNext]
			sigma := opts.Eta * math.Sqrt((1-alpha/alphaNext)*(1-alphaNext)/(1-alpha))
			c := math.Sqrt(max(1-alphaNext-sigma*sigma, 0))

			x = x0.Scale(mctx, math.Sqrt(alphaNext)).Add(mctx, eps.Scale(mctx, c))
			if sigma > 0 {
				z := opts.Generator.Normal(x.Shape()...)
				x = x.Add(mctx, z.Scale(mctx, sigma))
			}
		}

		if opts.CheckFinite && x.HasNonFinite() {
			return nil, &errtypes.NumericInstabilityError{Step: i, Timestep: tCur}
		}

		logutil.TraceContext(ctx, "ddim step", "step", i+1, "total", steps, "t", tCur, "t_next", tNext, "x", x)
		if opts.Progress != nil {
			opts.Progress(i+1, steps)
		}
	}

	return &SampleResult{Sample: x, Noise: noise}, nil
}
