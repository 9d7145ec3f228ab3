package diffusion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// Denoiser predicts noise, x0 or v for noised sequences x [B,L,A] at integer
// timesteps t [B] given observation vectors obs [B,d_obs].
type Denoiser interface {
	Predict(ctx *ml.Context, x, t, obs *ml.Tensor) (*ml.Tensor, error)
}

// Config describes the process.
type Config struct {
	Timesteps         int
	SamplingTimesteps int
	Schedule          ScheduleKind
	Objective         Objective

	// Form einer Sequenz: Laenge L und Kanaele A
	SeqLength int
	Channels  int
}

// Process binds a schedule to a denoiser. It holds no state across calls.
type Process struct {
	Schedule *Schedule
	Net      Denoiser

	cfg         Config
	lossWeights []float64
}

// New creates a process for net.
func New(net Denoiser, cfg Config) (*Process, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = ScheduleCosine
	}
	if cfg.Objective == "" {
		cfg.Objective = ObjectivePredNoise
	}
	if !cfg.Objective.Valid() {
		return nil, errtypes.Configuration("diffusion", "objective", []Objective{ObjectivePredNoise, ObjectivePredX0, ObjectivePredV}, cfg.Objective)
	}
	if cfg.SeqLength <= 0 {
		return nil, errtypes.Configuration("diffusion", "seq_length", "> 0", cfg.SeqLength)
	}
	if cfg.Channels <= 0 {
		return nil, errtypes.Configuration("diffusion", "channels", "> 0", cfg.Channels)
	}

	schedule, err := NewSchedule(cfg.Schedule, cfg.Timesteps)
	if err != nil {
		return nil, err
	}

	if cfg.SamplingTimesteps == 0 {
		cfg.SamplingTimesteps = cfg.Timesteps
	}
	if cfg.SamplingTimesteps < 1 || cfg.SamplingTimesteps > cfg.Timesteps {
		return nil, errtypes.Configuration("diffusion", "sampling_timesteps", fmt.Sprintf("1..%d", cfg.Timesteps), cfg.SamplingTimesteps)
	}

	slog.Debug("diffusion process created", "timesteps", cfg.Timesteps, "sampling_timesteps", cfg.SamplingTimesteps,
		"schedule", cfg.Schedule, "objective", cfg.Objective)

	return &Process{
		Schedule:    schedule,
		Net:         net,
		cfg:         cfg,
		lossWeights: schedule.LossWeights(cfg.Objective),
	}, nil
}

// Config returns the process configuration with defaults applied.
func (p *Process) Config() Config {
	return p.cfg
}

// coef sammelt v[t_b] pro Batch-Element als [B,1,1]
func coef(v []float64, t []int) *ml.Tensor {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = v[ti]
	}
	return ml.New(out, len(t), 1, 1)
}

func timeTensor(t []int) *ml.Tensor {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = float64(ti)
	}
	return ml.New(out, len(t))
}

func (p *Process) checkSequence(field string, x *ml.Tensor, batch int) error {
	// batch < 0: beliebige Batchgroesse
	want := []int{batch, p.cfg.SeqLength, p.cfg.Channels}
	if batch < 0 && x.Rank() == 3 {
		want[0] = x.Dim(0)
	}
	if !slices.Equal(x.Shape(), want) {
		return errtypes.Configuration("diffusion", field, want, x.Shape())
	}
	return nil
}

// QSample noises x0 to timesteps t: sqrt(ᾱ_t)·x0 + sqrt(1-ᾱ_t)·noise.
func (p *Process) QSample(ctx *ml.Context, x0 *ml.Tensor, t []int, noise *ml.Tensor) *ml.Tensor {
	a := x0.Mul(ctx, coef(p.Schedule.SqrtAlphasCumprod, t))
	b := noise.Mul(ctx, coef(p.Schedule.SqrtOneMinusAlphasCumprod, t))
	return a.Add(ctx, b)
}

// =============================================================================
// Loss
// =============================================================================

// LossOptions pins the randomness of a Loss call. Unpinned values are drawn
// fresh from Generator on every call.
type LossOptions struct {
	Timesteps []int
	Noise     *ml.Tensor
	Generator *ml.Generator
}

// Loss returns the weighted mean squared error of the denoiser prediction
// for x0 [B,L,A] under obs. The result is a differentiable scalar.
func (p *Process) Loss(ctx context.Context, x0, obs *ml.Tensor, opts LossOptions) (*ml.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.checkSequence("actions", x0, -1); err != nil {
		return nil, err
	}
	b := x0.Dim(0)

	t := opts.Timesteps
	if t == nil {
		if opts.Generator == nil {
			return nil, errtypes.Configuration("diffusion", "generator", "non-nil", nil)
		}
		t = make([]int, b)
		for i := range t {
			t[i] = opts.Generator.IntN(p.cfg.Timesteps)
		}
	}
	if len(t) != b {
		return nil, errtypes.Configuration("diffusion", "timesteps", b, len(t))
	}
	for _, ti := range t {
		if ti < 0 || ti >= p.cfg.Timesteps {
			return nil, errtypes.Configuration("diffusion", "timestep", fmt.Sprintf("0..%d", p.cfg.Timesteps-1), ti)
		}
	}

	noise := opts.Noise
	if noise == nil {
		if opts.Generator == nil {
			return nil, errtypes.Configuration("diffusion", "generator", "non-nil", nil)
		}
		noise = opts.Generator.Normal(x0.Shape()...)
	}
	if err := p.checkSequence("noise", noise, b); err != nil {
		return nil, err
	}

	mctx := ml.NewContext()
	xt := p.QSample(mctx, x0, t, noise)
	pred, err := p.Net.Predict(mctx, xt, timeTensor(t), obs)
	if err != nil {
		return nil, err
	}

	var target *ml.Tensor
	switch p.cfg.Objective {
	case ObjectivePredX0:
		target = x0
	case ObjectivePredV:
		target = noise.Mul(mctx, coef(p.Schedule.SqrtAlphasCumprod, t)).
			Sub(mctx, x0.Mul(mctx, coef(p.Schedule.SqrtOneMinusAlphasCumprod, t)))
	default:
		target = noise
	}

	return pred.Sub(mctx, target).Square(mctx).Mul(mctx, coef(p.lossWeights, t)).Mean(mctx), nil
}

// =============================================================================
// Vorhersagen
// =============================================================================

// predictions liefert Rausch- und x0-Schaetzung fuer x bei Zeitschritt t
func (p *Process) predictions(mctx *ml.Context, x *ml.Tensor, t []int, obs *ml.Tensor, clip bool) (eps, x0 *ml.Tensor, err error) {
	out, err := p.Net.Predict(mctx, x, timeTensor(t), obs)
	if err != nil {
		return nil, nil, err
	}

	switch p.cfg.Objective {
	case ObjectivePredX0:
		x0 = out
	case ObjectivePredV:
		x0 = x.Mul(mctx, coef(p.Schedule.SqrtAlphasCumprod, t)).
			Sub(mctx, out.Mul(mctx, coef(p.Schedule.SqrtOneMinusAlphasCumprod, t)))
	default:
		eps = out
		x0 = p.startFromNoise(mctx, x, t, eps)
	}

	if clip {
		x0 = x0.Clamp(mctx, -1, 1)
		eps = nil
	}
	if eps == nil {
		eps = p.noiseFromStart(mctx, x, t, x0)
	}
	return eps, x0, nil
}

// startFromNoise: x0 = sqrt(1/ᾱ)·x - sqrt(1/ᾱ - 1)·eps
func (p *Process) startFromNoise(mctx *ml.Context, x *ml.Tensor, t []int, eps *ml.Tensor) *ml.Tensor {
	return x.Mul(mctx, coef(p.Schedule.SqrtRecipAlphasCumprod, t)).
		Sub(mctx, eps.Mul(mctx, coef(p.Schedule.SqrtRecipM1AlphasCumprod, t)))
}

// noiseFromStart: eps = (sqrt(1/ᾱ)·x - x0) / sqrt(1/ᾱ - 1)
func (p *Process) noiseFromStart(mctx *ml.Context, x *ml.Tensor, t []int, x0 *ml.Tensor) *ml.Tensor {
	return x.Mul(mctx, coef(p.Schedule.SqrtRecipAlphasCumprod, t)).
		Sub(mctx, x0).
		Div(mctx, coef(p.Schedule.SqrtRecipM1AlphasCumprod, t))
}
