package denoiser

import (
	"fmt"
	"log/slog"

	"github.com/lucidrains/tri-lbm/conditioning"
	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/ml/nn"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// Config holds the transformer hyperparameters.
type Config struct {
	ActionDim int
	Dim       int
	Depth     int
	Heads     int
	DimHead   int
	FFMult    int

	// Observation widths. Time wird aus Dim abgeleitet (2*Dim).
	Observation conditioning.Dims
}

// DefaultConfig returns the reference sizes: width 768, depth 8, 12 heads of 64.
func DefaultConfig(actionDim int) Config {
	return Config{
		ActionDim: actionDim,
		Dim:       768,
		Depth:     8,
		Heads:     12,
		DimHead:   64,
		FFMult:    4,
	}
}

// Validate checks the hyperparameters.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"action_dim", c.ActionDim},
		{"dim", c.Dim},
		{"depth", c.Depth},
		{"heads", c.Heads},
		{"dim_head", c.DimHead},
		{"ff_mult", c.FFMult},
	} {
		if f.v <= 0 {
			return errtypes.Configuration("denoiser", f.name, "> 0", f.v)
		}
	}
	return nil
}

// Transformer predicts noise or the clean signal for a noised action sequence.
type Transformer struct {
	Time      *conditioning.TimeConditioner `weight:"time"`
	ProjIn    *nn.Linear                    `weight:"proj_in"`
	Blocks    []*Block                      `weight:"blocks"`
	FinalNorm *Modulation                   `weight:"final_norm"`
	ProjOut   *nn.Linear                    `weight:"proj_out"`

	Fusion *conditioning.Fusion `weight:"-"`

	cfg Config
}

// New creates a transformer with freshly initialised parameters drawn from g.
func New(g *ml.Generator, cfg Config) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeCond, err := conditioning.NewTimeConditioner(g, cfg.Dim)
	if err != nil {
		return nil, fmt.Errorf("denoiser: %w", err)
	}

	dims := cfg.Observation
	dims.Time = timeCond.OutDim()
	fusion, err := conditioning.NewFusion(dims)
	if err != nil {
		return nil, fmt.Errorf("denoiser: %w", err)
	}

	condDim := dims.Condition()
	t := &Transformer{
		Time:      timeCond,
		ProjIn:    nn.NewLinear(g, cfg.ActionDim, cfg.Dim),
		Blocks:    make([]*Block, cfg.Depth),
		FinalNorm: NewModulation(g, AdaptiveNorm, condDim, cfg.Dim),
		ProjOut:   nn.NewLinear(g, cfg.Dim, cfg.ActionDim),
		Fusion:    fusion,
		cfg:       cfg,
	}
	for i := range t.Blocks {
		t.Blocks[i] = newBlock(g, cfg, condDim)
	}

	slog.Debug("denoiser created", "dim", cfg.Dim, "depth", cfg.Depth, "heads", cfg.Heads,
		"dim_head", cfg.DimHead, "dim_condition", condDim, "params", nn.Count(t.Parameters()))
	return t, nil
}

// Config returns the configuration the transformer was built with.
func (t *Transformer) Config() Config {
	return t.cfg
}

// Parameters returns all trainable tensors.
func (t *Transformer) Parameters() []nn.Parameter {
	return nn.Collect("", t)
}

// Predict maps x [B,L,A], timesteps [B] and observation [B,d_obs] to [B,L,A].
func (t *Transformer) Predict(ctx *ml.Context, x, timesteps, obs *ml.Tensor) (*ml.Tensor, error) {
	if x.Rank() != 3 || x.Dim(-1) != t.cfg.ActionDim {
		return nil, errtypes.Configuration("denoiser", "actions", fmt.Sprintf("[batch, length, %d]", t.cfg.ActionDim), x.Shape())
	}
	b := x.Dim(0)
	if timesteps.Rank() != 1 || timesteps.Dim(0) != b {
		return nil, errtypes.Configuration("denoiser", "timesteps", []int{b}, timesteps.Shape())
	}

	timeFeat, err := t.Time.Forward(ctx, timesteps)
	if err != nil {
		return nil, err
	}
	cond, err := t.Fusion.WithTime(ctx, timeFeat, obs)
	if err != nil {
		return nil, err
	}

	h := t.ProjIn.Forward(ctx, x)
	for _, block := range t.Blocks {
		h = block.Forward(ctx, h, cond)
	}
	h = t.FinalNorm.Apply(ctx, h, cond)

	return t.ProjOut.Forward(ctx, h), nil
}
