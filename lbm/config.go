package lbm

import (
	"fmt"

	"github.com/lucidrains/tri-lbm/denoiser"
	"github.com/lucidrains/tri-lbm/diffusion"
	"github.com/lucidrains/tri-lbm/envconfig"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// Variant names the denoising network family.
type Variant string

const (
	VariantTransformer Variant = "transformer"

	// VariantUNet has no denoiser definition. Models built with it fail at
	// the first Loss or Sample call.
	VariantUNet Variant = "unet"
)

// Config holds every construction parameter of a Model.
type Config struct {
	ActionDim   int
	ChunkLength int

	// Transformer
	Dim     int
	Depth   int
	Heads   int
	DimHead int
	FFMult  int

	// Diffusion
	Timesteps         int
	SamplingTimesteps int
	Schedule          diffusion.ScheduleKind
	Objective         diffusion.Objective
	DDIMEta           float64
	ClipDenoised      bool

	// Beobachtung
	Frames              int
	DimPose             int
	NormalizeEmbeddings bool

	// ActionNormStats ist (shift, scale) pro Aktionsdimension, nil = keine Normalisierung
	ActionNormStats [][2]float64

	Variant     Variant
	Seed        uint64 // 0 = zufaellig
	Threads     int    // parallele Encoder-Aufrufe, 0 = LBM_NUM_THREADS
	CheckFinite bool
}

// DefaultConfig returns the reference configuration for actionDim with
// LBM_* environment overrides applied.
func DefaultConfig(actionDim int) Config {
	d := denoiser.DefaultConfig(actionDim)
	cfg := Config{
		ActionDim:         actionDim,
		ChunkLength:       16,
		Dim:               d.Dim,
		Depth:             d.Depth,
		Heads:             d.Heads,
		DimHead:           d.DimHead,
		FFMult:            d.FFMult,
		Timesteps:         1000,
		SamplingTimesteps: 16,
		Schedule:          diffusion.ScheduleCosine,
		Objective:         diffusion.ObjectivePredNoise,
		Frames:            1,
		Variant:           VariantTransformer,
		Seed:              envconfig.Seed(),
		Threads:           envconfig.NumThreads(),
		CheckFinite:       envconfig.CheckFinite(false),
	}
	if steps := envconfig.SamplingSteps(); steps > 0 {
		cfg.SamplingTimesteps = int(steps)
	}
	return cfg
}

func (c Config) denoiserConfig() denoiser.Config {
	return denoiser.Config{
		ActionDim: c.ActionDim,
		Dim:       c.Dim,
		Depth:     c.Depth,
		Heads:     c.Heads,
		DimHead:   c.DimHead,
		FFMult:    c.FFMult,
	}
}

// Validate checks the parts of the configuration that do not depend on the
// encoders.
func (c Config) Validate() error {
	if err := c.denoiserConfig().Validate(); err != nil {
		return err
	}

	switch {
	case c.ChunkLength <= 0:
		return errtypes.Configuration("lbm", "chunk_length", "> 0", c.ChunkLength)
	case c.Frames <= 0:
		return errtypes.Configuration("lbm", "frames", "> 0", c.Frames)
	case c.DimPose < 0:
		return errtypes.Configuration("lbm", "dim_pose", ">= 0", c.DimPose)
	case c.Timesteps <= 0:
		return errtypes.Configuration("lbm", "timesteps", "> 0", c.Timesteps)
	case c.SamplingTimesteps < 1 || c.SamplingTimesteps > c.Timesteps:
		return errtypes.Configuration("lbm", "sampling_timesteps", fmt.Sprintf("1..%d", c.Timesteps), c.SamplingTimesteps)
	case c.DDIMEta < 0:
		return errtypes.Configuration("lbm", "ddim_eta", ">= 0", c.DDIMEta)
	case c.Threads < 0:
		return errtypes.Configuration("lbm", "threads", ">= 0", c.Threads)
	}

	switch c.Variant {
	case VariantTransformer, VariantUNet:
	default:
		return errtypes.Configuration("lbm", "variant", []Variant{VariantTransformer, VariantUNet}, c.Variant)
	}
	return nil
}
