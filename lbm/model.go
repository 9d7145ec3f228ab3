// Package lbm - Large Behavior Model: sprachgesteuerte Diffusions-Policy fuer Aktions-Chunks.
//
// MODUL: lbm
// ZWECK: Setzt Encoder, Konditionierung, Denoiser, Diffusion und Aktions-Normalisierung zusammen
// INPUT: Instruktionen, Bildstapel, Pose, Soll-Aktionen (Training)
// OUTPUT: Skalarer Loss oder Aktions-Chunks [B,L,A] in physikalischen Einheiten
// NEBENEFFEKTE: Spans ueber den otel TracerProvider, Debug-Logs bei Konstruktion
// ABHAENGIGKEITEN: denoiser, diffusion, conditioning, actionnorm, text, vision,
//                  x/sync/errgroup, go.opentelemetry.io/otel (extern)
// HINWEISE: Lesen (Loss/Sample) parallel zu einem Optimizer-Schritt ist NICHT sicher,
//           der Aufrufer muss das synchronisieren
package lbm

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucidrains/tri-lbm/actionnorm"
	"github.com/lucidrains/tri-lbm/conditioning"
	"github.com/lucidrains/tri-lbm/denoiser"
	"github.com/lucidrains/tri-lbm/diffusion"
	"github.com/lucidrains/tri-lbm/envconfig"
	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/ml/nn"
	"github.com/lucidrains/tri-lbm/text"
	"github.com/lucidrains/tri-lbm/types/errtypes"
	"github.com/lucidrains/tri-lbm/vision"
)

const tracerName = "github.com/lucidrains/tri-lbm/lbm"

// Model is a language and vision conditioned diffusion policy.
//
// Loss and Sample may run concurrently with each other. Neither may run
// concurrently with an update of the parameters returned by Parameters.
type Model struct {
	cfg     Config
	threads int

	text  text.Encoder
	image vision.ImageEncoder

	fusion      *conditioning.Fusion
	transformer *denoiser.Transformer // nil fuer VariantUNet
	process     *diffusion.Process
	norm        *actionnorm.Normalizer

	gen    *ml.Generator
	tracer trace.Tracer
}

// New builds a model around the given frozen encoders. Sizes of the
// condition vector are fixed here from cfg and the encoder widths.
func New(cfg Config, textEnc text.Encoder, imageEnc vision.ImageEncoder, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if textEnc == nil {
		return nil, errtypes.Configuration("lbm", "text_encoder", "non-nil", nil)
	}
	if imageEnc == nil {
		return nil, errtypes.Configuration("lbm", "image_encoder", "non-nil", nil)
	}
	if size := imageEnc.ModelInfo().ImageSize; size <= 0 {
		return nil, errtypes.Configuration("lbm", "image_size", "> 0", size)
	}

	norm, err := actionnorm.New(cfg.ActionDim, cfg.ActionNormStats)
	if err != nil {
		return nil, err
	}

	dims := conditioning.Dims{
		Time:   2 * cfg.Dim,
		Text:   textEnc.Dim(),
		Image:  imageEnc.ModelInfo().EmbeddingDim,
		Frames: cfg.Frames,
		Pose:   cfg.DimPose,
	}
	fusion, err := conditioning.NewFusion(dims)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	gen := ml.NewGenerator(seed)

	m := &Model{
		cfg:     cfg,
		threads: cfg.Threads,
		text:    textEnc,
		image:   imageEnc,
		fusion:  fusion,
		norm:    norm,
		gen:     gen,
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	if m.threads == 0 {
		m.threads = envconfig.NumThreads()
	}
	for _, opt := range opts {
		opt(m)
	}

	var net diffusion.Denoiser
	switch cfg.Variant {
	case VariantUNet:
		net = denoiser.Unimplemented{Variant: string(cfg.Variant)}
	default:
		dc := cfg.denoiserConfig()
		dc.Observation = dims
		m.transformer, err = denoiser.New(gen, dc)
		if err != nil {
			return nil, err
		}
		net = m.transformer
	}

	m.process, err = diffusion.New(net, diffusion.Config{
		Timesteps:         cfg.Timesteps,
		SamplingTimesteps: cfg.SamplingTimesteps,
		Schedule:          cfg.Schedule,
		Objective:         cfg.Objective,
		SeqLength:         cfg.ChunkLength,
		Channels:          cfg.ActionDim,
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("lbm model created", "variant", cfg.Variant, "action_dim", cfg.ActionDim,
		"chunk_length", cfg.ChunkLength, "dim_condition", dims.Condition(),
		"text_encoder_dim", dims.Text, "image_encoder", imageEnc.ModelInfo().Name,
		"params", nn.Count(m.Parameters()), "action_norm", norm.Enabled())
	return m, nil
}

// Config returns the configuration the model was built with.
func (m *Model) Config() Config {
	return m.cfg
}

// Dims returns the widths of the condition vector.
func (m *Model) Dims() conditioning.Dims {
	return m.fusion.Dims
}

// Parameters returns the trainable tensors of the denoiser.
func (m *Model) Parameters() []nn.Parameter {
	if m.transformer == nil {
		return nil
	}
	return m.transformer.Parameters()
}

// Normalizer returns the action normalizer.
func (m *Model) Normalizer() *actionnorm.Normalizer {
	return m.norm
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// =============================================================================
// Training
// =============================================================================

// Loss returns the diffusion loss of batch as a differentiable scalar.
// Actions are normalized before noising.
func (m *Model) Loss(ctx context.Context, batch Batch, opts ...LossOption) (loss *ml.Tensor, err error) {
	ctx, span := m.tracer.Start(ctx, "lbm.Loss", trace.WithAttributes(
		attribute.Int("batch", len(batch.Text)),
	))
	defer func() { endSpan(span, err) }()

	o := lossOptions{generator: m.gen}
	for _, opt := range opts {
		opt(&o)
	}

	want := []int{len(batch.Text), m.cfg.ChunkLength, m.cfg.ActionDim}
	if batch.Actions == nil || !slices.Equal(batch.Actions.Shape(), want) {
		var got any
		if batch.Actions != nil {
			got = batch.Actions.Shape()
		}
		return nil, errtypes.Configuration("lbm", "actions", want, got)
	}

	obs, err := m.Condition(ctx, batch.Observation)
	if err != nil {
		return nil, err
	}

	actions, err := m.norm.Normalize(nil, batch.Actions)
	if err != nil {
		return nil, err
	}

	return m.process.Loss(ctx, actions, obs, diffusion.LossOptions{
		Timesteps: o.timesteps,
		Noise:     o.noise,
		Generator: o.generator,
	})
}

// =============================================================================
// Sampling
// =============================================================================

// SampleResult holds sampled actions [B,L,A] in physical units and, when
// requested, the initial noise.
type SampleResult struct {
	Actions *ml.Tensor
	Noise   *ml.Tensor
}

// Sample draws one action chunk per observation row with the DDIM sampler.
// The result is denormalized exactly once.
func (m *Model) Sample(ctx context.Context, obs Observation, opts ...SampleOption) (res *SampleResult, err error) {
	o := sampleOptions{
		steps:       m.cfg.SamplingTimesteps,
		eta:         m.cfg.DDIMEta,
		checkFinite: m.cfg.CheckFinite,
		generator:   m.gen,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := m.tracer.Start(ctx, "lbm.Sample", trace.WithAttributes(
		attribute.Int("batch", len(obs.Text)),
		attribute.Int("steps", o.steps),
		attribute.Float64("eta", o.eta),
	))
	defer func() { endSpan(span, err) }()

	cond, err := m.Condition(ctx, obs)
	if err != nil {
		return nil, err
	}

	out, err := m.process.Sample(ctx, cond, diffusion.SampleOptions{
		Steps:        o.steps,
		Eta:          o.eta,
		ClipDenoised: m.cfg.ClipDenoised,
		Noise:        o.noise,
		Generator:    o.generator,
		CheckFinite:  o.checkFinite,
		Progress:     o.progress,
	})
	if err != nil {
		return nil, err
	}

	actions, err := m.norm.Denormalize(nil, out.Sample)
	if err != nil {
		return nil, err
	}

	res = &SampleResult{Actions: actions}
	if o.returnNoise {
		res.Noise = out.Noise
	}
	return res, nil
}

// Forward computes the loss when batch carries actions and samples an
// action chunk otherwise.
func (m *Model) Forward(ctx context.Context, batch Batch) (*ml.Tensor, error) {
	if batch.Actions != nil {
		return m.Loss(ctx, batch)
	}

	res, err := m.Sample(ctx, batch.Observation)
	if err != nil {
		return nil, err
	}
	return res.Actions, nil
}
