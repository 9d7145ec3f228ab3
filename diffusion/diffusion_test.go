package diffusion

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// denoiserFunc adaptiert eine Funktion an das Denoiser-Interface
type denoiserFunc func(ctx *ml.Context, x, t, obs *ml.Tensor) (*ml.Tensor, error)

func (f denoiserFunc) Predict(ctx *ml.Context, x, t, obs *ml.Tensor) (*ml.Tensor, error) {
	return f(ctx, x, t, obs)
}

// zeroNet sagt immer null voraus
var zeroNet = denoiserFunc(func(_ *ml.Context, x, _, _ *ml.Tensor) (*ml.Tensor, error) {
	return ml.Zeros(x.Shape()...), nil
})

// paramNet skaliert x mit einem trainierbaren Skalar
type paramNet struct {
	w *ml.Tensor
}

func (n *paramNet) Predict(ctx *ml.Context, x, _, _ *ml.Tensor) (*ml.Tensor, error) {
	return x.Mul(ctx, n.w), nil
}

func newProcess(t *testing.T, net Denoiser, cfg Config) *Process {
	t.Helper()
	if cfg.Timesteps == 0 {
		cfg.Timesteps = 100
	}
	if cfg.SeqLength == 0 {
		cfg.SeqLength = 4
	}
	if cfg.Channels == 0 {
		cfg.Channels = 3
	}
	p, err := New(net, cfg)
	require.NoError(t, err)
	return p
}

func TestScheduleCosine(t *testing.T) {
	s, err := NewSchedule(ScheduleCosine, 1000)
	require.NoError(t, err)
	require.Equal(t, 1000, s.T())

	for i, b := range s.Betas {
		require.GreaterOrEqual(t, b, 0.0, "beta %d", i)
		require.LessOrEqual(t, b, 0.999, "beta %d", i)
	}
	for i := 1; i < s.T(); i++ {
		require.Less(t, s.AlphasCumprod[i], s.AlphasCumprod[i-1], "alpha cumprod not decreasing at %d", i)
	}
	require.InDelta(t, 1, s.AlphasCumprod[0], 1e-3)
	require.Less(t, s.AlphasCumprod[999], 1e-3)
}

func TestScheduleLinear(t *testing.T) {
	s, err := NewSchedule(ScheduleLinear, 1000)
	require.NoError(t, err)
	require.InDelta(t, 1e-4, s.Betas[0], 1e-12)
	require.InDelta(t, 0.02, s.Betas[999], 1e-12)

	short, err := NewSchedule(ScheduleLinear, 100)
	require.NoError(t, err)
	require.InDelta(t, 1e-3, short.Betas[0], 1e-12)
	require.InDelta(t, 0.2, short.Betas[99], 1e-12)
}

func TestScheduleInvalid(t *testing.T) {
	_, err := NewSchedule("quadratic", 10)
	require.ErrorIs(t, err, errtypes.ErrConfiguration)
	_, err = NewSchedule(ScheduleCosine, 0)
	require.ErrorIs(t, err, errtypes.ErrConfiguration)
}

func TestLossWeights(t *testing.T) {
	s, err := NewSchedule(ScheduleCosine, 50)
	require.NoError(t, err)

	for i, w := range s.LossWeights(ObjectivePredNoise) {
		require.Equal(t, 1.0, w, "weight %d", i)
	}
	if diff := cmp.Diff(s.SNR, s.LossWeights(ObjectivePredX0)); diff != "" {
		t.Errorf("pred_x0 weights are not SNR:\n%s", diff)
	}
	for i, w := range s.LossWeights(ObjectivePredV) {
		require.InDelta(t, s.SNR[i]/(s.SNR[i]+1), w, 1e-12)
	}
}

func TestDDIMTimes(t *testing.T) {
	pairs, err := DDIMTimes(1000, 16)
	require.NoError(t, err)
	require.Len(t, pairs, 16)
	require.Equal(t, [2]int{999, 936}, pairs[0])
	require.Equal(t, [2]int{61, -1}, pairs[15])
	for i := 1; i < len(pairs); i++ {
		require.Equal(t, pairs[i-1][1], pairs[i][0])
		require.Less(t, pairs[i][0], pairs[i-1][0], "times not strictly decreasing")
	}

	all, err := DDIMTimes(10, 10)
	require.NoError(t, err)
	require.Equal(t, [2]int{9, 8}, all[0])
	require.Equal(t, [2]int{0, -1}, all[9])

	for _, steps := range []int{0, -1, 11} {
		_, err := DDIMTimes(10, steps)
		require.ErrorIs(t, err, errtypes.ErrConfiguration, "steps %d", steps)
	}
}

func TestQSample(t *testing.T) {
	p := newProcess(t, zeroNet, Config{})
	g := ml.NewGenerator(0)
	x0 := g.Normal(2, 4, 3)
	noise := g.Normal(2, 4, 3)
	ts := []int{0, 99}

	got := p.QSample(nil, x0, ts, noise)
	again := p.QSample(nil, x0, ts, noise)
	require.Equal(t, got.Floats(), again.Floats(), "q_sample is not reproducible")

	for b, ti := range ts {
		a := p.Schedule.AlphasCumprod[ti]
		for i := range 12 {
			k := b*12 + i
			want := math.Sqrt(a)*x0.Data()[k] + math.Sqrt(1-a)*noise.Data()[k]
			require.InDelta(t, want, got.Data()[k], 1e-12)
		}
	}
}

func TestLossPinned(t *testing.T) {
	p := newProcess(t, zeroNet, Config{})
	g := ml.NewGenerator(1)
	x0 := g.Normal(2, 4, 3)
	noise := g.Normal(2, 4, 3)

	// zeroNet: Verlust = mean(noise²)
	loss, err := p.Loss(t.Context(), x0, ml.Zeros(2, 1), LossOptions{Timesteps: []int{3, 50}, Noise: noise})
	require.NoError(t, err)
	require.InDelta(t, noise.Square(nil).Mean(nil).Item(), loss.Item(), 1e-12)
}

func TestLossObjectives(t *testing.T) {
	g := ml.NewGenerator(2)
	x0 := g.Normal(1, 4, 3)
	noise := g.Normal(1, 4, 3)
	ts := []int{40}

	for _, obj := range []Objective{ObjectivePredNoise, ObjectivePredX0, ObjectivePredV} {
		t.Run(string(obj), func(t *testing.T) {
			p := newProcess(t, zeroNet, Config{Objective: obj})
			loss, err := p.Loss(t.Context(), x0, ml.Zeros(1, 1), LossOptions{Timesteps: ts, Noise: noise})
			require.NoError(t, err)

			var target *ml.Tensor
			switch obj {
			case ObjectivePredX0:
				target = x0
			case ObjectivePredV:
				a := p.Schedule.AlphasCumprod[40]
				target = noise.Scale(nil, math.Sqrt(a)).Sub(nil, x0.Scale(nil, math.Sqrt(1-a)))
			default:
				target = noise
			}
			weight := p.Schedule.LossWeights(obj)[40]
			require.InDelta(t, weight*target.Square(nil).Mean(nil).Item(), loss.Item(), 1e-9)
		})
	}
}

func TestLossFreshDraws(t *testing.T) {
	p := newProcess(t, zeroNet, Config{})
	g := ml.NewGenerator(3)
	x0 := g.Normal(2, 4, 3)

	a, err := p.Loss(t.Context(), x0, ml.Zeros(2, 1), LossOptions{Generator: g})
	require.NoError(t, err)
	b, err := p.Loss(t.Context(), x0, ml.Zeros(2, 1), LossOptions{Generator: g})
	require.NoError(t, err)
	require.NotEqual(t, a.Item(), b.Item())
	require.GreaterOrEqual(t, a.Item(), 0.0)
}

func TestLossDifferentiable(t *testing.T) {
	net := &paramNet{w: ml.Param([]float64{0.5}, 1)}
	p := newProcess(t, net, Config{})
	g := ml.NewGenerator(4)

	loss, err := p.Loss(t.Context(), g.Normal(2, 4, 3), ml.Zeros(2, 1), LossOptions{Generator: g})
	require.NoError(t, err)
	loss.Backward()
	require.NotNil(t, net.w.Grad())
	require.NotZero(t, net.w.Grad()[0])
}

func TestLossValidation(t *testing.T) {
	p := newProcess(t, zeroNet, Config{})
	g := ml.NewGenerator(5)
	x0 := g.Normal(2, 4, 3)
	obs := ml.Zeros(2, 1)

	cases := []struct {
		name string
		x0   *ml.Tensor
		opts LossOptions
	}{
		{"shape", g.Normal(2, 5, 3), LossOptions{Generator: g}},
		{"timestep range", x0, LossOptions{Timesteps: []int{0, 100}, Generator: g}},
		{"timestep count", x0, LossOptions{Timesteps: []int{0}, Generator: g}},
		{"noise shape", x0, LossOptions{Noise: g.Normal(1, 4, 3), Generator: g}},
		{"no generator", x0, LossOptions{}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Loss(t.Context(), tt.x0, obs, tt.opts)
			require.ErrorIs(t, err, errtypes.ErrConfiguration)
		})
	}
}

func TestSampleShapeAndDeterminism(t *testing.T) {
	p := newProcess(t, zeroNet, Config{SamplingTimesteps: 8})
	obs := ml.Zeros(2, 1)

	a, err := p.Sample(t.Context(), obs, SampleOptions{Generator: ml.NewGenerator(6)})
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 3}, a.Sample.Shape())
	require.False(t, a.Sample.HasNonFinite())

	b, err := p.Sample(t.Context(), obs, SampleOptions{Noise: a.Noise})
	require.NoError(t, err)
	if diff := cmp.Diff(a.Sample.Floats(), b.Sample.Floats()); diff != "" {
		t.Errorf("replaying the initial noise changed the sample:\n%s", diff)
	}
}

func TestSampleRecoversTarget(t *testing.T) {
	// Ein Orakel, das das echte Rauschen kennt, fuehrt DDIM exakt zu x0.
	target := ml.NewGenerator(7).Normal(1, 4, 3)
	var p *Process
	oracle := denoiserFunc(func(ctx *ml.Context, x, ts, _ *ml.Tensor) (*ml.Tensor, error) {
		ti := int(ts.Data()[0])
		a := p.Schedule.AlphasCumprod[ti]
		return x.Sub(ctx, target.Scale(ctx, math.Sqrt(a))).Scale(ctx, 1/math.Sqrt(1-a)), nil
	})
	p = newProcess(t, oracle, Config{SamplingTimesteps: 10})

	res, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Generator: ml.NewGenerator(8)})
	require.NoError(t, err)
	if diff := cmp.Diff(target.Floats(), res.Sample.Floats(), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("oracle sampling did not recover the target:\n%s", diff)
	}
}

func TestSampleStochastic(t *testing.T) {
	p := newProcess(t, zeroNet, Config{SamplingTimesteps: 5})
	noise := ml.NewGenerator(9).Normal(1, 4, 3)

	_, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Noise: noise, Eta: 1})
	require.ErrorIs(t, err, errtypes.ErrConfiguration)

	a, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Noise: noise, Eta: 1, Generator: ml.NewGenerator(1)})
	require.NoError(t, err)
	b, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Noise: noise, Eta: 0})
	require.NoError(t, err)
	require.False(t, a.Sample.HasNonFinite())
	require.NotEqual(t, a.Sample.Floats(), b.Sample.Floats())
}

func TestSampleClipDenoised(t *testing.T) {
	big := denoiserFunc(func(_ *ml.Context, x, _, _ *ml.Tensor) (*ml.Tensor, error) {
		return ml.Full(-50, x.Shape()...), nil
	})
	p := newProcess(t, big, Config{SamplingTimesteps: 4, Objective: ObjectivePredX0})

	res, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Generator: ml.NewGenerator(10), ClipDenoised: true})
	require.NoError(t, err)
	for _, v := range res.Sample.Data() {
		require.Equal(t, -1.0, v)
	}

	res, err = p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Generator: ml.NewGenerator(10)})
	require.NoError(t, err)
	for _, v := range res.Sample.Data() {
		require.Equal(t, -50.0, v)
	}
}

func TestSampleSteps(t *testing.T) {
	var calls int
	counting := denoiserFunc(func(_ *ml.Context, x, _, _ *ml.Tensor) (*ml.Tensor, error) {
		calls++
		return ml.Zeros(x.Shape()...), nil
	})
	p := newProcess(t, counting, Config{SamplingTimesteps: 16})

	var progress [][2]int
	_, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{
		Steps:     7,
		Generator: ml.NewGenerator(11),
		Progress:  func(step, total int) { progress = append(progress, [2]int{step, total}) },
	})
	require.NoError(t, err)
	require.Equal(t, 7, calls)
	require.Len(t, progress, 8)
	require.Equal(t, [2]int{7, 7}, progress[7])

	for _, steps := range []int{101, -3} {
		_, err = p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Steps: steps, Generator: ml.NewGenerator(11)})
		var cfgErr *errtypes.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "steps", cfgErr.Field)
	}
}

func TestSampleCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	var calls int
	cancelling := denoiserFunc(func(_ *ml.Context, x, _, _ *ml.Tensor) (*ml.Tensor, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return ml.Zeros(x.Shape()...), nil
	})
	p := newProcess(t, cancelling, Config{SamplingTimesteps: 10})

	_, err := p.Sample(ctx, ml.Zeros(1, 1), SampleOptions{Generator: ml.NewGenerator(12)})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 3, calls)
}

func TestSampleCheckFinite(t *testing.T) {
	nan := denoiserFunc(func(_ *ml.Context, x, _, _ *ml.Tensor) (*ml.Tensor, error) {
		return ml.Full(math.NaN(), x.Shape()...), nil
	})
	p := newProcess(t, nan, Config{SamplingTimesteps: 4})

	_, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Generator: ml.NewGenerator(13), CheckFinite: true})
	var numErr *errtypes.NumericInstabilityError
	require.ErrorAs(t, err, &numErr)
	require.Equal(t, 0, numErr.Step)
	require.Equal(t, 99, numErr.Timestep)

	res, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Generator: ml.NewGenerator(13)})
	require.NoError(t, err)
	require.True(t, res.Sample.HasNonFinite())
}

func TestSampleDenoiserError(t *testing.T) {
	boom := errors.New("boom")
	failing := denoiserFunc(func(*ml.Context, *ml.Tensor, *ml.Tensor, *ml.Tensor) (*ml.Tensor, error) {
		return nil, boom
	})
	p := newProcess(t, failing, Config{})

	_, err := p.Sample(t.Context(), ml.Zeros(1, 1), SampleOptions{Steps: 2, Generator: ml.NewGenerator(14)})
	require.ErrorIs(t, err, boom)
}

func TestNewValidation(t *testing.T) {
	cases := []Config{
		{Timesteps: 10, SeqLength: 4, Channels: 3, SamplingTimesteps: 11},
		{Timesteps: 10, SeqLength: 4, Channels: 3, Objective: "pred_eps"},
		{Timesteps: 10, SeqLength: 0, Channels: 3},
		{Timesteps: 10, SeqLength: 4, Channels: 0},
		{Timesteps: 0, SeqLength: 4, Channels: 3},
	}
	for _, cfg := range cases {
		_, err := New(zeroNet, cfg)
		require.ErrorIs(t, err, errtypes.ErrConfiguration, "%+v", cfg)
	}
}
