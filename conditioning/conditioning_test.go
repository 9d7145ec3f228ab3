package conditioning

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

func TestTimeEmbeddingOddDim(t *testing.T) {
	_, err := NewTimeEmbedding(ml.NewGenerator(0), 7)
	require.ErrorIs(t, err, errtypes.ErrConfiguration)

	var cfgErr *errtypes.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "dim", cfgErr.Field)
}

func TestTimeEmbeddingShapes(t *testing.T) {
	e, err := NewTimeEmbedding(ml.NewGenerator(0), 16)
	require.NoError(t, err)

	for _, shape := range [][]int{{3}, {3, 1}} {
		out, err := e.Forward(nil, ml.Full(5, shape...))
		require.NoError(t, err)
		require.Equal(t, []int{3, 16}, out.Shape())
	}

	_, err = e.Forward(nil, ml.Zeros(3, 2))
	require.ErrorIs(t, err, errtypes.ErrConfiguration)
}

func TestTimeEmbeddingValues(t *testing.T) {
	e, err := NewTimeEmbedding(ml.NewGenerator(0), 4)
	require.NoError(t, err)

	out, err := e.Forward(nil, ml.New([]float64{0, 3}, 2))
	require.NoError(t, err)

	w := e.Freqs.Floats()
	got := out.Floats()
	// t = 0: sin = 0, cos = 1
	require.Equal(t, []float64{0, 0, 1, 1}, got[:4])
	for i := range 2 {
		require.InDelta(t, math.Sin(2*math.Pi*w[i]*3), got[4+i], 1e-12)
		require.InDelta(t, math.Cos(2*math.Pi*w[i]*3), got[6+i], 1e-12)
	}
}

func TestTimeEmbeddingFrozen(t *testing.T) {
	e, err := NewTimeEmbedding(ml.NewGenerator(11), 32)
	require.NoError(t, err)

	ts := ml.New([]float64{1, 250, 999}, 3)
	a, err := e.Forward(nil, ts)
	require.NoError(t, err)
	b, err := e.Forward(nil, ts)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Floats(), b.Floats()); diff != "" {
		t.Errorf("repeated calls differ:\n%s", diff)
	}

	other, err := NewTimeEmbedding(ml.NewGenerator(12), 32)
	require.NoError(t, err)
	c, err := other.Forward(nil, ts)
	require.NoError(t, err)
	require.NotEqual(t, a.Floats(), c.Floats())
}

func TestTimeConditioner(t *testing.T) {
	c, err := NewTimeConditioner(ml.NewGenerator(1), 8)
	require.NoError(t, err)
	require.Equal(t, 16, c.OutDim())

	out, err := c.Forward(nil, ml.New([]float64{10, 20}, 2))
	require.NoError(t, err)
	require.Equal(t, []int{2, 16}, out.Shape())
}

func TestFusionSize(t *testing.T) {
	dims := Dims{Time: 8, Text: 5, Image: 3, Frames: 2, Pose: 4}
	f, err := NewFusion(dims)
	require.NoError(t, err)
	require.Equal(t, 8+5+2*3+4, dims.Condition())

	g := ml.NewGenerator(2)
	out, err := f.Fuse(nil, g.Normal(2, 8), g.Normal(2, 5), g.Normal(2, 2, 3), g.Normal(2, 4))
	require.NoError(t, err)
	require.Equal(t, []int{2, dims.Condition()}, out.Shape())
}

func TestFusionFrameMajor(t *testing.T) {
	f, err := NewFusion(Dims{Time: 1, Text: 1, Image: 2, Frames: 2})
	require.NoError(t, err)

	images := ml.New([]float64{1, 2, 3, 4}, 1, 2, 2)
	out, err := f.Fuse(nil, ml.New([]float64{9}, 1, 1), ml.New([]float64{0}, 1, 1), images, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{9, 0, 1, 2, 3, 4}, out.Floats())
}

func TestFusionMismatch(t *testing.T) {
	f, err := NewFusion(Dims{Time: 4, Text: 3, Image: 2, Frames: 2, Pose: 1})
	require.NoError(t, err)
	g := ml.NewGenerator(3)

	cases := []struct {
		name                     string
		time, text, images, pose *ml.Tensor
		field                    string
	}{
		{"text width", g.Normal(1, 4), g.Normal(1, 4), g.Normal(1, 2, 2), g.Normal(1, 1), "text"},
		{"image frames", g.Normal(1, 4), g.Normal(1, 3), g.Normal(1, 1, 2), g.Normal(1, 1), "images"},
		{"image width", g.Normal(1, 4), g.Normal(1, 3), g.Normal(1, 2, 3), g.Normal(1, 1), "images"},
		{"pose missing", g.Normal(1, 4), g.Normal(1, 3), g.Normal(1, 2, 2), nil, "pose"},
		{"pose batch", g.Normal(1, 4), g.Normal(1, 3), g.Normal(1, 2, 2), g.Normal(2, 1), "pose"},
		{"time width", g.Normal(1, 5), g.Normal(1, 3), g.Normal(1, 2, 2), g.Normal(1, 1), "time"},
		{"time batch", g.Normal(2, 4), g.Normal(1, 3), g.Normal(1, 2, 2), g.Normal(1, 1), "time"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fuse(nil, tt.time, tt.text, tt.images, tt.pose)
			var cfgErr *errtypes.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestFusionUnexpectedPose(t *testing.T) {
	f, err := NewFusion(Dims{Time: 2, Text: 1, Image: 1, Frames: 1})
	require.NoError(t, err)
	g := ml.NewGenerator(4)

	_, err = f.Observation(nil, g.Normal(1, 1), g.Normal(1, 1, 1), g.Normal(1, 3))
	require.ErrorIs(t, err, errtypes.ErrConfiguration)
}

func TestDimsValidate(t *testing.T) {
	_, err := NewFusion(Dims{Time: 2, Text: 1, Image: 1, Frames: 0})
	require.ErrorIs(t, err, errtypes.ErrConfiguration)
	_, err = NewFusion(Dims{Time: 2, Text: 1, Image: 1, Frames: 1, Pose: -1})
	require.ErrorIs(t, err, errtypes.ErrConfiguration)
}
