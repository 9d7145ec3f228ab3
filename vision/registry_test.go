package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucidrains/tri-lbm/types/errtypes"
)

type fakeEncoder struct {
	opts LoadOptions
}

func (f *fakeEncoder) EncodeImage(context.Context, *Tensor) ([]float32, error) {
	return make([]float32, f.opts.EmbeddingDim), nil
}

func (f *fakeEncoder) ModelInfo() ModelInfo {
	return ModelInfo{Name: "fake", Type: "test", EmbeddingDim: f.opts.EmbeddingDim, ImageSize: f.opts.ImageSize}
}

func (f *fakeEncoder) Close() error { return nil }

func TestRegistryCreateAppliesOptions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("fake", func(opts LoadOptions) (ImageEncoder, error) {
		return &fakeEncoder{opts: opts}, nil
	}))

	enc, err := r.Create("fake", WithImageSize(32), WithEmbeddingDim(8), WithThreads(2))
	require.NoError(t, err)
	require.Equal(t, ModelInfo{Name: "fake", Type: "test", EmbeddingDim: 8, ImageSize: 32}, enc.ModelInfo())
	require.Equal(t, 2, enc.(*fakeEncoder).opts.Threads)
}

func TestRegistryCreateUnknown(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("projection", func(opts LoadOptions) (ImageEncoder, error) {
		return &fakeEncoder{opts: opts}, nil
	}))

	_, err := r.Create("projecton")
	require.ErrorIs(t, err, ErrEncoderNotRegistered)

	var rerr *RegistryError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "projection", rerr.Suggestion)
}

func TestRegistryCreateInvalidOptions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("fake", func(opts LoadOptions) (ImageEncoder, error) {
		return &fakeEncoder{opts: opts}, nil
	}))

	_, err := r.Create("fake", WithDevice("tpu"))
	require.ErrorIs(t, err, errtypes.ErrConfiguration)

	_, err = r.Create("fake", WithImageSize(-1))
	require.ErrorIs(t, err, errtypes.ErrConfiguration)
}

func TestDefaultLoadOptions(t *testing.T) {
	o := DefaultLoadOptions()
	require.NoError(t, o.Validate())
	require.Equal(t, DeviceCPU, o.Device)
	require.Positive(t, o.Threads)
}
