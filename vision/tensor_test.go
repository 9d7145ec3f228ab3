package vision

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/lucidrains/tri-lbm/ml"
)

func TestTensorFromFloats(t *testing.T) {
	_, err := TensorFromFloats(make([]float32, 11), 2, 2)
	require.Error(t, err)

	tensor, err := TensorFromFloats(make([]float32, 12), 2, 2)
	require.NoError(t, err)
	require.Equal(t, []int{3, 2, 2}, tensor.Shape())
}

func TestResizeConstant(t *testing.T) {
	tensor := NewTensor(7, 5)
	for i := range tensor.Data {
		tensor.Data[i] = 0.25
	}

	for _, mode := range []ml.SamplingMode{ml.SamplingModeNearest, ml.SamplingModeBilinear} {
		t.Run(mode.String(), func(t *testing.T) {
			out, err := tensor.Resize(16, 16, mode)
			require.NoError(t, err)
			require.Equal(t, []int{3, 16, 16}, out.Shape())
			for _, v := range out.Data {
				require.InDelta(t, 0.25, v, 1e-6)
			}
		})
	}
}

func TestResizeBilinearDownscale(t *testing.T) {
	// 1x4 Zeile [0 1 2 3] auf 1x2: Halbpixel-Zentren treffen 0.5 und 2.5
	tensor, err := TensorFromFloats([]float32{0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3}, 1, 4)
	require.NoError(t, err)

	out, err := tensor.Resize(1, 2, ml.SamplingModeBilinear)
	require.NoError(t, err)
	if diff := cmp.Diff([]float32{0.5, 2.5, 0.5, 2.5, 0.5, 2.5}, out.Data, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("resize mismatch (-want +got):\n%s", diff)
	}
}

func TestResizeSameSizeIsIdentity(t *testing.T) {
	tensor := NewTensor(4, 4)
	out, err := tensor.Resize(4, 4, ml.SamplingModeBilinear)
	require.NoError(t, err)
	require.Same(t, tensor, out)

	_, err = tensor.Resize(0, 4, ml.SamplingModeBilinear)
	require.Error(t, err)
}
