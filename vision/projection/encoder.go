// MODUL: projection/encoder
// ZWECK: Eingebauter, eingefrorener Image-Encoder ohne Modelldatei
// INPUT: Vorverarbeitete Bilder [3,S,S], LoadOptions (ImageSize, EmbeddingDim, Seed)
// OUTPUT: Embedding-Vektoren ([]float32) der Laenge EmbeddingDim
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: gonum/mat (extern), vision, ml (Generator)
// HINWEISE: Patches 16x16 -> feste Zufallsprojektion -> tanh -> Mittelwert ueber Patches.
//           Gleicher Seed ergibt identische Embeddings, Thread-sicher nach Konstruktion.

package projection

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/types/errtypes"
	"github.com/lucidrains/tri-lbm/vision"
)

// ============================================================================
// Konstanten
// ============================================================================

const (
	// Name unter dem der Encoder registriert ist
	Name = "projection"

	DefaultImageSize    = 224
	DefaultEmbeddingDim = 512

	// PatchSize ist die Kantenlaenge eines Patches in Pixeln
	PatchSize = 16

	patchDim = vision.Channels * PatchSize * PatchSize
)

// ============================================================================
// Encoder
// ============================================================================

// Encoder bildet Bild-Patches linear in den Embedding-Raum ab.
type Encoder struct {
	info   vision.ModelInfo
	proj   *mat.Dense // [patchDim, EmbeddingDim], eingefroren
	closed atomic.Bool
}

// New erstellt einen Projection-Encoder.
func New(opts vision.LoadOptions) (*Encoder, error) {
	size := opts.ImageSize
	if size == 0 {
		size = DefaultImageSize
	}
	dim := opts.EmbeddingDim
	if dim == 0 {
		dim = DefaultEmbeddingDim
	}
	if size%PatchSize != 0 {
		return nil, errtypes.Configuration("vision/projection", "image_size", fmt.Sprintf("multiple of %d", PatchSize), size)
	}

	w := ml.NewGenerator(opts.Seed).Normal(patchDim, dim).Scale(nil, 1/math.Sqrt(patchDim))

	return &Encoder{
		info: vision.ModelInfo{
			Name:         Name,
			Type:         "frozen-projection",
			EmbeddingDim: dim,
			ImageSize:    size,
		},
		proj: mat.NewDense(patchDim, dim, w.Data()),
	}, nil
}

// EncodeImage liefert das Embedding fuer img [3,S,S].
func (e *Encoder) EncodeImage(ctx context.Context, img *vision.Tensor) ([]float32, error) {
	if e.closed.Load() {
		return nil, vision.ErrEncoderClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Height != e.info.ImageSize || img.Width != e.info.ImageSize {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", vision.ErrImageSize,
			img.Width, img.Height, e.info.ImageSize, e.info.ImageSize)
	}

	patches := extractPatches(img)
	n, _ := patches.Dims()

	var h mat.Dense
	h.Mul(patches, e.proj)
	h.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, &h)

	out := make([]float32, e.info.EmbeddingDim)
	for j := range out {
		out[j] = float32(mat.Sum(h.ColView(j)) / float64(n))
	}
	return out, nil
}

// extractPatches zerlegt img in nicht ueberlappende Patches [N, patchDim]
func extractPatches(img *vision.Tensor) *mat.Dense {
	ph, pw := img.Height/PatchSize, img.Width/PatchSize
	patches := mat.NewDense(ph*pw, patchDim, nil)

	for py := range ph {
		for px := range pw {
			row := patches.RawRowView(py*pw + px)
			k := 0
			for c := range vision.Channels {
				for y := range PatchSize {
					for x := range PatchSize {
						row[k] = float64(img.At(c, py*PatchSize+y, px*PatchSize+x))
						k++
					}
				}
			}
		}
	}
	return patches
}

func (e *Encoder) ModelInfo() vision.ModelInfo {
	return e.info
}

// Close markiert den Encoder als geschlossen.
func (e *Encoder) Close() error {
	e.closed.Store(true)
	return nil
}
