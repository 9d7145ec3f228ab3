// MODUL: tensor
// ZWECK: RGB-Bildtensor im CHW Layout und Resampling auf Encoder-Aufloesung
// INPUT: float32 Pixelwerte [3,H,W]
// OUTPUT: Tensor, skalierte Tensoren
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: ml (SamplingMode)
// HINWEISE: Bilinear mit Halbpixel-Zentren (align_corners=false)

package vision

import (
	"fmt"

	"github.com/lucidrains/tri-lbm/ml"
)

// Channels ist die feste Kanalzahl (RGB)
const Channels = 3

// Tensor ist ein RGB-Bild im CHW Layout.
type Tensor struct {
	Data   []float32
	Height int
	Width  int
}

// NewTensor erstellt einen schwarzen Tensor [3,h,w].
func NewTensor(h, w int) *Tensor {
	return &Tensor{Data: make([]float32, Channels*h*w), Height: h, Width: w}
}

// TensorFromFloats verpackt data [3,h,w] ohne Kopie.
func TensorFromFloats(data []float32, h, w int) (*Tensor, error) {
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("ungueltige Groesse: %dx%d", w, h)
	}
	if len(data) != Channels*h*w {
		return nil, fmt.Errorf("tensor laenge %d passt nicht zu [3,%d,%d]", len(data), h, w)
	}
	return &Tensor{Data: data, Height: h, Width: w}, nil
}

// Shape gibt [3,H,W] zurueck.
func (t *Tensor) Shape() []int {
	return []int{Channels, t.Height, t.Width}
}

// At liefert den Wert an Kanal c, Zeile y, Spalte x.
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.Height+y)*t.Width+x]
}

// Resize skaliert auf h x w. Gleiche Groesse liefert t selbst.
func (t *Tensor) Resize(h, w int, mode ml.SamplingMode) (*Tensor, error) {
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("ungueltige Groesse: %dx%d", w, h)
	}
	if h == t.Height && w == t.Width {
		return t, nil
	}

	out := NewTensor(h, w)
	sy := float64(t.Height) / float64(h)
	sx := float64(t.Width) / float64(w)

	for c := range Channels {
		for y := range h {
			for x := range w {
				var v float32
				switch mode {
				case ml.SamplingModeNearest:
					v = t.At(c, min(int(float64(y)*sy), t.Height-1), min(int(float64(x)*sx), t.Width-1))
				default:
					v = t.bilinear(c, (float64(y)+0.5)*sy-0.5, (float64(x)+0.5)*sx-0.5)
				}
				out.Data[(c*h+y)*w+x] = v
			}
		}
	}
	return out, nil
}

// bilinear interpoliert an (fy, fx), Koordinaten am Rand geklemmt
func (t *Tensor) bilinear(c int, fy, fx float64) float32 {
	fy = min(max(fy, 0), float64(t.Height-1))
	fx = min(max(fx, 0), float64(t.Width-1))

	y0, x0 := int(fy), int(fx)
	y1, x1 := min(y0+1, t.Height-1), min(x0+1, t.Width-1)
	dy, dx := float32(fy-float64(y0)), float32(fx-float64(x0))

	top := t.At(c, y0, x0)*(1-dx) + t.At(c, y0, x1)*dx
	bottom := t.At(c, y1, x0)*(1-dx) + t.At(c, y1, x1)*dx
	return top*(1-dy) + bottom*dy
}
