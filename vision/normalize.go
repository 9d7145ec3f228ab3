// MODUL: normalize
// ZWECK: Normalisierung und Tensor-Konvertierung fuer Image-Encoder
// INPUT: ImageInput oder Tensor, Normalisierungs-Parameter (mean, std)
// OUTPUT: Tensor im CHW Layout
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: CLIP Preset ist der Default fuer das LBM

package vision

// Standard-Normalisierungswerte
var (
	// ImageNet Default (ResNet, Nomic, etc.)
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}

	// CLIP Default
	ClipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	ClipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// ToTensor konvertiert ein Bild in einen CHW Tensor mit Werten in [0,1]
func ToTensor(img *ImageInput) *Tensor {
	bounds := img.Image.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	out := NewTensor(h, w)
	plane := h * w

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := extractRGB(img, x, y)
			out.Data[idx] = r
			out.Data[plane+idx] = g
			out.Data[2*plane+idx] = b
			idx++
		}
	}
	return out
}

// extractRGB holt RGB-Werte als float32 im Bereich [0,1]
func extractRGB(img *ImageInput, x, y int) (float32, float32, float32) {
	c := img.Image.RGBAAt(x, y)
	return float32(c.R) / 255.0, float32(c.G) / 255.0, float32(c.B) / 255.0
}

// NormalizeRGB normalisiert ein Bild mit mean/std (CHW Ergebnis)
func NormalizeRGB(img *ImageInput, mean, std [3]float32) *Tensor {
	return ToTensor(img).Normalize(mean, std)
}

// Normalize gibt (t - mean) / std pro Kanal als neuen Tensor zurueck
func (t *Tensor) Normalize(mean, std [3]float32) *Tensor {
	out := NewTensor(t.Height, t.Width)
	plane := t.Height * t.Width
	for c := range Channels {
		src := t.Data[c*plane : (c+1)*plane]
		dst := out.Data[c*plane : (c+1)*plane]
		for i, v := range src {
			dst[i] = (v - mean[c]) / std[c]
		}
	}
	return out
}
