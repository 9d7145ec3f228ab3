// types.go - Konstanten fuer ML-Operationen
// Dieses Modul definiert SamplingMode fuer Resize-Operationen.
package ml

// SamplingMode specifies the interpolation method for tensor resizing.
type SamplingMode int

const (
	SamplingModeNearest SamplingMode = iota
	SamplingModeBilinear
)

func (m SamplingMode) String() string {
	switch m {
	case SamplingModeNearest:
		return "nearest"
	case SamplingModeBilinear:
		return "bilinear"
	default:
		return "unknown"
	}
}
