// MODUL: factory
// ZWECK: Image-Encoder Schnittstelle und Factory-Typ
// INPUT: Encoder-Name, Options
// OUTPUT: ImageEncoder Instanzen
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: registry.go (DefaultRegistry), selector.go (Auto), tensor.go (Tensor)
// HINWEISE: Der Aufrufer bringt Bilder vorab auf ModelInfo().ImageSize und normalisiert sie

package vision

import (
	"context"
	"errors"
)

// ============================================================================
// ImageEncoder Interface
// ============================================================================

// ImageEncoder bildet ein vorverarbeitetes Bild [3,H,W] auf einen
// Embedding-Vektor der Laenge ModelInfo().EmbeddingDim ab.
//
// Implementierungen muessen EncodeImage fuer gleichzeitige Aufrufe erlauben.
type ImageEncoder interface {
	EncodeImage(ctx context.Context, img *Tensor) ([]float32, error)
	ModelInfo() ModelInfo
	Close() error
}

// ModelInfo enthaelt Metadaten ueber einen Encoder.
type ModelInfo struct {
	Name         string
	Type         string
	EmbeddingDim int
	ImageSize    int // erwartete quadratische Eingabe-Aufloesung
}

// EncoderFactory erstellt einen Encoder aus LoadOptions.
type EncoderFactory func(opts LoadOptions) (ImageEncoder, error)

var (
	// ErrEncoderClosed: Encode nach Close
	ErrEncoderClosed = errors.New("vision: encoder closed")

	// ErrImageSize: Bildgroesse passt nicht zu ModelInfo().ImageSize
	ErrImageSize = errors.New("vision: unexpected image size")
)

// NewEncoder erstellt den Encoder name aus der DefaultRegistry.
// Auto waehlt ueber DefaultSelector.
func NewEncoder(name string, opts ...Option) (ImageEncoder, error) {
	return DefaultSelector.Create(name, opts...)
}
