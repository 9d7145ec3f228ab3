// MODUL: options
// ZWECK: Functional Options fuer das Laden von Image-Encodern
// INPUT: Optionale Parameter (Modellpfad, Device, Threads, Bildgroesse, Embedding-Dim, Seed)
// OUTPUT: LoadOptions Struct
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: types/errtypes, runtime (Standard-Library)
// HINWEISE: Null-Werte bei ImageSize/EmbeddingDim bedeuten "Encoder-Default"

package vision

import (
	"runtime"

	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// ============================================================================
// LoadOptions - Zentrale Konfigurationsstruktur
// ============================================================================

// LoadOptions enthaelt die Konfiguration fuer das Laden eines Image-Encoders.
type LoadOptions struct {
	ModelPath    string // Modelldatei (nur fuer dateibasierte Encoder wie onnx)
	Device       string // Compute-Backend: "cpu" oder "cuda"
	Threads      int    // Anzahl CPU-Threads
	ImageSize    int    // Eingabe-Aufloesung (quadratisch), 0 = Encoder-Default
	EmbeddingDim int    // Ausgabe-Dimension, 0 = Encoder-Default
	Seed         uint64 // Seed fuer eingefrorene Zufallsprojektionen
}

// Option ist eine funktionale Option fuer LoadOptions.
type Option func(*LoadOptions)

const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// DefaultLoadOptions gibt eine Standard-Konfiguration zurueck.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Device:  DeviceCPU,
		Threads: runtime.NumCPU(),
	}
}

// ============================================================================
// Functional Options
// ============================================================================

func WithModelPath(path string) Option {
	return func(o *LoadOptions) {
		o.ModelPath = path
	}
}

// WithDevice setzt das Compute-Backend.
func WithDevice(device string) Option {
	return func(o *LoadOptions) {
		o.Device = device
	}
}

// WithThreads setzt die Anzahl der CPU-Threads.
// Werte <= 0 werden ignoriert.
func WithThreads(n int) Option {
	return func(o *LoadOptions) {
		if n > 0 {
			o.Threads = n
		}
	}
}

func WithImageSize(size int) Option {
	return func(o *LoadOptions) {
		o.ImageSize = size
	}
}

func WithEmbeddingDim(dim int) Option {
	return func(o *LoadOptions) {
		o.EmbeddingDim = dim
	}
}

func WithSeed(seed uint64) Option {
	return func(o *LoadOptions) {
		o.Seed = seed
	}
}

// Apply wendet alle Options auf LoadOptions an.
func (o *LoadOptions) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// ============================================================================
// Validation
// ============================================================================

// Validate prueft ob die LoadOptions gueltig sind.
func (o *LoadOptions) Validate() error {
	switch o.Device {
	case DeviceCPU, DeviceCUDA:
	default:
		return errtypes.Configuration("vision", "device", []string{DeviceCPU, DeviceCUDA}, o.Device)
	}

	if o.Threads <= 0 {
		return errtypes.Configuration("vision", "threads", "> 0", o.Threads)
	}
	if o.ImageSize < 0 {
		return errtypes.Configuration("vision", "image_size", ">= 0", o.ImageSize)
	}
	if o.EmbeddingDim < 0 {
		return errtypes.Configuration("vision", "embedding_dim", ">= 0", o.EmbeddingDim)
	}
	return nil
}
