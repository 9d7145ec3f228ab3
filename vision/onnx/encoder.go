//go:build onnx && cgo

// MODUL: onnx/encoder
// ZWECK: ONNX Image-Encoder (z.B. exportierter CLIP ViT-B/16 Vision Tower)
// INPUT: Modell-Pfad (.onnx), vorverarbeitete Bilder [3,S,S], LoadOptions
// OUTPUT: Embedding-Vektoren ([]float32)
// NEBENEFFEKTE: Laedt ONNX Runtime Session, alloziert GPU/CPU Speicher
// ABHAENGIGKEITEN: session.go, vision (ImageEncoder Interface)
// HINWEISE: Bildgroesse und Embedding-Dim werden aus dem Modell gelesen, Options ueberschreiben

package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/lucidrains/tri-lbm/vision"
)

// ============================================================================
// Konstanten
// ============================================================================

const (
	DefaultImageSize    = 224
	DefaultEmbeddingDim = 512

	DefaultInputName  = "pixel_values"
	DefaultOutputName = "image_embeds"
)

var (
	ErrModelLoad     = errors.New("onnx: modell laden fehlgeschlagen")
	ErrSessionCreate = errors.New("onnx: session erstellen fehlgeschlagen")
	ErrInference     = errors.New("onnx: inference fehlgeschlagen")
)

// ============================================================================
// Encoder
// ============================================================================

// Encoder implementiert vision.ImageEncoder mit ONNX Runtime.
type Encoder struct {
	session *Session
	info    vision.ModelInfo
	closed  bool
	mu      sync.RWMutex
}

// New erstellt einen ONNX-basierten Image-Encoder aus opts.ModelPath.
func New(opts vision.LoadOptions) (*Encoder, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, opts.ModelPath, err)
	}

	session, err := CreateSession(opts.ModelPath, SessionOptions{
		InputName:  DefaultInputName,
		OutputName: DefaultOutputName,
		NumThreads: opts.Threads,
		UseGPU:     opts.Device == vision.DeviceCUDA,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}

	size := firstPositive(opts.ImageSize, session.ImageSize(), DefaultImageSize)
	dim := firstPositive(opts.EmbeddingDim, session.EmbeddingDim(), DefaultEmbeddingDim)

	return &Encoder{
		session: session,
		info: vision.ModelInfo{
			Name:         Name,
			Type:         "onnx",
			EmbeddingDim: dim,
			ImageSize:    size,
		},
	}, nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

// EncodeImage fuehrt den Vision Tower fuer img [3,S,S] aus.
func (e *Encoder) EncodeImage(ctx context.Context, img *vision.Tensor) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, vision.ErrEncoderClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Height != e.info.ImageSize || img.Width != e.info.ImageSize {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", vision.ErrImageSize,
			img.Width, img.Height, e.info.ImageSize, e.info.ImageSize)
	}

	out, err := e.session.RunInference(img.Data, e.info.ImageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(out) != e.info.EmbeddingDim {
		return nil, fmt.Errorf("%w: embedding laenge %d, erwartet %d", ErrInference, len(out), e.info.EmbeddingDim)
	}
	return out, nil
}

// Close gibt alle Ressourcen frei
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.session.Destroy()
	e.closed = true
	return nil
}

func (e *Encoder) ModelInfo() vision.ModelInfo {
	return e.info
}

// Factory ist die Factory-Funktion fuer Registry-Registrierung
func Factory(opts vision.LoadOptions) (vision.ImageEncoder, error) {
	return New(opts)
}
