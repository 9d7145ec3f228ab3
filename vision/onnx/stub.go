//go:build !(onnx && cgo)

// MODUL: onnx/stub
// ZWECK: Stub-Implementierung ohne ONNX Runtime
// HINWEISE: Gibt bei jeder Konstruktion ErrUnavailable zurueck

package onnx

import (
	"errors"

	"github.com/lucidrains/tri-lbm/vision"
)

// ErrUnavailable wird zurueckgegeben wenn ohne "onnx" Build-Tag oder ohne cgo gebaut wurde
var ErrUnavailable = errors.New("onnx: built without onnx runtime (use -tags onnx with cgo)")

// Factory Stub - gibt immer Fehler zurueck
func Factory(vision.LoadOptions) (vision.ImageEncoder, error) {
	return nil, ErrUnavailable
}
