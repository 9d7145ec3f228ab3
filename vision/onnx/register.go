// MODUL: onnx/register
// ZWECK: Registriert den ONNX Encoder in der globalen Vision Registry
// NEBENEFFEKTE: Registriert "onnx" Factory bei Package-Import
// ABHAENGIGKEITEN: vision (DefaultRegistry)
// HINWEISE: Ohne Build-Tag "onnx" (oder ohne cgo) liefert die Factory ErrUnavailable

package onnx

import (
	"github.com/lucidrains/tri-lbm/vision"
)

// Name unter dem der Encoder registriert ist
const Name = "onnx"

func init() {
	vision.MustRegister(Name, Factory)
}
