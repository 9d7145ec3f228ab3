// MODUL: projection/register
// ZWECK: Registriert den Projection-Encoder in der globalen Vision Registry
// NEBENEFFEKTE: Registriert "projection" Factory bei Package-Import
// ABHAENGIGKEITEN: vision (DefaultRegistry)
// HINWEISE: Import mit _ "github.com/lucidrains/tri-lbm/vision/projection"

package projection

import (
	"github.com/lucidrains/tri-lbm/vision"
)

// Factory ist die Factory-Funktion fuer Registry-Registrierung
func Factory(opts vision.LoadOptions) (vision.ImageEncoder, error) {
	return New(opts)
}

func init() {
	vision.MustRegister(Name, Factory)
}
