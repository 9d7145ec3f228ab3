// Package actionnorm - Affine Normalisierung von Aktionen pro Dimension.
//
// MODUL: actionnorm
// ZWECK: Aktionen zwischen physikalischen und normierten Einheiten umrechnen
// INPUT: Statistiken (A,2) als (shift, scale), Aktionen [..., A]
// OUTPUT: normalize(a) = (a - shift) / scale, denormalize(a) = a*scale + shift
// NEBENEFFEKTE: keine, Statistiken sind nach New unveraenderlich
// ABHAENGIGKEITEN: ml, types/errtypes, encoding/json
// HINWEISE: ohne Statistiken sind beide Richtungen die Identitaet
package actionnorm

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// Normalizer converts actions between physical and normalized units.
type Normalizer struct {
	actionDim int
	stats     [][2]float64

	shift, scale *ml.Tensor
}

// New validates stats against actionDim. A nil stats slice disables normalization.
func New(actionDim int, stats [][2]float64) (*Normalizer, error) {
	if actionDim <= 0 {
		return nil, errtypes.Configuration("actionnorm", "action_dim", "> 0", actionDim)
	}

	n := &Normalizer{actionDim: actionDim}
	if stats == nil {
		return n, nil
	}
	if len(stats) != actionDim {
		return nil, errtypes.Configuration("actionnorm", "stats", fmt.Sprintf("(%d, 2)", actionDim), fmt.Sprintf("(%d, 2)", len(stats)))
	}

	shift := make([]float64, actionDim)
	scale := make([]float64, actionDim)
	for i, s := range stats {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errtypes.Configuration("actionnorm", fmt.Sprintf("stats[%d]", i), "finite", s)
			}
		}
		if s[1] == 0 {
			return nil, errtypes.Configuration("actionnorm", fmt.Sprintf("stats[%d].scale", i), "non-zero", s[1])
		}
		shift[i], scale[i] = s[0], s[1]
	}

	n.stats = append([][2]float64(nil), stats...)
	n.shift = ml.New(shift, actionDim)
	n.scale = ml.New(scale, actionDim)
	return n, nil
}

// Enabled reports whether statistics were provided.
func (n *Normalizer) Enabled() bool {
	return n.stats != nil
}

// ActionDim returns the number of action dimensions.
func (n *Normalizer) ActionDim() int {
	return n.actionDim
}

// Stats returns a copy of the statistics or nil.
func (n *Normalizer) Stats() [][2]float64 {
	if n.stats == nil {
		return nil
	}
	return append([][2]float64(nil), n.stats...)
}

func (n *Normalizer) check(a *ml.Tensor) error {
	if a.Rank() == 0 || a.Dim(-1) != n.actionDim {
		return errtypes.Configuration("actionnorm", "actions", fmt.Sprintf("[..., %d]", n.actionDim), a.Shape())
	}
	return nil
}

// Normalize maps physical actions [..., A] to normalized units.
func (n *Normalizer) Normalize(ctx *ml.Context, a *ml.Tensor) (*ml.Tensor, error) {
	if err := n.check(a); err != nil {
		return nil, err
	}
	if !n.Enabled() {
		return a, nil
	}
	return a.Sub(ctx, n.shift).Div(ctx, n.scale), nil
}

// Denormalize maps normalized actions [..., A] back to physical units.
func (n *Normalizer) Denormalize(ctx *ml.Context, a *ml.Tensor) (*ml.Tensor, error) {
	if err := n.check(a); err != nil {
		return nil, err
	}
	if !n.Enabled() {
		return a, nil
	}
	return a.Mul(ctx, n.scale).Add(ctx, n.shift), nil
}

// =============================================================================
// JSON
// =============================================================================

// statsFile ist das Dateiformat: entweder [[shift, scale], ...] oder
// {"shift": [...], "scale": [...]}
type statsFile struct {
	Shift []float64 `json:"shift"`
	Scale []float64 `json:"scale"`
}

// LoadStats reads statistics from JSON, either as a list of [shift, scale]
// pairs or as an object with parallel "shift" and "scale" arrays.
func LoadStats(r io.Reader) ([][2]float64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var pairs [][2]float64
	if err := json.Unmarshal(raw, &pairs); err == nil {
		return pairs, nil
	}

	var f statsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("actionnorm: decode stats: %w", err)
	}
	if len(f.Shift) != len(f.Scale) {
		return nil, errtypes.Configuration("actionnorm", "stats", fmt.Sprintf("%d scale values", len(f.Shift)), len(f.Scale))
	}

	pairs = make([][2]float64, len(f.Shift))
	for i := range pairs {
		pairs[i] = [2]float64{f.Shift[i], f.Scale[i]}
	}
	return pairs, nil
}
