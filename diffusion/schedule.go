// Package diffusion - Gauss'scher Diffusionsprozess ueber Aktionssequenzen.
//
// MODUL: diffusion
// ZWECK: Rauschplan, Vorwaerts-Verrauschung, Trainingsverlust und DDIM-Sampling
// INPUT: saubere Sequenzen x0 [B,L,A], Beobachtungsvektoren [B,d_obs]
// OUTPUT: skalarer Verlust bzw. entrauschte Sequenz [B,L,A]
// NEBENEFFEKTE: keine, der Prozess haelt zwischen Aufrufen keinen Zustand
// ABHAENGIGKEITEN: ml, logutil, types/errtypes
// HINWEISE:
//   - Der Rauschplan ist nach der Konstruktion unveraenderlich
//   - Sampling laeuft ohne Gradienten und prueft vor jedem Schritt den Context
package diffusion

import (
	"math"
	"strconv"

	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// ScheduleKind names a beta schedule.
type ScheduleKind string

const (
	ScheduleCosine ScheduleKind = "cosine"
	ScheduleLinear ScheduleKind = "linear"
)

// Objective names what the denoiser predicts.
type Objective string

const (
	ObjectivePredNoise Objective = "pred_noise"
	ObjectivePredX0    Objective = "pred_x0"
	ObjectivePredV     Objective = "pred_v"
)

// Valid reports whether o is a known objective.
func (o Objective) Valid() bool {
	switch o {
	case ObjectivePredNoise, ObjectivePredX0, ObjectivePredV:
		return true
	}
	return false
}

const cosineOffset = 0.008

// Schedule holds the per-timestep coefficients of the noising process.
// Alle Slices haben Laenge T und werden nach NewSchedule nicht mehr veraendert.
type Schedule struct {
	Betas                     []float64
	AlphasCumprod             []float64
	SqrtAlphasCumprod         []float64
	SqrtOneMinusAlphasCumprod []float64
	SqrtRecipAlphasCumprod    []float64
	SqrtRecipM1AlphasCumprod  []float64
	SNR                       []float64
}

// NewSchedule builds the schedule of kind over T timesteps.
func NewSchedule(kind ScheduleKind, T int) (*Schedule, error) {
	if T <= 0 {
		return nil, errtypes.Configuration("diffusion", "timesteps", "> 0", T)
	}

	var betas []float64
	switch kind {
	case ScheduleCosine, "":
		betas = cosineBetas(T)
	case ScheduleLinear:
		betas = linearBetas(T)
	default:
		return nil, errtypes.Configuration("diffusion", "schedule", []ScheduleKind{ScheduleCosine, ScheduleLinear}, kind)
	}

	s := &Schedule{
		Betas:                     betas,
		AlphasCumprod:             make([]float64, T),
		SqrtAlphasCumprod:         make([]float64, T),
		SqrtOneMinusAlphasCumprod: make([]float64, T),
		SqrtRecipAlphasCumprod:    make([]float64, T),
		SqrtRecipM1AlphasCumprod:  make([]float64, T),
		SNR:                       make([]float64, T),
	}

	prod := 1.0
	for i, b := range betas {
		prod *= 1 - b
		s.AlphasCumprod[i] = prod
		s.SqrtAlphasCumprod[i] = math.Sqrt(prod)
		s.SqrtOneMinusAlphasCumprod[i] = math.Sqrt(1 - prod)
		s.SqrtRecipAlphasCumprod[i] = math.Sqrt(1 / prod)
		s.SqrtRecipM1AlphasCumprod[i] = math.Sqrt(1/prod - 1)
		s.SNR[i] = prod / (1 - prod)
	}
	return s, nil
}

// T returns the number of timesteps.
func (s *Schedule) T() int {
	return len(s.Betas)
}

// LossWeights returns the per-timestep loss weight for objective:
// 1 for pred_noise, SNR for pred_x0, SNR/(SNR+1) for pred_v.
func (s *Schedule) LossWeights(objective Objective) []float64 {
	w := make([]float64, len(s.SNR))
	for i, snr := range s.SNR {
		switch objective {
		case ObjectivePredX0:
			w[i] = snr
		case ObjectivePredV:
			w[i] = snr / (snr + 1)
		default:
			w[i] = 1
		}
	}
	return w
}

// cosineBetas folgt Nichol & Dhariwal mit s = 0.008, Betas auf [0, 0.999] begrenzt
func cosineBetas(T int) []float64 {
	f := func(i int) float64 {
		x := (float64(i)/float64(T) + cosineOffset) / (1 + cosineOffset) * math.Pi / 2
		return math.Cos(x) * math.Cos(x)
	}

	f0 := f(0)
	betas := make([]float64, T)
	for i := range betas {
		b := 1 - (f(i+1)/f0)/(f(i)/f0)
		betas[i] = min(max(b, 0), 0.999)
	}
	return betas
}

// linearBetas skaliert 1e-4 .. 0.02 auf T Schritte
func linearBetas(T int) []float64 {
	scale := 1000 / float64(T)
	start, end := scale*1e-4, scale*0.02

	betas := make([]float64, T)
	for i := range betas {
		if T == 1 {
			betas[i] = start
			continue
		}
		betas[i] = start + (end-start)*float64(i)/float64(T-1)
	}
	return betas
}

// DDIMTimes returns the sampling time pairs (t, t_next) for steps over T
// timesteps. t_next is -1 for the final step.
func DDIMTimes(T, steps int) ([][2]int, error) {
	if steps < 1 || steps > T {
		return nil, errtypes.Configuration("diffusion", "steps", "1.."+strconv.Itoa(T), steps)
	}

	// linspace(-1, T-1, steps+1), abgeschnitten und umgekehrt
	times := make([]int, steps+1)
	for i := range times {
		times[steps-i] = int(-1 + float64(i)*float64(T)/float64(steps))
	}

	pairs := make([][2]int, steps)
	for i := range pairs {
		pairs[i] = [2]int{times[i], times[i+1]}
	}
	return pairs, nil
}
