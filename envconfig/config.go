// config.go - Haupt-Konfigurationsfunktionen fuer den LBM-Kern
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (LBM_DEBUG)
// - NumThreads: Parallelitaet beim Bild-Encoding (LBM_NUM_THREADS)
// - Seed: Seed fuer den Zufallsgenerator des Modells (LBM_SEED)
// - SamplingSteps: Standard-Anzahl DDIM-Schritte (LBM_SAMPLING_STEPS)
// - CheckFinite: NaN/Inf-Pruefung waehrend des Samplings (LBM_CHECK_FINITE)
// - ImageEncoder/TextEncoder: Namen der registrierten Encoder
// - OnnxModel: Pfad zum ONNX Bild-Encoder
//
// Weitere Funktionen sind ausgelagert:
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via LBM_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("LBM_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// NumThreads gibt die maximale Anzahl paralleler Encoder-Aufrufe zurueck
// Konfigurierbar via LBM_NUM_THREADS
// Default: Anzahl CPU-Kerne
func NumThreads() int {
	n := Uint("LBM_NUM_THREADS", 0)()
	if n == 0 {
		return runtime.NumCPU()
	}
	return int(n)
}

var (
	// Seed setzt den Seed des Modell-Generators (0 = zufaellig)
	Seed = Uint64("LBM_SEED", 0)

	// SamplingSteps setzt die Standard-Anzahl DDIM-Schritte (0 = aus Modell-Config)
	SamplingSteps = Uint("LBM_SAMPLING_STEPS", 0)

	// CheckFinite aktiviert die NaN/Inf-Pruefung pro Sampling-Schritt
	CheckFinite = BoolWithDefault("LBM_CHECK_FINITE")

	// ImageEncoder ist der Registry-Name des Bild-Encoders
	ImageEncoder = StringWithDefault("LBM_IMAGE_ENCODER", "projection")

	// TextEncoder ist der Registry-Name des Text-Encoders
	TextEncoder = StringWithDefault("LBM_TEXT_ENCODER", "hashing")

	// OnnxModel ist der Pfad zu einem ONNX Bild-Encoder
	OnnxModel = String("LBM_ONNX_MODEL")
)

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
