// Package errtypes - Typisierte Fehler fuer den Aktions-Diffusionskern.
//
// MODUL: errtypes
// ZWECK: Fehler-Taxonomie (Konfiguration, numerische Instabilitaet, nicht implementiert)
// INPUT: Komponenten-Name, erwartete und tatsaechliche Werte
// OUTPUT: error-Werte, pruefbar via errors.Is / errors.As
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: errors, fmt (Standardbibliothek)
// HINWEISE: Fehler werden synchron an den Aufrufer gereicht, nie geloggt-und-ignoriert
package errtypes

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel-Fehler
// ============================================================================

var (
	// ErrConfiguration markiert Vertragsverletzungen bei Dimensionen und Parametern.
	ErrConfiguration = errors.New("configuration error")

	// ErrNumericInstability markiert NaN/Inf in Zwischenergebnissen. Der Aufrufer
	// darf mit anderem Rauschen erneut versuchen.
	ErrNumericInstability = errors.New("numeric instability")

	// ErrUnimplemented markiert Operationen ohne Implementierung.
	ErrUnimplemented = errors.New("unimplemented")
)

// ============================================================================
// ConfigurationError
// ============================================================================

// ConfigurationError beschreibt eine Dimensions- oder Parameterverletzung.
type ConfigurationError struct {
	Component string // z.B. "fusion", "diffusion"
	Field     string // z.B. "text", "steps"
	Want      any
	Got       any
}

func (e *ConfigurationError) Error() string {
	if e.Want == nil && e.Got == nil {
		return fmt.Sprintf("%s: %s: invalid %s", e.Component, ErrConfiguration, e.Field)
	}
	return fmt.Sprintf("%s: %s: %s: want %v, got %v", e.Component, ErrConfiguration, e.Field, e.Want, e.Got)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Configuration ist eine Abkuerzung fuer &ConfigurationError{...}.
func Configuration(component, field string, want, got any) error {
	return &ConfigurationError{Component: component, Field: field, Want: want, Got: got}
}

// ============================================================================
// NumericInstabilityError
// ============================================================================

// NumericInstabilityError meldet nicht-endliche Werte in einem Sampling-Schritt.
type NumericInstabilityError struct {
	Step     int // Index im Sampling-Loop
	Timestep int // Diffusions-Zeitschritt des Schritts
	Reason   string
}

func (e *NumericInstabilityError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "non-finite values"
	}
	return fmt.Sprintf("%s at step %d (t=%d): %s", ErrNumericInstability, e.Step, e.Timestep, reason)
}

func (e *NumericInstabilityError) Is(target error) bool {
	return target == ErrNumericInstability
}

// ============================================================================
// UnimplementedError
// ============================================================================

// UnimplementedError meldet eine Operation, die (noch) keine Implementierung hat.
type UnimplementedError struct {
	Op string
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrUnimplemented)
}

func (e *UnimplementedError) Is(target error) bool {
	return target == ErrUnimplemented
}
