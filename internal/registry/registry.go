// Package registry - Generische, thread-sichere Factory-Registry.
//
// MODUL: registry
// ZWECK: Name -> Factory Verwaltung fuer Encoder-Packages (vision, text)
// INPUT: Namen, Factories beliebigen Typs
// OUTPUT: Factories, sortierte Namenslisten, Registry-Fehler mit Vorschlag
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: github.com/agnivade/levenshtein (extern)
// HINWEISE: Thread-sicher durch RWMutex, Vorschlaege nur bis Distanz maxSuggestDistance
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/agnivade/levenshtein"
)

// ============================================================================
// Fehler
// ============================================================================

var (
	// ErrNotRegistered: unbekannter Name
	ErrNotRegistered = errors.New("not registered")

	// ErrInvalidName: leerer Name bei Register
	ErrInvalidName = errors.New("invalid name")
)

// maxSuggestDistance begrenzt "did you mean" auf Tippfehler
const maxSuggestDistance = 3

// Error beschreibt einen fehlgeschlagenen Registry-Zugriff.
type Error struct {
	Kind       string // Registry-Art, z.B. "vision" oder "text"
	Op         string // Operation (z.B. "create", "register")
	Name       string
	Suggestion string // naechster registrierter Name, leer wenn keiner passt
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s encoder %q: %v", e.Kind, e.Op, e.Name, e.Err)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ============================================================================
// Registry
// ============================================================================

// Registry verwaltet Factories vom Typ F unter eindeutigen Namen.
type Registry[F any] struct {
	kind    string
	entries map[string]F
	mu      sync.RWMutex
}

// New erstellt eine leere Registry. kind erscheint in Fehlermeldungen.
func New[F any](kind string) *Registry[F] {
	return &Registry[F]{
		kind:    kind,
		entries: make(map[string]F),
	}
}

// Register registriert factory unter name.
// Ueberschreibt existierende Eintraege.
func (r *Registry[F]) Register(name string, factory F) error {
	if name == "" {
		return &Error{Kind: r.kind, Op: "register", Name: name, Err: ErrInvalidName}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[name] = factory
	return nil
}

// Unregister entfernt name. Gibt true zurueck wenn der Eintrag existierte.
func (r *Registry[F]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.entries[name]
	delete(r.entries, name)
	return exists
}

// Get gibt die Factory fuer name zurueck.
func (r *Registry[F]) Get(name string) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.entries[name]
	return f, ok
}

// Has prueft ob name registriert ist.
func (r *Registry[F]) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List gibt alle Namen sortiert zurueck.
func (r *Registry[F]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count gibt die Anzahl registrierter Factories zurueck.
func (r *Registry[F]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Lookup wie Get, liefert aber bei unbekanntem Namen einen *Error mit Vorschlag.
func (r *Registry[F]) Lookup(op, name string) (F, error) {
	if f, ok := r.Get(name); ok {
		return f, nil
	}

	var zero F
	return zero, &Error{
		Kind:       r.kind,
		Op:         op,
		Name:       name,
		Suggestion: r.Suggest(name),
		Err:        ErrNotRegistered,
	}
}

// Suggest liefert den registrierten Namen mit der kleinsten Editierdistanz.
// Bei Gleichstand gewinnt der alphabetisch erste Name.
func (r *Registry[F]) Suggest(name string) string {
	best, score := "", maxSuggestDistance+1
	for _, candidate := range r.List() {
		if d := levenshtein.ComputeDistance(name, candidate); d < score {
			best, score = candidate, d
		}
	}
	return best
}
