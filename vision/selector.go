// MODUL: selector
// ZWECK: Auswahl des Bild-Encoders fuer den Namen "auto"
// INPUT: Registry, Prioritaetsliste, Options
// OUTPUT: erster Encoder der Prioritaetsliste, der sich erstellen laesst
// NEBENEFFEKTE: Debug-Logs fuer uebersprungene Encoder
// ABHAENGIGKEITEN: registry.go, log/slog
// HINWEISE: Thread-sicher durch RWMutex. ONNX vor dem eingebauten Encoder,
// ohne Modellpfad oder ohne onnx-Build faellt Auto auf "projection" zurueck.

package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Auto waehlt den ersten verfuegbaren Encoder nach Prioritaet.
const Auto = "auto"

// ErrNoEncoder: kein Encoder der Prioritaetsliste liess sich erstellen
var ErrNoEncoder = errors.New("vision: no image encoder available")

// DefaultPriority ist die Reihenfolge fuer Auto.
var DefaultPriority = []string{"onnx", "projection"}

// ============================================================================
// Selector
// ============================================================================

// Selector loest Auto gegen eine Registry auf.
type Selector struct {
	registry *Registry

	// priority definiert die Reihenfolge fuer Auto-Auswahl
	priority []string

	// mu schuetzt priority
	mu sync.RWMutex
}

// NewSelector erstellt einen Selector mit DefaultPriority.
func NewSelector(r *Registry) *Selector {
	return &Selector{registry: r, priority: slices.Clone(DefaultPriority)}
}

// SetPriority setzt die Reihenfolge. Auto selbst wird herausgefiltert.
func (s *Selector) SetPriority(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.priority = slices.DeleteFunc(slices.Clone(names), func(n string) bool { return n == Auto })
}

// Priority gibt eine Kopie der aktuellen Reihenfolge zurueck.
func (s *Selector) Priority() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.priority)
}

// Create erstellt name direkt oder, bei Auto, den ersten Encoder der
// Prioritaetsliste, dessen Factory keinen Fehler liefert.
func (s *Selector) Create(name string, opts ...Option) (ImageEncoder, error) {
	if name != Auto {
		return s.registry.Create(name, opts...)
	}

	var errs []error
	for _, candidate := range s.Priority() {
		if !s.registry.Has(candidate) {
			continue
		}
		enc, err := s.registry.Create(candidate, opts...)
		if err == nil {
			slog.Debug("image encoder selected", "name", candidate)
			return enc, nil
		}
		slog.Debug("image encoder unavailable", "name", candidate, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", candidate, err))
	}
	return nil, errors.Join(append([]error{ErrNoEncoder}, errs...)...)
}

// DefaultSelector loest Auto gegen die DefaultRegistry auf.
var DefaultSelector = NewSelector(DefaultRegistry)
