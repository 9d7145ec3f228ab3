// Package vision - Encoder Registry fuer dynamische Encoder-Registrierung.
//
// MODUL: registry
// ZWECK: Registry fuer Image-Encoder-Factories mit "did you mean" Vorschlaegen
// INPUT: Encoder-Name, EncoderFactory, Options
// OUTPUT: Encoder-Instanzen
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: internal/registry, factory.go (EncoderFactory)
// HINWEISE: Thread-sicher
package vision

import (
	"github.com/lucidrains/tri-lbm/internal/registry"
)

// ErrEncoderNotRegistered wird zurueckgegeben wenn ein Encoder nicht registriert ist.
var ErrEncoderNotRegistered = registry.ErrNotRegistered

// RegistryError repraesentiert einen Registry-spezifischen Fehler.
type RegistryError = registry.Error

// Registry verwaltet registrierte Image-Encoder-Factories.
type Registry struct {
	*registry.Registry[EncoderFactory]
}

// NewRegistry erstellt eine neue leere Registry.
func NewRegistry() *Registry {
	return &Registry{registry.New[EncoderFactory]("vision")}
}

// Create erstellt einen Encoder mit der registrierten Factory.
// Optionen werden auf DefaultLoadOptions angewendet und validiert.
func (r *Registry) Create(name string, opts ...Option) (ImageEncoder, error) {
	factory, err := r.Lookup("create", name)
	if err != nil {
		return nil, err
	}

	o := DefaultLoadOptions()
	o.Apply(opts...)
	if err := o.Validate(); err != nil {
		return nil, &RegistryError{Kind: "vision", Op: "create", Name: name, Err: err}
	}

	return factory(o)
}

// ============================================================================
// Globale Registry-Instanz
// ============================================================================

// DefaultRegistry ist die globale Registry fuer Image-Encoder.
// Encoder registrieren sich via init() in ihren Packages.
var DefaultRegistry = NewRegistry()

// MustRegister registriert factory in der DefaultRegistry und paniced bei Fehler.
func MustRegister(name string, factory EncoderFactory) {
	if err := DefaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// List gibt alle Encoder-Namen der DefaultRegistry zurueck.
func List() []string {
	return DefaultRegistry.List()
}
