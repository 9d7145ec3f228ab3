// Package text - Sprach-Encoder Schnittstelle fuer Instruktionen.
//
// MODUL: text
// ZWECK: Encoder-Interface, Load-Optionen und Registry fuer Text-Encoder
// INPUT: Instruktionen ([]string), Encoder-Name, Options
// OUTPUT: Embeddings [B][Dim]float32
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: internal/registry
// HINWEISE: Encoder sind eingefroren, das LBM trainiert sie nicht mit
package text

import (
	"context"
	"errors"

	"github.com/lucidrains/tri-lbm/internal/registry"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// ============================================================================
// Encoder Interface
// ============================================================================

// Encoder bildet Instruktionen auf Vektoren fester Laenge Dim() ab.
// EncodeText muss gleichzeitige Aufrufe erlauben.
type Encoder interface {
	EncodeText(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	Close() error
}

// ErrEncoderClosed: Encode nach Close
var ErrEncoderClosed = errors.New("text: encoder closed")

// LoadOptions konfiguriert einen Text-Encoder.
type LoadOptions struct {
	Dim  int    // Embedding-Dimension, 0 = Encoder-Default
	Seed uint64 // Seed fuer eingefrorene Zufallstabellen
}

type Option func(*LoadOptions)

func WithDim(dim int) Option {
	return func(o *LoadOptions) {
		o.Dim = dim
	}
}

func WithSeed(seed uint64) Option {
	return func(o *LoadOptions) {
		o.Seed = seed
	}
}

// Validate prueft die Optionen.
func (o *LoadOptions) Validate() error {
	if o.Dim < 0 {
		return errtypes.Configuration("text", "dim", ">= 0", o.Dim)
	}
	return nil
}

// Factory erstellt einen Encoder aus LoadOptions.
type Factory func(opts LoadOptions) (Encoder, error)

// ============================================================================
// Registry
// ============================================================================

// ErrEncoderNotRegistered wird zurueckgegeben wenn ein Encoder nicht registriert ist.
var ErrEncoderNotRegistered = registry.ErrNotRegistered

// RegistryError repraesentiert einen Registry-spezifischen Fehler.
type RegistryError = registry.Error

// Registry verwaltet Text-Encoder-Factories.
type Registry struct {
	*registry.Registry[Factory]
}

func NewRegistry() *Registry {
	return &Registry{registry.New[Factory]("text")}
}

// Create erstellt den Encoder name mit den gegebenen Optionen.
func (r *Registry) Create(name string, opts ...Option) (Encoder, error) {
	factory, err := r.Lookup("create", name)
	if err != nil {
		return nil, err
	}

	var o LoadOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, &RegistryError{Kind: "text", Op: "create", Name: name, Err: err}
	}
	return factory(o)
}

// DefaultRegistry ist die globale Registry, Encoder registrieren sich via init().
var DefaultRegistry = NewRegistry()

// MustRegister registriert factory in der DefaultRegistry und paniced bei Fehler.
func MustRegister(name string, factory Factory) {
	if err := DefaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// NewEncoder erstellt den Encoder name aus der DefaultRegistry.
func NewEncoder(name string, opts ...Option) (Encoder, error) {
	return DefaultRegistry.Create(name, opts...)
}

// List gibt alle registrierten Namen zurueck.
func List() []string {
	return DefaultRegistry.List()
}
