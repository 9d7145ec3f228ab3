// MODUL: hashing/encoder
// ZWECK: Eingebauter, eingefrorener Text-Encoder ohne Modelldatei
// INPUT: Instruktionen ([]string), LoadOptions (Dim, Seed)
// OUTPUT: Mittelwert der Token-Vektoren pro Instruktion
// NEBENEFFEKTE: Token-Vektoren werden im Speicher gecacht
// ABHAENGIGKEITEN: cespare/xxhash, x/text (norm, cases), ml (Generator)
// HINWEISE: Token = NFKC-normalisierte, case-gefaltete Folge von Buchstaben/Ziffern.
//           Jeder Token-Vektor ist N(0, 1/Dim) aus Seed xor Token-Hash.

package hashing

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/text"
)

const (
	// Name unter dem der Encoder registriert ist
	Name = "hashing"

	// DefaultDim entspricht der Breite von T5-base
	DefaultDim = 768
)

// Encoder ist ein Bag-of-Words Encoder ueber gehashte Tokens.
type Encoder struct {
	dim    int
	seed   uint64
	fold   cases.Caser
	foldMu sync.Mutex // cases.Caser ist nicht thread-sicher
	cache  sync.Map   // token -> []float64
	closed atomic.Bool
}

// New erstellt einen Hashing-Encoder.
func New(opts text.LoadOptions) (*Encoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dim := opts.Dim
	if dim == 0 {
		dim = DefaultDim
	}
	return &Encoder{dim: dim, seed: opts.Seed, fold: cases.Fold()}, nil
}

func (e *Encoder) Dim() int {
	return e.dim
}

// Tokens zerlegt s in normalisierte Tokens.
func (e *Encoder) Tokens(s string) []string {
	e.foldMu.Lock()
	s = e.fold.String(norm.NFKC.String(s))
	e.foldMu.Unlock()

	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (e *Encoder) tokenVector(tok string) []float64 {
	if v, ok := e.cache.Load(tok); ok {
		return v.([]float64)
	}
	v := ml.NewGenerator(e.seed^xxhash.Sum64String(tok)).Normal(e.dim).Scale(nil, 1/math.Sqrt(float64(e.dim))).Data()
	actual, _ := e.cache.LoadOrStore(tok, v)
	return actual.([]float64)
}

// EncodeText liefert pro Instruktion den Mittelwert ihrer Token-Vektoren.
// Instruktionen ohne Tokens ergeben den Nullvektor.
func (e *Encoder) EncodeText(ctx context.Context, texts []string) ([][]float32, error) {
	if e.closed.Load() {
		return nil, text.ErrEncoderClosed
	}

	out := make([][]float32, len(texts))
	for i, s := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		acc := make([]float64, e.dim)
		toks := e.Tokens(s)
		for _, tok := range toks {
			for j, v := range e.tokenVector(tok) {
				acc[j] += v
			}
		}

		out[i] = make([]float32, e.dim)
		if len(toks) > 0 {
			for j, v := range acc {
				out[i][j] = float32(v / float64(len(toks)))
			}
		}
	}
	return out, nil
}

func (e *Encoder) Close() error {
	e.closed.Store(true)
	return nil
}

// Factory ist die Factory-Funktion fuer Registry-Registrierung
func Factory(opts text.LoadOptions) (text.Encoder, error) {
	return New(opts)
}

func init() {
	text.MustRegister(Name, Factory)
}
