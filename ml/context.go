// context.go - Ausfuehrungskontext fuer Tensor-Operationen
//
// Dieses Modul enthaelt:
// - Context: steuert, ob Operationen einen Backward-Graphen aufzeichnen
// - record: haengt Eltern und Backward-Closure an ein Ergebnis
//
// Ein nil-Context verhaelt sich wie NewContext(): Gradienten sind aktiv.
package ml

// Context represents an execution context for tensor operations.
type Context struct {
	noGrad bool
}

// NewContext returns a context that records gradients.
func NewContext() *Context {
	return &Context{}
}

// NoGrad returns a context in which no graph is recorded. Used for sampling.
func (c *Context) NoGrad() *Context {
	return &Context{noGrad: true}
}

// GradEnabled reports whether operations on this context record a graph.
func (c *Context) GradEnabled() bool {
	return c == nil || !c.noGrad
}

// record verbindet out mit seinen Eltern, sofern mindestens ein Elternteil
// Gradienten benoetigt. Ohne Gradienten bleibt out ein Blatt.
func (c *Context) record(out *Tensor, backward func(), parents ...*Tensor) *Tensor {
	if !c.GradEnabled() {
		return out
	}

	needs := false
	for _, p := range parents {
		if p.requiresGrad {
			needs = true
			break
		}
	}
	if !needs {
		return out
	}

	out.requiresGrad = true
	out.parents = parents
	out.backward = backward
	return out
}
