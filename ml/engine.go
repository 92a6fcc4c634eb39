// Package ml - Engine-Grenze und Backend-Adapter
//
// Dieses Modul definiert die Engine-Schnittstelle und die Registrierung:
// - Session: Ausfuehrung eines geladenen Graphen ueber flache Puffer
// - Engine: Laedt serialisierte Graphen zu Sessions
// - RegisterEngine/NewEngine: Factory-Map fuer Engine-Implementierungen
package ml

import "fmt"

// Session executes one loaded graph. Inputs and outputs are flat float32
// buffers keyed by tensor name; the session knows nothing about shapes.
// Sessions are not safe for concurrent Run calls and belong to exactly one
// representative.
type Session interface {
	// Run executes the graph with the given named inputs and returns the
	// named outputs as flat buffers.
	Run(inputs map[string][]float32) (map[string][]float32, error)

	// Close releases all resources owned by the session.
	Close() error
}

// Engine loads serialized graphs into executable sessions. The byte encoding
// is opaque to callers; an engine rejecting a graph (for example because of
// an unimplemented operator) is an expected condition, surfaced by the
// adapter as a LoadError.
type Engine interface {
	Load(model []byte) (Session, error)
}

var engines = make(map[string]func() (Engine, error))

// RegisterEngine registers an engine factory function under a name.
func RegisterEngine(name string, f func() (Engine, error)) {
	if _, ok := engines[name]; ok {
		panic("ml: engine already registered: " + name)
	}
	engines[name] = f
}

// NewEngine creates an engine instance by registered name.
func NewEngine(name string) (Engine, error) {
	if f, ok := engines[name]; ok {
		return f()
	}
	return nil, fmt.Errorf("unsupported engine %q", name)
}
