// Package mltest - Instrumentierte Stub-Engine fuer Tests
//
// Dieses Modul stellt eine Engine bereit, die Aufrufe aufzeichnet und
// deterministische Ergebnisse synthetisiert:
// - Engine: zaehlt Load-Aufrufe, lehnt konfigurierte Op-Typen ab
// - Session: liefert fortlaufende Werte je Ausgabe oder eine Run-Hook
// Keine Operator-Semantik; nur Struktur- und Protokollverhalten.
package mltest

import (
	"fmt"
	"sync"

	"github.com/zimond/wonnx/ml"
	"github.com/zimond/wonnx/onnx"
)

// Engine is an instrumented ml.Engine test double. The zero value supports
// every op type and synthesizes outputs from declared shapes. Load is safe
// for concurrent use; the recorded fields may be read once all loads are
// done.
type Engine struct {
	// UnsupportedOps lists op types Load rejects, mimicking an engine with
	// partial operator support.
	UnsupportedOps []string

	// RunFunc, when set, replaces the synthesized execution.
	RunFunc func(inputs map[string][]float32) (map[string][]float32, error)

	// LoadCalls counts Load invocations, including rejected ones.
	LoadCalls int

	// Sessions collects every session handed out, for lifecycle assertions.
	Sessions []*Session

	mu sync.Mutex
}

// Load decodes the opaque model bytes and hands out a session bound to the
// graph's declared outputs.
func (e *Engine) Load(model []byte) (ml.Session, error) {
	e.mu.Lock()
	e.LoadCalls++
	e.mu.Unlock()

	g, err := onnx.Decode(model)
	if err != nil {
		return nil, err
	}
	for _, node := range g.Nodes {
		for _, op := range e.UnsupportedOps {
			if node.OpType == op {
				return nil, fmt.Errorf("op %q is not implemented", op)
			}
		}
	}

	s := &Session{graph: g, runFunc: e.RunFunc}
	e.mu.Lock()
	e.Sessions = append(e.Sessions, s)
	e.mu.Unlock()
	return s, nil
}

// Session is the stub's ml.Session. Run returns, for every declared graph
// output, a flat buffer of sequential values 1..N sized by the output's
// annotated element count.
type Session struct {
	graph   *onnx.Graph
	runFunc func(map[string][]float32) (map[string][]float32, error)

	// RunCalls records the named inputs of every Run invocation.
	RunCalls []map[string][]float32

	// Closed reports whether Close was called.
	Closed bool
}

func (s *Session) Run(inputs map[string][]float32) (map[string][]float32, error) {
	s.RunCalls = append(s.RunCalls, inputs)
	if s.runFunc != nil {
		return s.runFunc(inputs)
	}

	out := make(map[string][]float32, len(s.graph.Outputs))
	for _, vi := range s.graph.Outputs {
		n := vi.Elements()
		if n < 0 {
			return nil, fmt.Errorf("output %q has unresolved shape", vi.Name)
		}
		buf := make([]float32, n)
		for i := range buf {
			buf[i] = float32(i + 1)
		}
		out[vi.Name] = buf
	}
	return out, nil
}

func (s *Session) Close() error {
	s.Closed = true
	return nil
}
