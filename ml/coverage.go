// coverage.go - Coverage Gate fuer Shape-Annotationen
// Enthält: CoveragePolicy mit Safelist, Enforce und Check. Modelle mit
// rekurrenten Operatoren (RNN/LSTM/GRU) sind von der strikten Pruefung
// ausgenommen; sekundaere Dropout-Ausgaben ebenfalls.
package ml

import (
	"github.com/emirpasic/gods/v2/sets/hashset"

	"github.com/zimond/wonnx/onnx"
)

// recurrentOps waive strict coverage for the whole model.
var recurrentOps = []string{"RNN", "LSTM", "GRU"}

// CoveragePolicy decides, per model name, whether complete shape and type
// annotations are enforced after inference. The safelist is immutable after
// construction and passed explicitly where needed.
type CoveragePolicy struct {
	safelist *hashset.Set[string]
}

// NewCoveragePolicy builds a policy over the given model names.
func NewCoveragePolicy(names ...string) CoveragePolicy {
	return CoveragePolicy{safelist: hashset.New(names...)}
}

// Enforce reports whether strict coverage applies: the graph's name is
// safelisted and no node carries a recurrent op type.
func (p CoveragePolicy) Enforce(g *onnx.Graph) bool {
	if p.safelist == nil || !p.safelist.Contains(g.Name) {
		return false
	}
	return !g.HasOpType(recurrentOps...)
}

// Check verifies that every node output carries a fully concrete, fully
// typed annotation. Outputs of a Dropout node past index 0 (the mask) are
// permitted to be under-annotated. The graph is expected to have been run
// through shape inference first.
func (p CoveragePolicy) Check(g *onnx.Graph) error {
	for _, node := range g.Nodes {
		for i, name := range node.Outputs {
			if name == "" {
				continue
			}
			if node.OpType == "Dropout" && i != 0 {
				continue
			}
			vi, ok := g.ValueInfoFor(name)
			if !ok {
				return &CoverageError{Model: g.Name, Output: name, Reason: "has no value info"}
			}
			if vi.Type == onnx.TypeUndefined {
				return &CoverageError{Model: g.Name, Output: name, Reason: "has undefined element type"}
			}
			for _, d := range vi.Dims {
				if !d.IsConcrete() {
					return &CoverageError{Model: g.Name, Output: name, Reason: "has symbolic dimension " + d.String()}
				}
			}
		}
	}
	return nil
}
