// coverage_test.go - Tests fuer das Coverage Gate
// Testet Enforce (Safelist und Rekurrenz-Ausnahme) und Check
// (vollstaendige Annotationen, Dropout-Maske ausgenommen).
package ml

import (
	"errors"
	"testing"

	"github.com/zimond/wonnx/onnx"
)

func annotated(name string, dims ...int64) onnx.ValueInfo {
	ds := make([]onnx.Dim, len(dims))
	for i, d := range dims {
		ds[i] = onnx.Dim{Value: d}
	}
	return onnx.ValueInfo{Name: name, Type: onnx.TypeFloat, Dims: ds}
}

func safelistedGraph() *onnx.Graph {
	return &onnx.Graph{
		Name:       "SingleRelu",
		Inputs:     []onnx.ValueInfo{annotated("x", 1, 3)},
		Outputs:    []onnx.ValueInfo{annotated("y", 1, 3)},
		ValueInfos: []onnx.ValueInfo{annotated("y", 1, 3)},
		Nodes:      []onnx.Node{{OpType: "Relu", Inputs: []string{"x"}, Outputs: []string{"y"}}},
	}
}

func TestEnforce(t *testing.T) {
	policy := NewCoveragePolicy("SingleRelu", "resnet50")

	g := safelistedGraph()
	if !policy.Enforce(g) {
		t.Error("Enforce = false fuer safelisted Modell ohne Rekurrenz")
	}

	g.Name = "unlisted_model"
	if policy.Enforce(g) {
		t.Error("Enforce = true fuer Modell ausserhalb der Safelist")
	}

	// Ein rekurrenter Operator hebt die Pruefung fuer das ganze Modell auf.
	g = safelistedGraph()
	g.Nodes = append(g.Nodes, onnx.Node{OpType: "LSTM", Inputs: []string{"y"}, Outputs: []string{"h"}})
	if policy.Enforce(g) {
		t.Error("Enforce = true trotz LSTM-Knoten")
	}
}

func TestCheck(t *testing.T) {
	policy := NewCoveragePolicy("SingleRelu")

	if err := policy.Check(safelistedGraph()); err != nil {
		t.Errorf("Check auf vollstaendig annotiertem Graph: %v", err)
	}

	var coverage *CoverageError

	// Fehlende Annotation eines Knoten-Outputs.
	g := safelistedGraph()
	g.ValueInfos = nil
	g.Outputs = []onnx.ValueInfo{{Name: "y"}}
	if err := policy.Check(g); !errors.As(err, &coverage) {
		t.Errorf("Check = %v, erwartet CoverageError", err)
	}

	// Symbolische Dimension.
	g = safelistedGraph()
	g.ValueInfos[0].Dims[1] = onnx.Symbolic()
	if err := policy.Check(g); !errors.As(err, &coverage) {
		t.Errorf("Check = %v, erwartet CoverageError", err)
	}

	// Undefinierter Elementtyp.
	g = safelistedGraph()
	g.ValueInfos[0].Type = onnx.TypeUndefined
	if err := policy.Check(g); !errors.As(err, &coverage) {
		t.Errorf("Check = %v, erwartet CoverageError", err)
	}
}

func TestCheckDropoutMaskExempt(t *testing.T) {
	policy := NewCoveragePolicy("bvlc_alexnet")
	g := &onnx.Graph{
		Name:       "bvlc_alexnet",
		Inputs:     []onnx.ValueInfo{annotated("x", 2, 4)},
		Outputs:    []onnx.ValueInfo{annotated("y", 2, 4)},
		ValueInfos: []onnx.ValueInfo{annotated("y", 2, 4)},
		// Die Maske (Index 1) traegt absichtlich keine Annotation.
		Nodes: []onnx.Node{{OpType: "Dropout", Inputs: []string{"x"}, Outputs: []string{"y", "mask"}}},
	}
	if err := policy.Check(g); err != nil {
		t.Errorf("Check = %v, Dropout-Maske sollte ausgenommen sein", err)
	}
}
