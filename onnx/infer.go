// infer.go - Statische Shape- und Typ-Propagation
//
// Dieses Modul enthaelt den Treiber der Shape-Inferenz:
// - InferShapes: Propagiert (Typ, Dims) durch die Operationsliste
// - Seed-Reihenfolge: Eingaben, Initializer, vorhandene Annotationen
// Die Funktion ist rein; der Eingabegraph bleibt unveraendert.
package onnx

import "fmt"

// InferShapes runs static type and shape propagation over the graph and
// returns an augmented clone: every node output carries a ValueInfo entry and
// every declared graph output is annotated best-effort (symbolic dims where a
// value cannot be determined). The input graph is not modified. Running the
// inference twice yields identical annotations.
func InferShapes(g *Graph) (*Graph, error) {
	out := g.Clone()

	known := make(map[string]ValueInfo)
	seed := func(vis []ValueInfo) {
		for _, vi := range vis {
			if vi.Name != "" {
				known[vi.Name] = vi
			}
		}
	}
	seed(out.Inputs)
	for i := range out.Initializers {
		t := &out.Initializers[i]
		dims := make([]Dim, len(t.Dims))
		for j, d := range t.Dims {
			dims[j] = Dim{Value: d}
		}
		known[t.Name] = ValueInfo{Name: t.Name, Type: t.Type, Dims: dims}
	}
	seed(out.ValueInfos)

	produced := make(map[string]int)
	for i := range out.Nodes {
		for _, name := range out.Nodes[i].Outputs {
			if name == "" {
				continue
			}
			if prev, ok := produced[name]; ok {
				return nil, &MalformedError{Graph: g.Name, Detail: fmt.Sprintf("tensor %q produced by nodes %d and %d", name, prev, i)}
			}
			produced[name] = i
		}
	}

	for i := range out.Nodes {
		node := &out.Nodes[i]

		ins := make([]ValueInfo, len(node.Inputs))
		for j, name := range node.Inputs {
			if name == "" {
				continue // optional input
			}
			vi, ok := known[name]
			if !ok {
				if _, producedLater := produced[name]; producedLater {
					return nil, &MalformedError{Graph: g.Name, Detail: fmt.Sprintf("node %d (%s) consumes %q before it is produced", i, node.OpType, name)}
				}
				return nil, &MalformedError{Graph: g.Name, Detail: fmt.Sprintf("node %d (%s) consumes undeclared tensor %q", i, node.OpType, name)}
			}
			ins[j] = vi
		}

		outs, err := inferNode(out, node, ins)
		if err != nil {
			return nil, err
		}
		for j, name := range node.Outputs {
			if name == "" || j >= len(outs) {
				continue
			}
			vi := outs[j]
			vi.Name = name
			known[name] = vi
			upsertValueInfo(&out.ValueInfos, vi)
		}
	}

	// Fill declared output annotations where the declaration is missing or
	// less specific than what propagation determined.
	for i := range out.Outputs {
		decl := &out.Outputs[i]
		vi, ok := known[decl.Name]
		if !ok {
			return nil, &MalformedError{Graph: g.Name, Detail: fmt.Sprintf("declared output %q is never produced", decl.Name)}
		}
		if decl.Type == TypeUndefined {
			decl.Type = vi.Type
		}
		if len(decl.Dims) == 0 && len(vi.Dims) > 0 {
			decl.Dims = append([]Dim(nil), vi.Dims...)
		} else {
			for j := range decl.Dims {
				if !decl.Dims[j].IsConcrete() && j < len(vi.Dims) && vi.Dims[j].IsConcrete() {
					decl.Dims[j] = vi.Dims[j]
				}
			}
		}
		upsertValueInfo(&out.ValueInfos, *decl)
	}

	return out, nil
}

func upsertValueInfo(vis *[]ValueInfo, vi ValueInfo) {
	for i := range *vis {
		if (*vis)[i].Name == vi.Name {
			(*vis)[i] = vi
			return
		}
	}
	*vis = append(*vis, vi)
}
