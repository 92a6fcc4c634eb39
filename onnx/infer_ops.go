// infer_ops.go - Shape-Regeln pro Operationstyp
//
// Dieses Modul enthaelt die einzelnen Inferenz-Regeln:
// - Elementweise Ops erhalten die Eingabe-Shape
// - Binaere Ops mit NumPy-Broadcast
// - Conv/Pool mit pads/strides/dilations
// - Reduce-Familie mit axes/keepdims
// - Reshape/Transpose/Flatten/Constant/Dropout/MatMul
// - RNN/LSTM/GRU best-effort
// Unbekannte Op-Typen liefern symbolische Dimensionen statt zu scheitern.
package onnx

import (
	"fmt"
	"strings"
)

var unaryOps = map[string]bool{
	"Relu": true, "LeakyRelu": true, "Abs": true, "Acos": true, "Asin": true,
	"Atan": true, "Ceil": true, "Cos": true, "Sin": true, "Tan": true,
	"Exp": true, "Floor": true, "Log": true, "Sqrt": true, "Neg": true,
	"Sigmoid": true, "Tanh": true, "Softmax": true, "LogSoftmax": true,
	"Identity": true, "Erf": true, "Sign": true, "Round": true, "Elu": true,
	"Clip": true, "HardSigmoid": true, "Reciprocal": true, "Celu": true,
}

var binaryOps = map[string]bool{
	"Add": true, "Sub": true, "Mul": true, "Div": true, "Pow": true,
	"Min": true, "Max": true, "Mod": true, "PRelu": true,
}

var reduceOps = map[string]bool{
	"ReduceMean": true, "ReduceSum": true, "ReduceL1": true, "ReduceL2": true,
	"ReduceMin": true, "ReduceMax": true, "ReduceProd": true,
	"ReduceSumSquare": true, "ReduceLogSum": true, "ReduceLogSumExp": true,
}

func inferNode(g *Graph, node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	switch {
	case unaryOps[node.OpType]:
		return passthrough(ins, 1), nil
	case binaryOps[node.OpType]:
		return inferBinary(g, node, ins)
	case reduceOps[node.OpType]:
		return inferReduce(node, ins)
	}

	switch node.OpType {
	case "Conv":
		return inferConv(g, node, ins)
	case "MaxPool", "AveragePool", "LpPool":
		return inferPool(g, node, ins)
	case "GlobalAveragePool", "GlobalMaxPool":
		return inferGlobalPool(ins)
	case "MatMul":
		return inferMatMul(g, node, ins)
	case "Gemm":
		return inferGemm(g, node, ins)
	case "Reshape":
		return inferReshape(g, node, ins)
	case "Transpose":
		return inferTranspose(node, ins)
	case "Flatten":
		return inferFlatten(node, ins)
	case "Constant":
		return inferConstant(g, node)
	case "Dropout":
		return inferDropout(ins), nil
	case "Concat":
		return inferConcat(g, node, ins)
	case "RNN", "LSTM", "GRU":
		return inferRecurrent(node, ins), nil
	}

	// Unknown op: shapes stay open rather than failing, so partially
	// implemented inference never blocks enrollment.
	outs := make([]ValueInfo, len(node.Outputs))
	dtype := TypeUndefined
	if len(ins) > 0 {
		dtype = ins[0].Type
	}
	for i := range outs {
		outs[i] = ValueInfo{Type: dtype, Dims: []Dim{Symbolic()}}
	}
	return outs, nil
}

func passthrough(ins []ValueInfo, n int) []ValueInfo {
	outs := make([]ValueInfo, n)
	for i := range outs {
		if len(ins) > 0 {
			outs[i] = ValueInfo{Type: ins[0].Type, Dims: append([]Dim(nil), ins[0].Dims...)}
		}
	}
	return outs
}

func inferBinary(g *Graph, node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) < 2 {
		return nil, &MalformedError{Graph: g.Name, Detail: fmt.Sprintf("%s needs two inputs, got %d", node.OpType, len(ins))}
	}
	dims, err := broadcast(ins[0].Dims, ins[1].Dims)
	if err != nil {
		return nil, &MalformedError{Graph: g.Name, Detail: fmt.Sprintf("%s: %v", node.OpType, err)}
	}
	return []ValueInfo{{Type: ins[0].Type, Dims: dims}}, nil
}

// broadcast aligns shapes right, NumPy style. Symbolic dimensions stay
// symbolic unless the opposing dimension pins them to 1.
func broadcast(a, b []Dim) ([]Dim, error) {
	n := max(len(a), len(b))
	out := make([]Dim, n)
	for i := 0; i < n; i++ {
		var da, db Dim
		da.Value, db.Value = 1, 1
		if i < len(a) {
			da = a[len(a)-1-i]
		}
		if i < len(b) {
			db = b[len(b)-1-i]
		}
		switch {
		case !da.IsConcrete() && !db.IsConcrete():
			out[n-1-i] = Symbolic()
		case !da.IsConcrete():
			if db.Value == 1 {
				out[n-1-i] = Symbolic()
			} else {
				out[n-1-i] = db
			}
		case !db.IsConcrete():
			if da.Value == 1 {
				out[n-1-i] = Symbolic()
			} else {
				out[n-1-i] = da
			}
		case da.Value == db.Value, db.Value == 1:
			out[n-1-i] = da
		case da.Value == 1:
			out[n-1-i] = db
		default:
			return nil, fmt.Errorf("cannot broadcast %d against %d at axis %d", da.Value, db.Value, n-1-i)
		}
	}
	return out, nil
}

func inferReduce(node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) == 0 {
		return nil, &MalformedError{Detail: node.OpType + " needs an input"}
	}
	in := ins[0]
	rank := len(in.Dims)
	keepDims := node.AttrInt("keepdims", 1) != 0

	axes := node.AttrInts("axes")
	if len(axes) == 0 {
		axes = make([]int64, rank)
		for i := range axes {
			axes[i] = int64(i)
		}
	}
	reduced := make(map[int]bool, len(axes))
	for _, a := range axes {
		if a < 0 {
			a += int64(rank)
		}
		if a < 0 || a >= int64(rank) {
			return nil, &MalformedError{Detail: fmt.Sprintf("%s: axis %d out of range for rank %d", node.OpType, a, rank)}
		}
		reduced[int(a)] = true
	}

	var dims []Dim
	for i, d := range in.Dims {
		if reduced[i] {
			if keepDims {
				dims = append(dims, Dim{Value: 1})
			}
			continue
		}
		dims = append(dims, d)
	}
	return []ValueInfo{{Type: in.Type, Dims: dims}}, nil
}

func inferConv(g *Graph, node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) < 2 {
		return nil, &MalformedError{Graph: g.Name, Detail: "Conv needs data and weight inputs"}
	}
	x, w := ins[0], ins[1]
	if len(x.Dims) < 3 || len(w.Dims) < 3 {
		return nil, &MalformedError{Graph: g.Name, Detail: "Conv inputs must have rank >= 3"}
	}
	spatial := len(x.Dims) - 2

	kernel := node.AttrInts("kernel_shape")
	if kernel == nil {
		kernel = make([]int64, spatial)
		for i := range kernel {
			if d := w.Dims[2+i]; d.IsConcrete() {
				kernel[i] = d.Value
			} else {
				kernel[i] = -1
			}
		}
	}

	dims := make([]Dim, 2+spatial)
	dims[0] = x.Dims[0] // batch
	dims[1] = w.Dims[0] // output channels
	copy(dims[2:], convSpatial(node, x.Dims[2:], kernel, spatial))
	return []ValueInfo{{Type: x.Type, Dims: dims}}, nil
}

func inferPool(g *Graph, node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) == 0 {
		return nil, &MalformedError{Graph: g.Name, Detail: node.OpType + " needs an input"}
	}
	x := ins[0]
	if len(x.Dims) < 3 {
		return nil, &MalformedError{Graph: g.Name, Detail: node.OpType + " input must have rank >= 3"}
	}
	spatial := len(x.Dims) - 2
	kernel := node.AttrInts("kernel_shape")
	if kernel == nil {
		return nil, &MalformedError{Graph: g.Name, Detail: node.OpType + " requires kernel_shape"}
	}

	dims := make([]Dim, 2+spatial)
	dims[0], dims[1] = x.Dims[0], x.Dims[1]
	copy(dims[2:], convSpatial(node, x.Dims[2:], kernel, spatial))

	outs := []ValueInfo{{Type: x.Type, Dims: dims}}
	if len(node.Outputs) > 1 { // MaxPool optional indices output
		outs = append(outs, ValueInfo{Type: TypeInt64, Dims: append([]Dim(nil), dims...)})
	}
	return outs, nil
}

// convSpatial computes output spatial dims for Conv and the pooling ops:
// floor((in + padBegin + padEnd - dilation*(kernel-1) - 1) / stride) + 1.
func convSpatial(node *Node, in []Dim, kernel []int64, spatial int) []Dim {
	strides := node.AttrInts("strides")
	dilations := node.AttrInts("dilations")
	pads := node.AttrInts("pads")
	autoPad := node.AttrString("auto_pad", "NOTSET")

	at := func(s []int64, i int, def int64) int64 {
		if i < len(s) {
			return s[i]
		}
		return def
	}

	out := make([]Dim, spatial)
	for i := 0; i < spatial; i++ {
		stride := at(strides, i, 1)
		if !in[i].IsConcrete() || i >= len(kernel) || kernel[i] < 0 {
			out[i] = Symbolic()
			continue
		}
		if strings.HasPrefix(autoPad, "SAME") {
			out[i] = Dim{Value: ceilDiv(in[i].Value, stride)}
			continue
		}
		dilation := at(dilations, i, 1)
		padded := in[i].Value + at(pads, i, 0) + at(pads, i+spatial, 0)
		v := (padded-dilation*(kernel[i]-1)-1)/stride + 1
		if v < 0 {
			v = 0
		}
		out[i] = Dim{Value: v}
	}
	return out
}

func ceilDiv(a, b int64) int64 { return (a + b - 1) / b }

func inferGlobalPool(ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) == 0 || len(ins[0].Dims) < 3 {
		return nil, &MalformedError{Detail: "global pooling input must have rank >= 3"}
	}
	x := ins[0]
	dims := make([]Dim, len(x.Dims))
	dims[0], dims[1] = x.Dims[0], x.Dims[1]
	for i := 2; i < len(dims); i++ {
		dims[i] = Dim{Value: 1}
	}
	return []ValueInfo{{Type: x.Type, Dims: dims}}, nil
}

func inferMatMul(g *Graph, node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) < 2 {
		return nil, &MalformedError{Graph: g.Name, Detail: "MatMul needs two inputs"}
	}
	a, b := ins[0].Dims, ins[1].Dims
	if len(a) < 1 || len(b) < 1 {
		return nil, &MalformedError{Graph: g.Name, Detail: "MatMul inputs must have rank >= 1"}
	}
	switch {
	case len(a) == 1 && len(b) == 1:
		return []ValueInfo{{Type: ins[0].Type, Dims: nil}}, nil
	case len(a) >= 2 && len(b) >= 2:
		batch, err := broadcast(a[:len(a)-2], b[:len(b)-2])
		if err != nil {
			return nil, &MalformedError{Graph: g.Name, Detail: "MatMul: " + err.Error()}
		}
		dims := append(batch, a[len(a)-2], b[len(b)-1])
		return []ValueInfo{{Type: ins[0].Type, Dims: dims}}, nil
	case len(a) == 1:
		dims := append(append([]Dim(nil), b[:len(b)-2]...), b[len(b)-1])
		return []ValueInfo{{Type: ins[0].Type, Dims: dims}}, nil
	default:
		dims := append([]Dim(nil), a[:len(a)-1]...)
		return []ValueInfo{{Type: ins[0].Type, Dims: dims}}, nil
	}
}

func inferGemm(g *Graph, node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) < 2 || len(ins[0].Dims) != 2 || len(ins[1].Dims) != 2 {
		return nil, &MalformedError{Graph: g.Name, Detail: "Gemm needs two rank-2 inputs"}
	}
	a, b := ins[0].Dims, ins[1].Dims
	m, n := a[0], b[1]
	if node.AttrInt("transA", 0) != 0 {
		m = a[1]
	}
	if node.AttrInt("transB", 0) != 0 {
		n = b[0]
	}
	return []ValueInfo{{Type: ins[0].Type, Dims: []Dim{m, n}}}, nil
}

func inferReshape(g *Graph, node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(node.Inputs) < 2 {
		return nil, &MalformedError{Graph: g.Name, Detail: "Reshape needs data and shape inputs"}
	}
	var target []int64
	for i := range g.Initializers {
		if t := &g.Initializers[i]; t.Name == node.Inputs[1] {
			var err error
			if target, err = t.Int64s(); err != nil {
				return nil, &MalformedError{Graph: g.Name, Detail: "Reshape: " + err.Error()}
			}
			break
		}
	}
	if target == nil {
		// Shape comes from a runtime tensor; nothing static to say.
		return []ValueInfo{{Type: ins[0].Type, Dims: []Dim{Symbolic()}}}, nil
	}

	in := ins[0]
	total := in.Elements()
	dims := make([]Dim, len(target))
	wildcard := -1
	known := int64(1)
	for i, v := range target {
		switch {
		case v == -1:
			if wildcard >= 0 {
				return nil, &MalformedError{Graph: g.Name, Detail: "Reshape target has multiple wildcards"}
			}
			wildcard = i
		case v == 0:
			if i < len(in.Dims) && in.Dims[i].IsConcrete() {
				dims[i] = in.Dims[i]
				known *= dims[i].Value
			} else {
				dims[i] = Symbolic()
			}
		default:
			dims[i] = Dim{Value: v}
			known *= v
		}
	}
	if wildcard >= 0 {
		if total < 0 || known == 0 {
			dims[wildcard] = Symbolic()
		} else {
			dims[wildcard] = Dim{Value: total / known}
			known *= dims[wildcard].Value
		}
	}
	if total >= 0 && wildcard < 0 && known != total {
		for _, d := range dims {
			if !d.IsConcrete() {
				known = -1
				break
			}
		}
		if known >= 0 && known != total {
			return nil, &MalformedError{Graph: g.Name, Detail: fmt.Sprintf("Reshape: %d elements into shape of %d elements", total, known)}
		}
	}
	return []ValueInfo{{Type: in.Type, Dims: dims}}, nil
}

func inferTranspose(node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) == 0 {
		return nil, &MalformedError{Detail: "Transpose needs an input"}
	}
	in := ins[0]
	perm := node.AttrInts("perm")
	if perm == nil {
		dims := make([]Dim, len(in.Dims))
		for i := range dims {
			dims[i] = in.Dims[len(in.Dims)-1-i]
		}
		return []ValueInfo{{Type: in.Type, Dims: dims}}, nil
	}
	if len(perm) != len(in.Dims) {
		return nil, &MalformedError{Detail: fmt.Sprintf("Transpose perm has %d entries for rank %d", len(perm), len(in.Dims))}
	}
	dims := make([]Dim, len(perm))
	for i, p := range perm {
		if p < 0 || p >= int64(len(in.Dims)) {
			return nil, &MalformedError{Detail: fmt.Sprintf("Transpose perm entry %d out of range", p)}
		}
		dims[i] = in.Dims[p]
	}
	return []ValueInfo{{Type: in.Type, Dims: dims}}, nil
}

func inferFlatten(node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) == 0 {
		return nil, &MalformedError{Detail: "Flatten needs an input"}
	}
	in := ins[0]
	axis := node.AttrInt("axis", 1)
	if axis < 0 {
		axis += int64(len(in.Dims))
	}
	axis = min(max(axis, 0), int64(len(in.Dims)))

	prod := func(dims []Dim) Dim {
		v := int64(1)
		for _, d := range dims {
			if !d.IsConcrete() {
				return Symbolic()
			}
			v *= d.Value
		}
		return Dim{Value: v}
	}
	return []ValueInfo{{Type: in.Type, Dims: []Dim{prod(in.Dims[:axis]), prod(in.Dims[axis:])}}}, nil
}

func inferConstant(g *Graph, node *Node) ([]ValueInfo, error) {
	t := node.AttrTensor("value")
	if t == nil {
		return nil, &MalformedError{Graph: g.Name, Detail: "Constant without value attribute"}
	}
	dims := make([]Dim, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = Dim{Value: d}
	}
	return []ValueInfo{{Type: t.Type, Dims: dims}}, nil
}

func inferDropout(ins []ValueInfo) []ValueInfo {
	outs := passthrough(ins, 1)
	if len(ins) > 0 {
		// Secondary output is the boolean mask over the same dims.
		outs = append(outs, ValueInfo{Type: TypeBool, Dims: append([]Dim(nil), ins[0].Dims...)})
	}
	return outs
}

func inferConcat(g *Graph, node *Node, ins []ValueInfo) ([]ValueInfo, error) {
	if len(ins) == 0 {
		return nil, &MalformedError{Graph: g.Name, Detail: "Concat needs at least one input"}
	}
	rank := len(ins[0].Dims)
	axis := node.AttrInt("axis", 0)
	if axis < 0 {
		axis += int64(rank)
	}
	if axis < 0 || axis >= int64(rank) {
		return nil, &MalformedError{Graph: g.Name, Detail: fmt.Sprintf("Concat axis %d out of range for rank %d", axis, rank)}
	}
	dims := append([]Dim(nil), ins[0].Dims...)
	sum := int64(0)
	for _, in := range ins {
		if len(in.Dims) != rank {
			return nil, &MalformedError{Graph: g.Name, Detail: "Concat inputs disagree on rank"}
		}
		if sum < 0 || !in.Dims[axis].IsConcrete() {
			sum = -1
			continue
		}
		sum += in.Dims[axis].Value
	}
	if sum < 0 {
		dims[axis] = Symbolic()
	} else {
		dims[axis] = Dim{Value: sum}
	}
	return []ValueInfo{{Type: ins[0].Type, Dims: dims}}, nil
}

// inferRecurrent handles RNN, LSTM and GRU best-effort. Models carrying
// these ops are exempt from strict coverage, so open dims are acceptable.
func inferRecurrent(node *Node, ins []ValueInfo) []ValueInfo {
	seq, batch := Symbolic(), Symbolic()
	if len(ins) > 0 && len(ins[0].Dims) == 3 {
		seq, batch = ins[0].Dims[0], ins[0].Dims[1]
	}
	hidden := Symbolic()
	if h := node.AttrInt("hidden_size", -1); h > 0 {
		hidden = Dim{Value: h}
	}
	dirs := Dim{Value: 1}
	if node.AttrString("direction", "forward") == "bidirectional" {
		dirs = Dim{Value: 2}
	}

	dtype := TypeUndefined
	if len(ins) > 0 {
		dtype = ins[0].Type
	}
	outs := []ValueInfo{
		{Type: dtype, Dims: []Dim{seq, dirs, batch, hidden}}, // Y
		{Type: dtype, Dims: []Dim{dirs, batch, hidden}},      // Y_h
	}
	if node.OpType == "LSTM" {
		outs = append(outs, ValueInfo{Type: dtype, Dims: []Dim{dirs, batch, hidden}}) // Y_c
	}
	return outs[:min(len(outs), max(len(node.Outputs), 1))]
}
