// cases.go - Aufzaehlbare Testfall-Records und Graph-Builder
// Enthält: Case, die Builder-Helfer (valueInfo, op, graph) und
// BuiltinCases mit dem eingebauten Beispiel-Korpus. Jeder Record traegt
// Name, serialisierten Graph, Eingaben und erwartetes Verhalten.
package conformance

import (
	"github.com/zimond/wonnx/ml"
	"github.com/zimond/wonnx/onnx"
)

// Case is one enumerable conformance record: a test-case name, the graph in
// its opaque byte encoding, sample inputs, and the expected outcome. Want
// and WantDims are optional; when nil only successful execution is checked.
type Case struct {
	Name     string
	Model    []byte
	Inputs   []ml.Value
	Want     [][]float32
	WantDims [][]int64
}

// valueInfo builds a concrete float32 annotation.
func valueInfo(name string, dims ...int64) onnx.ValueInfo {
	ds := make([]onnx.Dim, len(dims))
	for i, d := range dims {
		ds[i] = onnx.Dim{Value: d}
	}
	return onnx.ValueInfo{Name: name, Type: onnx.TypeFloat, Dims: ds}
}

// op builds a node from input and output names plus attributes.
func op(opType string, inputs, outputs []string, attrs ...onnx.Attribute) onnx.Node {
	return onnx.Node{OpType: opType, Name: opType, Inputs: inputs, Outputs: outputs, Attrs: attrs}
}

func attrInt(name string, v int64) onnx.Attribute {
	return onnx.Attribute{Name: name, Kind: onnx.AttrInt, I: v}
}

func attrInts(name string, v ...int64) onnx.Attribute {
	return onnx.Attribute{Name: name, Kind: onnx.AttrInts, Ints: v}
}

func attrFloat(name string, v float32) onnx.Attribute {
	return onnx.Attribute{Name: name, Kind: onnx.AttrFloat, F: v}
}

// graph assembles and serializes a graph; builders only construct
// well-formed graphs, so encoding cannot fail here.
func graph(name string, inputs, outputs []onnx.ValueInfo, initializers []onnx.Tensor, nodes ...onnx.Node) []byte {
	model, err := onnx.Encode(&onnx.Graph{
		Name:         name,
		Inputs:       inputs,
		Outputs:      outputs,
		Initializers: initializers,
		Nodes:        nodes,
	})
	if err != nil {
		panic("conformance: encoding built-in case: " + err.Error())
	}
	return model
}

// BuiltinCases returns the built-in sample corpus. Names follow the
// standardized corpus convention (test_<op>_<variant>), so the selection
// policy applies to them unchanged.
func BuiltinCases() []Case {
	return []Case{
		{
			Name: "test_relu_default",
			Model: graph("SingleRelu",
				[]onnx.ValueInfo{valueInfo("x", 1, 3)},
				[]onnx.ValueInfo{valueInfo("y", 1, 3)},
				nil,
				op("Relu", []string{"x"}, []string{"y"}),
			),
			Inputs:   []ml.Value{[]float32{-1, 0, 2}},
			WantDims: [][]int64{{1, 3}},
		},
		{
			Name: "test_abs_default",
			Model: graph("abs_default",
				[]onnx.ValueInfo{valueInfo("x", 2, 2)},
				[]onnx.ValueInfo{valueInfo("y", 2, 2)},
				nil,
				op("Abs", []string{"x"}, []string{"y"}),
			),
			Inputs:   []ml.Value{[]float32{-1, 2, -3, 4}},
			WantDims: [][]int64{{2, 2}},
		},
		{
			Name: "test_leakyrelu_default",
			Model: graph("leakyrelu_default",
				[]onnx.ValueInfo{valueInfo("x", 3)},
				[]onnx.ValueInfo{valueInfo("y", 3)},
				nil,
				op("LeakyRelu", []string{"x"}, []string{"y"}, attrFloat("alpha", 0.01)),
			),
			Inputs:   []ml.Value{[]float32{-1, 0, 1}},
			WantDims: [][]int64{{3}},
		},
		{
			Name: "test_conv_basic",
			Model: graph("conv_basic",
				[]onnx.ValueInfo{valueInfo("x", 1, 1, 5, 5)},
				[]onnx.ValueInfo{valueInfo("y", 1, 1, 3, 3)},
				[]onnx.Tensor{onnx.TensorFromFloat32s("w", []int64{1, 1, 3, 3}, make([]float32, 9))},
				op("Conv", []string{"x", "w"}, []string{"y"}, attrInts("kernel_shape", 3, 3)),
			),
			Inputs:   []ml.Value{make([]float32, 25)},
			WantDims: [][]int64{{1, 1, 3, 3}},
		},
		{
			Name: "test_reduce_mean_default_axes_keepdims_example",
			Model: graph("reduce_mean_default",
				[]onnx.ValueInfo{valueInfo("data", 3, 2, 2)},
				[]onnx.ValueInfo{valueInfo("reduced", 1, 1, 1)},
				nil,
				op("ReduceMean", []string{"data"}, []string{"reduced"}, attrInt("keepdims", 1)),
			),
			Inputs:   []ml.Value{make([]float32, 12)},
			WantDims: [][]int64{{1, 1, 1}},
		},
		{
			Name: "test_reduce_max_keepdims_example",
			Model: graph("reduce_max_keepdims",
				[]onnx.ValueInfo{valueInfo("data", 3, 2, 2)},
				[]onnx.ValueInfo{valueInfo("reduced", 3, 1, 2)},
				nil,
				op("ReduceMax", []string{"data"}, []string{"reduced"},
					attrInts("axes", 1), attrInt("keepdims", 1)),
			),
			Inputs:   []ml.Value{make([]float32, 12)},
			WantDims: [][]int64{{3, 1, 2}},
		},
		{
			// Withheld by the selection policy: axes arrives as a runtime
			// input here, which the engine does not support.
			Name: "test_reduce_sum_default",
			Model: graph("reduce_sum_default",
				[]onnx.ValueInfo{
					valueInfo("data", 3, 2, 2),
					{Name: "axes", Type: onnx.TypeInt64, Dims: []onnx.Dim{{Value: 1}}},
				},
				[]onnx.ValueInfo{valueInfo("reduced", 3, 1, 2)},
				nil,
				op("ReduceSum", []string{"data"}, []string{"reduced"}, attrInts("axes", 1)),
			),
			Inputs:   []ml.Value{make([]float32, 12)},
			WantDims: [][]int64{{3, 1, 2}},
		},
		{
			// Never matched by any include group.
			Name: "test_lstm_defaults",
			Model: graph("lstm_defaults",
				[]onnx.ValueInfo{valueInfo("x", 1, 3, 2), valueInfo("w", 1, 28, 2), valueInfo("r", 1, 28, 7)},
				[]onnx.ValueInfo{valueInfo("y", 1, 1, 3, 7)},
				nil,
				op("LSTM", []string{"x", "w", "r"}, []string{"y"}, attrInt("hidden_size", 7)),
			),
			Inputs:   []ml.Value{make([]float32, 6), make([]float32, 56), make([]float32, 196)},
			WantDims: [][]int64{{1, 1, 3, 7}},
		},
	}
}
