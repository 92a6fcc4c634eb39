// codec_test.go - Tests fuer Encode/Decode des Graph-Codecs
// Testet Round-Trip-Identitaet und die Fehlerpfade des Framings.
package onnx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func testGraph() *Graph {
	return &Graph{
		Name: "conv_relu",
		Inputs: []ValueInfo{
			{Name: "x", Type: TypeFloat, Dims: []Dim{{Value: 1}, {Value: 3}, {Value: 8}, {Param: "w"}}},
		},
		Outputs: []ValueInfo{
			{Name: "y", Type: TypeFloat, Dims: []Dim{{Value: 1}, {Value: 4}, {Value: 6}, Symbolic()}},
		},
		Initializers: []Tensor{
			TensorFromFloat32s("weight", []int64{4, 3, 3, 3}, make([]float32, 108)),
			TensorFromInt64s("shape", []int64{2}, []int64{1, -1}),
		},
		Nodes: []Node{
			{
				OpType:  "Conv",
				Name:    "conv0",
				Inputs:  []string{"x", "weight"},
				Outputs: []string{"c"},
				Attrs: []Attribute{
					{Name: "kernel_shape", Kind: AttrInts, Ints: []int64{3, 3}},
					{Name: "pads", Kind: AttrInts, Ints: []int64{0, 0, 0, 0}},
				},
			},
			{
				OpType:  "LeakyRelu",
				Name:    "act0",
				Inputs:  []string{"c"},
				Outputs: []string{"y"},
				Attrs:   []Attribute{{Name: "alpha", Kind: AttrFloat, F: 0.1}},
			},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	g := testGraph()
	data, err := Encode(g)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(g, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMalformed(t *testing.T) {
	data, err := Encode(testGraph())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Gueltiger Header mit leerem Namen und absurd grossem Eingabe-Zaehler.
	hostileCount := append([]byte("WNNX"), 1, 0, 0, 0)
	hostileCount = append(hostileCount, make([]byte, 8)...)
	hostileCount = binary.LittleEndian.AppendUint64(hostileCount, 1<<61)

	// Gueltiger Graph, aber der Ints-Zaehler des kernel_shape-Attributs
	// (nach Name und Kind) wird auf 2^61 gepatcht.
	hostileAttr := append([]byte(nil), data...)
	idx := bytes.Index(hostileAttr, []byte("kernel_shape")) + len("kernel_shape") + 4
	binary.LittleEndian.PutUint64(hostileAttr[idx:], 1<<61)

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("GGUF\x01\x00\x00\x00")},
		{"truncated", data[:len(data)/2]},
		{"bad version", append([]byte("WNNX"), 0xff, 0xff, 0xff, 0xff)},
		{"oversized section count", hostileCount},
		{"oversized attribute count", hostileAttr},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode = %v, erwartet ErrMalformed", err)
			}
		})
	}
}

func TestTensorFloat32s(t *testing.T) {
	tensor := TensorFromFloat32s("t", []int64{2, 2}, []float32{1, -2, 3.5, 0})
	got, err := tensor.Float32s()
	if err != nil {
		t.Fatalf("Float32s: %v", err)
	}
	want := []float32{1, -2, 3.5, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Float32s mismatch (-want +got):\n%s", diff)
	}
}

func TestTensorBFloat16(t *testing.T) {
	// bfloat16 sind die oberen 16 Bit der float32-Darstellung.
	want := []float32{1, -2, 0.5, 0}
	data := make([]byte, len(want)*2)
	for i, v := range want {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(math.Float32bits(v)>>16))
	}

	tensor := Tensor{Name: "t", Type: TypeBFloat16, Dims: []int64{4}, Data: data}
	got, err := tensor.Float32s()
	if err != nil {
		t.Fatalf("Float32s: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Float32s mismatch (-want +got):\n%s", diff)
	}
}

func TestTensorInt64s(t *testing.T) {
	tensor := TensorFromInt64s("shape", []int64{3}, []int64{2, -1, 4})
	got, err := tensor.Int64s()
	if err != nil {
		t.Fatalf("Int64s: %v", err)
	}
	want := []int64{2, -1, 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Int64s mismatch (-want +got):\n%s", diff)
	}
}
