// Package onnx - Graph-Datenmodell fuer ONNX-Berechnungsgraphen
//
// Dieses Modul enthaelt die Kernstrukturen:
// - Graph: Eingaben, Ausgaben, Initializer und Operationsliste
// - Node: Einzelne Operation mit Attributen
// - ValueInfo: Typ- und Shape-Annotation eines Tensors
// - Dim: Konkrete oder symbolische Dimension
package onnx

import (
	"errors"
	"fmt"
)

// ErrMalformed is the base error for graphs that fail structural validation
// or shape inference. Use errors.Is to classify.
var ErrMalformed = errors.New("malformed graph")

// MalformedError reports a structural defect in a graph. It unwraps to
// ErrMalformed so callers can classify without inspecting the message.
type MalformedError struct {
	Graph  string
	Detail string
}

func (e *MalformedError) Error() string {
	if e.Graph == "" {
		return fmt.Sprintf("malformed graph: %s", e.Detail)
	}
	return fmt.Sprintf("malformed graph %q: %s", e.Graph, e.Detail)
}

func (e *MalformedError) Unwrap() error { return ErrMalformed }

// DataType identifies the element type of a tensor.
type DataType uint32

const (
	TypeUndefined DataType = iota
	TypeFloat
	TypeFloat16
	TypeBFloat16
	TypeDouble
	TypeInt32
	TypeInt64
	TypeUint8
	TypeInt8
	TypeBool
)

func (t DataType) String() string {
	switch t {
	case TypeFloat:
		return "float32"
	case TypeFloat16:
		return "float16"
	case TypeBFloat16:
		return "bfloat16"
	case TypeDouble:
		return "float64"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeUint8:
		return "uint8"
	case TypeInt8:
		return "int8"
	case TypeBool:
		return "bool"
	default:
		return "undefined"
	}
}

// Size returns the element size in bytes, or 0 for undefined types.
func (t DataType) Size() int {
	switch t {
	case TypeFloat, TypeInt32:
		return 4
	case TypeFloat16, TypeBFloat16:
		return 2
	case TypeDouble, TypeInt64:
		return 8
	case TypeUint8, TypeInt8, TypeBool:
		return 1
	default:
		return 0
	}
}

// Dim is a single tensor dimension: either a concrete value or a symbolic
// parameter name. A dimension with a negative value and no parameter is
// unknown.
type Dim struct {
	Value int64
	Param string
}

// IsConcrete reports whether the dimension resolved to an integer value.
func (d Dim) IsConcrete() bool { return d.Param == "" && d.Value >= 0 }

func (d Dim) String() string {
	if d.Param != "" {
		return d.Param
	}
	if d.Value < 0 {
		return "?"
	}
	return fmt.Sprintf("%d", d.Value)
}

// Symbolic returns an unknown dimension.
func Symbolic() Dim { return Dim{Value: -1} }

// ValueInfo annotates a named tensor with its element type and dimensions.
type ValueInfo struct {
	Name string
	Type DataType
	Dims []Dim
}

// Concrete reports whether every dimension is a resolved integer and the
// element type is defined.
func (v ValueInfo) Concrete() bool {
	if v.Type == TypeUndefined {
		return false
	}
	for _, d := range v.Dims {
		if !d.IsConcrete() {
			return false
		}
	}
	return true
}

// Shape returns the dimensions as plain integers, -1 for symbolic entries.
func (v ValueInfo) Shape() []int64 {
	dims := make([]int64, len(v.Dims))
	for i, d := range v.Dims {
		if d.IsConcrete() {
			dims[i] = d.Value
		} else {
			dims[i] = -1
		}
	}
	return dims
}

// Elements returns the total element count, or -1 if any dimension is
// symbolic.
func (v ValueInfo) Elements() int64 {
	n := int64(1)
	for _, d := range v.Dims {
		if !d.IsConcrete() {
			return -1
		}
		n *= d.Value
	}
	return n
}

// Attribute value kinds.
type AttributeKind uint32

const (
	AttrInt AttributeKind = iota + 1
	AttrFloat
	AttrString
	AttrInts
	AttrFloats
	AttrTensor
)

// Attribute is a named, typed operation parameter.
type Attribute struct {
	Name   string
	Kind   AttributeKind
	I      int64
	F      float32
	S      string
	Ints   []int64
	Floats []float32
	T      *Tensor
}

// Node is one operation in a graph: an op-type tag, input/output tensor name
// references and a list of attributes.
type Node struct {
	OpType  string
	Name    string
	Inputs  []string
	Outputs []string
	Attrs   []Attribute
}

func (n *Node) attr(name string) (Attribute, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// AttrInt returns the named integer attribute or def when absent.
func (n *Node) AttrInt(name string, def int64) int64 {
	if a, ok := n.attr(name); ok && a.Kind == AttrInt {
		return a.I
	}
	return def
}

// AttrFloat returns the named float attribute or def when absent.
func (n *Node) AttrFloat(name string, def float32) float32 {
	if a, ok := n.attr(name); ok && a.Kind == AttrFloat {
		return a.F
	}
	return def
}

// AttrString returns the named string attribute or def when absent.
func (n *Node) AttrString(name, def string) string {
	if a, ok := n.attr(name); ok && a.Kind == AttrString {
		return a.S
	}
	return def
}

// AttrInts returns the named integer-list attribute or nil when absent.
func (n *Node) AttrInts(name string) []int64 {
	if a, ok := n.attr(name); ok && a.Kind == AttrInts {
		return a.Ints
	}
	return nil
}

// AttrTensor returns the named tensor attribute or nil when absent.
func (n *Node) AttrTensor(name string) *Tensor {
	if a, ok := n.attr(name); ok && a.Kind == AttrTensor {
		return a.T
	}
	return nil
}

// Graph is an immutable computation graph: ordered input and output
// declarations, optional intermediate annotations, constant initializers and
// an ordered operation list. The adapter never mutates a Graph in place;
// shape inference returns an augmented clone.
type Graph struct {
	Name         string
	Inputs       []ValueInfo
	Outputs      []ValueInfo
	ValueInfos   []ValueInfo
	Initializers []Tensor
	Nodes        []Node
}

// ValueInfoFor looks up the annotation for a named tensor. Sources are
// searched in priority order: intermediate annotations, inputs, outputs,
// then initializers.
func (g *Graph) ValueInfoFor(name string) (ValueInfo, bool) {
	for _, vis := range [][]ValueInfo{g.ValueInfos, g.Inputs, g.Outputs} {
		for _, vi := range vis {
			if vi.Name == name {
				return vi, true
			}
		}
	}
	for i := range g.Initializers {
		if t := &g.Initializers[i]; t.Name == name {
			dims := make([]Dim, len(t.Dims))
			for j, d := range t.Dims {
				dims[j] = Dim{Value: d}
			}
			return ValueInfo{Name: t.Name, Type: t.Type, Dims: dims}, true
		}
	}
	return ValueInfo{}, false
}

// HasOpType reports whether any node carries one of the given op types.
func (g *Graph) HasOpType(ops ...string) bool {
	for _, n := range g.Nodes {
		for _, op := range ops {
			if n.OpType == op {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Name:         g.Name,
		Inputs:       cloneValueInfos(g.Inputs),
		Outputs:      cloneValueInfos(g.Outputs),
		ValueInfos:   cloneValueInfos(g.ValueInfos),
		Initializers: make([]Tensor, len(g.Initializers)),
		Nodes:        make([]Node, len(g.Nodes)),
	}
	for i, t := range g.Initializers {
		out.Initializers[i] = t.clone()
	}
	for i, n := range g.Nodes {
		nn := Node{
			OpType:  n.OpType,
			Name:    n.Name,
			Inputs:  append([]string(nil), n.Inputs...),
			Outputs: append([]string(nil), n.Outputs...),
			Attrs:   make([]Attribute, len(n.Attrs)),
		}
		for j, a := range n.Attrs {
			aa := a
			aa.Ints = append([]int64(nil), a.Ints...)
			aa.Floats = append([]float32(nil), a.Floats...)
			if a.T != nil {
				t := a.T.clone()
				aa.T = &t
			}
			nn.Attrs[j] = aa
		}
		out.Nodes[i] = nn
	}
	return out
}

func cloneValueInfos(vis []ValueInfo) []ValueInfo {
	out := make([]ValueInfo, len(vis))
	for i, vi := range vis {
		out[i] = ValueInfo{Name: vi.Name, Type: vi.Type, Dims: append([]Dim(nil), vi.Dims...)}
	}
	return out
}
