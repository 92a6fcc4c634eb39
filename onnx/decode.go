// decode.go - Binaere Deserialisierung des Graphen (WNNX Format, V1)
//
// Dieses Modul enthaelt die Read-Seite des Codecs:
// - Decode: Parst das Little-Endian Framing zurueck in einen Graph
// - read[T]: Generische Funktion zum Lesen typisierter Werte
// - readString: String-Deserialisierung
// Dekodierfehler werden als MalformedError gemeldet.
package onnx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

type decoder struct {
	r   *bytes.Reader
	bts []byte
}

// Decode parses the binary wire form produced by Encode. Any framing defect
// is reported as a MalformedError.
func Decode(data []byte) (*Graph, error) {
	d := &decoder{r: bytes.NewReader(data), bts: make([]byte, 256)}

	var m [4]byte
	if _, err := io.ReadFull(d.r, m[:]); err != nil {
		return nil, &MalformedError{Detail: "truncated header"}
	}
	if m != magic {
		return nil, &MalformedError{Detail: fmt.Sprintf("bad magic %q", m[:])}
	}
	v, err := read[uint32](d)
	if err != nil {
		return nil, &MalformedError{Detail: "truncated version"}
	}
	if v != version {
		return nil, &MalformedError{Detail: fmt.Sprintf("unsupported version %d", v)}
	}

	g := &Graph{}
	if g.Name, err = readString(d); err != nil {
		return nil, malformed(err)
	}
	for _, vis := range []*[]ValueInfo{&g.Inputs, &g.Outputs, &g.ValueInfos} {
		n, err := readCount(d, 20)
		if err != nil {
			return nil, malformed(err)
		}
		*vis = make([]ValueInfo, n)
		for i := range *vis {
			if (*vis)[i], err = readValueInfo(d); err != nil {
				return nil, malformed(err)
			}
		}
	}
	n, err := readCount(d, 28)
	if err != nil {
		return nil, malformed(err)
	}
	g.Initializers = make([]Tensor, n)
	for i := range g.Initializers {
		if g.Initializers[i], err = readTensor(d); err != nil {
			return nil, malformed(err)
		}
	}
	if n, err = readCount(d, 40); err != nil {
		return nil, malformed(err)
	}
	g.Nodes = make([]Node, n)
	for i := range g.Nodes {
		if g.Nodes[i], err = readNode(d); err != nil {
			return nil, malformed(err)
		}
	}
	return g, nil
}

func malformed(err error) error {
	if _, ok := err.(*MalformedError); ok {
		return err
	}
	return &MalformedError{Detail: err.Error()}
}

func readValueInfo(d *decoder) (ValueInfo, error) {
	name, err := readString(d)
	if err != nil {
		return ValueInfo{}, err
	}
	t, err := read[uint32](d)
	if err != nil {
		return ValueInfo{}, err
	}
	n, err := readCount(d, 16)
	if err != nil {
		return ValueInfo{}, err
	}
	dims := make([]Dim, n)
	for i := range dims {
		if dims[i].Value, err = read[int64](d); err != nil {
			return ValueInfo{}, err
		}
		if dims[i].Param, err = readString(d); err != nil {
			return ValueInfo{}, err
		}
	}
	return ValueInfo{Name: name, Type: DataType(t), Dims: dims}, nil
}

func readTensor(d *decoder) (Tensor, error) {
	name, err := readString(d)
	if err != nil {
		return Tensor{}, err
	}
	t, err := read[uint32](d)
	if err != nil {
		return Tensor{}, err
	}
	n, err := readCount(d, 8)
	if err != nil {
		return Tensor{}, err
	}
	dims := make([]int64, n)
	for i := range dims {
		if dims[i], err = read[int64](d); err != nil {
			return Tensor{}, err
		}
	}
	size, err := read[uint64](d)
	if err != nil {
		return Tensor{}, err
	}
	if size > uint64(d.r.Len()) {
		return Tensor{}, &MalformedError{Detail: fmt.Sprintf("tensor %q data exceeds payload", name)}
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return Tensor{}, err
	}
	return Tensor{Name: name, Type: DataType(t), Dims: dims, Data: data}, nil
}

func readNode(d *decoder) (Node, error) {
	opType, err := readString(d)
	if err != nil {
		return Node{}, err
	}
	name, err := readString(d)
	if err != nil {
		return Node{}, err
	}
	node := Node{OpType: opType, Name: name}
	for _, names := range []*[]string{&node.Inputs, &node.Outputs} {
		n, err := readCount(d, 8)
		if err != nil {
			return Node{}, err
		}
		*names = make([]string, n)
		for i := range *names {
			if (*names)[i], err = readString(d); err != nil {
				return Node{}, err
			}
		}
	}
	n, err := readCount(d, 16)
	if err != nil {
		return Node{}, err
	}
	node.Attrs = make([]Attribute, n)
	for i := range node.Attrs {
		if node.Attrs[i], err = readAttribute(d); err != nil {
			return Node{}, err
		}
	}
	return node, nil
}

func readAttribute(d *decoder) (Attribute, error) {
	name, err := readString(d)
	if err != nil {
		return Attribute{}, err
	}
	kind, err := read[uint32](d)
	if err != nil {
		return Attribute{}, err
	}
	a := Attribute{Name: name, Kind: AttributeKind(kind)}
	switch a.Kind {
	case AttrInt:
		a.I, err = read[int64](d)
	case AttrFloat:
		a.F, err = read[float32](d)
	case AttrString:
		a.S, err = readString(d)
	case AttrInts:
		var n uint64
		if n, err = readCount(d, 8); err == nil {
			a.Ints = make([]int64, n)
			for i := range a.Ints {
				if a.Ints[i], err = read[int64](d); err != nil {
					break
				}
			}
		}
	case AttrFloats:
		var n uint64
		if n, err = readCount(d, 4); err == nil {
			a.Floats = make([]float32, n)
			for i := range a.Floats {
				if a.Floats[i], err = read[float32](d); err != nil {
					break
				}
			}
		}
	case AttrTensor:
		var t Tensor
		if t, err = readTensor(d); err == nil {
			a.T = &t
		}
	default:
		err = &MalformedError{Detail: fmt.Sprintf("attribute %q has unknown kind %d", name, kind)}
	}
	if err != nil {
		return Attribute{}, err
	}
	return a, nil
}

// readCount liest einen Element-Zaehler und prueft ihn gegen die minimale
// Elementgroesse und die restliche Nutzlast, bevor allokiert wird
func readCount(d *decoder, elemSize int) (uint64, error) {
	n, err := read[uint64](d)
	if err != nil {
		return 0, err
	}
	if n > uint64(d.r.Len())/uint64(elemSize) {
		return 0, &MalformedError{Detail: fmt.Sprintf("count %d exceeds payload", n)}
	}
	return n, nil
}

// read liest einen typisierten Wert aus dem Reader
func read[T any](d *decoder) (t T, err error) {
	err = binary.Read(d.r, binary.LittleEndian, &t)
	return t, err
}

// readString liest einen laengen-praefixierten String
func readString(d *decoder) (string, error) {
	n, err := read[uint64](d)
	if err != nil {
		return "", err
	}
	if n > uint64(d.r.Len()) {
		return "", &MalformedError{Detail: "string length exceeds payload"}
	}
	if int(n) > len(d.bts) {
		d.bts = make([]byte, n)
	}
	bts := d.bts[:n]
	if _, err := io.ReadFull(d.r, bts); err != nil {
		return "", err
	}
	return string(bts), nil
}
