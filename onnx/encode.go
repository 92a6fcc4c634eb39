// encode.go - Binaere Serialisierung des Graphen (WNNX Format, V1)
//
// Dieses Modul enthaelt die Write-Seite des Codecs:
// - Encode: Serialisiert einen Graph in das Little-Endian Framing
// - write: Generische Write-Funktion fuer Basistypen
// - writeString: Laengen-praefixierte String-Serialisierung
// Das Byte-Format ist die opake Nutzlast der Engine-Grenze.
package onnx

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Codec framing constants.
var magic = [4]byte{'W', 'N', 'N', 'X'}

const version uint32 = 1

// Encode serializes a graph to its binary wire form. The encoding is
// little-endian throughout: magic, version, then the graph sections in
// declaration order.
func Encode(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.Write(magic[:]); err != nil {
		return nil, err
	}
	if err := write(&buf, version); err != nil {
		return nil, err
	}
	if err := writeString(&buf, g.Name); err != nil {
		return nil, err
	}
	for _, vis := range [][]ValueInfo{g.Inputs, g.Outputs, g.ValueInfos} {
		if err := write(&buf, uint64(len(vis))); err != nil {
			return nil, err
		}
		for _, vi := range vis {
			if err := writeValueInfo(&buf, vi); err != nil {
				return nil, err
			}
		}
	}
	if err := write(&buf, uint64(len(g.Initializers))); err != nil {
		return nil, err
	}
	for i := range g.Initializers {
		if err := writeTensor(&buf, &g.Initializers[i]); err != nil {
			return nil, err
		}
	}
	if err := write(&buf, uint64(len(g.Nodes))); err != nil {
		return nil, err
	}
	for i := range g.Nodes {
		if err := writeNode(&buf, &g.Nodes[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeValueInfo(w io.Writer, vi ValueInfo) error {
	if err := writeString(w, vi.Name); err != nil {
		return err
	}
	if err := write(w, uint32(vi.Type)); err != nil {
		return err
	}
	if err := write(w, uint64(len(vi.Dims))); err != nil {
		return err
	}
	for _, d := range vi.Dims {
		if err := write(w, d.Value); err != nil {
			return err
		}
		if err := writeString(w, d.Param); err != nil {
			return err
		}
	}
	return nil
}

func writeTensor(w io.Writer, t *Tensor) error {
	if err := writeString(w, t.Name); err != nil {
		return err
	}
	if err := write(w, uint32(t.Type)); err != nil {
		return err
	}
	if err := write(w, uint64(len(t.Dims))); err != nil {
		return err
	}
	for _, d := range t.Dims {
		if err := write(w, d); err != nil {
			return err
		}
	}
	if err := write(w, uint64(len(t.Data))); err != nil {
		return err
	}
	_, err := w.Write(t.Data)
	return err
}

func writeNode(w io.Writer, n *Node) error {
	if err := writeString(w, n.OpType); err != nil {
		return err
	}
	if err := writeString(w, n.Name); err != nil {
		return err
	}
	for _, names := range [][]string{n.Inputs, n.Outputs} {
		if err := write(w, uint64(len(names))); err != nil {
			return err
		}
		for _, name := range names {
			if err := writeString(w, name); err != nil {
				return err
			}
		}
	}
	if err := write(w, uint64(len(n.Attrs))); err != nil {
		return err
	}
	for i := range n.Attrs {
		if err := writeAttribute(w, &n.Attrs[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeAttribute(w io.Writer, a *Attribute) error {
	if err := writeString(w, a.Name); err != nil {
		return err
	}
	if err := write(w, uint32(a.Kind)); err != nil {
		return err
	}
	switch a.Kind {
	case AttrInt:
		return write(w, a.I)
	case AttrFloat:
		return write(w, a.F)
	case AttrString:
		return writeString(w, a.S)
	case AttrInts:
		if err := write(w, uint64(len(a.Ints))); err != nil {
			return err
		}
		for _, v := range a.Ints {
			if err := write(w, v); err != nil {
				return err
			}
		}
		return nil
	case AttrFloats:
		if err := write(w, uint64(len(a.Floats))); err != nil {
			return err
		}
		for _, v := range a.Floats {
			if err := write(w, v); err != nil {
				return err
			}
		}
		return nil
	case AttrTensor:
		return writeTensor(w, a.T)
	default:
		return &MalformedError{Detail: "attribute " + a.Name + " has no kind"}
	}
}

// write schreibt einen typisierten Wert Little-Endian in den Writer
func write[T any](w io.Writer, v T) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// writeString schreibt einen laengen-praefixierten String
func writeString(w io.Writer, s string) error {
	if err := write(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
