// marshal.go - Tensor-Marshalling zwischen Harness und Engine
//
// Dieses Modul konvertiert zwischen den beiden Tensor-Darstellungen:
// - Vorwaerts: verschachtelte/geformte Werte -> flache float32-Puffer
// - Rueckwaerts: flache Engine-Ergebnisse -> geformte float32-Tensoren
// Die Elementanzahl muss auf beiden Seiten exakt stimmen (ShapeMismatch).
package ml

import (
	"fmt"
	"reflect"

	"github.com/pdevine/tensor"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is a harness-native tensor: a *tensor.Dense, an already-flat
// []float32 (passed through unchanged), a scalar, or arbitrarily nested
// numeric slices.
type Value any

// toEngine flattens the named input values to the flat buffer form the
// engine expects. The shape table is keyed by output names; when an input
// name collides with an output name its flat length is validated against
// that shape. The lookup intentionally stays output-keyed to match the
// integration this adapter replaces (see DESIGN.md).
func toEngine(names []string, values []Value, shapes *orderedmap.OrderedMap[string, []int64]) (map[string][]float32, error) {
	if len(values) > len(names) {
		return nil, fmt.Errorf("%d input values for %d declared inputs", len(values), len(names))
	}
	out := make(map[string][]float32, len(values))
	for i, v := range values {
		name := names[i]
		flat, alreadyFlat, err := flatten(v)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		if !alreadyFlat {
			if dims, ok := shapes.Get(name); ok {
				if want := elements(dims); want >= 0 && int64(len(flat)) != want {
					return nil, &ShapeMismatchError{Name: name, Elements: len(flat), Shape: dims}
				}
			}
		}
		out[name] = flat
	}
	return out, nil
}

// fromEngine reshapes the engine's named flat buffers to their declared
// output shapes, coerced to float32. The returned slice follows the order of
// the shape table, which preserves the graph's declared-output ordering, not
// the engine's return order.
func fromEngine(results map[string][]float32, shapes *orderedmap.OrderedMap[string, []int64]) ([]*tensor.Dense, error) {
	out := make([]*tensor.Dense, 0, shapes.Len())
	for pair := shapes.Oldest(); pair != nil; pair = pair.Next() {
		name, dims := pair.Key, pair.Value
		flat, ok := results[name]
		if !ok {
			return nil, &SessionError{Err: fmt.Errorf("engine returned no output %q", name)}
		}
		d, err := reshape(name, flat, dims)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// reshape builds a shaped float32 tensor from a flat buffer. A single
// unknown dimension is resolved from the element count; a buffer that does
// not fit is an error, never truncated.
func reshape(name string, flat []float32, dims []int64) (*tensor.Dense, error) {
	shape := make([]int, 0, len(dims))
	unknown := -1
	known := 1
	for i, d := range dims {
		switch {
		case d >= 0:
			shape = append(shape, int(d))
			known *= int(d)
		case unknown < 0:
			unknown = i
			shape = append(shape, -1)
		default:
			// More than one open dimension: fall back to a flat vector.
			return tensor.New(tensor.WithShape(len(flat)), tensor.WithBacking(append([]float32(nil), flat...))), nil
		}
	}
	if unknown >= 0 {
		if known == 0 || len(flat)%known != 0 {
			return nil, &ShapeMismatchError{Name: name, Elements: len(flat), Shape: dims}
		}
		shape[unknown] = len(flat) / known
		known *= shape[unknown]
	}
	if len(shape) == 0 {
		shape = []int{1}
		known = 1
	}
	if known != len(flat) {
		return nil, &ShapeMismatchError{Name: name, Elements: len(flat), Shape: dims}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(append([]float32(nil), flat...))), nil
}

// flatten coerces a harness-native value to a flat float32 buffer. The
// second return reports whether the value was already flat (and is passed
// through without shape validation).
func flatten(v Value) ([]float32, bool, error) {
	switch t := v.(type) {
	case []float32:
		return t, true, nil
	case *tensor.Dense:
		switch data := t.Data().(type) {
		case []float32:
			return data, true, nil
		case float32:
			return []float32{data}, true, nil
		default:
			flat, err := appendScalars(nil, reflect.ValueOf(data))
			return flat, true, err
		}
	case nil:
		return nil, false, fmt.Errorf("nil tensor value")
	default:
		flat, err := appendScalars(nil, reflect.ValueOf(v))
		return flat, false, err
	}
}

// appendScalars walks nested slices depth-first, coercing numeric leaves.
func appendScalars(dst []float32, v reflect.Value) ([]float32, error) {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			var err error
			if dst, err = appendScalars(dst, v.Index(i)); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case reflect.Interface:
		return appendScalars(dst, v.Elem())
	case reflect.Float32, reflect.Float64:
		return append(dst, float32(v.Float())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return append(dst, float32(v.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return append(dst, float32(v.Uint())), nil
	case reflect.Bool:
		if v.Bool() {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	default:
		return nil, fmt.Errorf("cannot coerce %s to float32", v.Kind())
	}
}

func elements(dims []int64) int64 {
	n := int64(1)
	for _, d := range dims {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}
