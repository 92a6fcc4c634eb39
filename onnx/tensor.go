// tensor.go - Initializer-Tensoren und Dekodierung der Rohdaten
// Enthält: Tensor, Float32s, Int64s und die Konvertierung von
// float16/bfloat16 Rohpuffern nach float32.
package onnx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Tensor is a constant initializer: a named, typed buffer of raw
// little-endian element data.
type Tensor struct {
	Name string
	Type DataType
	Dims []int64
	Data []byte
}

func (t Tensor) clone() Tensor {
	return Tensor{
		Name: t.Name,
		Type: t.Type,
		Dims: append([]int64(nil), t.Dims...),
		Data: append([]byte(nil), t.Data...),
	}
}

// Elements returns the element count implied by the dimensions.
func (t *Tensor) Elements() int64 {
	n := int64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// Float32s decodes the raw payload to float32 values. Half-precision and
// bfloat16 payloads are widened; integer payloads are converted by value.
func (t *Tensor) Float32s() ([]float32, error) {
	switch t.Type {
	case TypeFloat:
		f32s := make([]float32, len(t.Data)/4)
		for i := range f32s {
			f32s[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
		}
		return f32s, nil
	case TypeFloat16:
		f32s := make([]float32, len(t.Data)/2)
		for i := range f32s {
			f32s[i] = float16.Frombits(binary.LittleEndian.Uint16(t.Data[i*2:])).Float32()
		}
		return f32s, nil
	case TypeBFloat16:
		return bfloat16.DecodeFloat32(t.Data), nil
	case TypeDouble:
		f32s := make([]float32, len(t.Data)/8)
		for i := range f32s {
			f32s[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(t.Data[i*8:])))
		}
		return f32s, nil
	case TypeInt32:
		f32s := make([]float32, len(t.Data)/4)
		for i := range f32s {
			f32s[i] = float32(int32(binary.LittleEndian.Uint32(t.Data[i*4:])))
		}
		return f32s, nil
	case TypeInt64:
		f32s := make([]float32, len(t.Data)/8)
		for i := range f32s {
			f32s[i] = float32(int64(binary.LittleEndian.Uint64(t.Data[i*8:])))
		}
		return f32s, nil
	default:
		return nil, fmt.Errorf("cannot decode %s tensor %q to float32", t.Type, t.Name)
	}
}

// Int64s decodes an int64 payload, used for shape-carrying initializers
// such as Reshape targets.
func (t *Tensor) Int64s() ([]int64, error) {
	if t.Type != TypeInt64 {
		return nil, fmt.Errorf("tensor %q is %s, not int64", t.Name, t.Type)
	}
	i64s := make([]int64, len(t.Data)/8)
	for i := range i64s {
		i64s[i] = int64(binary.LittleEndian.Uint64(t.Data[i*8:]))
	}
	return i64s, nil
}

// TensorFromFloat32s builds a float32 initializer from values.
func TensorFromFloat32s(name string, dims []int64, values []float32) Tensor {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return Tensor{Name: name, Type: TypeFloat, Dims: append([]int64(nil), dims...), Data: data}
}

// TensorFromInt64s builds an int64 initializer from values.
func TensorFromInt64s(name string, dims []int64, values []int64) Tensor {
	data := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	}
	return Tensor{Name: name, Type: TypeInt64, Dims: append([]int64(nil), dims...), Data: data}
}
