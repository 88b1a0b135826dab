package chunk

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is one example's array: its shape (without the example axis),
// element type and a private little-endian copy of its bytes.
type Tensor struct {
	shape []int
	dtype DType
	data  []byte
}

// NewTensor builds a tensor over a copy of data.
func NewTensor(shape []int, dtype DType, data []byte) (Tensor, error) {
	n, ok := product(shape)
	if !ok || dtype.Size() == 0 || n*dtype.Size() != len(data) {
		return Tensor{}, fmt.Errorf("tensor: %d bytes do not hold %v %s", len(data), shape, dtype)
	}
	return Tensor{
		shape: append([]int(nil), shape...),
		dtype: dtype,
		data:  append([]byte(nil), data...),
	}, nil
}

// Shape returns the tensor's axis extents. A scalar has an empty shape.
func (t Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// DType returns the element type.
func (t Tensor) DType() DType {
	return t.dtype
}

// Len returns the number of elements.
func (t Tensor) Len() int {
	if t.dtype.Size() == 0 {
		return 0
	}
	return len(t.data) / t.dtype.Size()
}

// Bytes returns a copy of the raw little-endian element bytes.
func (t Tensor) Bytes() []byte {
	return append([]byte(nil), t.data...)
}

// Value returns element i in flat row-major order, converted to float32.
func (t Tensor) Value(i int) float32 {
	switch t.dtype {
	case Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(t.data[4*i:]))
	case Int16:
		return float32(int16(binary.LittleEndian.Uint16(t.data[2*i:])))
	case Int8:
		return float32(int8(t.data[i]))
	default:
		panic(fmt.Sprintf("tensor: unsupported %s", t.dtype))
	}
}

// At returns the element at the given multi-dimensional index.
func (t Tensor) At(idx ...int) (float32, error) {
	if len(idx) != len(t.shape) {
		return 0, fmt.Errorf("tensor: %d indices for %d axes", len(idx), len(t.shape))
	}
	flat := 0
	for axis, i := range idx {
		if i < 0 || i >= t.shape[axis] {
			return 0, &IndexError{Index: i, Len: t.shape[axis]}
		}
		flat = flat*t.shape[axis] + i
	}
	return t.Value(flat), nil
}

// Float32s converts every element to float32.
func (t Tensor) Float32s() []float32 {
	out := make([]float32, t.Len())
	for i := range out {
		out[i] = t.Value(i)
	}
	return out
}

// Int8s returns the elements of an int8 tensor.
func (t Tensor) Int8s() ([]int8, error) {
	if t.dtype != Int8 {
		return nil, fmt.Errorf("tensor: %s is not int8", t.dtype)
	}
	out := make([]int8, len(t.data))
	for i, b := range t.data {
		out[i] = int8(b)
	}
	return out, nil
}

// Int16s returns the elements of an int16 tensor.
func (t Tensor) Int16s() ([]int16, error) {
	if t.dtype != Int16 {
		return nil, fmt.Errorf("tensor: %s is not int16", t.dtype)
	}
	out := make([]int16, t.Len())
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(t.data[2*i:]))
	}
	return out, nil
}

// Sum returns the sum of all elements.
func (t Tensor) Sum() float64 {
	var s float64
	for i, n := 0, t.Len(); i < n; i++ {
		s += float64(t.Value(i))
	}
	return s
}

// Row is one training example.
type Row struct {
	State       Tensor
	Reward      float32
	VisitCounts Tensor
}
