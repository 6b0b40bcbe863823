package tensor

import (
	"fmt"
	"unsafe"
)

// Tensor is a flat, row-major typed buffer holding n records of a fixed
// per-record shape. The record index is the outermost dimension:
// record i occupies data[i*recordSize : (i+1)*recordSize].
//
// A Tensor may alias externally owned memory (e.g. a memory mapping); use
// Clone to realize an independent copy before mutating or retaining it.
type Tensor struct {
	dtype DType
	shape Shape
	n     int
	data  []byte
}

// New returns a zero-initialized tensor of n records.
func New(dtype DType, shape Shape, n int) *Tensor {
	return &Tensor{
		dtype: dtype,
		shape: shape.Clone(),
		n:     n,
		data:  make([]byte, n*shape.Elems()*dtype.Size()),
	}
}

// FromBytes wraps data without copying. The caller asserts that data holds
// exactly n records of the given dtype and shape.
func FromBytes(dtype DType, shape Shape, n int, data []byte) (*Tensor, error) {
	want := n * shape.Elems() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("tensor: data length %d, want %d (%d records of %s%s)",
			len(data), want, n, dtype, shape)
	}
	return &Tensor{dtype: dtype, shape: shape.Clone(), n: n, data: data}, nil
}

// DType returns the element type.
func (t *Tensor) DType() DType { return t.dtype }

// Shape returns the per-record shape. The returned slice must not be modified.
func (t *Tensor) Shape() Shape { return t.shape }

// Len returns the number of records (the leading dimension).
func (t *Tensor) Len() int { return t.n }

// RecordSize returns the size of one record in bytes.
func (t *Tensor) RecordSize() int { return t.shape.Elems() * t.dtype.Size() }

// Bytes returns the backing buffer. It may alias mapped memory.
func (t *Tensor) Bytes() []byte { return t.data }

// Row returns the byte view of record i. It aliases the backing buffer.
func (t *Tensor) Row(i int) []byte {
	rs := t.RecordSize()
	return t.data[i*rs : (i+1)*rs : (i+1)*rs]
}

// Clone returns a deep copy backed by freshly allocated memory.
func (t *Tensor) Clone() *Tensor {
	data := make([]byte, len(t.data))
	copy(data, t.data)
	return &Tensor{dtype: t.dtype, shape: t.shape.Clone(), n: t.n, data: data}
}

// Slice returns a zero-copy view of records [start, start+n).
func (t *Tensor) Slice(start, n int) (*Tensor, error) {
	if start < 0 || n < 0 || start+n > t.n {
		return nil, fmt.Errorf("tensor: slice [%d:%d) out of range [0:%d)", start, start+n, t.n)
	}
	rs := t.RecordSize()
	return &Tensor{
		dtype: t.dtype,
		shape: t.shape.Clone(),
		n:     n,
		data:  t.data[start*rs : (start+n)*rs : (start+n)*rs],
	}, nil
}

// Uint8s returns the buffer as []uint8, or nil if the dtype differs.
func (t *Tensor) Uint8s() []uint8 {
	if t.dtype != Uint8 {
		return nil
	}
	return t.data
}

// Int32s returns the buffer as []int32, or nil if the dtype differs.
func (t *Tensor) Int32s() []int32 {
	if t.dtype != Int32 || len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&t.data[0])), len(t.data)/4)
}

// Int64s returns the buffer as []int64, or nil if the dtype differs.
func (t *Tensor) Int64s() []int64 {
	if t.dtype != Int64 || len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&t.data[0])), len(t.data)/8)
}

// Float32s returns the buffer as []float32, or nil if the dtype differs.
func (t *Tensor) Float32s() []float32 {
	if t.dtype != Float32 || len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), len(t.data)/4)
}

// Float64s returns the buffer as []float64, or nil if the dtype differs.
func (t *Tensor) Float64s() []float64 {
	if t.dtype != Float64 || len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&t.data[0])), len(t.data)/8)
}

// Equal reports whether t and o have the same dtype, shape, length and content.
func (t *Tensor) Equal(o *Tensor) bool {
	if t.dtype != o.dtype || t.n != o.n || !t.shape.Equal(o.shape) {
		return false
	}
	if len(t.data) != len(o.data) {
		return false
	}
	for i := range t.data {
		if t.data[i] != o.data[i] {
			return false
		}
	}
	return true
}
