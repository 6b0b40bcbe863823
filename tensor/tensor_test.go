package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDTypeSize(t *testing.T) {
	tests := []struct {
		dtype DType
		size  int
		str   string
	}{
		{Uint8, 1, "uint8"},
		{Int32, 4, "int32"},
		{Int64, 8, "int64"},
		{Float32, 4, "float32"},
		{Float64, 8, "float64"},
		{DTypeInvalid, 0, "invalid"},
		{DType(99), 0, "invalid"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.size, tt.dtype.Size())
		assert.Equal(t, tt.str, tt.dtype.String())
		assert.Equal(t, tt.size > 0, tt.dtype.Valid())
	}
}

func TestShape(t *testing.T) {
	assert.Equal(t, 1, Shape(nil).Elems())
	assert.Equal(t, 12, Shape{3, 4}.Elems())
	assert.True(t, Shape{3, 4}.Equal(Shape{3, 4}))
	assert.False(t, Shape{3, 4}.Equal(Shape{4, 3}))
	assert.False(t, Shape{3}.Equal(Shape{3, 1}))
	assert.True(t, Shape{1, 2}.Valid())
	assert.False(t, Shape{0, 2}.Valid())
	assert.Equal(t, "[3 4]", Shape{3, 4}.String())

	s := Shape{2, 2}
	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 2, s[0])
}

func TestTensorNew(t *testing.T) {
	tn := New(Uint8, Shape{3, 4, 4}, 10)
	assert.Equal(t, 10, tn.Len())
	assert.Equal(t, 48, tn.RecordSize())
	assert.Len(t, tn.Bytes(), 480)
}

func TestTensorFromBytes(t *testing.T) {
	_, err := FromBytes(Int64, nil, 4, make([]byte, 32))
	require.NoError(t, err)

	_, err = FromBytes(Int64, nil, 4, make([]byte, 31))
	require.Error(t, err)
}

func TestTensorTypedViews(t *testing.T) {
	tn := New(Int64, nil, 4)
	v := tn.Int64s()
	require.Len(t, v, 4)
	v[2] = 42

	// The view aliases the backing buffer.
	assert.Equal(t, int64(42), tn.Int64s()[2])
	assert.Nil(t, tn.Float32s())
	assert.Nil(t, tn.Uint8s())
}

func TestTensorRowAndSlice(t *testing.T) {
	tn := New(Uint8, Shape{2}, 5)
	for i := 0; i < 5; i++ {
		row := tn.Row(i)
		row[0] = byte(i)
		row[1] = byte(i * 10)
	}

	sl, err := tn.Slice(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sl.Len())
	assert.Equal(t, []byte{2, 20, 3, 30}, sl.Bytes())

	// Slice is a view: mutations show through.
	sl.Bytes()[0] = 99
	assert.Equal(t, byte(99), tn.Row(2)[0])

	_, err = tn.Slice(4, 2)
	require.Error(t, err)
	_, err = tn.Slice(-1, 1)
	require.Error(t, err)
}

func TestTensorClone(t *testing.T) {
	tn := New(Float32, Shape{2}, 2)
	tn.Float32s()[0] = 1.5

	c := tn.Clone()
	c.Float32s()[0] = 7

	assert.Equal(t, float32(1.5), tn.Float32s()[0])
	assert.True(t, tn.Equal(tn.Clone()))
	assert.False(t, tn.Equal(c))
}
