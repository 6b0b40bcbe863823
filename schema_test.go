package tensorgo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tensorgo/tensor"
)

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{
			"Valid",
			Schema{
				{Name: "images", DType: tensor.Uint8, Shape: tensor.Shape{3, 4, 4}},
				{Name: "targets", DType: tensor.Int64},
			},
			false,
		},
		{"Empty", Schema{}, true},
		{"EmptyName", Schema{{Name: "", DType: tensor.Uint8}}, true},
		{"PathSeparator", Schema{{Name: "a/b", DType: tensor.Uint8}}, true},
		{
			"Duplicate",
			Schema{
				{Name: "x", DType: tensor.Uint8},
				{Name: "x", DType: tensor.Int64},
			},
			true,
		},
		{"InvalidDType", Schema{{Name: "x"}}, true},
		{"InvalidShape", Schema{{Name: "x", DType: tensor.Uint8, Shape: tensor.Shape{0}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr {
				var mismatch *ErrSchemaMismatch
				require.ErrorAs(t, err, &mismatch)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSchemaLookupAndEqual(t *testing.T) {
	s := Schema{
		{Name: "images", DType: tensor.Uint8, Shape: tensor.Shape{3, 4, 4}},
		{Name: "targets", DType: tensor.Int64},
	}

	f, ok := s.Field("targets")
	require.True(t, ok)
	assert.Equal(t, tensor.Int64, f.DType)

	_, ok = s.Field("missing")
	assert.False(t, ok)

	assert.True(t, s.Equal(s.Clone()))
	assert.False(t, s.Equal(s[:1]))

	other := s.Clone()
	other[1].DType = tensor.Int32
	assert.False(t, s.Equal(other))

	// 3*4*4 uint8 + 1 int64
	assert.Equal(t, 48+8, s.RecordSize())
}
