package tensorgo

import (
	"fmt"
	"strings"

	"github.com/hupe1980/tensorgo/tensor"
)

// Field describes one schema field: its name, element type and fixed
// per-record shape.
type Field struct {
	Name  string
	DType tensor.DType
	Shape tensor.Shape
}

// Schema is the ordered field layout of a batch store. It is fixed at
// allocation time and never changes afterwards.
type Schema []Field

// Validate checks that the schema is non-empty, field names are unique and
// filesystem-safe, and every dtype and shape is well formed.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return &ErrSchemaMismatch{Reason: "schema has no fields"}
	}

	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if f.Name == "" {
			return &ErrSchemaMismatch{Reason: "empty field name"}
		}
		if strings.ContainsAny(f.Name, `/\`) {
			return &ErrSchemaMismatch{Field: f.Name, Reason: "field name contains a path separator"}
		}
		if _, ok := seen[f.Name]; ok {
			return &ErrSchemaMismatch{Field: f.Name, Reason: "duplicate field name"}
		}
		seen[f.Name] = struct{}{}

		if !f.DType.Valid() {
			return &ErrSchemaMismatch{Field: f.Name, Reason: "invalid dtype"}
		}
		if !f.Shape.Valid() {
			return &ErrSchemaMismatch{Field: f.Name, Reason: fmt.Sprintf("invalid shape %s", f.Shape)}
		}
	}
	return nil
}

// Field returns the schema field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Equal reports whether two schemas have identical fields in identical order.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i].Name != o[i].Name || s[i].DType != o[i].DType || !s[i].Shape.Equal(o[i].Shape) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for i, f := range s {
		out[i] = Field{Name: f.Name, DType: f.DType, Shape: f.Shape.Clone()}
	}
	return out
}

// RecordSize returns the total size of one record across all fields in bytes.
func (s Schema) RecordSize() int {
	total := 0
	for _, f := range s {
		total += f.Shape.Elems() * f.DType.Size()
	}
	return total
}
