package tensorgo

import (
	"fmt"

	"github.com/hupe1980/tensorgo/tensor"
)

// Batch is an ordered set of same-length tensors, one per schema field.
//
// The invariant maintained throughout the pipeline is index alignment:
// every field has the same leading length, and row k of every field
// originates from the same record. A Batch produced by Store.Get is
// realized in ordinary heap memory and never aliases the mapped files.
type Batch struct {
	names   []string
	tensors []*tensor.Tensor
}

// NewBatch returns a zero-initialized batch of n records laid out per the
// given schema.
func NewBatch(schema Schema, n int) *Batch {
	b := &Batch{
		names:   make([]string, len(schema)),
		tensors: make([]*tensor.Tensor, len(schema)),
	}
	for i, f := range schema {
		b.names[i] = f.Name
		b.tensors[i] = tensor.New(f.DType, f.Shape, n)
	}
	return b
}

// NewBatchOf builds a batch from explicit (name, tensor) pairs. All tensors
// must share the same leading length.
func NewBatchOf(fields map[string]*tensor.Tensor, order []string) (*Batch, error) {
	b := &Batch{
		names:   make([]string, 0, len(order)),
		tensors: make([]*tensor.Tensor, 0, len(order)),
	}

	n := -1
	for _, name := range order {
		t, ok := fields[name]
		if !ok {
			return nil, &ErrSchemaMismatch{Field: name, Reason: "missing tensor"}
		}
		if n == -1 {
			n = t.Len()
		} else if t.Len() != n {
			return nil, &ErrSchemaMismatch{
				Field:  name,
				Reason: fmt.Sprintf("leading length %d, want %d", t.Len(), n),
			}
		}
		b.names = append(b.names, name)
		b.tensors = append(b.tensors, t)
	}
	return b, nil
}

// Len returns the leading (record) length shared by all fields.
func (b *Batch) Len() int {
	if len(b.tensors) == 0 {
		return 0
	}
	return b.tensors[0].Len()
}

// Names returns the field names in schema order.
func (b *Batch) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Field returns the tensor for the named field, or nil if absent.
func (b *Batch) Field(name string) *tensor.Tensor {
	for i, n := range b.names {
		if n == name {
			return b.tensors[i]
		}
	}
	return nil
}

// SetField replaces the named field's tensor. The replacement must keep the
// batch index-aligned: its leading length must equal the batch length.
func (b *Batch) SetField(name string, t *tensor.Tensor) error {
	for i, n := range b.names {
		if n != name {
			continue
		}
		if t.Len() != b.Len() {
			return &ErrSchemaMismatch{
				Field:  name,
				Reason: fmt.Sprintf("leading length %d, want %d", t.Len(), b.Len()),
			}
		}
		b.tensors[i] = t
		return nil
	}
	return &ErrSchemaMismatch{Field: name, Reason: "no such field"}
}

// Apply maps fn over every field and returns a new batch with the results.
// Iteration is a fixed walk over the schema fields, so structural
// operations (copy, device transfer, contiguity) are enumerable rather
// than reflective. The receiver is not modified.
func (b *Batch) Apply(fn func(name string, t *tensor.Tensor) (*tensor.Tensor, error)) (*Batch, error) {
	out := &Batch{
		names:   make([]string, len(b.names)),
		tensors: make([]*tensor.Tensor, len(b.tensors)),
	}
	copy(out.names, b.names)

	n := b.Len()
	for i, t := range b.tensors {
		mapped, err := fn(b.names[i], t)
		if err != nil {
			return nil, fmt.Errorf("apply field %q: %w", b.names[i], err)
		}
		if mapped.Len() != n {
			return nil, &ErrSchemaMismatch{
				Field:  b.names[i],
				Reason: fmt.Sprintf("apply changed leading length from %d to %d", n, mapped.Len()),
			}
		}
		out.tensors[i] = mapped
	}
	return out, nil
}

// Clone returns a deep copy of the batch, realized in fresh heap memory.
func (b *Batch) Clone() *Batch {
	out, _ := b.Apply(func(_ string, t *tensor.Tensor) (*tensor.Tensor, error) {
		return t.Clone(), nil
	})
	return out
}

// Slice returns a zero-copy sub-batch of records [start, start+n) across
// every field simultaneously.
func (b *Batch) Slice(start, n int) (*Batch, error) {
	return b.Apply(func(_ string, t *tensor.Tensor) (*tensor.Tensor, error) {
		return t.Slice(start, n)
	})
}

// conforms checks the batch against the schema: same fields in the same
// order, matching dtypes and per-record shapes.
func (b *Batch) conforms(schema Schema) error {
	if len(b.names) != len(schema) {
		return &ErrSchemaMismatch{
			Reason: fmt.Sprintf("batch has %d fields, schema has %d", len(b.names), len(schema)),
		}
	}
	for i, f := range schema {
		if b.names[i] != f.Name {
			return &ErrSchemaMismatch{
				Field:  f.Name,
				Reason: fmt.Sprintf("field order mismatch: got %q", b.names[i]),
			}
		}
		t := b.tensors[i]
		if t.DType() != f.DType || !t.Shape().Equal(f.Shape) {
			return &ErrSchemaMismatch{
				Field:  f.Name,
				Reason: fmt.Sprintf("want %s%s, got %s%s", f.DType, f.Shape, t.DType(), t.Shape()),
			}
		}
	}
	return nil
}
