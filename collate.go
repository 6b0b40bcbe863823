package tensorgo

import (
	"context"
	"slices"

	"github.com/hupe1980/tensorgo/device"
	"github.com/hupe1980/tensorgo/tensor"
)

// TransformFunc is a caller-supplied batched transform applied to a single
// field of a working batch, e.g. normalization, random crop or random
// flip. It must preserve the leading record dimension and must not assume
// ownership of the input beyond the call.
type TransformFunc func(ctx context.Context, t *tensor.Tensor) (*tensor.Tensor, error)

// Collator prepares working batches for consumption: it fetches an index
// set from a sealed store, optionally relocates the batch to a device and
// optionally applies a batched transform to designated fields.
//
// Fields remain index-aligned through fetch, relocate and transform: row k
// of every output field originates from the record at indices[k].
type Collator struct {
	// Device is the optional relocation target. Nil leaves the batch in
	// host memory.
	Device device.Device

	// Transform is the optional batched post-transform.
	Transform TransformFunc

	// TransformFields names the fields Transform applies to, by convention
	// the image-like data fields and never the labels. Empty means the
	// transform is skipped entirely.
	TransformFields []string
}

// Collate fetches the records at the given indices and runs the
// relocate/transform steps. The returned batch is always realized in
// ordinary (non-mapped) memory, so the caller may mutate it freely without
// corrupting the on-disk store.
func (c *Collator) Collate(ctx context.Context, store *Store, indices []int) (*Batch, error) {
	// Store.Get copies out of the mapped region.
	b, err := store.Get(indices)
	if err != nil {
		return nil, err
	}

	if c.Device != nil {
		b, err = b.Apply(func(_ string, t *tensor.Tensor) (*tensor.Tensor, error) {
			return c.Device.Transfer(t)
		})
		if err != nil {
			return nil, err
		}
	}

	if c.Transform != nil && len(c.TransformFields) > 0 {
		b, err = b.Apply(func(name string, t *tensor.Tensor) (*tensor.Tensor, error) {
			if !slices.Contains(c.TransformFields, name) {
				return t, nil
			}
			return c.Transform(ctx, t)
		})
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}
