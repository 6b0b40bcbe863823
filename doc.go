// Package tensorgo implements a batched, memory-mapped batch store for
// training-data pipelines.
//
// A dataset is materialized once: a parallel population pipeline pulls raw
// records from an arbitrary source, applies the caller's deterministic
// preprocessing, and writes the result into one contiguous, memory-mapped
// file per schema field. Mini-batches are then served by gathering
// arbitrary index subsets straight out of the mapping, avoiding the
// per-epoch decode cost of reading raw files.
//
// Typical usage:
//
//	schema := tensorgo.Schema{
//	    {Name: "images", DType: tensor.Uint8, Shape: tensor.Shape{3, 256, 256}},
//	    {Name: "targets", DType: tensor.Int64},
//	}
//
//	store, err := tensorgo.Allocate("data/train", schema, src.Len())
//	if err != nil { ... }
//	defer store.Close()
//
//	if err := store.Populate(ctx, src, tensorgo.WithWorkers(8)); err != nil { ... }
//
//	collator := &tensorgo.Collator{
//	    Device:          device.CPU,
//	    Transform:       normalize,
//	    TransformFields: []string{"images"},
//	}
//	batch, err := collator.Collate(ctx, store, indices)
//
// A store moves through three states: Allocated, Populating and Sealed.
// Reads are rejected until the store is sealed; once sealed the mapped
// files are immutable and safe for arbitrarily many concurrent readers.
package tensorgo
