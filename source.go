package tensorgo

import "context"

// Source is an external record producer the population pipeline pulls
// from. It must enumerate records in a deterministic, repeatable order and
// report a finite count up front; the store's size is fixed at allocation
// and cannot grow.
type Source interface {
	// Len returns the total number of records the source will produce.
	Len() int

	// ReadBatch produces the records [start, start+count) as a batch whose
	// fields match the store schema. Batches for disjoint ranges may be
	// requested concurrently.
	ReadBatch(ctx context.Context, start, count int) (*Batch, error)
}

// FuncSource adapts a closure to the Source interface.
type FuncSource struct {
	N  int
	Fn func(ctx context.Context, start, count int) (*Batch, error)
}

func (s FuncSource) Len() int { return s.N }

func (s FuncSource) ReadBatch(ctx context.Context, start, count int) (*Batch, error) {
	return s.Fn(ctx, start, count)
}
