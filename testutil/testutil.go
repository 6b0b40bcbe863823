package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/tensorgo/tensor"
)

// RNG encapsulates a seeded random number generator.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63 returns a non-negative pseudo-random int64.
func (r *RNG) Int63() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63()
}

// FillBytes fills dst with pseudo-random bytes.
// Locks only once per call (preferred over calling Intn in a loop).
func (r *RNG) FillBytes(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Read(dst) //nolint:errcheck // rand.Read never fails
}

// Indices returns n pseudo-random record indices in [0, count).
func (r *RNG) Indices(n, count int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, n)
	for i := range out {
		out[i] = r.rand.Intn(count)
	}
	return out
}

// RandomTensor generates a tensor of n records filled with random bytes.
func (r *RNG) RandomTensor(dtype tensor.DType, shape tensor.Shape, n int) *tensor.Tensor {
	t := tensor.New(dtype, shape, n)
	r.FillBytes(t.Bytes())
	return t
}

// NumberedTensor generates a tensor of n records where every element of
// record i holds the value start+i (truncated to the element type). This
// makes per-record provenance checkable after gathers and shuffles.
func NumberedTensor(dtype tensor.DType, shape tensor.Shape, start, n int) *tensor.Tensor {
	t := tensor.New(dtype, shape, n)
	elems := shape.Elems()

	for i := 0; i < n; i++ {
		v := start + i
		switch dtype {
		case tensor.Uint8:
			row := t.Uint8s()[i*elems : (i+1)*elems]
			for j := range row {
				row[j] = uint8(v)
			}
		case tensor.Int32:
			row := t.Int32s()[i*elems : (i+1)*elems]
			for j := range row {
				row[j] = int32(v)
			}
		case tensor.Int64:
			row := t.Int64s()[i*elems : (i+1)*elems]
			for j := range row {
				row[j] = int64(v)
			}
		case tensor.Float32:
			row := t.Float32s()[i*elems : (i+1)*elems]
			for j := range row {
				row[j] = float32(v)
			}
		case tensor.Float64:
			row := t.Float64s()[i*elems : (i+1)*elems]
			for j := range row {
				row[j] = float64(v)
			}
		}
	}
	return t
}
