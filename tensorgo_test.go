package tensorgo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tensorgo/internal/fs"
	"github.com/hupe1980/tensorgo/manifest"
	"github.com/hupe1980/tensorgo/tensor"
	"github.com/hupe1980/tensorgo/testutil"
)

func testSchema() Schema {
	return Schema{
		{Name: "images", DType: tensor.Uint8, Shape: tensor.Shape{3, 4, 4}},
		{Name: "targets", DType: tensor.Int64},
	}
}

// numberedSource produces batches where every element of record i holds the
// value i, so any record's provenance is checkable after gathers.
func numberedSource(schema Schema, n int) FuncSource {
	return FuncSource{
		N: n,
		Fn: func(_ context.Context, start, count int) (*Batch, error) {
			fields := make(map[string]*tensor.Tensor, len(schema))
			order := make([]string, 0, len(schema))
			for _, f := range schema {
				fields[f.Name] = testutil.NumberedTensor(f.DType, f.Shape, start, count)
				order = append(order, f.Name)
			}
			return NewBatchOf(fields, order)
		},
	}
}

func newSealedStore(t *testing.T, schema Schema, count int, optFns ...PopulateOption) *Store {
	t.Helper()

	store, err := Allocate(t.TempDir(), schema, count)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Populate(context.Background(), numberedSource(schema, count), optFns...))
	return store
}

func TestAllocateLifecycle(t *testing.T) {
	schema := testSchema()
	store, err := Allocate(t.TempDir(), schema, 10)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 10, store.Len())
	assert.True(t, schema.Equal(store.Schema()))
	assert.Equal(t, manifest.StateAllocated, store.State())

	// Reads are rejected until the store is sealed.
	_, err = store.Get([]int{0})
	var incomplete *ErrIncompleteStore
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, manifest.StateAllocated, incomplete.State)

	// Manual writes are valid before sealing.
	src := numberedSource(schema, 10)
	for start := 0; start < 10; start += 5 {
		b, err := src.ReadBatch(context.Background(), start, 5)
		require.NoError(t, err)
		require.NoError(t, store.Set(start, b))
	}

	require.NoError(t, store.Seal())
	assert.Equal(t, manifest.StateSealed, store.State())

	b, err := store.Get([]int{2, 9})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 9}, b.Field("targets").Int64s())

	// Sealing again is a no-op, writing is not.
	require.NoError(t, store.Seal())
	b5, err := src.ReadBatch(context.Background(), 0, 5)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Set(0, b5), ErrStoreSealed)
}

func TestAllocateValidation(t *testing.T) {
	var mismatch *ErrSchemaMismatch

	_, err := Allocate(t.TempDir(), Schema{}, 10)
	require.ErrorAs(t, err, &mismatch)

	_, err = Allocate(t.TempDir(), testSchema(), -1)
	require.ErrorAs(t, err, &mismatch)
}

func TestAllocateDiskFault(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)
	faulty.AddRule("images.tgf", fs.Fault{FailTruncate: true, FailAfterBytes: -1})

	_, err := Allocate(t.TempDir(), testSchema(), 1<<20, WithFS(faulty))
	var alloc *ErrStorageAllocation
	require.ErrorAs(t, err, &alloc)
	assert.Contains(t, alloc.Path, "images.tgf")
}

func TestPopulateAndGather(t *testing.T) {
	schema := testSchema()
	store := newSealedStore(t, schema, 10, WithBatchSize(4), WithWorkers(2))

	b, err := store.Get([]int{3, 7})
	require.NoError(t, err)
	require.Equal(t, 2, b.Len())

	images := b.Field("images")
	require.NotNil(t, images)
	assert.Equal(t, tensor.Shape{3, 4, 4}, images.Shape())
	for _, v := range images.Row(0) {
		assert.Equal(t, byte(3), v)
	}
	for _, v := range images.Row(1) {
		assert.Equal(t, byte(7), v)
	}

	assert.Equal(t, []int64{3, 7}, b.Field("targets").Int64s())
}

func TestGetBoundary(t *testing.T) {
	store := newSealedStore(t, testSchema(), 10)

	b, err := store.Get(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())

	var oor *ErrIndexOutOfRange
	_, err = store.Get([]int{10})
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 10, oor.Index)
	assert.Equal(t, 10, oor.Count)

	_, err = store.Get([]int{-1})
	require.ErrorAs(t, err, &oor)

	// Duplicate and unsorted indices are legal and produce duplicate rows.
	b, err = store.Get([]int{7, 2, 7})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 2, 7}, b.Field("targets").Int64s())
}

func TestGetRange(t *testing.T) {
	store := newSealedStore(t, testSchema(), 10)

	b, err := store.GetRange(4, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6}, b.Field("targets").Int64s())

	_, err = store.GetRange(8, 3)
	var oor *ErrIndexOutOfRange
	require.ErrorAs(t, err, &oor)
}

func TestReadIdempotence(t *testing.T) {
	store := newSealedStore(t, testSchema(), 10)
	indices := []int{1, 4, 4, 9}

	b1, err := store.Get(indices)
	require.NoError(t, err)
	b2, err := store.Get(indices)
	require.NoError(t, err)
	assert.Equal(t, b1.Field("images").Bytes(), b2.Field("images").Bytes())

	// Mutating a returned batch must not leak into the store.
	for i := range b1.Field("images").Bytes() {
		b1.Field("images").Bytes()[i] = 0xFF
	}
	b3, err := store.Get(indices)
	require.NoError(t, err)
	assert.Equal(t, b2.Field("images").Bytes(), b3.Field("images").Bytes())
}

// Store contents must be a pure function of source order and batch size,
// independent of worker count and completion timing.
func TestPopulateOrderIndependence(t *testing.T) {
	schema := testSchema()
	const count = 37

	rng := testutil.NewRNG(1)
	jittered := FuncSource{
		N: count,
		Fn: func(ctx context.Context, start, n int) (*Batch, error) {
			time.Sleep(time.Duration(rng.Intn(3)) * time.Millisecond)
			return numberedSource(schema, count).ReadBatch(ctx, start, n)
		},
	}

	serial, err := Allocate(t.TempDir(), schema, count)
	require.NoError(t, err)
	defer serial.Close()
	require.NoError(t, serial.Populate(context.Background(), numberedSource(schema, count), WithBatchSize(5), WithWorkers(1)))

	parallel, err := Allocate(t.TempDir(), schema, count)
	require.NoError(t, err)
	defer parallel.Close()
	require.NoError(t, parallel.Populate(context.Background(), jittered, WithBatchSize(5), WithWorkers(8)))

	want, err := serial.GetRange(0, count)
	require.NoError(t, err)
	got, err := parallel.GetRange(0, count)
	require.NoError(t, err)

	for _, name := range want.Names() {
		assert.Equal(t, want.Field(name).Bytes(), got.Field(name).Bytes(), name)
	}
}

func TestPopulateSourceFailure(t *testing.T) {
	schema := testSchema()
	store, err := Allocate(t.TempDir(), schema, 10)
	require.NoError(t, err)
	defer store.Close()

	boom := errors.New("decode failed")
	src := FuncSource{
		N: 10,
		Fn: func(ctx context.Context, start, count int) (*Batch, error) {
			if start >= 4 {
				return nil, boom
			}
			return numberedSource(schema, 10).ReadBatch(ctx, start, count)
		},
	}

	err = store.Populate(context.Background(), src, WithBatchSize(2), WithWorkers(1))
	var prod *ErrRecordProduction
	require.ErrorAs(t, err, &prod)
	assert.Equal(t, 4, prod.Start)
	assert.Equal(t, 2, prod.Count)
	assert.ErrorIs(t, err, boom)

	// The aborted store must refuse reads, here and after reopening.
	assert.Equal(t, manifest.StatePopulating, store.State())
	_, err = store.Get([]int{0})
	var incomplete *ErrIncompleteStore
	require.ErrorAs(t, err, &incomplete)

	require.NoError(t, store.Close())

	reopened, err := Open(store.Dir(), nil)
	require.NoError(t, err)
	defer reopened.Close()
	_, err = reopened.Get([]int{0})
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, manifest.StatePopulating, incomplete.State)
}

func TestPopulateShortBatch(t *testing.T) {
	schema := testSchema()
	store, err := Allocate(t.TempDir(), schema, 10)
	require.NoError(t, err)
	defer store.Close()

	src := FuncSource{
		N: 10,
		Fn: func(ctx context.Context, start, count int) (*Batch, error) {
			return numberedSource(schema, 10).ReadBatch(ctx, start, count-1)
		},
	}

	err = store.Populate(context.Background(), src, WithBatchSize(5))
	var prod *ErrRecordProduction
	require.ErrorAs(t, err, &prod)
}

func TestPopulateCountMismatch(t *testing.T) {
	schema := testSchema()
	store, err := Allocate(t.TempDir(), schema, 10)
	require.NoError(t, err)
	defer store.Close()

	err = store.Populate(context.Background(), numberedSource(schema, 7))
	var mismatch *ErrSchemaMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, manifest.StateAllocated, store.State())
}

func TestPopulateContextCancel(t *testing.T) {
	schema := testSchema()
	store, err := Allocate(t.TempDir(), schema, 1000)
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	src := FuncSource{
		N: 1000,
		Fn: func(ctx context.Context, start, count int) (*Batch, error) {
			cancel()
			return numberedSource(schema, 1000).ReadBatch(ctx, start, count)
		},
	}

	err = store.Populate(ctx, src, WithBatchSize(10), WithWorkers(2))
	require.Error(t, err)
	assert.NotEqual(t, manifest.StateSealed, store.State())
}

func TestOpenSealedStore(t *testing.T) {
	schema := testSchema()
	store := newSealedStore(t, schema, 10)
	require.NoError(t, store.Close())

	// Schema derived from the manifest.
	reopened, err := Open(store.Dir(), nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, schema.Equal(reopened.Schema()))
	assert.Equal(t, manifest.StateSealed, reopened.State())

	b, err := reopened.Get([]int{0, 9})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 9}, b.Field("targets").Int64s())

	// An explicitly supplied schema must agree with the manifest.
	_, err = Open(store.Dir(), schema)
	require.NoError(t, err)

	wrong := schema.Clone()
	wrong[1].DType = tensor.Int32
	_, err = Open(store.Dir(), wrong)
	var mismatch *ErrSchemaMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestFieldReader(t *testing.T) {
	store := newSealedStore(t, testSchema(), 10)

	fr, err := store.Field("targets")
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, fr.DType())
	assert.Equal(t, 10, fr.Len())

	got, err := fr.Gather([]int{9, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 0}, got.Int64s())

	_, err = store.Field("missing")
	var mismatch *ErrSchemaMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestClosedStore(t *testing.T) {
	store := newSealedStore(t, testSchema(), 4)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.Get([]int{0})
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Seal(), ErrStoreClosed)
}

func TestStoreMetrics(t *testing.T) {
	schema := testSchema()
	collector := &BasicMetricsCollector{}

	store, err := Allocate(t.TempDir(), schema, 10, WithMetricsCollector(collector))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Populate(context.Background(), numberedSource(schema, 10), WithBatchSize(4)))

	_, err = store.Get([]int{1, 2})
	require.NoError(t, err)

	assert.Equal(t, int64(3), collector.PopulateBatches.Load())
	assert.Equal(t, int64(10), collector.PopulateRecords.Load())
	assert.Equal(t, int64(1), collector.SealCount.Load())
	assert.Equal(t, int64(2), collector.GetRecords.Load())
	assert.Equal(t, int64(0), collector.GetErrors.Load())
}

func BenchmarkGet(b *testing.B) {
	schema := Schema{
		{Name: "images", DType: tensor.Uint8, Shape: tensor.Shape{3, 32, 32}},
		{Name: "targets", DType: tensor.Int64},
	}
	const count = 4096

	store, err := Allocate(b.TempDir(), schema, count)
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	if err := store.Populate(context.Background(), numberedSource(schema, count)); err != nil {
		b.Fatal(err)
	}

	rng := testutil.NewRNG(42)
	indices := rng.Indices(64, count)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Get(indices); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetRange(b *testing.B) {
	schema := Schema{
		{Name: "images", DType: tensor.Uint8, Shape: tensor.Shape{3, 32, 32}},
		{Name: "targets", DType: tensor.Int64},
	}
	const count = 4096

	store, err := Allocate(b.TempDir(), schema, count)
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	if err := store.Populate(context.Background(), numberedSource(schema, count)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.GetRange((i*64)%(count-64), 64); err != nil {
			b.Fatal(err)
		}
	}
}
