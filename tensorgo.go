package tensorgo

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/tensorgo/fieldstore"
	"github.com/hupe1980/tensorgo/manifest"
	"github.com/hupe1980/tensorgo/tensor"
)

// fieldFileExt is the extension of per-field data files inside a store
// directory.
const fieldFileExt = ".tgf"

// FieldReader is the per-field read surface of a sealed store.
type FieldReader interface {
	DType() tensor.DType
	Shape() tensor.Shape
	Len() int
	ReadRange(start, n int) (*tensor.Tensor, error)
	Gather(indices []int) (*tensor.Tensor, error)
}

// Store is a batch store: one memory-mapped field file per schema field,
// all sharing the same record-count dimension.
//
// Lifecycle: Allocated -> Populating -> Sealed. Reads are rejected until
// the store is sealed; writes are rejected afterwards. A sealed store is
// safe for arbitrarily many concurrent readers.
type Store struct {
	dir    string
	schema Schema
	count  int
	opts   options

	fields []*fieldstore.Store
	mstore *manifest.Store

	mu     sync.RWMutex
	state  manifest.State
	closed bool
}

// Allocate creates a store directory with one field file per schema field,
// each allocated to its full final size for count records, and commits a
// manifest in state Allocated.
func Allocate(dir string, schema Schema, count int, optFns ...Option) (*Store, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, &ErrSchemaMismatch{Reason: fmt.Sprintf("negative record count %d", count)}
	}

	if err := o.fs.MkdirAll(dir, 0o755); err != nil {
		err = &ErrStorageAllocation{Path: dir, cause: err}
		o.logger.LogAllocate(context.Background(), dir, count, len(schema), err)
		return nil, err
	}

	fields := make([]*fieldstore.Store, 0, len(schema))
	cleanup := func() {
		for _, f := range fields {
			_ = f.Close()
		}
	}

	infos := make([]manifest.FieldInfo, 0, len(schema))
	for _, f := range schema {
		name := f.Name + fieldFileExt
		fstore, err := fieldstore.Create(o.fs, filepath.Join(dir, name), f.DType, f.Shape, count)
		if err != nil {
			cleanup()
			err = &ErrStorageAllocation{Path: filepath.Join(dir, name), cause: err}
			o.logger.LogAllocate(context.Background(), dir, count, len(schema), err)
			return nil, err
		}
		fields = append(fields, fstore)
		infos = append(infos, manifest.FieldInfo{
			Name:  f.Name,
			DType: f.DType.String(),
			Shape: f.Shape,
			Path:  name,
		})
	}

	mstore := manifest.NewStore(o.fs, dir)
	if err := mstore.Commit(&manifest.Manifest{
		State:       manifest.StateAllocated,
		RecordCount: count,
		Fields:      infos,
	}); err != nil {
		cleanup()
		err = &ErrStorageAllocation{Path: dir, cause: err}
		o.logger.LogAllocate(context.Background(), dir, count, len(schema), err)
		return nil, err
	}

	o.logger.LogAllocate(context.Background(), dir, count, len(schema), nil)

	return &Store{
		dir:    dir,
		schema: schema.Clone(),
		count:  count,
		opts:   o,
		fields: fields,
		mstore: mstore,
		state:  manifest.StateAllocated,
	}, nil
}

// Open reopens an existing store directory. The manifest is authoritative
// for the schema, record count and lifecycle state; every field file's
// header is additionally validated before mapping.
//
// If schema is non-nil it must agree with the manifest; pass nil to derive
// the schema from disk.
func Open(dir string, schema Schema, optFns ...Option) (*Store, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	mstore := manifest.NewStore(o.fs, dir)
	m, err := mstore.Load()
	if err != nil {
		return nil, err
	}

	diskSchema := make(Schema, 0, len(m.Fields))
	for _, fi := range m.Fields {
		dtype, shape, err := fi.Tensor()
		if err != nil {
			return nil, &ErrSchemaMismatch{Field: fi.Name, Reason: err.Error(), cause: err}
		}
		diskSchema = append(diskSchema, Field{Name: fi.Name, DType: dtype, Shape: shape})
	}

	if schema != nil && !schema.Equal(diskSchema) {
		return nil, &ErrSchemaMismatch{Reason: "supplied schema disagrees with the store manifest"}
	}

	writable := m.State != manifest.StateSealed

	fields := make([]*fieldstore.Store, 0, len(diskSchema))
	for i, f := range diskSchema {
		fstore, err := fieldstore.Open(o.fs, filepath.Join(dir, m.Fields[i].Path), f.DType, f.Shape, m.RecordCount, writable)
		if err != nil {
			for _, open := range fields {
				_ = open.Close()
			}
			return nil, translateError(f.Name, err)
		}
		fields = append(fields, fstore)
	}

	return &Store{
		dir:    dir,
		schema: diskSchema,
		count:  m.RecordCount,
		opts:   o,
		fields: fields,
		mstore: mstore,
		state:  m.State,
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Len returns the record count.
func (s *Store) Len() int { return s.count }

// Schema returns a copy of the store schema.
func (s *Store) Schema() Schema { return s.schema.Clone() }

// State returns the current lifecycle state.
func (s *Store) State() manifest.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) checkReadable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.state != manifest.StateSealed {
		return &ErrIncompleteStore{State: s.state}
	}
	return nil
}

func (s *Store) checkWritable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.state == manifest.StateSealed {
		return ErrStoreSealed
	}
	return nil
}

// Field returns the read surface of a single field. It is available only
// once the store is sealed.
func (s *Store) Field(name string) (FieldReader, error) {
	if err := s.checkReadable(); err != nil {
		return nil, err
	}
	for i, f := range s.schema {
		if f.Name == name {
			return s.fields[i], nil
		}
	}
	return nil, &ErrSchemaMismatch{Field: name, Reason: "no such field"}
}

// Get gathers the records at the given indices across every field and
// returns them as an index-aligned working batch realized in ordinary heap
// memory. Indices may be unsorted and may repeat; an empty index list
// yields an empty batch.
func (s *Store) Get(indices []int) (*Batch, error) {
	start := time.Now()
	b, err := s.get(indices)
	s.opts.metricsCollector.RecordGet(len(indices), time.Since(start), err)
	s.opts.logger.LogGet(context.Background(), len(indices), err)
	return b, err
}

func (s *Store) get(indices []int) (*Batch, error) {
	if err := s.checkReadable(); err != nil {
		return nil, err
	}

	b := &Batch{
		names:   make([]string, len(s.schema)),
		tensors: make([]*tensor.Tensor, len(s.schema)),
	}
	for i, f := range s.schema {
		t, err := s.fields[i].Gather(indices)
		if err != nil {
			return nil, translateError(f.Name, err)
		}
		b.names[i] = f.Name
		b.tensors[i] = t
	}
	return b, nil
}

// GetRange reads the contiguous records [start, start+n). It avoids the
// per-index gather and is the fast path for sequential iteration.
func (s *Store) GetRange(startIdx, n int) (*Batch, error) {
	start := time.Now()
	b, err := s.getRange(startIdx, n)
	s.opts.metricsCollector.RecordGet(n, time.Since(start), err)
	return b, err
}

func (s *Store) getRange(start, n int) (*Batch, error) {
	if err := s.checkReadable(); err != nil {
		return nil, err
	}

	b := &Batch{
		names:   make([]string, len(s.schema)),
		tensors: make([]*tensor.Tensor, len(s.schema)),
	}
	for i, f := range s.schema {
		t, err := s.fields[i].ReadRange(start, n)
		if err != nil {
			return nil, translateError(f.Name, err)
		}
		b.names[i] = f.Name
		b.tensors[i] = t
	}
	return b, nil
}

// Set writes the batch into records [start, start+batch.Len()) across
// every field. It is valid only before the store is sealed; the population
// pipeline is the intended caller.
func (s *Store) Set(start int, b *Batch) error {
	t0 := time.Now()
	err := s.set(start, b)
	s.opts.metricsCollector.RecordSet(b.Len(), time.Since(t0), err)
	return err
}

func (s *Store) set(start int, b *Batch) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	return s.writeBatch(start, b)
}

// writeBatch performs the schema and bounds checked write without state
// checks; populate workers call it after the store entered Populating.
func (s *Store) writeBatch(start int, b *Batch) error {
	if err := b.conforms(s.schema); err != nil {
		return err
	}
	if start < 0 || start+b.Len() > s.count {
		return &ErrIndexOutOfRange{Index: start + b.Len() - 1, Count: s.count}
	}

	for i, f := range s.schema {
		if err := s.fields[i].WriteSlice(start, b.tensors[i]); err != nil {
			return translateError(f.Name, err)
		}
	}
	return nil
}

// Seal flushes every field to disk and commits the manifest in state
// Sealed, after which the store is safe for concurrent readers and rejects
// further writes. Sealing an already sealed store is a no-op.
func (s *Store) Seal() error {
	t0 := time.Now()
	err := s.seal()
	s.opts.metricsCollector.RecordSeal(time.Since(t0), err)
	s.opts.logger.LogSeal(context.Background(), s.dir, err)
	return err
}

func (s *Store) seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if s.state == manifest.StateSealed {
		return nil
	}

	for i, f := range s.schema {
		if err := s.fields[i].Flush(); err != nil {
			return translateError(f.Name, err)
		}
	}

	if err := s.mstore.Commit(s.snapshotManifest(manifest.StateSealed)); err != nil {
		return err
	}
	s.state = manifest.StateSealed
	return nil
}

// markPopulating transitions the store into Populating so that an aborted
// run is detectable on reopen.
func (s *Store) markPopulating() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if s.state == manifest.StateSealed {
		return ErrStoreSealed
	}
	if s.state == manifest.StatePopulating {
		return nil
	}

	if err := s.mstore.Commit(s.snapshotManifest(manifest.StatePopulating)); err != nil {
		return err
	}
	s.state = manifest.StatePopulating
	return nil
}

// snapshotManifest builds a manifest for the given state from the store's
// immutable schema and count; it needs no lock.
func (s *Store) snapshotManifest(state manifest.State) *manifest.Manifest {
	infos := make([]manifest.FieldInfo, len(s.schema))
	for i, f := range s.schema {
		infos[i] = manifest.FieldInfo{
			Name:  f.Name,
			DType: f.DType.String(),
			Shape: f.Shape,
			Path:  f.Name + fieldFileExt,
		}
	}
	return &manifest.Manifest{
		State:       state,
		RecordCount: s.count,
		Fields:      infos,
	}
}

// Close unmaps and closes every field file. The store directory remains on
// disk; removing it is the caller's responsibility.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	for _, f := range s.fields {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
