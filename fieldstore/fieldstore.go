// Package fieldstore implements one memory-mapped, fixed-shape record
// buffer per dataset field.
//
// A field file is a flat, row-major array of Count same-shaped records
// preceded by a fixed binary header describing dtype, per-record shape and
// record count. The data section is mapped into memory; contiguous reads
// are zero-copy views, gathers and range reads copy out of the mapping.
//
// Thread safety: concurrent reads are safe once the store is populated.
// Concurrent writes are safe only for disjoint record ranges; the
// population pipeline guarantees disjointness by construction.
package fieldstore

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/hupe1980/tensorgo/internal/fs"
	"github.com/hupe1980/tensorgo/internal/mmap"
	"github.com/hupe1980/tensorgo/tensor"
)

// Store is a single field of a batch store, backed by one mapped file.
type Store struct {
	path     string
	dtype    tensor.DType
	shape    tensor.Shape
	count    int
	writable bool

	f       fs.File
	mapping *mmap.Mapping
	data    *mmap.Region
	closed  atomic.Bool
}

// Create allocates a field file sized for count records, writes its header
// and maps it read-write. The file is allocated to its full final size up
// front; it never grows.
func Create(fsys fs.FileSystem, path string, dtype tensor.DType, shape tensor.Shape, count int) (*Store, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("fieldstore: create %s: invalid dtype", path)
	}
	if !shape.Valid() {
		return nil, fmt.Errorf("fieldstore: create %s: invalid shape %s", path, shape)
	}
	if count < 0 {
		return nil, fmt.Errorf("fieldstore: create %s: negative record count %d", path, count)
	}

	hdr, err := header{DType: dtype, Shape: shape, Count: count}.encode()
	if err != nil {
		return nil, err
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("fieldstore: create %s: %w", path, err)
	}

	size := HeaderSize + count*shape.Elems()*dtype.Size()
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("fieldstore: allocate %s to %d bytes: %w", path, size, err)
	}
	if _, err := f.WriteAt(hdr, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("fieldstore: write header %s: %w", path, err)
	}

	return mapStore(f, path, dtype, shape, count, size, true)
}

// Open maps an existing field file. The on-disk header is validated against
// the expected dtype, shape and count; a disagreement is rejected with
// ErrHeaderMismatch rather than silently reinterpreting bytes.
func Open(fsys fs.FileSystem, path string, dtype tensor.DType, shape tensor.Shape, count int, writable bool) (*Store, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}

	f, err := fsys.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("fieldstore: open %s: %w", path, err)
	}

	hdrBuf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("fieldstore: read header %s: %w", path, err)
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if mismatch := hdr.diff(dtype, shape, count); mismatch != "" {
		_ = f.Close()
		return nil, &ErrHeaderMismatch{Path: path, Reason: mismatch}
	}

	size := HeaderSize + count*shape.Elems()*dtype.Size()
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("fieldstore: stat %s: %w", path, err)
	}
	if fi.Size() != int64(size) {
		_ = f.Close()
		return nil, &ErrHeaderMismatch{
			Path:   path,
			Reason: fmt.Sprintf("file size %d, want %d", fi.Size(), size),
		}
	}

	return mapStore(f, path, dtype, shape, count, size, writable)
}

func (h header) diff(dtype tensor.DType, shape tensor.Shape, count int) string {
	switch {
	case h.DType != dtype:
		return fmt.Sprintf("dtype %s, want %s", h.DType, dtype)
	case !h.Shape.Equal(shape):
		return fmt.Sprintf("shape %s, want %s", h.Shape, shape)
	case h.Count != count:
		return fmt.Sprintf("record count %d, want %d", h.Count, count)
	default:
		return ""
	}
}

func mapStore(f fs.File, path string, dtype tensor.DType, shape tensor.Shape, count, size int, writable bool) (*Store, error) {
	mapping, err := mmap.Map(f.Fd(), size, writable)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("fieldstore: map %s: %w", path, err)
	}

	data, err := mapping.Region(HeaderSize, size-HeaderSize)
	if err != nil {
		_ = mapping.Close()
		_ = f.Close()
		return nil, fmt.Errorf("fieldstore: map %s: %w", path, err)
	}

	// Batched reads land on arbitrary index subsets.
	_ = data.Advise(mmap.AccessRandom)

	return &Store{
		path:     path,
		dtype:    dtype,
		shape:    shape,
		count:    count,
		writable: writable,
		f:        f,
		mapping:  mapping,
		data:     data,
	}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// DType returns the element type.
func (s *Store) DType() tensor.DType { return s.dtype }

// Shape returns the per-record shape.
func (s *Store) Shape() tensor.Shape { return s.shape }

// Len returns the record count.
func (s *Store) Len() int { return s.count }

// recordSize returns the size of one record in bytes.
func (s *Store) recordSize() int { return s.shape.Elems() * s.dtype.Size() }

func (s *Store) checkTensor(t *tensor.Tensor) error {
	if t.DType() != s.dtype || !t.Shape().Equal(s.shape) {
		return &ErrShapeMismatch{
			Want: fmt.Sprintf("%s%s", s.dtype, s.shape),
			Got:  fmt.Sprintf("%s%s", t.DType(), t.Shape()),
		}
	}
	return nil
}

// WriteSlice copies t into records [start, start+t.Len()). Disjoint ranges
// may be written concurrently without locking; durability follows the
// mapping's flush policy until Flush or Close is called.
func (s *Store) WriteSlice(start int, t *tensor.Tensor) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.writable {
		return ErrReadOnly
	}
	if err := s.checkTensor(t); err != nil {
		return err
	}
	if start < 0 || start+t.Len() > s.count {
		return &ErrOutOfRange{Index: start + t.Len() - 1, Count: s.count}
	}

	rs := s.recordSize()
	copy(s.data.Bytes()[start*rs:], t.Bytes())
	return nil
}

// ReadRange copies records [start, start+n) into a fresh tensor.
func (s *Store) ReadRange(start, n int) (*tensor.Tensor, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if start < 0 || n < 0 || start+n > s.count {
		return nil, &ErrOutOfRange{Index: start + n - 1, Count: s.count}
	}

	rs := s.recordSize()
	out := tensor.New(s.dtype, s.shape, n)
	copy(out.Bytes(), s.data.Bytes()[start*rs:(start+n)*rs])
	return out, nil
}

// View returns a zero-copy tensor aliasing the mapped records
// [start, start+n). The view is valid only until Close.
func (s *Store) View(start, n int) (*tensor.Tensor, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if start < 0 || n < 0 || start+n > s.count {
		return nil, &ErrOutOfRange{Index: start + n - 1, Count: s.count}
	}

	rs := s.recordSize()
	return tensor.FromBytes(s.dtype, s.shape, n, s.data.Bytes()[start*rs:(start+n)*rs:(start+n)*rs])
}

// Gather copies the records at the given indices, in order, into a fresh
// tensor. Indices may be unsorted and may repeat; repeated indices yield
// repeated rows.
func (s *Store) Gather(indices []int) (*tensor.Tensor, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	rs := s.recordSize()
	out := tensor.New(s.dtype, s.shape, len(indices))
	buf := s.data.Bytes()
	for k, idx := range indices {
		if idx < 0 || idx >= s.count {
			return nil, &ErrOutOfRange{Index: idx, Count: s.count}
		}
		copy(out.Bytes()[k*rs:(k+1)*rs], buf[idx*rs:(idx+1)*rs])
	}
	return out, nil
}

// Flush synchronously writes modified pages and file metadata to disk.
func (s *Store) Flush() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.writable {
		return nil
	}
	if err := s.mapping.Flush(); err != nil {
		return fmt.Errorf("fieldstore: flush %s: %w", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("fieldstore: sync %s: %w", s.path, err)
	}
	return nil
}

// Close flushes (if writable), unmaps and closes the backing file.
// Views returned by View become invalid.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.mapping.Close()
	if closeErr := s.f.Close(); err == nil {
		err = closeErr
	}
	return err
}
