package mmap

import (
	"sync/atomic"
)

// Mapping represents a memory-mapped file region.
// It owns the underlying byte slice and is responsible for unmapping it.
//
// Read access is safe for concurrent use. Concurrent writes to disjoint
// byte ranges are safe without locking; overlapping writes are not.
type Mapping struct {
	data     []byte
	size     int
	writable bool
	closed   atomic.Bool
	// Platform-specific hooks.
	unmap func([]byte) error
	flush func([]byte) error
}

// Map maps size bytes of the file identified by fd into memory.
// If writable is true, the mapping is shared read-write: stores become
// visible to the backing file according to the kernel's flush policy, or
// immediately durable after Flush.
func Map(fd uintptr, size int, writable bool) (*Mapping, error) {
	if size < 0 {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &Mapping{size: 0, writable: writable}, nil
	}

	data, unmapFunc, flushFunc, err := osMap(fd, size, writable)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:     data,
		size:     size,
		writable: writable,
		unmap:    unmapFunc,
		flush:    flushFunc,
	}, nil
}

// Close unmaps the memory. It is idempotent. A writable mapping is flushed
// before it is unmapped.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	var err error
	if m.writable && m.flush != nil && m.data != nil {
		err = m.flush(m.data)
	}
	if m.unmap != nil && m.data != nil {
		if unmapErr := m.unmap(m.data); err == nil {
			err = unmapErr
		}
		m.data = nil
	}
	return err
}

// Flush synchronously writes any modified pages back to the backing file.
func (m *Mapping) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.writable {
		return ErrReadOnly
	}
	if m.flush == nil || m.data == nil {
		return nil
	}
	return m.flush(m.data)
}

// Bytes returns the underlying byte slice.
// The slice is valid only until Close is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Writable reports whether the mapping accepts stores.
func (m *Mapping) Writable() bool {
	return m.writable
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}
