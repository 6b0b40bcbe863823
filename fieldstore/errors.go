package fieldstore

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("fieldstore: store is closed")
	// ErrReadOnly is returned when writing to a store opened read-only.
	ErrReadOnly = errors.New("fieldstore: store is read-only")
)

// ErrOutOfRange indicates a record index outside [0, Count).
type ErrOutOfRange struct {
	Index int
	Count int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("fieldstore: index %d out of range [0, %d)", e.Index, e.Count)
}

// ErrShapeMismatch indicates a tensor whose dtype or per-record shape
// disagrees with the store.
type ErrShapeMismatch struct {
	Want string
	Got  string
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("fieldstore: shape mismatch: want %s, got %s", e.Want, e.Got)
}

// ErrHeaderMismatch indicates an on-disk header that disagrees with the
// schema supplied at open time.
type ErrHeaderMismatch struct {
	Path   string
	Reason string
}

func (e *ErrHeaderMismatch) Error() string {
	return fmt.Sprintf("fieldstore: %s: header mismatch: %s", e.Path, e.Reason)
}
