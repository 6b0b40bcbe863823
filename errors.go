package tensorgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tensorgo/fieldstore"
	"github.com/hupe1980/tensorgo/manifest"
)

var (
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")
	// ErrStoreSealed is returned when writing to a sealed store.
	ErrStoreSealed = errors.New("store is sealed")
)

// ErrStorageAllocation indicates that creating or mapping a store's backing
// files failed (disk full, permissions, unsupported size).
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrStorageAllocation struct {
	Path  string
	cause error
}

func (e *ErrStorageAllocation) Error() string {
	return fmt.Sprintf("storage allocation failed: %s: %v", e.Path, e.cause)
}

func (e *ErrStorageAllocation) Unwrap() error { return e.cause }

// ErrSchemaMismatch indicates that field shapes, dtypes or leading lengths
// disagree between the schema, the store and the supplied values.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrSchemaMismatch struct {
	Field  string
	Reason string
	cause  error
}

func (e *ErrSchemaMismatch) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("schema mismatch: field %q: %s", e.Field, e.Reason)
}

func (e *ErrSchemaMismatch) Unwrap() error { return e.cause }

// ErrIndexOutOfRange indicates a requested record index outside
// [0, record count).
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrIndexOutOfRange struct {
	Index int
	Count int
	cause error
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Count)
}

func (e *ErrIndexOutOfRange) Unwrap() error { return e.cause }

// ErrRecordProduction indicates that the upstream source failed to produce
// a batch during population. Start and Count identify the offset range the
// failing batch was assigned; the store is left not-safe-to-read.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrRecordProduction struct {
	Start int
	Count int
	cause error
}

func (e *ErrRecordProduction) Error() string {
	return fmt.Sprintf("record production failed for offsets [%d, %d): %v", e.Start, e.Start+e.Count, e.cause)
}

func (e *ErrRecordProduction) Unwrap() error { return e.cause }

// ErrIncompleteStore indicates a read on a store whose population was
// aborted or never finished.
type ErrIncompleteStore struct {
	State manifest.State
}

func (e *ErrIncompleteStore) Error() string {
	return fmt.Sprintf("store is not sealed (state %q): contents are indeterminate", e.State)
}

// translateError normalizes fieldstore-layer errors into the public error
// contract. Field names the schema field the error originated from.
func translateError(field string, err error) error {
	if err == nil {
		return nil
	}

	var oor *fieldstore.ErrOutOfRange
	if errors.As(err, &oor) {
		return &ErrIndexOutOfRange{Index: oor.Index, Count: oor.Count, cause: err}
	}

	var shape *fieldstore.ErrShapeMismatch
	if errors.As(err, &shape) {
		return &ErrSchemaMismatch{
			Field:  field,
			Reason: fmt.Sprintf("want %s, got %s", shape.Want, shape.Got),
			cause:  err,
		}
	}

	var hdr *fieldstore.ErrHeaderMismatch
	if errors.As(err, &hdr) {
		return &ErrSchemaMismatch{Field: field, Reason: hdr.Reason, cause: err}
	}

	if errors.Is(err, fieldstore.ErrInvalidMagic) || errors.Is(err, fieldstore.ErrInvalidVersion) {
		return &ErrSchemaMismatch{Field: field, Reason: err.Error(), cause: err}
	}

	if errors.Is(err, fieldstore.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrStoreClosed, err)
	}
	if errors.Is(err, fieldstore.ErrReadOnly) {
		return fmt.Errorf("%w: %w", ErrStoreSealed, err)
	}

	return err
}
