// Package manifest persists a batch store's schema and lifecycle state.
//
// The manifest is the authority for whether a store may be read: a store is
// safe for concurrent readers only once its state is Sealed. It also lets a
// reopen detect schema disagreements instead of silently reinterpreting the
// field files.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/tensorgo/internal/fs"
	"github.com/hupe1980/tensorgo/tensor"
)

const (
	// FileName is the manifest file name inside a store directory.
	FileName = "MANIFEST"

	// CurrentVersion is the manifest format version.
	CurrentVersion = 1
)

// State is the lifecycle state of a batch store.
type State string

const (
	// StateAllocated means the field files exist at full size but hold no
	// meaningful data yet.
	StateAllocated State = "allocated"
	// StatePopulating means a population run started and has not sealed
	// the store; contents are indeterminate and not safe to read.
	StatePopulating State = "populating"
	// StateSealed means population completed and the store is read-only
	// safe for arbitrarily many concurrent readers.
	StateSealed State = "sealed"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateAllocated, StatePopulating, StateSealed:
		return true
	default:
		return false
	}
}

// FieldInfo describes a single schema field and its backing file.
type FieldInfo struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Path  string `json:"path"` // Relative to the store directory
}

// Tensor returns the decoded dtype and shape.
func (f FieldInfo) Tensor() (tensor.DType, tensor.Shape, error) {
	dtype, err := tensor.ParseDType(f.DType)
	if err != nil {
		return tensor.DTypeInvalid, nil, fmt.Errorf("manifest: field %q: %w", f.Name, err)
	}
	return dtype, tensor.Shape(f.Shape), nil
}

// Manifest describes a batch store at a specific point in time.
type Manifest struct {
	Version     int         `json:"version"`
	State       State       `json:"state"`
	RecordCount int         `json:"record_count"`
	Fields      []FieldInfo `json:"fields"`
}

// Store manages the manifest file and atomic updates.
type Store struct {
	fs  fs.FileSystem
	dir string
	mu  sync.Mutex
}

// NewStore creates a new manifest store for the given directory.
func NewStore(fsys fs.FileSystem, dir string) *Store {
	if fsys == nil {
		fsys = fs.Default
	}
	return &Store{fs: fsys, dir: dir}
}

// Load reads and validates the current manifest.
func (s *Store) Load() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, FileName)
	f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	var m Manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", path, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d", m.Version)
	}
	if !m.State.Valid() {
		return nil, fmt.Errorf("manifest: unknown state %q", m.State)
	}
	return &m, nil
}

// Commit atomically replaces the manifest: the new content is written to a
// temporary file, synced, then renamed over the old manifest.
func (s *Store) Commit(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	if !m.State.Valid() {
		return fmt.Errorf("manifest: refusing to commit unknown state %q", m.State)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}

	tmpPath := filepath.Join(s.dir, FileName+".tmp")
	f, err := s.fs.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("manifest: create %s: %w", tmpPath, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("manifest: write %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("manifest: sync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("manifest: close %s: %w", tmpPath, err)
	}

	if err := s.fs.Rename(tmpPath, filepath.Join(s.dir, FileName)); err != nil {
		return fmt.Errorf("manifest: rename %s: %w", tmpPath, err)
	}
	return nil
}
