package tensorgo

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/tensorgo/internal/conv"
	"github.com/hupe1980/tensorgo/manifest"
)

// Compression selects the archive codec.
type Compression uint8

const (
	// CompressionZstd compresses archives with zstandard (default).
	CompressionZstd Compression = iota + 1
	// CompressionLZ4 compresses archives with LZ4.
	CompressionLZ4
)

var (
	archiveMagic   = [4]byte{'T', 'G', 'A', '0'}
	archiveVersion = uint32(1)
)

// archiveHeaderSize is the fixed uncompressed prologue: magic, version,
// codec and reserved bytes.
const archiveHeaderSize = 16

type archiveOptions struct {
	compression Compression
}

// ArchiveOption configures Export behavior.
type ArchiveOption func(*archiveOptions)

// WithCompression selects the archive codec. Unknown values fall back to
// zstandard.
func WithCompression(c Compression) ArchiveOption {
	return func(o *archiveOptions) {
		if c == CompressionZstd || c == CompressionLZ4 {
			o.compression = c
		}
	}
}

// Export streams the sealed store (manifest plus every field file) into a
// single compressed archive, e.g. for moving a preprocessed dataset to a
// training host. Exporting an unsealed store fails with ErrIncompleteStore.
func (s *Store) Export(w io.Writer, optFns ...ArchiveOption) error {
	ao := archiveOptions{compression: CompressionZstd}
	for _, fn := range optFns {
		fn(&ao)
	}

	if err := s.checkReadable(); err != nil {
		return err
	}

	hdr := make([]byte, archiveHeaderSize)
	copy(hdr[0:4], archiveMagic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], archiveVersion)
	hdr[8] = byte(ao.compression)
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("archive: write header: %w", err)
	}

	cw, err := newCompressor(w, ao.compression)
	if err != nil {
		return err
	}

	if err := s.exportBody(cw); err != nil {
		_ = cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("archive: flush: %w", err)
	}
	return nil
}

func (s *Store) exportBody(w io.Writer) error {
	m := s.snapshotManifest(manifest.StateSealed)
	m.Version = manifest.CurrentVersion

	mdata, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("archive: encode manifest: %w", err)
	}
	mlen, err := conv.IntToUint32(len(mdata))
	if err != nil {
		return fmt.Errorf("archive: manifest too large: %w", err)
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint32(lenBuf[:4], mlen)
	if _, err := w.Write(lenBuf[:4]); err != nil {
		return fmt.Errorf("archive: write manifest length: %w", err)
	}
	if _, err := w.Write(mdata); err != nil {
		return fmt.Errorf("archive: write manifest: %w", err)
	}

	for _, fi := range m.Fields {
		path := filepath.Join(s.dir, fi.Path)
		f, err := s.opts.fs.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return fmt.Errorf("archive: open %s: %w", path, err)
		}

		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("archive: stat %s: %w", path, err)
		}

		binary.LittleEndian.PutUint64(lenBuf[:], uint64(st.Size()))
		if _, err := w.Write(lenBuf[:]); err != nil {
			_ = f.Close()
			return fmt.Errorf("archive: write field length: %w", err)
		}
		if _, err := io.Copy(w, f); err != nil {
			_ = f.Close()
			return fmt.Errorf("archive: copy %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("archive: close %s: %w", path, err)
		}
	}
	return nil
}

// Import restores an archive produced by Export into dir and opens the
// resulting sealed store.
func Import(r io.Reader, dir string, optFns ...Option) (*Store, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	hdr := make([]byte, archiveHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("archive: read header: %w", err)
	}
	if [4]byte(hdr[0:4]) != archiveMagic {
		return nil, fmt.Errorf("archive: invalid magic")
	}
	if v := binary.LittleEndian.Uint32(hdr[4:8]); v != archiveVersion {
		return nil, fmt.Errorf("archive: unsupported version %d", v)
	}

	cr, closeReader, err := newDecompressor(r, Compression(hdr[8]))
	if err != nil {
		return nil, err
	}
	defer closeReader()

	var lenBuf [8]byte
	if _, err := io.ReadFull(cr, lenBuf[:4]); err != nil {
		return nil, fmt.Errorf("archive: read manifest length: %w", err)
	}
	mlen, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(lenBuf[:4]))
	if err != nil {
		return nil, fmt.Errorf("archive: manifest length: %w", err)
	}

	mdata := make([]byte, mlen)
	if _, err := io.ReadFull(cr, mdata); err != nil {
		return nil, fmt.Errorf("archive: read manifest: %w", err)
	}

	var m manifest.Manifest
	if err := json.Unmarshal(mdata, &m); err != nil {
		return nil, fmt.Errorf("archive: decode manifest: %w", err)
	}
	if m.State != manifest.StateSealed {
		return nil, &ErrIncompleteStore{State: m.State}
	}
	if err := validateArchiveManifest(&m); err != nil {
		return nil, err
	}

	if err := o.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, &ErrStorageAllocation{Path: dir, cause: err}
	}

	for _, fi := range m.Fields {
		if _, err := io.ReadFull(cr, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("archive: read field length: %w", err)
		}
		size, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(lenBuf[:]))
		if err != nil {
			return nil, fmt.Errorf("archive: field length: %w", err)
		}

		path := filepath.Join(dir, fi.Path)
		f, err := o.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, &ErrStorageAllocation{Path: path, cause: err}
		}
		if _, err := io.CopyN(f, cr, int64(size)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("archive: restore %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("archive: close %s: %w", path, err)
		}
	}

	if err := manifest.NewStore(o.fs, dir).Commit(&m); err != nil {
		return nil, err
	}

	return Open(dir, nil, optFns...)
}

// validateArchiveManifest vets a manifest decoded from an untrusted archive
// before any field file is restored. The schema must pass the same
// validation as at allocation time, and every field file path must be
// exactly the one Export writes; anything else could place restored files
// outside the target directory.
func validateArchiveManifest(m *manifest.Manifest) error {
	schema := make(Schema, 0, len(m.Fields))
	for _, fi := range m.Fields {
		dtype, shape, err := fi.Tensor()
		if err != nil {
			return &ErrSchemaMismatch{Field: fi.Name, Reason: err.Error(), cause: err}
		}
		schema = append(schema, Field{Name: fi.Name, DType: dtype, Shape: shape})
	}
	if err := schema.Validate(); err != nil {
		return err
	}

	for _, fi := range m.Fields {
		if fi.Path != fi.Name+fieldFileExt {
			return &ErrSchemaMismatch{
				Field:  fi.Name,
				Reason: fmt.Sprintf("unexpected field file path %q", fi.Path),
			}
		}
	}

	if m.RecordCount < 0 {
		return &ErrSchemaMismatch{Reason: fmt.Sprintf("negative record count %d", m.RecordCount)}
	}
	return nil
}

func newCompressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("archive: zstd writer: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("archive: unknown compression %d", c)
	}
}

func newDecompressor(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("archive: zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("archive: unknown compression %d", c)
	}
}
