package fieldstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/tensorgo/internal/conv"
	"github.com/hupe1980/tensorgo/tensor"
)

const (
	// HeaderSize is the fixed size of the header that precedes the record
	// data in every field file. 64 bytes keeps the data section aligned
	// for every supported element type.
	HeaderSize = 64

	headerVersion = uint32(1)

	// maxDims bounds the per-record rank the header can describe.
	maxDims = 6
)

var headerMagic = [4]byte{'T', 'G', 'F', '0'}

var (
	// ErrInvalidMagic indicates the file is not a tensorgo field file.
	ErrInvalidMagic = errors.New("fieldstore: invalid header magic")
	// ErrInvalidVersion indicates an unsupported field file version.
	ErrInvalidVersion = errors.New("fieldstore: unsupported header version")
)

// header is the decoded form of the fixed on-disk field file header.
//
// Layout (little-endian):
//
//	[0:4)   magic "TGF0"
//	[4:8)   version
//	[8]     dtype
//	[9]     ndim
//	[10:12) reserved
//	[12:36) dims, 6 x uint32
//	[36:44) record count
//	[44:52) data offset
//	[52:64) reserved
type header struct {
	DType tensor.DType
	Shape tensor.Shape
	Count int
}

func (h header) encode() ([]byte, error) {
	if !h.DType.Valid() {
		return nil, fmt.Errorf("fieldstore: cannot encode invalid dtype")
	}
	if len(h.Shape) > maxDims {
		return nil, fmt.Errorf("fieldstore: rank %d exceeds maximum %d", len(h.Shape), maxDims)
	}

	buf := make([]byte, HeaderSize)
	copy(buf[0:4], headerMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], headerVersion)
	buf[8] = byte(h.DType)
	buf[9] = byte(len(h.Shape))

	for i, d := range h.Shape {
		dim, err := conv.IntToUint32(d)
		if err != nil {
			return nil, fmt.Errorf("fieldstore: encode dim %d: %w", i, err)
		}
		binary.LittleEndian.PutUint32(buf[12+i*4:], dim)
	}

	count, err := conv.IntToUint64(h.Count)
	if err != nil {
		return nil, fmt.Errorf("fieldstore: encode count: %w", err)
	}
	binary.LittleEndian.PutUint64(buf[36:44], count)
	binary.LittleEndian.PutUint64(buf[44:52], uint64(HeaderSize))

	return buf, nil
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < HeaderSize {
		return header{}, fmt.Errorf("fieldstore: header truncated: %d bytes", len(buf))
	}
	if [4]byte(buf[0:4]) != headerMagic {
		return header{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != headerVersion {
		return header{}, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}

	dtype := tensor.DType(buf[8])
	if !dtype.Valid() {
		return header{}, fmt.Errorf("fieldstore: unknown dtype %d in header", buf[8])
	}

	ndim := int(buf[9])
	if ndim > maxDims {
		return header{}, fmt.Errorf("fieldstore: rank %d exceeds maximum %d", ndim, maxDims)
	}

	shape := make(tensor.Shape, ndim)
	for i := range shape {
		d, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(buf[12+i*4:]))
		if err != nil {
			return header{}, fmt.Errorf("fieldstore: decode dim %d: %w", i, err)
		}
		shape[i] = d
	}

	count, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(buf[36:44]))
	if err != nil {
		return header{}, fmt.Errorf("fieldstore: decode count: %w", err)
	}
	if off := binary.LittleEndian.Uint64(buf[44:52]); off != uint64(HeaderSize) {
		return header{}, fmt.Errorf("fieldstore: unexpected data offset %d", off)
	}

	return header{DType: dtype, Shape: shape, Count: count}, nil
}
