package tensor

import "fmt"

// DType identifies the element type of a tensor.
type DType uint8

const (
	DTypeInvalid DType = iota
	Uint8
	Int32
	Int64
	Float32
	Float64
)

// Size returns the size of one element in bytes.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d is a known element type.
func (d DType) Valid() bool {
	return d.Size() > 0
}

// ParseDType is the inverse of String. It returns an error for unknown names.
func ParseDType(s string) (DType, error) {
	switch s {
	case "uint8":
		return Uint8, nil
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return DTypeInvalid, fmt.Errorf("tensor: unknown dtype %q", s)
	}
}

// String returns the string representation of the DType.
func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "invalid"
	}
}
