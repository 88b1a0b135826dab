package chunk

import "fmt"

// DType is the element type of a stored array.
type DType uint8

const (
	// DTypeInvalid is the zero value and never appears in a valid record.
	DTypeInvalid DType = iota
	Float32
	Int8
	Int16
)

// ParseDType maps a metadata dtype string onto the closed set of supported types.
func ParseDType(s string) (DType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "int8":
		return Int8, nil
	case "int16":
		return Int16, nil
	default:
		return DTypeInvalid, fmt.Errorf("unsupported dtype %q", s)
	}
}

// String returns the metadata spelling of d.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Int8:
		return 1
	case Int16:
		return 2
	default:
		return 0
	}
}
