package tensor

// DType is the compile-time constraint for tensor element types.
//
// The trainer works in float32; float64 is supported for numeric
// cross-checks in tests.
type DType interface {
	float32 | float64
}

// DataType is the runtime tag for a tensor's element type.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the element size in bytes.
func (d DataType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("tensor: unknown data type")
	}
}

// String returns a human-readable type name.
func (d DataType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// inferDataType maps a Go element type to its runtime tag.
func inferDataType[T DType]() DataType {
	var v T
	switch any(v).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("tensor: unsupported element type")
	}
}
