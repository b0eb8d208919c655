package writer

import (
	"encoding/binary"
	"fmt"
)

// Value is Go data encoded as HDF5 element bytes.
type Value struct {
	Datatype []byte
	ElemSize uint32
	Dims     []uint64 // nil for scalars.
	Data     []byte
}

// Count is the number of elements.
func (v *Value) Count() uint64 {
	n := uint64(1)
	for _, d := range v.Dims {
		n *= d
	}
	return n
}

// NewValue encodes a scalar or a slice of a fixed-size numeric type, or a
// string or []string as fixed-length null-padded strings. Slices become
// one-dimensional; use Reshape for more dimensions.
func NewValue(data any) (*Value, error) {
	switch d := data.(type) {
	case string:
		return stringValue([]string{d}, nil), nil
	case []string:
		return stringValue(d, []uint64{uint64(len(d))}), nil
	case float32, float64, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		v, err := numericValue(data)
		if err != nil {
			return nil, err
		}
		v.Dims = nil
		return v, nil
	}
	return numericValue(data)
}

func numericValue(data any) (*Value, error) {
	size := binary.Size(data)
	if size < 0 {
		return nil, fmt.Errorf("unsupported value type %T", data)
	}
	buf, err := binary.Append(nil, binary.LittleEndian, data)
	if err != nil {
		return nil, err
	}

	var dt []byte
	var elem uint32
	switch data.(type) {
	case float32, []float32:
		elem, dt = 4, encodeFloatType(4)
	case float64, []float64:
		elem, dt = 8, encodeFloatType(8)
	case int8, []int8:
		elem, dt = 1, encodeIntType(1, true)
	case int16, []int16:
		elem, dt = 2, encodeIntType(2, true)
	case int32, []int32:
		elem, dt = 4, encodeIntType(4, true)
	case int64, []int64:
		elem, dt = 8, encodeIntType(8, true)
	case uint8, []uint8:
		elem, dt = 1, encodeIntType(1, false)
	case uint16, []uint16:
		elem, dt = 2, encodeIntType(2, false)
	case uint32, []uint32:
		elem, dt = 4, encodeIntType(4, false)
	case uint64, []uint64:
		elem, dt = 8, encodeIntType(8, false)
	default:
		return nil, fmt.Errorf("unsupported value type %T", data)
	}
	return &Value{
		Datatype: dt,
		ElemSize: elem,
		Dims:     []uint64{uint64(len(buf)) / uint64(elem)},
		Data:     buf,
	}, nil
}

func stringValue(vals []string, dims []uint64) *Value {
	size := 1
	for _, s := range vals {
		size = max(size, len(s))
	}
	buf := make([]byte, size*len(vals))
	for i, s := range vals {
		copy(buf[i*size:], s)
	}
	return &Value{
		Datatype: encodeStringType(uint32(size)), //nolint:gosec // G115: string lengths are small
		ElemSize: uint32(size),                   //nolint:gosec // G115: string lengths are small
		Dims:     dims,
		Data:     buf,
	}
}

// Reshape sets the dimensions. The element count must not change.
func (v *Value) Reshape(dims ...uint64) error {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	if n != v.Count() {
		return fmt.Errorf("cannot reshape %d elements to %v", v.Count(), dims)
	}
	v.Dims = dims
	return nil
}
