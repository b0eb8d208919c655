package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/x448/float16"
)

// DecodeValues converts raw element bytes into a typed Go slice:
// []int8 … []uint64, []float32, []float64, []complex64, []complex128,
// []bool, []string, or []any for compound, array, opaque and sequence
// types. heap may be nil when dt has no variable-length parts.
func DecodeValues(raw []byte, dt *DatatypeMessage, count uint64, heap *GlobalHeap) (any, error) {
	size := uint64(dt.Size)
	if size == 0 {
		return nil, errors.New("datatype has zero size")
	}
	if uint64(len(raw)) < size*count {
		return nil, fmt.Errorf("need %d bytes for %d elements, have %d", size*count, count, len(raw))
	}
	n := int(count)
	order := dt.GetByteOrder()

	switch dt.Class {
	case DatatypeFixed, DatatypeBitfield, DatatypeTime:
		return decodeInts(raw, n, int(size), dt.IsSigned(), order)
	case DatatypeFloat:
		return decodeFloats(raw, n, int(size), order)
	case DatatypeComplex:
		return decodeComplex(raw, n, int(size), order)
	case DatatypeEnum:
		if dt.IsBoolEnum() {
			out := make([]bool, n)
			for i := range out {
				out[i] = raw[i] != 0
			}
			return out, nil
		}
		return DecodeValues(raw, dt.Base, count, heap)
	case DatatypeString:
		out := make([]string, n)
		for i := range out {
			out[i] = fixedString(raw[i*int(size):(i+1)*int(size)], dt.StringPadding())
		}
		return out, nil
	case DatatypeVarLen:
		if dt.IsVariableString() {
			out := make([]string, n)
			for i := range out {
				s, err := decodeVarString(raw[i*int(size):], heap)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = s
			}
			return out, nil
		}
	case DatatypeReference:
		out := make([]uint64, n)
		for i := range out {
			out[i] = readSized(raw[i*int(size):], int(size), binary.LittleEndian)
		}
		return out, nil
	}

	out := make([]any, n)
	for i := range out {
		v, err := DecodeElement(raw[i*int(size):(i+1)*int(size)], dt, heap)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// DecodeElement decodes a single element of any class.
func DecodeElement(b []byte, dt *DatatypeMessage, heap *GlobalHeap) (any, error) {
	switch dt.Class {
	case DatatypeCompound:
		rec := make(map[string]any, len(dt.Members))
		for _, m := range dt.Members {
			end := int(m.Offset) + int(m.Type.Size)
			if end > len(b) {
				return nil, fmt.Errorf("member %q beyond element", m.Name)
			}
			v, err := DecodeElement(b[m.Offset:end], m.Type, heap)
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", m.Name, err)
			}
			rec[m.Name] = v
		}
		return rec, nil
	case DatatypeArray:
		count := uint64(1)
		for _, d := range dt.ArrayDims {
			count *= d
		}
		return DecodeValues(b, dt.Base, count, heap)
	case DatatypeOpaque:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case DatatypeVarLen:
		if dt.IsVariableString() {
			return decodeVarString(b, heap)
		}
		if heap == nil {
			return nil, errors.New("variable-length data without a global heap")
		}
		obj, length, err := heap.ReadVarLen(b)
		if err != nil {
			return nil, err
		}
		if length == 0 {
			return []any{}, nil
		}
		return DecodeValues(obj, dt.Base, uint64(length), heap)
	}

	vals, err := DecodeValues(b, dt, 1, heap)
	if err != nil {
		return nil, err
	}
	return first(vals), nil
}

// first returns element 0 of a typed slice.
func first(vals any) any {
	switch v := vals.(type) {
	case []int8:
		return v[0]
	case []int16:
		return v[0]
	case []int32:
		return v[0]
	case []int64:
		return v[0]
	case []uint8:
		return v[0]
	case []uint16:
		return v[0]
	case []uint32:
		return v[0]
	case []uint64:
		return v[0]
	case []float32:
		return v[0]
	case []float64:
		return v[0]
	case []complex64:
		return v[0]
	case []complex128:
		return v[0]
	case []bool:
		return v[0]
	case []string:
		return v[0]
	case []any:
		return v[0]
	}
	return vals
}

func decodeVarString(desc []byte, heap *GlobalHeap) (string, error) {
	if heap == nil {
		return "", errors.New("variable-length string without a global heap")
	}
	obj, length, err := heap.ReadVarLen(desc)
	if err != nil {
		return "", err
	}
	if int(length) < len(obj) {
		obj = obj[:length]
	}
	return strings.TrimRight(string(obj), "\x00"), nil
}

// fixedString trims padding: NUL terminator or padding for types 0 and 1,
// trailing spaces for type 2.
func fixedString(b []byte, padding uint8) string {
	if padding == 2 {
		return strings.TrimRight(string(b), " ")
	}
	return cString(b)
}

func readSized(b []byte, size int, order binary.ByteOrder) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	var v uint64
	if order == binary.BigEndian {
		for i := 0; i < size && i < 8; i++ {
			v = v<<8 | uint64(b[i])
		}
		return v
	}
	return readLE(b[:min(size, 8)])
}

func decodeInts(raw []byte, n, size int, signed bool, order binary.ByteOrder) (any, error) {
	switch {
	case size == 1 && signed:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(raw[i])
		}
		return out, nil
	case size == 1:
		out := make([]uint8, n)
		copy(out, raw[:n])
		return out, nil
	case size == 2 && signed:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(order.Uint16(raw[2*i:]))
		}
		return out, nil
	case size == 2:
		out := make([]uint16, n)
		for i := range out {
			out[i] = order.Uint16(raw[2*i:])
		}
		return out, nil
	case size == 4 && signed:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(order.Uint32(raw[4*i:]))
		}
		return out, nil
	case size == 4:
		out := make([]uint32, n)
		for i := range out {
			out[i] = order.Uint32(raw[4*i:])
		}
		return out, nil
	case size == 8 && signed:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(order.Uint64(raw[8*i:]))
		}
		return out, nil
	case size == 8:
		out := make([]uint64, n)
		for i := range out {
			out[i] = order.Uint64(raw[8*i:])
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d-byte integers", ErrUnsupported, size)
}

func decodeFloats(raw []byte, n, size int, order binary.ByteOrder) (any, error) {
	switch size {
	case 2:
		out := make([]float32, n)
		for i := range out {
			out[i] = float16.Frombits(order.Uint16(raw[2*i:])).Float32()
		}
		return out, nil
	case 4:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(order.Uint32(raw[4*i:]))
		}
		return out, nil
	case 8:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d-byte floats", ErrUnsupported, size)
}

func decodeComplex(raw []byte, n, size int, order binary.ByteOrder) (any, error) {
	switch size {
	case 8:
		out := make([]complex64, n)
		for i := range out {
			re := math.Float32frombits(order.Uint32(raw[8*i:]))
			im := math.Float32frombits(order.Uint32(raw[8*i+4:]))
			out[i] = complex(re, im)
		}
		return out, nil
	case 16:
		out := make([]complex128, n)
		for i := range out {
			re := math.Float64frombits(order.Uint64(raw[16*i:]))
			im := math.Float64frombits(order.Uint64(raw[16*i+8:]))
			out[i] = complex(re, im)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d-byte complex numbers", ErrUnsupported, size)
}

// ToFloat64 converts a typed slice returned by DecodeValues to float64.
// Non-numeric slices yield an error.
func ToFloat64(vals any) ([]float64, error) {
	switch v := vals.(type) {
	case []float64:
		return v, nil
	case []float32:
		return convert(v), nil
	case []int8:
		return convert(v), nil
	case []int16:
		return convert(v), nil
	case []int32:
		return convert(v), nil
	case []int64:
		return convert(v), nil
	case []uint8:
		return convert(v), nil
	case []uint16:
		return convert(v), nil
	case []uint32:
		return convert(v), nil
	case []uint64:
		return convert(v), nil
	case []bool:
		out := make([]float64, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %T to float64", vals)
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32
}

func convert[T number](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
