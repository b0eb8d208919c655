package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// DatatypeClass represents HDF5 datatype class.
type DatatypeClass uint8

// Datatype class constants identify different HDF5 data types for datasets.
const (
	DatatypeFixed     DatatypeClass = 0  // Fixed-point (integers).
	DatatypeFloat     DatatypeClass = 1  // Floating-point.
	DatatypeTime      DatatypeClass = 2  // Time.
	DatatypeString    DatatypeClass = 3  // String.
	DatatypeBitfield  DatatypeClass = 4  // Bitfield.
	DatatypeOpaque    DatatypeClass = 5  // Opaque.
	DatatypeCompound  DatatypeClass = 6  // Compound.
	DatatypeReference DatatypeClass = 7  // Reference.
	DatatypeEnum      DatatypeClass = 8  // Enumerated.
	DatatypeVarLen    DatatypeClass = 9  // Variable-length.
	DatatypeArray     DatatypeClass = 10 // Array.
	DatatypeComplex   DatatypeClass = 11 // Complex.
)

var classNames = [...]string{
	"integer", "float", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "vlen", "array", "complex",
}

func (c DatatypeClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class_%d", uint8(c))
}

const maxTypeDepth = 32

// DatatypeMessage is a decoded datatype message. Derived types (enum,
// variable-length, array) carry their base type in Base.
type DatatypeMessage struct {
	Class         DatatypeClass
	Version       uint8
	Size          uint32
	ClassBitField uint32
	Properties    []byte

	Members    []CompoundMember // compound
	Base       *DatatypeMessage // enum, vlen, array, complex
	ArrayDims  []uint64         // array
	EnumNames  []string         // enum
	EnumValues [][]byte         // enum, raw values in the base type
	Tag        string           // opaque
}

// CompoundMember is one field of a compound datatype.
type CompoundMember struct {
	Name   string
	Offset uint32
	Type   *DatatypeMessage
}

// ParseDatatypeMessage parses a datatype message from header message data.
func ParseDatatypeMessage(data []byte) (*DatatypeMessage, error) {
	dt, _, err := parseDatatype(data, 0)
	return dt, err
}

// parseDatatype decodes one datatype and reports how many bytes it used.
func parseDatatype(data []byte, depth int) (*DatatypeMessage, int, error) {
	if depth > maxTypeDepth {
		return nil, 0, errors.New("datatype nesting too deep")
	}
	if len(data) < 8 {
		return nil, 0, errors.New("datatype message too short")
	}

	head := binary.LittleEndian.Uint32(data[0:4])
	dt := &DatatypeMessage{
		Class:         DatatypeClass(head & 0x0F),
		Version:       uint8((head >> 4) & 0x0F),
		ClassBitField: head >> 8,
		Size:          binary.LittleEndian.Uint32(data[4:8]),
	}
	props := data[8:]

	n, err := dt.parseProperties(props, depth)
	if err != nil {
		return nil, 0, fmt.Errorf("%s datatype: %w", dt.Class, err)
	}
	dt.Properties = props[:n]
	return dt, 8 + n, nil
}

func (dt *DatatypeMessage) parseProperties(p []byte, depth int) (int, error) {
	need := func(n int) error {
		if len(p) < n {
			return errors.New("properties truncated")
		}
		return nil
	}

	switch dt.Class {
	case DatatypeFixed, DatatypeBitfield:
		return 4, need(4)
	case DatatypeFloat:
		return 12, need(12)
	case DatatypeTime:
		return 2, need(2)
	case DatatypeString, DatatypeReference:
		return 0, nil
	case DatatypeOpaque:
		n := int(dt.ClassBitField & 0xFF)
		if err := need(n); err != nil {
			return 0, err
		}
		dt.Tag = cString(p[:n])
		return n, nil
	case DatatypeCompound:
		return dt.parseCompound(p, depth)
	case DatatypeEnum:
		return dt.parseEnum(p, depth)
	case DatatypeVarLen, DatatypeComplex:
		base, n, err := parseDatatype(p, depth+1)
		if err != nil {
			return 0, err
		}
		dt.Base = base
		return n, nil
	case DatatypeArray:
		return dt.parseArray(p, depth)
	default:
		return 0, fmt.Errorf("unknown datatype class %d", dt.Class)
	}
}

func (dt *DatatypeMessage) parseCompound(p []byte, depth int) (int, error) {
	count := int(dt.ClassBitField & 0xFFFF)
	pos := 0
	for i := 0; i < count; i++ {
		name, nlen := readName(p[pos:], dt.Version < 3)
		if nlen == 0 {
			return 0, fmt.Errorf("member %d: name truncated", i)
		}
		pos += nlen

		var offset uint32
		var dims []uint64
		switch dt.Version {
		case 1:
			if len(p) < pos+28 {
				return 0, fmt.Errorf("member %q truncated", name)
			}
			offset = binary.LittleEndian.Uint32(p[pos:])
			rank := int(p[pos+4])
			// offset(4) rank(1) reserved(3) permutation(4) reserved(4) dims(16)
			for d := 0; d < rank && d < 4; d++ {
				dims = append(dims, uint64(binary.LittleEndian.Uint32(p[pos+16+4*d:])))
			}
			pos += 32
		case 2:
			if len(p) < pos+4 {
				return 0, fmt.Errorf("member %q truncated", name)
			}
			offset = binary.LittleEndian.Uint32(p[pos:])
			pos += 4
		default:
			w := offsetWidth(dt.Size)
			if len(p) < pos+w {
				return 0, fmt.Errorf("member %q truncated", name)
			}
			var buf [4]byte
			copy(buf[:], p[pos:pos+w])
			offset = binary.LittleEndian.Uint32(buf[:])
			pos += w
		}

		mt, n, err := parseDatatype(p[pos:], depth+1)
		if err != nil {
			return 0, fmt.Errorf("member %q: %w", name, err)
		}
		pos += n

		if len(dims) > 0 {
			mt = arrayOf(mt, dims)
		}
		dt.Members = append(dt.Members, CompoundMember{Name: name, Offset: offset, Type: mt})
	}
	return pos, nil
}

func (dt *DatatypeMessage) parseEnum(p []byte, depth int) (int, error) {
	base, pos, err := parseDatatype(p, depth+1)
	if err != nil {
		return 0, err
	}
	dt.Base = base

	count := int(dt.ClassBitField & 0xFFFF)
	for i := 0; i < count; i++ {
		name, nlen := readName(p[pos:], dt.Version < 3)
		if nlen == 0 {
			return 0, fmt.Errorf("enum name %d truncated", i)
		}
		dt.EnumNames = append(dt.EnumNames, name)
		pos += nlen
	}
	sz := int(base.Size)
	if len(p) < pos+count*sz {
		return 0, errors.New("enum values truncated")
	}
	for i := 0; i < count; i++ {
		dt.EnumValues = append(dt.EnumValues, p[pos:pos+sz])
		pos += sz
	}
	return pos, nil
}

func (dt *DatatypeMessage) parseArray(p []byte, depth int) (int, error) {
	if len(p) < 1 {
		return 0, errors.New("array rank missing")
	}
	rank := int(p[0])
	pos := 1
	if dt.Version < 3 {
		pos += 3
	}
	if len(p) < pos+4*rank {
		return 0, errors.New("array dimensions truncated")
	}
	for i := 0; i < rank; i++ {
		dt.ArrayDims = append(dt.ArrayDims, uint64(binary.LittleEndian.Uint32(p[pos:])))
		pos += 4
	}
	if dt.Version < 3 {
		pos += 4 * rank // permutation indices
	}
	if len(p) < pos {
		return 0, errors.New("array permutation truncated")
	}
	base, n, err := parseDatatype(p[pos:], depth+1)
	if err != nil {
		return 0, err
	}
	dt.Base = base
	return pos + n, nil
}

func arrayOf(base *DatatypeMessage, dims []uint64) *DatatypeMessage {
	size := uint64(base.Size)
	for _, d := range dims {
		size *= d
	}
	//nolint:gosec // G115: member sizes are bounded by the 32-bit compound size
	return &DatatypeMessage{Class: DatatypeArray, Version: 2, Size: uint32(size), Base: base, ArrayDims: dims}
}

// offsetWidth is the byte width of a v3 compound member offset.
func offsetWidth(size uint32) int {
	switch {
	case size < 1<<8:
		return 1
	case size < 1<<16:
		return 2
	case size < 1<<24:
		return 3
	default:
		return 4
	}
}

// readName reads a NUL-terminated name, optionally padded to 8 bytes.
// It returns the consumed length, or 0 if no terminator was found.
func readName(p []byte, padded bool) (string, int) {
	end := -1
	for i, b := range p {
		if b == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", 0
	}
	n := end + 1
	if padded {
		n = (n + 7) &^ 7
		if n > len(p) {
			return "", 0
		}
	}
	return string(p[:end]), n
}

func cString(p []byte) string {
	for i, b := range p {
		if b == 0 {
			return string(p[:i])
		}
	}
	return string(p)
}

// GetByteOrder returns the byte order of numeric types. Types without a
// byte order report little-endian.
func (dt *DatatypeMessage) GetByteOrder() binary.ByteOrder {
	switch dt.Class {
	case DatatypeFixed, DatatypeFloat, DatatypeBitfield, DatatypeTime:
		if dt.ClassBitField&0x01 != 0 {
			return binary.BigEndian
		}
	case DatatypeEnum, DatatypeComplex:
		if dt.Base != nil {
			return dt.Base.GetByteOrder()
		}
	}
	return binary.LittleEndian
}

// IsBigEndian reports whether the numeric encoding is big-endian.
func (dt *DatatypeMessage) IsBigEndian() bool {
	return dt.GetByteOrder() == binary.BigEndian
}

// IsSigned reports whether a fixed-point type is signed.
func (dt *DatatypeMessage) IsSigned() bool {
	switch dt.Class {
	case DatatypeFixed:
		return dt.ClassBitField&0x08 != 0
	case DatatypeEnum:
		return dt.Base != nil && dt.Base.IsSigned()
	}
	return false
}

// IsFixedString reports a fixed-length string.
func (dt *DatatypeMessage) IsFixedString() bool {
	return dt.Class == DatatypeString
}

// IsVariableString reports a variable-length string.
func (dt *DatatypeMessage) IsVariableString() bool {
	return dt.Class == DatatypeVarLen && dt.ClassBitField&0x0F == 1
}

// StringPadding is 0 for null-terminated, 1 for null-padded and 2 for
// space-padded strings.
func (dt *DatatypeMessage) StringPadding() uint8 {
	if dt.Class == DatatypeVarLen {
		return uint8((dt.ClassBitField >> 4) & 0x0F)
	}
	return uint8(dt.ClassBitField & 0x0F)
}

// IsUTF8 reports whether a string type uses UTF-8.
func (dt *DatatypeMessage) IsUTF8() bool {
	if dt.Class == DatatypeVarLen {
		return (dt.ClassBitField>>8)&0x0F == 1
	}
	return (dt.ClassBitField>>4)&0x0F == 1
}

// IsBoolEnum reports an 8-bit enum with exactly FALSE and TRUE members,
// the encoding h5py uses for booleans.
func (dt *DatatypeMessage) IsBoolEnum() bool {
	return dt.Class == DatatypeEnum && dt.Size == 1 && len(dt.EnumNames) == 2 &&
		dt.EnumNames[0] == "FALSE" && dt.EnumNames[1] == "TRUE"
}

// Name returns the numpy-style name of the type: "float64", "int32", ">f8",
// "|S10", "object" or a compound field list.
func (dt *DatatypeMessage) Name() string {
	switch dt.Class {
	case DatatypeFixed, DatatypeBitfield:
		if dt.IsBigEndian() && dt.Size > 1 {
			return dt.descr()
		}
		if dt.IsSigned() {
			return fmt.Sprintf("int%d", dt.Size*8)
		}
		return fmt.Sprintf("uint%d", dt.Size*8)
	case DatatypeFloat:
		if dt.IsBigEndian() {
			return dt.descr()
		}
		return fmt.Sprintf("float%d", dt.Size*8)
	case DatatypeComplex:
		if dt.IsBigEndian() {
			return dt.descr()
		}
		return fmt.Sprintf("complex%d", dt.Size*8)
	case DatatypeEnum:
		if dt.IsBoolEnum() {
			return "bool"
		}
		if dt.Base != nil {
			return dt.Base.Name()
		}
	case DatatypeReference, DatatypeVarLen:
		return "object"
	}
	return dt.descr()
}

// descr is the numpy array-protocol type string used inside compound and
// array descriptions.
func (dt *DatatypeMessage) descr() string {
	order := "<"
	if dt.IsBigEndian() {
		order = ">"
	}
	if dt.Size == 1 {
		order = "|"
	}

	switch dt.Class {
	case DatatypeFixed, DatatypeBitfield:
		kind := "u"
		if dt.IsSigned() {
			kind = "i"
		}
		return fmt.Sprintf("%s%s%d", order, kind, dt.Size)
	case DatatypeFloat:
		return fmt.Sprintf("%sf%d", order, dt.Size)
	case DatatypeComplex:
		return fmt.Sprintf("%sc%d", order, dt.Size)
	case DatatypeTime:
		return fmt.Sprintf("%sM%d", order, dt.Size)
	case DatatypeString:
		return fmt.Sprintf("|S%d", dt.Size)
	case DatatypeOpaque:
		return fmt.Sprintf("|V%d", dt.Size)
	case DatatypeReference, DatatypeVarLen:
		return "O"
	case DatatypeEnum:
		if dt.IsBoolEnum() {
			return "|b1"
		}
		if dt.Base != nil {
			return dt.Base.descr()
		}
	case DatatypeCompound:
		parts := make([]string, len(dt.Members))
		for i, m := range dt.Members {
			if m.Type.Class == DatatypeArray && m.Type.Base != nil {
				parts[i] = fmt.Sprintf("('%s', %s, %s)", m.Name, m.Type.Base.fieldDescr(), tuple(m.Type.ArrayDims))
				continue
			}
			parts[i] = fmt.Sprintf("('%s', %s)", m.Name, m.Type.fieldDescr())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case DatatypeArray:
		if dt.Base != nil {
			return fmt.Sprintf("(%s, %s)", dt.Base.fieldDescr(), tuple(dt.ArrayDims))
		}
	}
	return fmt.Sprintf("|V%d", dt.Size)
}

// fieldDescr quotes scalar descriptors the way numpy prints them in lists.
func (dt *DatatypeMessage) fieldDescr() string {
	switch dt.Class {
	case DatatypeCompound, DatatypeArray:
		return dt.descr()
	}
	return "'" + dt.descr() + "'"
}

func tuple(dims []uint64) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprint(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// String returns human-readable datatype description.
func (dt *DatatypeMessage) String() string {
	return fmt.Sprintf("%s (%s, %d bytes)", dt.Name(), dt.Class, dt.Size)
}
