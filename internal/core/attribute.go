package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// Attribute is a decoded attribute message. Data holds the raw value bytes.
type Attribute struct {
	Name      string
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Data      []byte
}

// TypeResolver loads a committed datatype from its object header address.
type TypeResolver func(addr uint64) (*DatatypeMessage, error)

// ParseAttributeMessage parses an attribute message (type 0x000C).
//
// Versions 1 and 2 share the prefix version, flags, name size, datatype size
// and dataspace size; version 3 adds a name encoding byte. Version 1 pads the
// name, datatype and dataspace to 8 bytes.
func ParseAttributeMessage(data []byte, sb *Superblock, resolve TypeResolver) (*Attribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("attribute message too short: %d bytes", len(data))
	}

	version := data[0]
	flags := data[1]
	nameSize := int(sb.Endianness.Uint16(data[2:4]))
	typeSize := int(sb.Endianness.Uint16(data[4:6]))
	spaceSize := int(sb.Endianness.Uint16(data[6:8]))
	pos := 8

	pad := func(n int) int { return n }
	switch version {
	case 1:
		pad = func(n int) int { return (n + 7) &^ 7 }
	case 2:
	case 3:
		pos++ // name encoding
	default:
		return nil, fmt.Errorf("unsupported attribute message version: %d", version)
	}

	take := func(n int, what string) ([]byte, error) {
		if pos+n > len(data) {
			return nil, fmt.Errorf("attribute %s extends beyond message", what)
		}
		b := data[pos : pos+n]
		pos += pad(n)
		return b, nil
	}

	nameBytes, err := take(nameSize, "name")
	if err != nil {
		return nil, err
	}
	attr := &Attribute{Name: cString(nameBytes)}

	typeBytes, err := take(typeSize, "datatype")
	if err != nil {
		return nil, err
	}
	if flags&0x01 != 0 {
		if resolve == nil {
			return nil, fmt.Errorf("%w: shared attribute datatype", ErrUnsupported)
		}
		addr, err := SharedAddress(typeBytes, sb)
		if err != nil {
			return nil, utils.WrapError("shared datatype", err)
		}
		if attr.Datatype, err = resolve(addr); err != nil {
			return nil, utils.WrapError("shared datatype", err)
		}
	} else if attr.Datatype, err = ParseDatatypeMessage(typeBytes); err != nil {
		return nil, utils.WrapError("datatype parse failed", err)
	}

	spaceBytes, err := take(spaceSize, "dataspace")
	if err != nil {
		return nil, err
	}
	if flags&0x02 != 0 {
		return nil, fmt.Errorf("%w: shared attribute dataspace", ErrUnsupported)
	}
	if attr.Dataspace, err = ParseDataspaceMessage(spaceBytes, sb); err != nil {
		return nil, utils.WrapError("dataspace parse failed", err)
	}

	if pos < len(data) {
		attr.Data = data[pos:]
	}
	return attr, nil
}

// Value decodes the attribute. Scalars yield a single value, other
// dataspaces a typed slice.
func (a *Attribute) Value(heap *GlobalHeap) (any, error) {
	if a.Dataspace.Type == DataspaceNull {
		return nil, nil
	}
	count := a.Dataspace.TotalElements()
	need, err := utils.Product([]uint64{count}, uint64(a.Datatype.Size))
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateBufferSize(need, utils.MaxAttributeSize, "attribute "+a.Name); err != nil {
		return nil, err
	}
	if uint64(len(a.Data)) < need {
		return nil, fmt.Errorf("attribute %q: data truncated", a.Name)
	}

	if a.Dataspace.IsScalar() {
		return DecodeElement(a.Data[:need], a.Datatype, heap)
	}
	return DecodeValues(a.Data, a.Datatype, count, heap)
}

// AttributeInfoMessage describes dense attribute storage (type 0x000F).
type AttributeInfoMessage struct {
	Version         uint8
	Flags           uint8
	FractalHeapAddr uint64
	NameIndexAddr   uint64
}

// ParseAttributeInfoMessage parses the attribute info message.
func ParseAttributeInfoMessage(data []byte, sb *Superblock) (*AttributeInfoMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("attribute info message too short")
	}
	msg := &AttributeInfoMessage{Version: data[0], Flags: data[1]}
	pos := 2
	if msg.Flags&0x01 != 0 {
		pos += 2 // max creation index
	}
	o := int(sb.OffsetSize)
	if len(data) < pos+2*o {
		return nil, utils.ErrTruncated
	}
	msg.FractalHeapAddr = sb.DecodeAddress(data[pos:])
	msg.NameIndexAddr = sb.DecodeAddress(data[pos+o:])
	return msg, nil
}

// ReadAttributes decodes the attribute messages stored in a header. When
// the object also keeps attributes in dense storage, its attribute info
// message is returned so the caller can walk the fractal heap.
func ReadAttributes(h *ObjectHeader, sb *Superblock, resolve TypeResolver) ([]*Attribute, *AttributeInfoMessage, error) {
	var attrs []*Attribute
	for _, msg := range h.FindAll(MsgAttribute) {
		a, err := ParseAttributeMessage(msg.Data, sb, resolve)
		if err != nil {
			return attrs, nil, err
		}
		attrs = append(attrs, a)
	}

	m := h.Find(MsgAttributeInfo)
	if m == nil {
		return attrs, nil, nil
	}
	info, err := ParseAttributeInfoMessage(m.Data, sb)
	if err != nil {
		return attrs, nil, err
	}
	if sb.IsUndefined(info.FractalHeapAddr) || info.FractalHeapAddr == 0 {
		return attrs, nil, nil
	}
	return attrs, info, nil
}
