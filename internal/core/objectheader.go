package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// ObjectType identifies the type of HDF5 object (group, dataset, datatype).
type ObjectType uint8

// Object type constants identify different HDF5 object types.
const (
	ObjectTypeGroup ObjectType = iota
	ObjectTypeDataset
	ObjectTypeDatatype
	ObjectTypeUnknown
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeGroup:
		return "group"
	case ObjectTypeDataset:
		return "dataset"
	case ObjectTypeDatatype:
		return "datatype"
	default:
		return "unknown"
	}
}

// MessageType identifies the type of message in an object header.
type MessageType uint16

// Message type constants identify different types of header messages.
const (
	MsgNil            MessageType = 0x00
	MsgDataspace      MessageType = 0x01
	MsgLinkInfo       MessageType = 0x02
	MsgDatatype       MessageType = 0x03
	MsgFillValueOld   MessageType = 0x04
	MsgFillValue      MessageType = 0x05
	MsgLinkMessage    MessageType = 0x06
	MsgDataLayout     MessageType = 0x08
	MsgGroupInfo      MessageType = 0x0A
	MsgFilterPipeline MessageType = 0x0B
	MsgAttribute      MessageType = 0x0C
	MsgName           MessageType = 0x0D
	MsgModTime        MessageType = 0x12
	MsgAttributeInfo  MessageType = 0x0F
	MsgContinuation   MessageType = 0x10
	MsgSymbolTable    MessageType = 0x11
)

// Header message flags.
const (
	MsgFlagConstant = 0x01
	MsgFlagShared   = 0x02
)

// Header size limits.
const (
	maxHeaderChunk   = 16 * 1024 * 1024
	maxContinuations = 1024
)

// ObjectHeader is a parsed object header: the list of messages describing
// one group, dataset or committed datatype.
type ObjectHeader struct {
	Address  uint64
	Version  uint8
	Flags    uint8
	Type     ObjectType
	Messages []*HeaderMessage
}

// HeaderMessage is a single raw message. Data excludes the message prefix.
type HeaderMessage struct {
	Type  MessageType
	Flags uint8
	Data  []byte
}

// Find returns the first message of the given type, or nil.
func (h *ObjectHeader) Find(t MessageType) *HeaderMessage {
	for _, m := range h.Messages {
		if m.Type == t {
			return m
		}
	}
	return nil
}

// FindAll returns every message of the given type in header order.
func (h *ObjectHeader) FindAll(t MessageType) []*HeaderMessage {
	var out []*HeaderMessage
	for _, m := range h.Messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// chunk is a pending block of header messages.
type chunk struct {
	addr uint64
	size uint64
}

// ReadObjectHeader reads the object header at address. Both version 1 and
// version 2 headers are supported, including continuation blocks.
func ReadObjectHeader(r utils.ReaderAt, address uint64, sb *Superblock) (*ObjectHeader, error) {
	prefix := make([]byte, 4)
	if err := utils.ReadFull(r, prefix, address); err != nil {
		return nil, utils.WrapErrorAt("object header read failed", address, err)
	}

	h := &ObjectHeader{Address: address}
	var err error
	switch {
	case string(prefix) == "OHDR":
		err = h.parseV2(r, sb)
	case prefix[0] == 1 && prefix[1] == 0:
		err = h.parseV1(r, sb)
	default:
		return nil, utils.WrapErrorAt("object header", address,
			fmt.Errorf("invalid object header signature: % x", prefix))
	}
	if err != nil {
		return nil, utils.WrapErrorAt(fmt.Sprintf("v%d object header", h.Version), address, err)
	}

	h.Type = determineObjectType(h.Messages)
	return h, nil
}

func determineObjectType(messages []*HeaderMessage) ObjectType {
	for _, msg := range messages {
		switch msg.Type {
		case MsgSymbolTable, MsgLinkInfo, MsgLinkMessage, MsgGroupInfo:
			return ObjectTypeGroup
		case MsgDataspace, MsgDataLayout:
			return ObjectTypeDataset
		}
	}
	for _, msg := range messages {
		if msg.Type == MsgDatatype {
			return ObjectTypeDatatype
		}
	}
	return ObjectTypeUnknown
}

func (h *ObjectHeader) parseV1(r utils.ReaderAt, sb *Superblock) error {
	h.Version = 1

	prefix := make([]byte, 16)
	if err := utils.ReadFull(r, prefix, h.Address); err != nil {
		return err
	}
	// version(1) reserved(1) nmsgs(2) refcount(4) size(4) padding(4)
	size := uint64(sb.Endianness.Uint32(prefix[8:12]))

	queue := []chunk{{addr: h.Address + 16, size: size}}
	for i := 0; len(queue) > 0; i++ {
		if i > maxContinuations {
			return errors.New("too many continuation blocks")
		}
		c := queue[0]
		queue = queue[1:]

		data, err := readChunk(r, c)
		if err != nil {
			return err
		}
		more, err := h.decodeV1Messages(data, sb)
		if err != nil {
			return err
		}
		queue = append(queue, more...)
	}
	return nil
}

func (h *ObjectHeader) decodeV1Messages(data []byte, sb *Superblock) ([]chunk, error) {
	var cont []chunk
	pos := 0
	for pos+8 <= len(data) {
		mtype := MessageType(sb.Endianness.Uint16(data[pos : pos+2]))
		msize := int(sb.Endianness.Uint16(data[pos+2 : pos+4]))
		mflags := data[pos+4]
		pos += 8
		if pos+msize > len(data) {
			return nil, fmt.Errorf("message type %d overruns header block", mtype)
		}
		body := data[pos : pos+msize]
		pos += msize
		pos = (pos + 7) &^ 7

		c, ok, err := h.addMessage(mtype, mflags, body, sb)
		if err != nil {
			return nil, err
		}
		if ok {
			cont = append(cont, c)
		}
	}
	return cont, nil
}

func (h *ObjectHeader) parseV2(r utils.ReaderAt, sb *Superblock) error {
	fixed := make([]byte, 6+16+4+8)
	if err := utils.ReadFull(r, fixed[:6], h.Address); err != nil {
		return err
	}
	h.Version = fixed[4]
	h.Flags = fixed[5]
	if h.Version != 2 {
		return fmt.Errorf("unsupported object header version: %d", h.Version)
	}

	n := uint64(6)
	if h.Flags&0x20 != 0 {
		n += 16 // access, modification, change, birth times
	}
	if h.Flags&0x10 != 0 {
		n += 4 // max compact / min dense attributes
	}
	sizeBytes := uint64(1) << (h.Flags & 0x03)
	if err := utils.ReadFull(r, fixed[6:n+sizeBytes], h.Address+6); err != nil {
		return err
	}
	chunk0 := utils.ReadUint(fixed[n:], int(sizeBytes), sb.Endianness)
	n += sizeBytes

	// The first chunk is checksummed together with its prefix.
	total := n + chunk0 + 4
	if err := utils.ValidateBufferSize(total, maxHeaderChunk, "object header chunk"); err != nil {
		return err
	}
	buf := make([]byte, total)
	if err := utils.ReadFull(r, buf, h.Address); err != nil {
		return err
	}
	if err := VerifyChecksum(buf, sb); err != nil {
		return err
	}

	queue, err := h.decodeV2Messages(buf[n:n+chunk0], sb)
	if err != nil {
		return err
	}

	for i := 0; len(queue) > 0; i++ {
		if i > maxContinuations {
			return errors.New("too many continuation blocks")
		}
		c := queue[0]
		queue = queue[1:]

		data, err := readChunk(r, c)
		if err != nil {
			return err
		}
		if len(data) < 8 || string(data[:4]) != "OCHK" {
			return utils.WrapErrorAt("continuation chunk", c.addr, errors.New("missing OCHK signature"))
		}
		if err := VerifyChecksum(data, sb); err != nil {
			return utils.WrapErrorAt("continuation chunk", c.addr, err)
		}
		more, err := h.decodeV2Messages(data[4:len(data)-4], sb)
		if err != nil {
			return err
		}
		queue = append(queue, more...)
	}
	return nil
}

func (h *ObjectHeader) decodeV2Messages(data []byte, sb *Superblock) ([]chunk, error) {
	prefixLen := 4
	if h.Flags&0x04 != 0 {
		prefixLen += 2 // creation order
	}

	var cont []chunk
	pos := 0
	for pos+prefixLen <= len(data) {
		mtype := MessageType(data[pos])
		msize := int(sb.Endianness.Uint16(data[pos+1 : pos+3]))
		mflags := data[pos+3]
		pos += prefixLen
		if pos+msize > len(data) {
			return nil, fmt.Errorf("message type %d overruns header chunk", mtype)
		}
		body := data[pos : pos+msize]
		pos += msize

		c, ok, err := h.addMessage(mtype, mflags, body, sb)
		if err != nil {
			return nil, err
		}
		if ok {
			cont = append(cont, c)
		}
	}
	// Anything left is a gap smaller than a message prefix.
	return cont, nil
}

// addMessage records a message, returning a continuation block if the
// message is one.
func (h *ObjectHeader) addMessage(t MessageType, flags uint8, body []byte, sb *Superblock) (chunk, bool, error) {
	switch t {
	case MsgNil:
		return chunk{}, false, nil
	case MsgContinuation:
		need := int(sb.OffsetSize) + int(sb.LengthSize)
		if len(body) < need {
			return chunk{}, false, errors.New("continuation message too short")
		}
		c := chunk{
			addr: sb.DecodeAddress(body),
			size: sb.DecodeLength(body[sb.OffsetSize:]),
		}
		return c, true, nil
	}

	data := make([]byte, len(body))
	copy(data, body)
	h.Messages = append(h.Messages, &HeaderMessage{Type: t, Flags: flags, Data: data})
	return chunk{}, false, nil
}

func readChunk(r utils.ReaderAt, c chunk) ([]byte, error) {
	if err := utils.ValidateBufferSize(c.size, maxHeaderChunk, "object header chunk"); err != nil {
		return nil, err
	}
	data := make([]byte, c.size)
	if err := utils.ReadFull(r, data, c.addr); err != nil {
		return nil, utils.WrapErrorAt("header chunk read failed", c.addr, err)
	}
	return data, nil
}

// VerifyChecksum checks the trailing lookup3 checksum of a metadata block.
func VerifyChecksum(block []byte, sb *Superblock) error {
	if len(block) < 4 {
		return utils.ErrTruncated
	}
	body := block[:len(block)-4]
	stored := sb.Endianness.Uint32(block[len(block)-4:])
	if sum := utils.Checksum(body); sum != stored {
		return fmt.Errorf("checksum mismatch: stored 0x%08x, computed 0x%08x", stored, sum)
	}
	return nil
}

// SharedAddress decodes a shared message and returns the object header
// address holding the real message. Only messages committed to an object
// header are supported; messages in the shared message heap are not.
func SharedAddress(data []byte, sb *Superblock) (uint64, error) {
	if len(data) < 2 {
		return 0, utils.ErrTruncated
	}
	version, kind := data[0], data[1]
	pos := 2
	switch version {
	case 1:
		pos += 6
	case 2:
	case 3:
		if kind != 2 {
			return 0, fmt.Errorf("%w: shared message type %d", ErrUnsupported, kind)
		}
	default:
		return 0, fmt.Errorf("unsupported shared message version: %d", version)
	}
	if len(data) < pos+int(sb.OffsetSize) {
		return 0, utils.ErrTruncated
	}
	return sb.DecodeAddress(data[pos:]), nil
}
