package writer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/scigolib/h5inspect/internal/utils"
)

// Files are written with 8-byte offsets and lengths.
const (
	offsetSize     = 8
	lengthSize     = 8
	superblockSize = 48
	undefined      = utils.UndefinedAddress
)

// Header message types written by this package.
const (
	msgDataspace      = 0x01
	msgLinkInfo       = 0x02
	msgDatatype       = 0x03
	msgFillValue      = 0x05
	msgLink           = 0x06
	msgDataLayout     = 0x08
	msgGroupInfo      = 0x0A
	msgFilterPipeline = 0x0B
	msgAttribute      = 0x0C
)

var le = binary.LittleEndian

type message struct {
	typ  uint8
	data []byte
}

// encodeSuperblock writes superblock version 2 with 8-byte offsets and
// lengths and no extension.
func encodeSuperblock(eof, root uint64) []byte {
	buf := make([]byte, 0, superblockSize)
	buf = append(buf, "\x89HDF\r\n\x1a\n"...)
	buf = append(buf, 2, offsetSize, lengthSize, 0)
	buf = le.AppendUint64(buf, 0)         // base address
	buf = le.AppendUint64(buf, undefined) // superblock extension
	buf = le.AppendUint64(buf, eof)
	buf = le.AppendUint64(buf, root)
	return le.AppendUint32(buf, utils.Checksum(buf))
}

// encodeObjectHeader builds a version 2 object header with a single
// 4-byte-sized chunk and no timestamps.
func encodeObjectHeader(msgs []message) ([]byte, error) {
	var body []byte
	for _, m := range msgs {
		if len(m.data) > math.MaxUint16 {
			return nil, fmt.Errorf("header message 0x%02x too large: %d bytes", m.typ, len(m.data))
		}
		body = append(body, m.typ)
		body = le.AppendUint16(body, uint16(len(m.data)))
		body = append(body, 0) // flags
		body = append(body, m.data...)
	}

	buf := []byte("OHDR")
	buf = append(buf, 2, 0x02) // version, chunk size stored in 4 bytes
	buf = le.AppendUint32(buf, uint32(len(body))) //nolint:gosec // G115: bounded by message count
	buf = append(buf, body...)
	return le.AppendUint32(buf, utils.Checksum(buf)), nil
}

// encodeDataspace writes a version 2 dataspace. A nil dims slice is a
// scalar.
func encodeDataspace(dims, maxDims []uint64) []byte {
	typ := byte(1)
	if dims == nil {
		typ = 0
	}
	flags := byte(0)
	if maxDims != nil {
		flags = 1
	}
	buf := []byte{2, byte(len(dims)), flags, typ}
	for _, d := range dims {
		buf = le.AppendUint64(buf, d)
	}
	for _, d := range maxDims {
		buf = le.AppendUint64(buf, d)
	}
	return buf
}

func encodeNullDataspace() []byte {
	return []byte{2, 0, 0, 2}
}

func datatypeHeader(class byte, bits uint32, size uint32) []byte {
	buf := le.AppendUint32(nil, uint32(class)|1<<4|bits<<8)
	return le.AppendUint32(buf, size)
}

// encodeIntType describes a little-endian integer.
func encodeIntType(size uint32, signed bool) []byte {
	bits := uint32(0)
	if signed {
		bits = 0x08
	}
	buf := datatypeHeader(0, bits, size)
	buf = le.AppendUint16(buf, 0)
	return le.AppendUint16(buf, uint16(size*8)) //nolint:gosec // G115: size is at most 8
}

// encodeFloatType describes a little-endian IEEE float of 4 or 8 bytes.
func encodeFloatType(size uint32) []byte {
	prec, expLoc, expSize, mantSize, bias := uint16(64), byte(52), byte(11), byte(52), uint32(1023)
	if size == 4 {
		prec, expLoc, expSize, mantSize, bias = 32, 23, 8, 23, 127
	}
	// Implied mantissa normalization, sign bit at the top.
	bits := uint32(0x20) | uint32(prec-1)<<8
	buf := datatypeHeader(1, bits, size)
	buf = le.AppendUint16(buf, 0)
	buf = le.AppendUint16(buf, prec)
	buf = append(buf, expLoc, expSize, 0, mantSize)
	return le.AppendUint32(buf, bias)
}

// encodeStringType describes a null-padded ASCII fixed-length string.
func encodeStringType(size uint32) []byte {
	return datatypeHeader(3, 1, size)
}

func encodeLayoutContiguous(addr, size uint64) []byte {
	buf := []byte{3, 1}
	buf = le.AppendUint64(buf, addr)
	return le.AppendUint64(buf, size)
}

func encodeLayoutCompact(data []byte) []byte {
	buf := []byte{3, 0}
	buf = le.AppendUint16(buf, uint16(len(data))) //nolint:gosec // G115: checked by the caller
	return append(buf, data...)
}

// encodeLayoutChunked writes a version 3 chunked layout indexed by a v1
// B-tree. The stored dimensions carry the element size last.
func encodeLayoutChunked(btree uint64, chunk []uint64, elemSize uint32) []byte {
	buf := []byte{3, 2, byte(len(chunk) + 1)}
	buf = le.AppendUint64(buf, btree)
	for _, c := range chunk {
		buf = le.AppendUint32(buf, uint32(c)) //nolint:gosec // G115: chunk dims are validated
	}
	return le.AppendUint32(buf, elemSize)
}

// encodeFillValue writes a version 3 fill value message, with value when
// non-nil.
func encodeFillValue(value []byte) []byte {
	if value == nil {
		// Allocation late, fill time ifset, fill value undefined.
		return []byte{3, 0x02 | 0x02<<2 | 0x10}
	}
	buf := []byte{3, 0x02 | 0x02<<2 | 0x20}
	buf = le.AppendUint32(buf, uint32(len(value))) //nolint:gosec // G115: element size
	return append(buf, value...)
}

func encodeLinkInfo() []byte {
	buf := []byte{0, 0}
	buf = le.AppendUint64(buf, undefined)
	return le.AppendUint64(buf, undefined)
}

func encodeGroupInfo() []byte {
	return []byte{0, 0}
}

// encodeLink writes a link message. A non-empty target makes it a soft
// link; otherwise it is a hard link to addr.
func encodeLink(name string, addr uint64, target string) []byte {
	flags := byte(0)
	nameLen := []byte{byte(len(name))}
	if len(name) > 0xFF {
		flags |= 0x01
		nameLen = le.AppendUint16(nil, uint16(len(name))) //nolint:gosec // G115: names are checked
	}
	if target != "" {
		flags |= 0x08
	}

	buf := []byte{1, flags}
	if target != "" {
		buf = append(buf, 1)
	}
	buf = append(buf, nameLen...)
	buf = append(buf, name...)
	if target != "" {
		buf = le.AppendUint16(buf, uint16(len(target))) //nolint:gosec // G115: paths are short
		return append(buf, target...)
	}
	return le.AppendUint64(buf, addr)
}

// encodeAttribute writes a version 3 attribute message with ASCII name.
func encodeAttribute(name string, v *Value) []byte {
	nameBytes := append([]byte(name), 0)
	space := encodeDataspace(v.Dims, nil)

	buf := []byte{3, 0}
	buf = le.AppendUint16(buf, uint16(len(nameBytes))) //nolint:gosec // G115: names are short
	buf = le.AppendUint16(buf, uint16(len(v.Datatype))) //nolint:gosec // G115: small
	buf = le.AppendUint16(buf, uint16(len(space)))      //nolint:gosec // G115: small
	buf = append(buf, 0)
	buf = append(buf, nameBytes...)
	buf = append(buf, v.Datatype...)
	buf = append(buf, space...)
	return append(buf, v.Data...)
}

// encodeChunkBTree writes a single leaf v1 B-tree node of type 1 covering
// every chunk. Keys are chunk size, filter mask and the chunk origin with
// a trailing zero for the element dimension.
func encodeChunkBTree(chunks []storedChunk, dims []uint64) []byte {
	buf := []byte("TREE")
	buf = append(buf, 1, 0)
	buf = le.AppendUint16(buf, uint16(len(chunks))) //nolint:gosec // G115: bounded by maxLeafChunks
	buf = le.AppendUint64(buf, undefined)
	buf = le.AppendUint64(buf, undefined)

	key := func(size uint32, origin []uint64) {
		buf = le.AppendUint32(buf, size)
		buf = le.AppendUint32(buf, 0)
		for _, o := range origin {
			buf = le.AppendUint64(buf, o)
		}
		buf = le.AppendUint64(buf, 0)
	}
	for _, c := range chunks {
		key(c.size, c.origin)
		buf = le.AppendUint64(buf, c.addr)
	}
	// The final key bounds the dataset.
	key(0, dims)
	return buf
}
