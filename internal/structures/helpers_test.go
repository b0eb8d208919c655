package structures

import (
	"bytes"
	"encoding/binary"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func withChecksum(b []byte) []byte {
	return cat(b, u32(utils.Checksum(b)))
}

func testSuperblock() *core.Superblock {
	return &core.Superblock{Version: 2, OffsetSize: 8, LengthSize: 8, Endianness: binary.LittleEndian}
}

// image is an in-memory file.
type image []byte

func (m image) put(addr int, b []byte) { copy(m[addr:], b) }

func (m image) reader() *bytes.Reader { return bytes.NewReader(m) }

func hardLinkMessage(name string, addr uint64) []byte {
	return cat([]byte{1, 0, byte(len(name))}, []byte(name), u64(addr))
}

func softLinkMessage(name, target string) []byte {
	return cat([]byte{1, 0x08, byte(LinkTypeSoft), byte(len(name))}, []byte(name),
		u16(uint16(len(target))), []byte(target))
}
