package structures

import (
	"fmt"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

// Symbol table entry cache types.
const (
	CacheNone        = 0
	CacheSymbolTable = 1
	CacheSoftLink    = 2
)

// SymbolTableMessage is header message 0x11, present on old-style groups.
type SymbolTableMessage struct {
	BTreeAddress uint64
	HeapAddress  uint64
}

// ParseSymbolTableMessage decodes the B-tree and local heap addresses.
func ParseSymbolTableMessage(data []byte, sb *core.Superblock) (*SymbolTableMessage, error) {
	o := int(sb.OffsetSize)
	if len(data) < 2*o {
		return nil, fmt.Errorf("symbol table message too short: %d bytes", len(data))
	}
	return &SymbolTableMessage{
		BTreeAddress: sb.DecodeAddress(data),
		HeapAddress:  sb.DecodeAddress(data[o:]),
	}, nil
}

// SymbolTableEntry is one entry of a symbol table node.
type SymbolTableEntry struct {
	NameOffset    uint64
	ObjectAddress uint64
	CacheType     uint32
	Scratch       [16]byte
}

// SoftLinkOffset returns the local heap offset of a cached soft link value.
func (e *SymbolTableEntry) SoftLinkOffset(sb *core.Superblock) uint64 {
	return uint64(sb.Endianness.Uint32(e.Scratch[:4]))
}

func entrySize(sb *core.Superblock) int {
	return 2*int(sb.OffsetSize) + 4 + 4 + 16
}

// ReadSymbolTableNode reads the used entries of the "SNOD" node at address.
func ReadSymbolTableNode(r utils.ReaderAt, address uint64, sb *core.Superblock) ([]SymbolTableEntry, error) {
	head := make([]byte, 8)
	if err := utils.ReadFull(r, head, address); err != nil {
		return nil, utils.WrapErrorAt("SNOD header read failed", address, err)
	}
	if string(head[:4]) != "SNOD" {
		return nil, utils.WrapErrorAt("symbol table node", address, fmt.Errorf("invalid SNOD signature: %q", head[:4]))
	}
	if head[4] != 1 {
		return nil, utils.WrapErrorAt("symbol table node", address, fmt.Errorf("unsupported SNOD version: %d", head[4]))
	}

	n := int(sb.Endianness.Uint16(head[6:8]))
	if n == 0 {
		return nil, nil
	}

	size := entrySize(sb)
	data := utils.GetBuffer(n * size)
	defer utils.ReleaseBuffer(data)
	if err := utils.ReadFull(r, data, address+8); err != nil {
		return nil, utils.WrapErrorAt("SNOD entries read failed", address, err)
	}

	o := int(sb.OffsetSize)
	entries := make([]SymbolTableEntry, n)
	for i := range entries {
		p := data[i*size:]
		e := &entries[i]
		e.NameOffset = sb.DecodeAddress(p)
		e.ObjectAddress = sb.DecodeAddress(p[o:])
		e.CacheType = sb.Endianness.Uint32(p[2*o:])
		copy(e.Scratch[:], p[2*o+8:])
	}
	return entries, nil
}
