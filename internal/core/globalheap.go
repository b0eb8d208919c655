package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// GlobalHeapCollection is a parsed "GCOL" collection. Variable-length data
// and strings live in these collections.
type GlobalHeapCollection struct {
	Address uint64
	Size    uint64
	Objects map[uint16][]byte
}

// ReadGlobalHeapCollection reads the collection at address.
//
// Layout: "GCOL", version(1), reserved(3), collection size(L), then objects:
// index(2), refcount(2), reserved(4), size(L), data padded to 8 bytes.
// Index 0 marks the free space that ends the collection.
func ReadGlobalHeapCollection(r utils.ReaderAt, address uint64, sb *Superblock) (*GlobalHeapCollection, error) {
	l := int(sb.LengthSize)
	head := make([]byte, 8+l)
	if err := utils.ReadFull(r, head, address); err != nil {
		return nil, utils.WrapErrorAt("global heap read failed", address, err)
	}
	if string(head[:4]) != "GCOL" {
		return nil, utils.WrapErrorAt("global heap", address, fmt.Errorf("invalid signature %q", head[:4]))
	}
	if head[4] != 1 {
		return nil, utils.WrapErrorAt("global heap", address, fmt.Errorf("unsupported version %d", head[4]))
	}

	gc := &GlobalHeapCollection{
		Address: address,
		Size:    sb.DecodeLength(head[8:]),
		Objects: map[uint16][]byte{},
	}
	if gc.Size < uint64(len(head)) {
		return nil, utils.WrapErrorAt("global heap", address, errors.New("collection smaller than its header"))
	}
	if err := utils.ValidateBufferSize(gc.Size, utils.MaxChunkSize, "global heap collection"); err != nil {
		return nil, err
	}

	buf := make([]byte, gc.Size)
	if err := utils.ReadFull(r, buf, address); err != nil {
		return nil, utils.WrapErrorAt("global heap read failed", address, err)
	}

	pos := len(head)
	for pos+8+l <= len(buf) {
		index := sb.Endianness.Uint16(buf[pos:])
		size := sb.DecodeLength(buf[pos+8:])
		pos += 8 + l
		if index == 0 {
			break
		}
		if uint64(pos)+size > uint64(len(buf)) {
			return nil, utils.WrapErrorAt("global heap", address, fmt.Errorf("object %d overruns collection", index))
		}
		gc.Objects[index] = buf[pos : pos+int(size)]
		pos += int((size + 7) &^ 7)
	}
	return gc, nil
}

// GlobalHeap caches collections by address.
type GlobalHeap struct {
	r           utils.ReaderAt
	sb          *Superblock
	collections map[uint64]*GlobalHeapCollection
}

// NewGlobalHeap returns an empty collection cache.
func NewGlobalHeap(r utils.ReaderAt, sb *Superblock) *GlobalHeap {
	return &GlobalHeap{r: r, sb: sb, collections: map[uint64]*GlobalHeapCollection{}}
}

// Object returns the bytes of object index in the collection at address.
func (g *GlobalHeap) Object(address uint64, index uint32) ([]byte, error) {
	gc, ok := g.collections[address]
	if !ok {
		var err error
		if gc, err = ReadGlobalHeapCollection(g.r, address, g.sb); err != nil {
			return nil, err
		}
		g.collections[address] = gc
	}
	var obj []byte
	if index <= 0xFFFF {
		obj, ok = gc.Objects[uint16(index)]
	}
	if !ok || index > 0xFFFF {
		return nil, fmt.Errorf("global heap object %d not found at 0x%x", index, address)
	}
	return obj, nil
}

// ReadVarLen resolves one variable-length element descriptor: sequence
// length(4), collection address(O), object index(4). An empty sequence
// stores an undefined or zero address.
func (g *GlobalHeap) ReadVarLen(desc []byte) ([]byte, uint32, error) {
	o := int(g.sb.OffsetSize)
	if len(desc) < 8+o {
		return nil, 0, utils.ErrTruncated
	}
	length := g.sb.Endianness.Uint32(desc[0:4])
	addr := g.sb.DecodeAddress(desc[4:])
	index := g.sb.Endianness.Uint32(desc[4+o:])
	if length == 0 || addr == 0 || g.sb.IsUndefined(addr) {
		return nil, 0, nil
	}
	obj, err := g.Object(addr, index)
	if err != nil {
		return nil, 0, err
	}
	return obj, length, nil
}
