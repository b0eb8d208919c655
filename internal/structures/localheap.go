// Package structures resolves group membership: local heaps, symbol table
// nodes, the group B-tree and link messages.
package structures

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

// LocalHeap holds the data segment of a "HEAP" local heap. Symbol tables
// store link names and soft link values here.
//
// Header: "HEAP", version(1), reserved(3), data segment size(L),
// free list offset(L), data segment address(O).
type LocalHeap struct {
	Address     uint64
	DataAddress uint64
	Data        []byte
}

// LoadLocalHeap reads the heap header at address and its data segment.
func LoadLocalHeap(r utils.ReaderAt, address uint64, sb *core.Superblock) (*LocalHeap, error) {
	l := int(sb.LengthSize)
	head := utils.GetBuffer(8 + 2*l + int(sb.OffsetSize))
	defer utils.ReleaseBuffer(head)

	if err := utils.ReadFull(r, head, address); err != nil {
		return nil, utils.WrapErrorAt("local heap header read failed", address, err)
	}
	if string(head[:4]) != "HEAP" {
		return nil, utils.WrapErrorAt("local heap", address, errors.New("invalid local heap signature"))
	}
	if head[4] != 0 {
		return nil, utils.WrapErrorAt("local heap", address, fmt.Errorf("unsupported version %d", head[4]))
	}

	size := sb.DecodeLength(head[8:])
	if err := utils.ValidateBufferSize(size, utils.MaxChunkSize, "local heap data"); err != nil {
		return nil, err
	}
	heap := &LocalHeap{
		Address:     address,
		DataAddress: sb.DecodeAddress(head[8+2*l:]),
		Data:        make([]byte, size),
	}
	if err := utils.ReadFull(r, heap.Data, heap.DataAddress); err != nil {
		return nil, utils.WrapErrorAt("local heap data read failed", heap.DataAddress, err)
	}
	return heap, nil
}

// GetString returns the NUL-terminated string at offset in the data segment.
func (h *LocalHeap) GetString(offset uint64) (string, error) {
	if offset >= uint64(len(h.Data)) {
		return "", fmt.Errorf("offset %d beyond local heap data (%d bytes)", offset, len(h.Data))
	}
	end := offset
	for end < uint64(len(h.Data)) && h.Data[end] != 0 {
		end++
	}
	if end == uint64(len(h.Data)) {
		return "", errors.New("string not null-terminated")
	}
	return string(h.Data[offset:end]), nil
}
