// Package writer builds small, valid HDF5 files: superblock version 2,
// version 2 object headers, compact links and attributes, and contiguous,
// compact or chunked datasets with an optional filter pipeline.
//
// It produces the fixtures the reader is tested against and backs the
// h5gen sample generator. Space is handed out at the end of the file and
// never reused.
package writer

import (
	"fmt"
	"sort"
)

// AllocatedBlock is a reserved region of the file.
type AllocatedBlock struct {
	Offset uint64
	Size   uint64
}

// Allocator hands out file space sequentially from an initial offset.
//
// Thread Safety: not thread-safe; one Allocator serves one FileWriter.
type Allocator struct {
	blocks     []AllocatedBlock
	nextOffset uint64
}

// NewAllocator starts allocating at initialOffset, which is normally the
// size of the superblock written at address 0.
func NewAllocator(initialOffset uint64) *Allocator {
	return &Allocator{
		blocks:     make([]AllocatedBlock, 0, 16),
		nextOffset: initialOffset,
	}
}

// Allocate reserves size bytes at the end of the file and returns their
// address. Addresses are aligned to 8 bytes.
func (a *Allocator) Allocate(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("cannot allocate zero bytes")
	}

	addr := (a.nextOffset + 7) &^ 7
	if addr+size < addr {
		return 0, fmt.Errorf("allocation of %d bytes at %d overflows", size, addr)
	}
	a.blocks = append(a.blocks, AllocatedBlock{Offset: addr, Size: size})
	a.nextOffset = addr + size
	return addr, nil
}

// EndOfFile is the address just past the last allocation.
func (a *Allocator) EndOfFile() uint64 {
	return a.nextOffset
}

// Blocks returns a sorted copy of the allocations.
func (a *Allocator) Blocks() []AllocatedBlock {
	blocks := make([]AllocatedBlock, len(a.blocks))
	copy(blocks, a.blocks)
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Offset < blocks[j].Offset
	})
	return blocks
}

// ValidateNoOverlaps checks that no two allocations intersect.
func (a *Allocator) ValidateNoOverlaps() error {
	blocks := a.Blocks()
	for i := 0; i+1 < len(blocks); i++ {
		cur, next := blocks[i], blocks[i+1]
		if cur.Offset+cur.Size > next.Offset {
			return fmt.Errorf("overlap detected: block at %d (size %d) overlaps block at %d",
				cur.Offset, cur.Size, next.Offset)
		}
	}
	return nil
}
