package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// CollectChunks lists the allocated chunks of a chunked dataset with the
// given dimensions. Unallocated chunks are omitted.
func CollectChunks(r utils.ReaderAt, layout *DataLayoutMessage, dims []uint64, sb *Superblock) ([]ChunkEntry, error) {
	if !layout.IsChunked() {
		return nil, errors.New("dataset is not chunked")
	}
	if sb.IsUndefined(layout.DataAddress) {
		return nil, nil
	}

	cdims := layout.ChunkDims()
	if len(cdims) != len(dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataspace rank %d", len(cdims), len(dims))
	}
	for i, c := range cdims {
		if c == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", i)
		}
	}

	switch layout.IndexType {
	case IndexBTreeV1:
		return readBTreeChunks(r, layout.DataAddress, sb, len(layout.ChunkSize))
	case IndexSingleChunk:
		return []ChunkEntry{{
			Offset:     make([]uint64, len(dims)),
			Size:       uint32(layout.FilteredSize), //nolint:gosec // G115: chunk sizes are 32-bit in the format
			FilterMask: layout.FilterMask,
			Address:    layout.DataAddress,
		}}, nil
	case IndexImplicit:
		return implicitChunks(layout, dims)
	case IndexFixedArray:
		return readFixedArrayChunks(r, layout, dims, sb)
	}
	return nil, fmt.Errorf("%w: %s chunk index", ErrUnsupported, layout.IndexType)
}

// chunkGrid returns the number of chunks along each dimension.
func chunkGrid(dims, cdims []uint64) []uint64 {
	grid := make([]uint64, len(dims))
	for i := range dims {
		grid[i] = (dims[i] + cdims[i] - 1) / cdims[i]
	}
	return grid
}

// chunkOrigin converts a row-major chunk index to element coordinates.
func chunkOrigin(index uint64, grid, cdims []uint64) []uint64 {
	off := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		off[d] = (index % grid[d]) * cdims[d]
		index /= grid[d]
	}
	return off
}

func implicitChunks(layout *DataLayoutMessage, dims []uint64) ([]ChunkEntry, error) {
	cdims := layout.ChunkDims()
	grid := chunkGrid(dims, cdims)
	count, err := utils.Product(grid, 1)
	if err != nil {
		return nil, err
	}
	size, err := utils.Product(layout.ChunkSize, 1)
	if err != nil {
		return nil, err
	}

	out := make([]ChunkEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		out = append(out, ChunkEntry{
			Offset:  chunkOrigin(i, grid, cdims),
			Address: layout.DataAddress + i*size,
		})
	}
	return out, nil
}

// readFixedArrayChunks decodes a fixed array chunk index: an FAHD header
// pointing at an FADB data block whose elements are chunk addresses,
// optionally followed by the filtered size and filter mask.
func readFixedArrayChunks(r utils.ReaderAt, layout *DataLayoutMessage, dims []uint64, sb *Superblock) ([]ChunkEntry, error) {
	o := int(sb.OffsetSize)
	l := int(sb.LengthSize)

	hdr := make([]byte, 8+l+o+4)
	if err := utils.ReadFull(r, hdr, layout.DataAddress); err != nil {
		return nil, utils.WrapErrorAt("fixed array header read failed", layout.DataAddress, err)
	}
	if string(hdr[:4]) != "FAHD" {
		return nil, utils.WrapErrorAt("fixed array header", layout.DataAddress, errors.New("invalid signature"))
	}
	if err := VerifyChecksum(hdr, sb); err != nil {
		return nil, utils.WrapErrorAt("fixed array header", layout.DataAddress, err)
	}
	client := hdr[5]
	entrySize := int(hdr[6])
	pageBits := uint(hdr[7])
	nelems := sb.DecodeLength(hdr[8:])
	block := sb.DecodeAddress(hdr[8+l:])

	if entrySize < o || (client == 1 && entrySize < o+4+1) {
		return nil, fmt.Errorf("invalid fixed array entry size: %d", entrySize)
	}

	prefix := 6 + o
	pageElems := uint64(1) << pageBits
	paged := nelems > pageElems
	var pages uint64
	if paged {
		pages = (nelems + pageElems - 1) / pageElems
		prefix += int((pages + 7) / 8)
	}

	total := uint64(prefix+4) + nelems*uint64(entrySize)
	if paged {
		total += pages * 4
	}
	if err := utils.ValidateBufferSize(total, utils.MaxChunkSize, "fixed array data block"); err != nil {
		return nil, err
	}
	buf := make([]byte, total)
	if err := utils.ReadFull(r, buf, block); err != nil {
		return nil, utils.WrapErrorAt("fixed array data block read failed", block, err)
	}
	if string(buf[:4]) != "FADB" {
		return nil, utils.WrapErrorAt("fixed array data block", block, errors.New("invalid signature"))
	}

	// Collect the element bytes, skipping per-page checksums.
	var elems []byte
	if paged {
		pos := prefix + 4
		for p := uint64(0); p < pages; p++ {
			n := pageElems
			if rest := nelems - p*pageElems; rest < n {
				n = rest
			}
			sz := int(n) * entrySize
			elems = append(elems, buf[pos:pos+sz]...)
			pos += sz + 4
		}
	} else {
		elems = buf[prefix : prefix+int(nelems)*entrySize]
	}

	cdims := layout.ChunkDims()
	grid := chunkGrid(dims, cdims)
	var out []ChunkEntry
	for i := uint64(0); i < nelems; i++ {
		e := elems[int(i)*entrySize:]
		addr := sb.DecodeAddress(e)
		if sb.IsUndefined(addr) {
			continue
		}
		entry := ChunkEntry{Offset: chunkOrigin(i, grid, cdims), Address: addr}
		if client == 1 {
			sizeLen := entrySize - o - 4
			entry.Size = uint32(utils.ReadUint(e[o:], sizeLen, sb.Endianness)) //nolint:gosec // G115: chunk sizes are 32-bit
			entry.FilterMask = sb.Endianness.Uint32(e[o+sizeLen:])
		}
		out = append(out, entry)
	}
	return out, nil
}
