package writer

import "fmt"

// ChunkCoordinator maps a dataset onto its chunk grid. Chunks are numbered
// in row-major order of their grid coordinates.
type ChunkCoordinator struct {
	datasetDims []uint64
	chunkDims   []uint64
	numChunks   []uint64
}

// NewChunkCoordinator validates the shapes and computes the grid.
func NewChunkCoordinator(datasetDims, chunkDims []uint64) (*ChunkCoordinator, error) {
	if len(datasetDims) != len(chunkDims) {
		return nil, fmt.Errorf("dimensions mismatch: dataset has %d dims, chunk has %d dims",
			len(datasetDims), len(chunkDims))
	}
	if len(datasetDims) == 0 {
		return nil, fmt.Errorf("dataset must have at least 1 dimension")
	}
	for i, dim := range chunkDims {
		if dim == 0 {
			return nil, fmt.Errorf("chunk dimension %d cannot be zero", i)
		}
	}

	numChunks := make([]uint64, len(datasetDims))
	for i := range datasetDims {
		numChunks[i] = (datasetDims[i] + chunkDims[i] - 1) / chunkDims[i]
	}
	return &ChunkCoordinator{
		datasetDims: datasetDims,
		chunkDims:   chunkDims,
		numChunks:   numChunks,
	}, nil
}

// TotalChunks is the number of chunks in the grid.
func (cc *ChunkCoordinator) TotalChunks() uint64 {
	total := uint64(1)
	for _, n := range cc.numChunks {
		total *= n
	}
	return total
}

// ChunkCoordinate returns the grid coordinate of chunk index.
func (cc *ChunkCoordinator) ChunkCoordinate(index uint64) []uint64 {
	coord := make([]uint64, len(cc.datasetDims))
	for i := len(cc.numChunks) - 1; i >= 0; i-- {
		coord[i] = index % cc.numChunks[i]
		index /= cc.numChunks[i]
	}
	return coord
}

// ChunkOrigin returns the element offset of the chunk at coord.
func (cc *ChunkCoordinator) ChunkOrigin(coord []uint64) []uint64 {
	origin := make([]uint64, len(coord))
	for i := range coord {
		origin[i] = coord[i] * cc.chunkDims[i]
	}
	return origin
}

// ChunkBytes is the stored size of one unfiltered chunk.
func (cc *ChunkCoordinator) ChunkBytes(elemSize uint32) uint64 {
	n := uint64(elemSize)
	for _, d := range cc.chunkDims {
		n *= d
	}
	return n
}

// ExtractChunkData copies the chunk at coord out of row-major data. Edge
// chunks are zero-padded to the full chunk shape, as HDF5 stores them.
func (cc *ChunkCoordinator) ExtractChunkData(data []byte, coord []uint64, elemSize uint32) []byte {
	out := make([]byte, cc.ChunkBytes(elemSize))
	cc.extract(data, out, cc.ChunkOrigin(coord), 0, 0, 0, uint64(elemSize))
	return out
}

func (cc *ChunkCoordinator) extract(src, dst []byte, origin []uint64, dim int, srcOff, dstOff, elem uint64) {
	if dim == len(cc.datasetDims) {
		copy(dst[dstOff:dstOff+elem], src[srcOff:srcOff+elem])
		return
	}

	dsStride, chunkStride := elem, elem
	for i := dim + 1; i < len(cc.datasetDims); i++ {
		dsStride *= cc.datasetDims[i]
		chunkStride *= cc.chunkDims[i]
	}

	n := cc.chunkDims[dim]
	if origin[dim]+n > cc.datasetDims[dim] {
		n = cc.datasetDims[dim] - origin[dim]
	}
	for i := uint64(0); i < n; i++ {
		cc.extract(src, dst, origin, dim+1, srcOff+(origin[dim]+i)*dsStride, dstOff+i*chunkStride, elem)
	}
}
