package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// DataLayoutClass represents the storage layout type.
type DataLayoutClass uint8

// Data layout class constants define how dataset data is stored.
const (
	LayoutCompact    DataLayoutClass = 0 // Data stored in message.
	LayoutContiguous DataLayoutClass = 1 // Data stored contiguously in file.
	LayoutChunked    DataLayoutClass = 2 // Data stored in chunks.
	LayoutVirtual    DataLayoutClass = 3 // Virtual dataset.
)

func (c DataLayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return "unknown"
}

// ChunkIndexType identifies how chunk addresses are indexed.
type ChunkIndexType uint8

// Chunk index types. Layouts before version 4 always use a v1 B-tree.
const (
	IndexBTreeV1     ChunkIndexType = 0
	IndexSingleChunk ChunkIndexType = 1
	IndexImplicit    ChunkIndexType = 2
	IndexFixedArray  ChunkIndexType = 3
	IndexExtensible  ChunkIndexType = 4
	IndexBTreeV2     ChunkIndexType = 5
)

func (t ChunkIndexType) String() string {
	switch t {
	case IndexBTreeV1:
		return "v1 B-tree"
	case IndexSingleChunk:
		return "single chunk"
	case IndexImplicit:
		return "implicit"
	case IndexFixedArray:
		return "fixed array"
	case IndexExtensible:
		return "extensible array"
	case IndexBTreeV2:
		return "v2 B-tree"
	}
	return "unknown"
}

// DataLayoutMessage represents HDF5 data layout message.
type DataLayoutMessage struct {
	Version     uint8
	Class       DataLayoutClass
	DataAddress uint64   // Contiguous data, or the chunk index address.
	DataSize    uint64   // Contiguous or compact byte size. Zero when not stored.
	CompactData []byte   // Compact layout payload.
	ChunkSize   []uint64 // Chunk dimensions including the trailing element size.

	IndexType ChunkIndexType

	// Single-chunk index with filters.
	FilteredSize uint64
	FilterMask   uint32
}

// ParseDataLayoutMessage parses a data layout message from header message data.
func ParseDataLayoutMessage(data []byte, sb *Superblock) (*DataLayoutMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("data layout message too short")
	}

	msg := &DataLayoutMessage{Version: data[0]}
	var err error
	switch msg.Version {
	case 1, 2:
		err = msg.parseV1(data, sb)
	case 3:
		err = msg.parseV3(data, sb)
	case 4:
		err = msg.parseV4(data, sb)
	default:
		return nil, fmt.Errorf("unsupported data layout version: %d", msg.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("layout v%d: %w", msg.Version, err)
	}
	return msg, nil
}

// parseV1 handles the layout message written by HDF5 1.4 and 1.6.
func (msg *DataLayoutMessage) parseV1(data []byte, sb *Superblock) error {
	if len(data) < 8 {
		return utils.ErrTruncated
	}
	rank := int(data[1])
	msg.Class = DataLayoutClass(data[2])
	pos := 8

	if msg.Class != LayoutCompact {
		if len(data) < pos+int(sb.OffsetSize) {
			return utils.ErrTruncated
		}
		msg.DataAddress = sb.DecodeAddress(data[pos:])
		pos += int(sb.OffsetSize)
	}

	if len(data) < pos+4*rank {
		return utils.ErrTruncated
	}
	dims := make([]uint64, rank)
	for i := range dims {
		dims[i] = uint64(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	}

	switch msg.Class {
	case LayoutChunked:
		// The last dimension already holds the element size.
		msg.ChunkSize = dims
		msg.IndexType = IndexBTreeV1
	case LayoutCompact:
		if len(data) < pos+4 {
			return utils.ErrTruncated
		}
		size := int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
		if len(data) < pos+size {
			return errors.New("compact layout data truncated")
		}
		msg.CompactData = data[pos : pos+size]
		msg.DataSize = uint64(size)
	case LayoutContiguous:
	default:
		return fmt.Errorf("unsupported layout class: %d", msg.Class)
	}
	return nil
}

func (msg *DataLayoutMessage) parseV3(data []byte, sb *Superblock) error {
	msg.Class = DataLayoutClass(data[1])
	pos := 2

	switch msg.Class {
	case LayoutCompact, LayoutContiguous:
		return msg.parseFlat(data[pos:], sb)
	case LayoutChunked:
		if len(data) < pos+1+int(sb.OffsetSize) {
			return utils.ErrTruncated
		}
		rank := int(data[pos])
		pos++
		msg.DataAddress = sb.DecodeAddress(data[pos:])
		pos += int(sb.OffsetSize)
		if len(data) < pos+4*rank {
			return errors.New("chunk dimensions truncated")
		}
		msg.ChunkSize = make([]uint64, rank)
		for i := range msg.ChunkSize {
			msg.ChunkSize[i] = uint64(binary.LittleEndian.Uint32(data[pos:]))
			pos += 4
		}
		msg.IndexType = IndexBTreeV1
		return nil
	}
	return fmt.Errorf("unsupported layout class: %d", msg.Class)
}

func (msg *DataLayoutMessage) parseV4(data []byte, sb *Superblock) error {
	msg.Class = DataLayoutClass(data[1])
	pos := 2

	switch msg.Class {
	case LayoutCompact, LayoutContiguous:
		return msg.parseFlat(data[pos:], sb)
	case LayoutVirtual:
		return fmt.Errorf("%w: virtual dataset layout", ErrUnsupported)
	case LayoutChunked:
	default:
		return fmt.Errorf("unsupported layout class: %d", msg.Class)
	}

	if len(data) < pos+3 {
		return utils.ErrTruncated
	}
	flags := data[pos]
	rank := int(data[pos+1])
	width := int(data[pos+2])
	pos += 3
	if width < 1 || width > 8 {
		return fmt.Errorf("invalid chunk dimension width: %d", width)
	}
	if len(data) < pos+rank*width+1 {
		return errors.New("chunk dimensions truncated")
	}
	msg.ChunkSize = make([]uint64, rank)
	for i := range msg.ChunkSize {
		msg.ChunkSize[i] = readLE(data[pos : pos+width])
		pos += width
	}

	msg.IndexType = ChunkIndexType(data[pos])
	pos++
	switch msg.IndexType {
	case IndexSingleChunk:
		if flags&0x02 != 0 {
			if len(data) < pos+int(sb.LengthSize)+4 {
				return utils.ErrTruncated
			}
			msg.FilteredSize = sb.DecodeLength(data[pos:])
			pos += int(sb.LengthSize)
			msg.FilterMask = binary.LittleEndian.Uint32(data[pos:])
			pos += 4
		}
	case IndexImplicit:
	case IndexFixedArray:
		pos++ // page bits
	case IndexExtensible:
		pos += 5
	case IndexBTreeV2:
		pos += 6
	default:
		return fmt.Errorf("unknown chunk index type: %d", msg.IndexType)
	}

	if len(data) < pos+int(sb.OffsetSize) {
		return utils.ErrTruncated
	}
	msg.DataAddress = sb.DecodeAddress(data[pos:])
	return nil
}

// parseFlat decodes the compact and contiguous properties shared by
// versions 3 and 4.
func (msg *DataLayoutMessage) parseFlat(p []byte, sb *Superblock) error {
	if msg.Class == LayoutCompact {
		if len(p) < 2 {
			return utils.ErrTruncated
		}
		size := int(binary.LittleEndian.Uint16(p))
		if len(p) < 2+size {
			return errors.New("compact layout data truncated")
		}
		msg.CompactData = p[2 : 2+size]
		msg.DataSize = uint64(size)
		return nil
	}

	if len(p) < int(sb.OffsetSize)+int(sb.LengthSize) {
		return errors.New("contiguous layout message too short")
	}
	msg.DataAddress = sb.DecodeAddress(p)
	msg.DataSize = sb.DecodeLength(p[sb.OffsetSize:])
	return nil
}

func readLE(p []byte) uint64 {
	var v uint64
	for i := len(p) - 1; i >= 0; i-- {
		v = v<<8 | uint64(p[i])
	}
	return v
}

// ChunkDims returns the chunk shape without the trailing element size.
func (dl *DataLayoutMessage) ChunkDims() []uint64 {
	if len(dl.ChunkSize) == 0 {
		return nil
	}
	return dl.ChunkSize[:len(dl.ChunkSize)-1]
}

// IsContiguous returns true if layout is contiguous.
func (dl *DataLayoutMessage) IsContiguous() bool {
	return dl.Class == LayoutContiguous
}

// IsCompact returns true if layout is compact (data in message).
func (dl *DataLayoutMessage) IsCompact() bool {
	return dl.Class == LayoutCompact
}

// IsChunked returns true if layout is chunked.
func (dl *DataLayoutMessage) IsChunked() bool {
	return dl.Class == LayoutChunked
}

// String returns human-readable layout description.
func (dl *DataLayoutMessage) String() string {
	switch dl.Class {
	case LayoutCompact:
		return fmt.Sprintf("compact (size=%d)", dl.DataSize)
	case LayoutContiguous:
		return fmt.Sprintf("contiguous (address=0x%X, size=%d)", dl.DataAddress, dl.DataSize)
	case LayoutChunked:
		return fmt.Sprintf("chunked (chunks=%v, index=%s)", dl.ChunkDims(), dl.IndexType)
	}
	return dl.Class.String()
}
