package structures

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

// FractalHeapHeader is the "FRHP" header of a fractal heap. Dense groups and
// dense attribute storage keep their messages in one.
type FractalHeapHeader struct {
	Address           uint64
	HeapIDLen         uint16
	IOFiltersLen      uint16
	Flags             uint8
	MaxManagedObjSize uint32

	ManagedObjCount uint64

	TableWidth         uint16
	StartingBlockSize  uint64
	MaxDirectBlockSize uint64
	MaxHeapSize        uint16 // log2 of the heap address space.
	RootBlockAddr      uint64
	CurrentRowCount    uint16 // 0 when the root is a direct block.

	// Derived.
	HeapOffsetSize int
	HeapLengthSize int
	MaxDirectRows  int
}

// Heap ID types, bits 4-5 of the first ID byte.
const (
	heapIDManaged = 0x00
	heapIDHuge    = 0x10
	heapIDTiny    = 0x20
)

// FractalHeap reads objects from a fractal heap by heap ID.
type FractalHeap struct {
	Header *FractalHeapHeader
	r      utils.ReaderAt
	sb     *core.Superblock
}

// OpenFractalHeap parses the heap header at address.
func OpenFractalHeap(r utils.ReaderAt, address uint64, sb *core.Superblock) (*FractalHeap, error) {
	if address == 0 || sb.IsUndefined(address) {
		return nil, fmt.Errorf("invalid fractal heap address: 0x%x", address)
	}
	l, o := int(sb.LengthSize), int(sb.OffsetSize)
	size := 22 + 12*l + 3*o
	buf := make([]byte, size+4)
	if err := utils.ReadFull(r, buf, address); err != nil {
		return nil, utils.WrapErrorAt("fractal heap header read failed", address, err)
	}
	if string(buf[:4]) != "FRHP" {
		return nil, utils.WrapErrorAt("fractal heap", address, fmt.Errorf("invalid signature %q", buf[:4]))
	}
	if buf[4] != 0 {
		return nil, utils.WrapErrorAt("fractal heap", address, fmt.Errorf("unsupported version %d", buf[4]))
	}

	e := sb.Endianness
	h := &FractalHeapHeader{
		Address:           address,
		HeapIDLen:         e.Uint16(buf[5:]),
		IOFiltersLen:      e.Uint16(buf[7:]),
		Flags:             buf[9],
		MaxManagedObjSize: e.Uint32(buf[10:]),
	}
	pos := 14 + l + o + l + o // huge object and free space fields
	pos += 3 * l              // managed space, allocated, iterator offset
	h.ManagedObjCount = sb.DecodeLength(buf[pos:])
	pos += l + 4*l // count, then huge and tiny statistics

	h.TableWidth = e.Uint16(buf[pos:])
	pos += 2
	h.StartingBlockSize = sb.DecodeLength(buf[pos:])
	pos += l
	h.MaxDirectBlockSize = sb.DecodeLength(buf[pos:])
	pos += l
	h.MaxHeapSize = e.Uint16(buf[pos:])
	pos += 4 // max heap size, starting root rows
	h.RootBlockAddr = sb.DecodeAddress(buf[pos:])
	pos += o
	h.CurrentRowCount = e.Uint16(buf[pos:])

	// Filtered heaps store filter info before the checksum.
	if h.IOFiltersLen == 0 {
		if err := core.VerifyChecksum(buf, sb); err != nil {
			return nil, utils.WrapErrorAt("fractal heap", address, err)
		}
	}

	if h.TableWidth == 0 || !isPow2(h.StartingBlockSize) || !isPow2(h.MaxDirectBlockSize) ||
		h.MaxDirectBlockSize < h.StartingBlockSize {
		return nil, utils.WrapErrorAt("fractal heap", address, errors.New("invalid doubling table"))
	}

	h.HeapOffsetSize = (int(h.MaxHeapSize) + 7) / 8
	h.HeapLengthSize = min((log2(h.MaxDirectBlockSize)+7)/8, log2(uint64(h.MaxManagedObjSize))/8+1)
	h.MaxDirectRows = log2(h.MaxDirectBlockSize) - log2(h.StartingBlockSize) + 2

	return &FractalHeap{Header: h, r: r, sb: sb}, nil
}

func isPow2(v uint64) bool { return v != 0 && v&(v-1) == 0 }

func log2(v uint64) int {
	if v == 0 {
		return 0
	}
	return bits.Len64(v) - 1
}

// rowBlockSize is the block size of a doubling table row.
func (h *FractalHeapHeader) rowBlockSize(row int) uint64 {
	if row == 0 {
		return h.StartingBlockSize
	}
	return h.StartingBlockSize << (row - 1)
}

// ReadObject returns the object a heap ID refers to. Huge objects and
// filtered heaps are not supported.
func (fh *FractalHeap) ReadObject(id []byte) ([]byte, error) {
	if len(id) < 1 {
		return nil, errors.New("empty heap ID")
	}
	if v := id[0] >> 6; v != 0 {
		return nil, fmt.Errorf("unsupported heap ID version: %d", v)
	}

	switch id[0] & 0x30 {
	case heapIDTiny:
		n := int(id[0]&0x0F) + 1
		if len(id) < 1+n {
			return nil, fmt.Errorf("tiny heap ID too short: %d bytes", len(id))
		}
		return id[1 : 1+n], nil
	case heapIDHuge:
		return nil, fmt.Errorf("%w: huge fractal heap objects", core.ErrUnsupported)
	case heapIDManaged:
	default:
		return nil, fmt.Errorf("unsupported heap ID type: 0x%02x", id[0]&0x30)
	}

	h := fh.Header
	if h.IOFiltersLen > 0 {
		return nil, fmt.Errorf("%w: filtered fractal heap", core.ErrUnsupported)
	}
	if len(id) < 1+h.HeapOffsetSize+h.HeapLengthSize {
		return nil, fmt.Errorf("heap ID too short for managed object: %d bytes", len(id))
	}
	off := utils.ReadUint(id[1:], h.HeapOffsetSize, fh.sb.Endianness)
	length := utils.ReadUint(id[1+h.HeapOffsetSize:], h.HeapLengthSize, fh.sb.Endianness)
	if err := utils.ValidateBufferSize(length, utils.MaxAttributeSize, "fractal heap object"); err != nil {
		return nil, err
	}

	blockAddr, blockOff, blockSize, err := fh.locate(off)
	if err != nil {
		return nil, err
	}
	if off+length > blockOff+blockSize {
		return nil, fmt.Errorf("object at heap offset %d overruns its direct block", off)
	}
	out := make([]byte, length)
	if err := utils.ReadFull(fh.r, out, blockAddr+(off-blockOff)); err != nil {
		return nil, utils.WrapErrorAt("fractal heap object read failed", blockAddr, err)
	}
	return out, nil
}

// locate finds the direct block holding heap offset off and returns its
// file address, heap offset and size.
func (fh *FractalHeap) locate(off uint64) (addr, blockOff, size uint64, err error) {
	h := fh.Header
	if fh.sb.IsUndefined(h.RootBlockAddr) {
		return 0, 0, 0, errors.New("fractal heap is empty")
	}
	if h.CurrentRowCount == 0 {
		if off >= h.StartingBlockSize {
			return 0, 0, 0, fmt.Errorf("heap offset %d beyond root direct block", off)
		}
		if err := fh.checkDirectBlock(h.RootBlockAddr); err != nil {
			return 0, 0, 0, err
		}
		return h.RootBlockAddr, 0, h.StartingBlockSize, nil
	}

	iblock := h.RootBlockAddr
	nrows := int(h.CurrentRowCount)
	var base uint64
	for depth := 0; depth < 16; depth++ {
		entries, err := fh.readIndirectBlock(iblock, nrows)
		if err != nil {
			return 0, 0, 0, err
		}

		rel := off - base
		row := 0
		for ; row < nrows; row++ {
			span := uint64(h.TableWidth) * h.rowBlockSize(row)
			if rel < span {
				break
			}
			rel -= span
			base += span
		}
		if row == nrows {
			return 0, 0, 0, fmt.Errorf("heap offset %d beyond indirect block 0x%x", off, iblock)
		}

		bsize := h.rowBlockSize(row)
		col := rel / bsize
		base += col * bsize
		child := entries[row*int(h.TableWidth)+int(col)]
		if fh.sb.IsUndefined(child) || child == 0 {
			return 0, 0, 0, fmt.Errorf("heap offset %d lies in an unallocated block", off)
		}

		if row < h.MaxDirectRows {
			if err := fh.checkDirectBlock(child); err != nil {
				return 0, 0, 0, err
			}
			return child, base, bsize, nil
		}
		iblock = child
		nrows = log2(bsize) - log2(h.StartingBlockSize*uint64(h.TableWidth)) + 1
	}
	return 0, 0, 0, errors.New("fractal heap indirect blocks nested too deep")
}

// readIndirectBlock returns the child addresses of an "FHIB" block.
func (fh *FractalHeap) readIndirectBlock(address uint64, nrows int) ([]uint64, error) {
	h := fh.Header
	o := int(fh.sb.OffsetSize)
	n := nrows * int(h.TableWidth)
	head := 5 + o + h.HeapOffsetSize

	buf := make([]byte, head+n*o+4)
	if err := utils.ReadFull(fh.r, buf, address); err != nil {
		return nil, utils.WrapErrorAt("fractal heap indirect block read failed", address, err)
	}
	if string(buf[:4]) != "FHIB" {
		return nil, utils.WrapErrorAt("fractal heap indirect block", address, fmt.Errorf("invalid signature %q", buf[:4]))
	}
	if err := core.VerifyChecksum(buf, fh.sb); err != nil {
		return nil, utils.WrapErrorAt("fractal heap indirect block", address, err)
	}

	out := make([]uint64, n)
	for i := range out {
		out[i] = fh.sb.DecodeAddress(buf[head+i*o:])
	}
	return out, nil
}

func (fh *FractalHeap) checkDirectBlock(address uint64) error {
	sig := make([]byte, 5)
	if err := utils.ReadFull(fh.r, sig, address); err != nil {
		return utils.WrapErrorAt("fractal heap direct block read failed", address, err)
	}
	if string(sig[:4]) != "FHDB" {
		return utils.WrapErrorAt("fractal heap direct block", address, fmt.Errorf("invalid signature %q", sig[:4]))
	}
	return nil
}
