package structures

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

// Version 2 B-tree record types used by dense storage.
const (
	BTreeV2LinkName          = 5
	BTreeV2LinkCreationOrder = 6
	BTreeV2AttrName          = 8
	BTreeV2AttrCreationOrder = 9
)

// btreeV2Prefix is signature, version, type and checksum.
const btreeV2Prefix = 10

// BTreeV2Header is a parsed "BTHD" header.
type BTreeV2Header struct {
	Address      uint64
	Type         uint8
	NodeSize     uint32
	RecordSize   uint16
	Depth        uint16
	RootAddress  uint64
	RootRecords  uint16
	TotalRecords uint64
}

// ReadBTreeV2Header parses the header at address.
func ReadBTreeV2Header(r utils.ReaderAt, address uint64, sb *core.Superblock) (*BTreeV2Header, error) {
	o, l := int(sb.OffsetSize), int(sb.LengthSize)
	buf := make([]byte, 16+o+2+l+4)
	if err := utils.ReadFull(r, buf, address); err != nil {
		return nil, utils.WrapErrorAt("B-tree v2 header read failed", address, err)
	}
	if string(buf[:4]) != "BTHD" {
		return nil, utils.WrapErrorAt("B-tree v2 header", address, fmt.Errorf("invalid signature %q", buf[:4]))
	}
	if err := core.VerifyChecksum(buf, sb); err != nil {
		return nil, utils.WrapErrorAt("B-tree v2 header", address, err)
	}

	e := sb.Endianness
	h := &BTreeV2Header{
		Address:    address,
		Type:       buf[5],
		NodeSize:   e.Uint32(buf[6:]),
		RecordSize: e.Uint16(buf[10:]),
		Depth:      e.Uint16(buf[12:]),
	}
	h.RootAddress = sb.DecodeAddress(buf[16:])
	h.RootRecords = e.Uint16(buf[16+o:])
	h.TotalRecords = sb.DecodeLength(buf[18+o:])
	if h.RecordSize == 0 || h.NodeSize <= btreeV2Prefix {
		return nil, utils.WrapErrorAt("B-tree v2 header", address, errors.New("invalid node geometry"))
	}
	return h, nil
}

// nodeInfo holds the per-depth limits needed to decode child pointers.
type nodeInfo struct {
	maxRecords    uint64
	cumMaxRecords uint64
	cumSize       int // bytes of the total-records field for this depth
}

// encSize is the number of bytes needed to encode values up to m.
func encSize(m uint64) int {
	return log2(m)/8 + 1
}

func (h *BTreeV2Header) nodeInfo(sb *core.Superblock) []nodeInfo {
	info := make([]nodeInfo, h.Depth+1)
	rec := uint64(h.RecordSize)
	avail := uint64(h.NodeSize) - btreeV2Prefix

	info[0].maxRecords = avail / rec
	info[0].cumMaxRecords = info[0].maxRecords
	maxSize := encSize(info[0].maxRecords)

	for d := 1; d <= int(h.Depth); d++ {
		ptr := uint64(h.pointerSize(sb, info, maxSize, d))
		if avail <= ptr {
			break
		}
		info[d].maxRecords = (avail - ptr) / (rec + ptr)
		info[d].cumMaxRecords = (info[d].maxRecords+1)*info[d-1].cumMaxRecords + info[d].maxRecords
		info[d].cumSize = encSize(info[d].cumMaxRecords)
	}
	return info
}

// pointerSize is the width of one child pointer in a node at depth d.
func (h *BTreeV2Header) pointerSize(sb *core.Superblock, info []nodeInfo, maxSize, d int) int {
	n := int(sb.OffsetSize) + maxSize
	if d > 1 {
		n += info[d-1].cumSize
	}
	return n
}

// ReadBTreeV2Records returns every record of the tree in key order. The
// record layout depends on the tree type and is left to the caller.
func ReadBTreeV2Records(r utils.ReaderAt, address uint64, sb *core.Superblock) (*BTreeV2Header, [][]byte, error) {
	h, err := ReadBTreeV2Header(r, address, sb)
	if err != nil {
		return nil, nil, err
	}
	if h.RootRecords == 0 || sb.IsUndefined(h.RootAddress) {
		return h, nil, nil
	}

	info := h.nodeInfo(sb)
	maxSize := encSize(info[0].maxRecords)
	var out [][]byte

	var walk func(addr uint64, nrec uint64, depth int) error
	walk = func(addr uint64, nrec uint64, depth int) error {
		if nrec > info[depth].maxRecords && info[depth].maxRecords > 0 {
			return utils.WrapErrorAt("B-tree v2 node", addr, fmt.Errorf("%d records exceed node capacity", nrec))
		}
		buf := make([]byte, h.NodeSize)
		if err := utils.ReadFull(r, buf, addr); err != nil {
			return utils.WrapErrorAt("B-tree v2 node read failed", addr, err)
		}
		sig := "BTLF"
		if depth > 0 {
			sig = "BTIN"
		}
		if string(buf[:4]) != sig {
			return utils.WrapErrorAt("B-tree v2 node", addr, fmt.Errorf("invalid signature %q, want %s", buf[:4], sig))
		}

		rec := int(h.RecordSize)
		records := buf[6:]
		if depth == 0 {
			for i := 0; i < int(nrec); i++ {
				out = append(out, records[i*rec:(i+1)*rec])
			}
			return nil
		}

		ptrSize := h.pointerSize(sb, info, maxSize, depth)
		ptrs := records[int(nrec)*rec:]
		if len(ptrs) < (int(nrec)+1)*ptrSize {
			return utils.WrapErrorAt("B-tree v2 node", addr, utils.ErrTruncated)
		}
		childCount := func(i int) (uint64, uint64) {
			p := ptrs[i*ptrSize:]
			return sb.DecodeAddress(p), utils.ReadUint(p[sb.OffsetSize:], maxSize, sb.Endianness)
		}
		// Records of an internal node sit between its children.
		for i := 0; i <= int(nrec); i++ {
			child, n := childCount(i)
			if err := walk(child, n, depth-1); err != nil {
				return err
			}
			if i < int(nrec) {
				out = append(out, records[i*rec:(i+1)*rec])
			}
		}
		return nil
	}

	if err := walk(h.RootAddress, uint64(h.RootRecords), int(h.Depth)); err != nil {
		return nil, nil, err
	}
	return h, out, nil
}
