package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// DatasetInfo gathers the header messages that describe a dataset.
type DatasetInfo struct {
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Layout    *DataLayoutMessage
	Filters   *FilterPipelineMessage // nil when unfiltered.
	FillValue []byte                 // nil means zero fill.
}

// ReadDatasetInfo extracts datatype, dataspace, layout, filters and fill
// value from a dataset header. resolve loads committed datatypes.
func ReadDatasetInfo(h *ObjectHeader, sb *Superblock, resolve TypeResolver) (*DatasetInfo, error) {
	info := &DatasetInfo{}

	for _, msg := range h.Messages {
		var err error
		switch msg.Type {
		case MsgDatatype:
			info.Datatype, err = parseTypeMessage(msg, sb, resolve)
		case MsgDataspace:
			info.Dataspace, err = ParseDataspaceMessage(msg.Data, sb)
		case MsgDataLayout:
			info.Layout, err = ParseDataLayoutMessage(msg.Data, sb)
		case MsgFilterPipeline:
			info.Filters, err = ParseFilterPipelineMessage(msg.Data)
		case MsgFillValue:
			info.FillValue = parseFillValue(msg.Data, sb)
		case MsgFillValueOld:
			if info.FillValue == nil && len(msg.Data) >= 4 {
				n := int(sb.Endianness.Uint32(msg.Data))
				if len(msg.Data) >= 4+n && n > 0 {
					info.FillValue = msg.Data[4 : 4+n]
				}
			}
		}
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("message 0x%04x", uint16(msg.Type)), err)
		}
	}

	switch {
	case info.Datatype == nil:
		return nil, errors.New("dataset has no datatype message")
	case info.Dataspace == nil:
		return nil, errors.New("dataset has no dataspace message")
	case info.Layout == nil:
		return nil, errors.New("dataset has no layout message")
	}
	if info.FillValue != nil && len(info.FillValue) != int(info.Datatype.Size) {
		info.FillValue = nil
	}
	return info, nil
}

func parseTypeMessage(msg *HeaderMessage, sb *Superblock, resolve TypeResolver) (*DatatypeMessage, error) {
	if msg.Flags&MsgFlagShared == 0 {
		return ParseDatatypeMessage(msg.Data)
	}
	if resolve == nil {
		return nil, fmt.Errorf("%w: committed datatype", ErrUnsupported)
	}
	addr, err := SharedAddress(msg.Data, sb)
	if err != nil {
		return nil, err
	}
	return resolve(addr)
}

// ReadCommittedDatatype loads the datatype stored in a committed datatype
// object header.
func ReadCommittedDatatype(r utils.ReaderAt, addr uint64, sb *Superblock) (*DatatypeMessage, error) {
	h, err := ReadObjectHeader(r, addr, sb)
	if err != nil {
		return nil, err
	}
	msg := h.Find(MsgDatatype)
	if msg == nil {
		return nil, utils.WrapErrorAt("committed datatype", addr, errors.New("no datatype message"))
	}
	return ParseDatatypeMessage(msg.Data)
}

// parseFillValue handles fill value message versions 1 to 3.
func parseFillValue(data []byte, sb *Superblock) []byte {
	if len(data) < 2 {
		return nil
	}
	pos := 0
	switch data[0] {
	case 1, 2:
		if len(data) < 4 || data[3] == 0 {
			return nil
		}
		pos = 4
	case 3:
		if data[1]&0x20 == 0 {
			return nil
		}
		pos = 2
	default:
		return nil
	}
	if len(data) < pos+4 {
		return nil
	}
	n := int(sb.Endianness.Uint32(data[pos:]))
	pos += 4
	if n == 0 || len(data) < pos+n {
		return nil
	}
	return data[pos : pos+n]
}

// Dims returns the dataset dimensions. Scalars have none.
func (info *DatasetInfo) Dims() []uint64 {
	return info.Dataspace.Dimensions
}

// ElementCount is the number of elements in the dataspace.
func (info *DatasetInfo) ElementCount() uint64 {
	return info.Dataspace.TotalElements()
}

// DataSize is the logical size in bytes of the full dataset.
func (info *DatasetInfo) DataSize() (uint64, error) {
	return utils.Product([]uint64{info.ElementCount()}, uint64(info.Datatype.Size))
}

func (info *DatasetInfo) newBuffer(count uint64) ([]byte, error) {
	size, err := utils.Product([]uint64{count}, uint64(info.Datatype.Size))
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateBufferSize(size, utils.MaxDatasetSize, "dataset read"); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if info.FillValue != nil {
		for off := 0; off < len(buf); off += len(info.FillValue) {
			copy(buf[off:], info.FillValue)
		}
	}
	return buf, nil
}

// ReadRaw reads the whole dataset as raw element bytes in row-major order.
func ReadRaw(r utils.ReaderAt, info *DatasetInfo, sb *Superblock) ([]byte, error) {
	dims := info.Dims()
	return ReadRawSlice(r, info, sb, make([]uint64, len(dims)), dims)
}

// ReadRawSlice reads the hyperslab [start, start+count) as raw bytes.
func ReadRawSlice(r utils.ReaderAt, info *DatasetInfo, sb *Superblock, start, count []uint64) ([]byte, error) {
	dims := info.Dims()
	if len(start) != len(dims) || len(count) != len(dims) {
		return nil, fmt.Errorf("selection rank %d does not match dataset rank %d", len(start), len(dims))
	}
	for i := range dims {
		if start[i]+count[i] > dims[i] || start[i]+count[i] < start[i] {
			return nil, fmt.Errorf("selection [%d:%d] out of range for dimension %d of size %d",
				start[i], start[i]+count[i], i, dims[i])
		}
	}

	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	if info.Dataspace.Type == DataspaceNull {
		n = 0
	}
	out, err := info.newBuffer(n)
	if err != nil || n == 0 {
		return out, err
	}

	elem := uint64(info.Datatype.Size)
	layout := info.Layout
	switch layout.Class {
	case LayoutCompact:
		need := info.ElementCount() * elem
		if uint64(len(layout.CompactData)) < need {
			return nil, fmt.Errorf("compact data is %d bytes, need %d", len(layout.CompactData), need)
		}
		copyBox(out, count, make([]uint64, len(dims)), layout.CompactData, dims, start, count, elem)
		return out, nil

	case LayoutContiguous:
		if sb.IsUndefined(layout.DataAddress) {
			return out, nil
		}
		if info.Filters != nil && len(info.Filters.Filters) > 0 {
			return nil, errors.New("filters on contiguous storage are invalid")
		}
		return out, readContiguous(r, layout.DataAddress, out, dims, start, count, elem)

	case LayoutChunked:
		return out, readChunked(r, info, sb, out, start, count)
	}
	return nil, fmt.Errorf("%w: layout %s", ErrUnsupported, layout.Class)
}

// readContiguous reads one run per row of the selection.
func readContiguous(r utils.ReaderAt, base uint64, out []byte, dims, start, count []uint64, elem uint64) error {
	rank := len(dims)
	if rank == 0 {
		return utils.ReadFull(r, out[:elem], base)
	}

	strides := rowStrides(dims, elem)
	run := count[rank-1] * elem
	idx := make([]uint64, rank-1)
	var dst uint64
	for {
		off := start[rank-1] * elem
		for i := range idx {
			off += (start[i] + idx[i]) * strides[i]
		}
		if err := utils.ReadFull(r, out[dst:dst+run], base+off); err != nil {
			return utils.WrapErrorAt("contiguous data read failed", base+off, err)
		}
		dst += run
		if !advance(idx, count[:rank-1]) {
			return nil
		}
	}
}

// readChunked decodes every chunk overlapping the selection and copies the
// overlap into out. Missing chunks keep the fill value.
func readChunked(r utils.ReaderAt, info *DatasetInfo, sb *Superblock, out []byte, start, count []uint64) error {
	dims := info.Dims()
	chunks, err := CollectChunks(r, info.Layout, dims, sb)
	if err != nil {
		return err
	}

	cdims := info.Layout.ChunkDims()
	elem := uint64(info.Datatype.Size)
	full, err := utils.Product(cdims, elem)
	if err != nil {
		return err
	}
	if err := utils.ValidateBufferSize(full, utils.MaxChunkSize, "chunk"); err != nil {
		return err
	}

	rank := len(dims)
	lo := make([]uint64, rank)
	cnt := make([]uint64, rank)
	dstStart := make([]uint64, rank)
	srcStart := make([]uint64, rank)

	for _, c := range chunks {
		if !overlap(c.Offset, cdims, start, count, lo, cnt) {
			continue
		}

		data, err := readChunkData(r, c, full, info.Filters)
		if err != nil {
			return utils.WrapErrorAt("chunk", c.Address, err)
		}

		for i := range lo {
			dstStart[i] = lo[i] - start[i]
			srcStart[i] = lo[i] - c.Offset[i]
		}
		copyBox(out, count, dstStart, data, cdims, srcStart, cnt, elem)
	}
	return nil
}

func readChunkData(r utils.ReaderAt, c ChunkEntry, full uint64, fp *FilterPipelineMessage) ([]byte, error) {
	stored := uint64(c.Size)
	if stored == 0 {
		stored = full
	}
	if err := utils.ValidateBufferSize(stored, utils.MaxChunkSize, "stored chunk"); err != nil {
		return nil, err
	}
	buf := make([]byte, stored)
	if err := utils.ReadFull(r, buf, c.Address); err != nil {
		return nil, err
	}

	if fp != nil && len(fp.Filters) > 0 {
		var err error
		if buf, err = fp.ApplyFilters(buf, c.FilterMask); err != nil {
			return nil, err
		}
	}
	if uint64(len(buf)) < full {
		return nil, fmt.Errorf("decoded chunk is %d bytes, expected %d", len(buf), full)
	}
	return buf, nil
}

// overlap intersects the chunk box with the selection box, writing the
// intersection origin and extent to lo and cnt.
func overlap(origin, cdims, start, count, lo, cnt []uint64) bool {
	for i := range origin {
		a := max(origin[i], start[i])
		b := min(origin[i]+cdims[i], start[i]+count[i])
		if a >= b {
			return false
		}
		lo[i] = a
		cnt[i] = b - a
	}
	return true
}

// copyBox copies a count-sized box of elements between two row-major
// arrays of shapes dstDims and srcDims.
func copyBox(dst []byte, dstDims, dstStart []uint64, src []byte, srcDims, srcStart, count []uint64, elem uint64) {
	rank := len(count)
	if rank == 0 {
		copy(dst[:elem], src[:elem])
		return
	}
	for _, c := range count {
		if c == 0 {
			return
		}
	}

	ds := rowStrides(dstDims, elem)
	ss := rowStrides(srcDims, elem)
	run := count[rank-1] * elem
	idx := make([]uint64, rank-1)
	for {
		d := dstStart[rank-1] * elem
		s := srcStart[rank-1] * elem
		for i := range idx {
			d += (dstStart[i] + idx[i]) * ds[i]
			s += (srcStart[i] + idx[i]) * ss[i]
		}
		copy(dst[d:d+run], src[s:s+run])
		if !advance(idx, count[:rank-1]) {
			return
		}
	}
}

// rowStrides returns the byte stride of each dimension.
func rowStrides(dims []uint64, elem uint64) []uint64 {
	s := make([]uint64, len(dims))
	acc := elem
	for i := len(dims) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= dims[i]
	}
	return s
}

// advance increments a row-major multi-index, reporting false on wrap.
func advance(idx, limit []uint64) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < limit[i] {
			return true
		}
		idx[i] = 0
	}
	return false
}

// StorageSize reports the bytes the dataset occupies on disk.
func StorageSize(r utils.ReaderAt, info *DatasetInfo, sb *Superblock) (uint64, error) {
	layout := info.Layout
	switch layout.Class {
	case LayoutCompact:
		return uint64(len(layout.CompactData)), nil
	case LayoutContiguous:
		if sb.IsUndefined(layout.DataAddress) {
			return 0, nil
		}
		if layout.DataSize > 0 {
			return layout.DataSize, nil
		}
		return info.DataSize()
	case LayoutChunked:
		chunks, err := CollectChunks(r, layout, info.Dims(), sb)
		if err != nil {
			return 0, err
		}
		full, err := utils.Product(layout.ChunkDims(), uint64(info.Datatype.Size))
		if err != nil {
			return 0, err
		}
		var total uint64
		for _, c := range chunks {
			if c.Size > 0 {
				total += uint64(c.Size)
			} else {
				total += full
			}
		}
		return total, nil
	}
	return 0, fmt.Errorf("%w: layout %s", ErrUnsupported, layout.Class)
}
