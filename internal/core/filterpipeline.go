package core

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/scigolib/h5inspect/internal/utils"
)

// FilterID represents HDF5 filter identifiers.
type FilterID uint16

// Filter identifier constants define compression and processing filters for datasets.
const (
	FilterDeflate     FilterID = 1     // GZIP compression.
	FilterShuffle     FilterID = 2     // Shuffle filter.
	FilterFletcher    FilterID = 3     // Fletcher32 checksum.
	FilterSZIP        FilterID = 4     // SZIP compression.
	FilterNBit        FilterID = 5     // N-bit compression.
	FilterScaleOffset FilterID = 6     // Scale-offset filter.
	FilterBZIP2       FilterID = 307   // BZIP2 plugin.
	FilterLZF         FilterID = 32000 // LZF, shipped with h5py.
	FilterZstd        FilterID = 32015 // Zstandard plugin.
)

// FilterPipelineMessage represents the filter pipeline for a dataset.
type FilterPipelineMessage struct {
	Version uint8
	Filters []Filter
}

// Filter represents a single filter in the pipeline.
type Filter struct {
	ID         FilterID
	Flags      uint16
	Name       string
	ClientData []uint32
}

// Optional reports whether a failure of this filter may be ignored.
func (f Filter) Optional() bool {
	return f.Flags&0x0001 != 0
}

// DisplayName is the stored name, or the well-known name of the filter.
func (f Filter) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return filterName(f.ID)
}

// ParseFilterPipelineMessage parses filter pipeline message (type 0x000B).
func ParseFilterPipelineMessage(data []byte) (*FilterPipelineMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("filter pipeline message too short")
	}

	fp := &FilterPipelineMessage{Version: data[0]}
	count := int(data[1])

	pos := 2
	switch fp.Version {
	case 1:
		pos += 6
	case 2:
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version: %d", fp.Version)
	}

	u16 := func() (uint16, error) {
		if pos+2 > len(data) {
			return 0, utils.ErrTruncated
		}
		v := binary.LittleEndian.Uint16(data[pos:])
		pos += 2
		return v, nil
	}

	for i := 0; i < count; i++ {
		var f Filter
		id, err := u16()
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		f.ID = FilterID(id)

		// Version 2 omits the name length for predefined filters.
		var nameLen uint16
		if fp.Version == 1 || f.ID >= 256 {
			if nameLen, err = u16(); err != nil {
				return nil, fmt.Errorf("filter %d: %w", i, err)
			}
		}
		if f.Flags, err = u16(); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		nvals, err := u16()
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}

		if nameLen > 0 {
			n := int(nameLen)
			if fp.Version == 1 {
				n = (n + 7) &^ 7
			}
			if pos+n > len(data) {
				return nil, fmt.Errorf("filter %d: name truncated", i)
			}
			f.Name = cString(data[pos : pos+int(nameLen)])
			pos += n
		}

		if pos+4*int(nvals) > len(data) {
			return nil, fmt.Errorf("filter %d: client data truncated", i)
		}
		f.ClientData = make([]uint32, nvals)
		for j := range f.ClientData {
			f.ClientData[j] = binary.LittleEndian.Uint32(data[pos:])
			pos += 4
		}
		if fp.Version == 1 && nvals%2 != 0 {
			pos += 4
		}

		fp.Filters = append(fp.Filters, f)
	}
	return fp, nil
}

// ApplyFilters reverses the pipeline on one chunk. Filters run in reverse
// order. Bit i of mask set means filter i was skipped when the chunk was
// written.
func (fp *FilterPipelineMessage) ApplyFilters(data []byte, mask uint32) ([]byte, error) {
	if fp == nil {
		return data, nil
	}

	result := data
	for i := len(fp.Filters) - 1; i >= 0; i-- {
		if i < 32 && mask&(1<<uint(i)) != 0 {
			continue
		}
		f := fp.Filters[i]
		out, err := applyFilter(f, result)
		if err != nil {
			if f.Optional() {
				continue
			}
			return nil, fmt.Errorf("filter %d (%s) failed: %w", f.ID, f.DisplayName(), err)
		}
		result = out
	}
	return result, nil
}

// String lists the filters by name, in pipeline order.
func (fp *FilterPipelineMessage) String() string {
	if fp == nil || len(fp.Filters) == 0 {
		return "none"
	}
	names := make([]string, len(fp.Filters))
	for i, f := range fp.Filters {
		names[i] = f.DisplayName()
	}
	return strings.Join(names, ", ")
}

func applyFilter(f Filter, data []byte) ([]byte, error) {
	switch f.ID {
	case FilterDeflate:
		return inflate(data)
	case FilterShuffle:
		return unshuffle(data, f.ClientData)
	case FilterFletcher:
		return stripFletcher32(data)
	case FilterLZF:
		return lzfDecompress(data)
	case FilterBZIP2:
		return io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
	case FilterZstd:
		return unzstd(data)
	}
	return nil, fmt.Errorf("%w: filter %s", ErrUnsupported, f.DisplayName())
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader creation failed: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	return out, nil
}

func unzstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// unshuffle reverses the byte shuffle. Trailing bytes that do not form a
// whole element were not shuffled and are copied as is.
func unshuffle(data []byte, clientData []uint32) ([]byte, error) {
	if len(clientData) == 0 {
		return nil, errors.New("shuffle filter missing element size")
	}
	size := int(clientData[0])
	if size <= 1 || size > len(data) {
		return data, nil
	}

	n := len(data) / size
	out := make([]byte, len(data))
	for b := 0; b < size; b++ {
		src := data[b*n : (b+1)*n]
		for e, v := range src {
			out[e*size+b] = v
		}
	}
	copy(out[n*size:], data[n*size:])
	return out, nil
}

// stripFletcher32 verifies and removes the trailing checksum. Older
// libraries stored it byte-swapped, so both orders are accepted.
func stripFletcher32(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("data too short for Fletcher32 checksum")
	}
	body := data[:len(data)-4]
	tail := data[len(data)-4:]
	sum := utils.Fletcher32(body)
	if binary.LittleEndian.Uint32(tail) != sum && binary.BigEndian.Uint32(tail) != sum {
		return nil, fmt.Errorf("fletcher32 mismatch: computed 0x%08x", sum)
	}
	return body, nil
}

// lzfDecompress expands LZF data. A control byte 000LLLLL starts a literal
// run of L+1 bytes; otherwise the top three bits give the length of a back
// reference (111 means a length byte follows) and the low five bits plus
// the next byte give the distance minus one.
func lzfDecompress(input []byte) ([]byte, error) {
	out := make([]byte, 0, len(input)*2)
	pos := 0
	for pos < len(input) {
		ctrl := input[pos]
		pos++

		if ctrl < 0x20 {
			n := int(ctrl) + 1
			if pos+n > len(input) {
				return nil, errors.New("lzf: truncated literal run")
			}
			out = append(out, input[pos:pos+n]...)
			pos += n
			continue
		}

		length := int(ctrl >> 5)
		if length == 7 {
			if pos >= len(input) {
				return nil, errors.New("lzf: truncated long backreference")
			}
			length += int(input[pos])
			pos++
		}
		length += 2
		if pos >= len(input) {
			return nil, errors.New("lzf: truncated backreference")
		}
		dist := (int(ctrl&0x1F)<<8 | int(input[pos])) + 1
		pos++
		if dist > len(out) {
			return nil, fmt.Errorf("lzf: invalid offset %d (output size: %d)", dist, len(out))
		}
		src := len(out) - dist
		for i := 0; i < length; i++ {
			out = append(out, out[src+i])
		}
	}
	return out, nil
}

func filterName(id FilterID) string {
	switch id {
	case FilterDeflate:
		return "deflate"
	case FilterShuffle:
		return "shuffle"
	case FilterFletcher:
		return "fletcher32"
	case FilterSZIP:
		return "szip"
	case FilterNBit:
		return "nbit"
	case FilterScaleOffset:
		return "scaleoffset"
	case FilterBZIP2:
		return "bzip2"
	case FilterLZF:
		return "lzf"
	case FilterZstd:
		return "zstd"
	}
	return fmt.Sprintf("filter-%d", id)
}
