package writer

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FilterID is an HDF5 filter identifier.
type FilterID uint16

// Filters this package can write.
const (
	FilterDeflate    FilterID = 1
	FilterShuffle    FilterID = 2
	FilterFletcher32 FilterID = 3
	FilterZstd       FilterID = 32015
)

// Filter transforms chunk data. Apply runs on write, Remove on read.
type Filter interface {
	ID() FilterID
	Name() string
	Apply(data []byte) ([]byte, error)
	Remove(data []byte) ([]byte, error)
	// Encode returns the pipeline message flags and client data values.
	Encode() (flags uint16, cdValues []uint32)
}

// FilterPipeline is an ordered chain of filters.
//
// On write: data → Shuffle → Deflate → Fletcher32 → stored.
// On read:  stored → Fletcher32 → Deflate → Shuffle → data.
type FilterPipeline struct {
	filters []Filter
}

// NewFilterPipeline returns a pipeline running filters in order.
func NewFilterPipeline(filters ...Filter) *FilterPipeline {
	return &FilterPipeline{filters: filters}
}

// AddFilter appends f.
func (fp *FilterPipeline) AddFilter(f Filter) {
	fp.filters = append(fp.filters, f)
}

// Apply runs every filter in order.
func (fp *FilterPipeline) Apply(data []byte) ([]byte, error) {
	result := data
	for _, filter := range fp.filters {
		var err error
		result, err = filter.Apply(result)
		if err != nil {
			return nil, fmt.Errorf("filter %s failed: %w", filter.Name(), err)
		}
	}
	return result, nil
}

// Remove undoes the filters in reverse order.
func (fp *FilterPipeline) Remove(data []byte) ([]byte, error) {
	result := data
	for i := len(fp.filters) - 1; i >= 0; i-- {
		filter := fp.filters[i]
		var err error
		result, err = filter.Remove(result)
		if err != nil {
			return nil, fmt.Errorf("filter %s remove failed: %w", filter.Name(), err)
		}
	}
	return result, nil
}

// IsEmpty reports whether the pipeline has no filters.
func (fp *FilterPipeline) IsEmpty() bool {
	return fp == nil || len(fp.filters) == 0
}

// EncodePipelineMessage encodes a version 2 filter pipeline message
// (0x000B). Version 2 stores no name for predefined filters (IDs below
// 256) and no padding.
func (fp *FilterPipeline) EncodePipelineMessage() ([]byte, error) {
	if fp.IsEmpty() {
		return nil, errors.New("empty filter pipeline")
	}
	if len(fp.filters) > 32 {
		return nil, fmt.Errorf("too many filters: %d", len(fp.filters))
	}

	buf := []byte{2, byte(len(fp.filters))}
	for _, f := range fp.filters {
		buf = append(buf, encodeFilter(f)...)
	}
	return buf, nil
}

func encodeFilter(f Filter) []byte {
	flags, cdValues := f.Encode()
	var name []byte
	if f.ID() >= 256 {
		name = append([]byte(f.Name()), 0)
	}

	buf := binary.LittleEndian.AppendUint16(nil, uint16(f.ID()))
	if f.ID() >= 256 {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name))) //nolint:gosec // G115: filter names are short
	}
	buf = binary.LittleEndian.AppendUint16(buf, flags)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(cdValues))) //nolint:gosec // G115: few client values
	buf = append(buf, name...)
	for _, v := range cdValues {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return buf
}
