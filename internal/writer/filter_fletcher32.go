package writer

import (
	"encoding/binary"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// Fletcher32Filter implements the Fletcher32 checksum (FilterID = 3). Apply
// appends a 4-byte little-endian checksum and Remove verifies and strips
// it.
type Fletcher32Filter struct{}

// NewFletcher32Filter returns a Fletcher32 filter.
func NewFletcher32Filter() *Fletcher32Filter {
	return &Fletcher32Filter{}
}

// ID returns FilterFletcher32.
func (f *Fletcher32Filter) ID() FilterID {
	return FilterFletcher32
}

// Name returns "fletcher32".
func (f *Fletcher32Filter) Name() string {
	return "fletcher32"
}

// Apply appends the checksum of data.
func (f *Fletcher32Filter) Apply(data []byte) ([]byte, error) {
	out := make([]byte, len(data), len(data)+4)
	copy(out, data)
	return binary.LittleEndian.AppendUint32(out, utils.Fletcher32(data)), nil
}

// Remove verifies and strips the checksum.
func (f *Fletcher32Filter) Remove(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short for fletcher32: %d bytes", len(data))
	}
	body := data[:len(data)-4]
	stored := binary.LittleEndian.Uint32(data[len(body):])
	if sum := utils.Fletcher32(body); sum != stored {
		return nil, fmt.Errorf("fletcher32 checksum mismatch: stored=%08x, calculated=%08x", stored, sum)
	}
	return body, nil
}

// Encode returns no client values.
func (f *Fletcher32Filter) Encode() (flags uint16, cdValues []uint32) {
	return 0, nil
}
