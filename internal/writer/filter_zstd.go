package writer

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ZstdFilter implements the registered Zstandard plugin filter
// (FilterID = 32015). The filter is optional, so readers without the
// plugin can still open the file.
type ZstdFilter struct {
	level int
}

// NewZstdFilter returns a zstd filter. level is passed to
// zstd.EncoderLevelFromZstd; 0 selects the default.
func NewZstdFilter(level int) *ZstdFilter {
	if level <= 0 {
		level = 3
	}
	return &ZstdFilter{level: level}
}

// ID returns FilterZstd.
func (f *ZstdFilter) ID() FilterID {
	return FilterZstd
}

// Name returns "zstd".
func (f *ZstdFilter) Name() string {
	return "zstd"
}

// Apply compresses data into a single zstd frame.
func (f *ZstdFilter) Apply(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(f.level)))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder creation failed: %w", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil), nil
}

// Remove decompresses data.
func (f *ZstdFilter) Remove(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder creation failed: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// Encode marks the filter optional and stores the level.
func (f *ZstdFilter) Encode() (flags uint16, cdValues []uint32) {
	return 0x0001, []uint32{uint32(f.level)} //nolint:gosec // G115: small level
}
