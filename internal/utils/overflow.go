package utils

import (
	"fmt"
	"math"
)

// Buffer size limits applied before allocating from file-provided sizes.
const (
	// MaxChunkSize limits a single chunk to 1GB.
	MaxChunkSize = 1024 * 1024 * 1024

	// MaxDatasetSize limits an in-memory dataset read to 4GB.
	MaxDatasetSize = 4 * MaxChunkSize

	// MaxAttributeSize limits attribute payloads to 64MB.
	MaxAttributeSize = 64 * 1024 * 1024
)

// SafeMultiply multiplies two uint64 values, failing on overflow.
func SafeMultiply(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}
	return a * b, nil
}

// Product returns the product of dims times elemSize, failing on overflow.
// An empty dims slice is a scalar and yields elemSize.
func Product(dims []uint64, elemSize uint64) (uint64, error) {
	total := elemSize
	for i, d := range dims {
		var err error
		total, err = SafeMultiply(total, d)
		if err != nil {
			return 0, fmt.Errorf("size overflow at dimension %d: %w", i, err)
		}
	}
	return total, nil
}

// ValidateBufferSize rejects sizes above maxSize.
func ValidateBufferSize(size, maxSize uint64, description string) error {
	if size > maxSize {
		return fmt.Errorf("%s: size %d exceeds maximum %d", description, size, maxSize)
	}
	return nil
}
