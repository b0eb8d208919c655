// Package utils holds the small helpers shared by the HDF5 format parsers:
// contextual errors, a scratch buffer pool, sized integer decoding,
// overflow-checked arithmetic and the lookup3 metadata checksum.
package utils

import "sync"

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 4096)
	},
}

// GetBuffer returns a zeroed byte slice of the given length from the pool.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size, size*2)
	}
	buf = buf[:size]
	clear(buf)
	return buf
}

// ReleaseBuffer returns a buffer to the pool.
// The caller must not keep references into buf afterwards.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	bufferPool.Put(buf[:0])
}
