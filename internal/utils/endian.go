package utils

import (
	"encoding/binary"
	"io"
)

// UndefinedAddress is the all-ones address HDF5 uses for "not allocated".
const UndefinedAddress = ^uint64(0)

// ReaderAt is a simplified interface for io.ReaderAt.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// ReadUint decodes an unsigned integer of 1, 2, 4 or 8 bytes.
// Other widths are zero-extended to 8 bytes in the given order.
func ReadUint(data []byte, size int, order binary.ByteOrder) uint64 {
	if size > len(data) {
		size = len(data)
	}

	switch size {
	case 0:
		return 0
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(order.Uint16(data[:2]))
	case 4:
		return uint64(order.Uint32(data[:4]))
	case 8:
		return order.Uint64(data[:8])
	default:
		var buf [8]byte
		if order == binary.BigEndian {
			copy(buf[8-size:], data[:size])
		} else {
			copy(buf[:], data[:size])
		}
		return order.Uint64(buf[:])
	}
}

// IsUndefined reports whether addr is the undefined address for an offset
// width of size bytes.
func IsUndefined(addr uint64, size int) bool {
	if size >= 8 {
		return addr == UndefinedAddress
	}
	return addr == (uint64(1)<<(8*uint(size)))-1
}

// ReadFull reads exactly len(buf) bytes at off. A short read at end of file
// is reported as io.ErrUnexpectedEOF.
func ReadFull(r ReaderAt, buf []byte, off uint64) error {
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	n, err := r.ReadAt(buf, int64(off))
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
