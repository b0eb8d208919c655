// Package core decodes the HDF5 file format structures needed to inspect a
// file read-only: the superblock, object headers and the header messages that
// describe groups, datasets and attributes.
package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/h5inspect/internal/utils"
)

// Signature is the 8-byte HDF5 format signature.
const Signature = "\x89HDF\r\n\x1a\n"

// Superblock versions understood by ReadSuperblock.
const (
	Version0 = 0
	Version1 = 1
	Version2 = 2
	Version3 = 3
)

// ErrNotHDF5 is returned when no format signature is found.
var ErrNotHDF5 = errors.New("not an HDF5 file")

// Superblock holds the file-level metadata every other structure depends on.
// All addresses are relative to BaseAddress.
type Superblock struct {
	Version     uint8
	OffsetSize  uint8
	LengthSize  uint8
	BaseAddress uint64
	EOFAddress  uint64
	RootGroup   uint64 // Object header address of the root group.
	Endianness  binary.ByteOrder

	// Root symbol table scratch pad (v0/v1 only, zero when absent).
	RootBTree uint64
	RootHeap  uint64

	// Group B-tree K values (v0/v1 only).
	GroupLeafK     uint16
	GroupInternalK uint16
}

// FindSignature locates the superblock. HDF5 allows a user block before it,
// so the signature may sit at 0, 512, 1024, 2048 and so on.
func FindSignature(r io.ReaderAt, size int64) (int64, error) {
	buf := make([]byte, len(Signature))
	for off := int64(0); off+int64(len(Signature)) <= size; {
		if _, err := r.ReadAt(buf, off); err != nil {
			return 0, utils.WrapError("signature read failed", err)
		}
		if string(buf) == Signature {
			return off, nil
		}
		if off == 0 {
			off = 512
		} else {
			off *= 2
		}
	}
	return 0, ErrNotHDF5
}

// ReadSuperblock parses the superblock at the start of r. The reader must be
// positioned so that offset 0 is the signature (see FindSignature).
func ReadSuperblock(r io.ReaderAt) (*Superblock, error) {
	buf := utils.GetBuffer(128)
	defer utils.ReleaseBuffer(buf)

	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, utils.WrapError("superblock read failed", err)
	}
	if n < 24 {
		return nil, errors.New("file too small to contain a superblock")
	}
	if string(buf[:8]) != Signature {
		return nil, ErrNotHDF5
	}

	sb := &Superblock{
		Version:    buf[8],
		Endianness: binary.LittleEndian,
	}

	switch sb.Version {
	case Version0, Version1:
		err = sb.decodeV0(buf[:n])
	case Version2, Version3:
		err = sb.decodeV2(buf[:n])
	default:
		return nil, fmt.Errorf("unsupported superblock version: %d", sb.Version)
	}
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("superblock v%d", sb.Version), err)
	}
	return sb, nil
}

func validSize(s uint8) bool {
	return s == 2 || s == 4 || s == 8
}

// decodeV0 handles versions 0 and 1, which end in the root group symbol
// table entry.
func (sb *Superblock) decodeV0(buf []byte) error {
	sb.OffsetSize = buf[13]
	sb.LengthSize = buf[14]
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return fmt.Errorf("invalid sizes: offset=%d, length=%d", sb.OffsetSize, sb.LengthSize)
	}
	sb.GroupLeafK = sb.Endianness.Uint16(buf[16:18])
	sb.GroupInternalK = sb.Endianness.Uint16(buf[18:20])

	pos := 24
	if sb.Version == Version1 {
		pos += 4 // Indexed storage K + reserved.
	}

	o := int(sb.OffsetSize)
	// Four addresses, then the root entry: name offset, header address,
	// cache type, reserved, 16-byte scratch pad.
	need := pos + 4*o + 2*o + 8 + 16
	if len(buf) < need {
		return utils.ErrTruncated
	}

	read := func() uint64 {
		v := utils.ReadUint(buf[pos:], o, sb.Endianness)
		pos += o
		return v
	}

	sb.BaseAddress = read()
	_ = read() // Free-space info address.
	sb.EOFAddress = read()
	_ = read() // Driver info block address.

	_ = read() // Root link name offset.
	sb.RootGroup = read()
	cacheType := sb.Endianness.Uint32(buf[pos : pos+4])
	pos += 8
	if cacheType == 1 {
		sb.RootBTree = read()
		sb.RootHeap = read()
	}
	return nil
}

// decodeV2 handles versions 2 and 3 and verifies the trailing checksum.
func (sb *Superblock) decodeV2(buf []byte) error {
	sb.OffsetSize = buf[9]
	sb.LengthSize = buf[10]
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return fmt.Errorf("invalid sizes: offset=%d, length=%d", sb.OffsetSize, sb.LengthSize)
	}

	o := int(sb.OffsetSize)
	end := 12 + 4*o
	if len(buf) < end+4 {
		return utils.ErrTruncated
	}

	stored := sb.Endianness.Uint32(buf[end : end+4])
	if sum := utils.Checksum(buf[:end]); sum != stored {
		return fmt.Errorf("checksum mismatch: stored 0x%08x, computed 0x%08x", stored, sum)
	}

	pos := 12
	sb.BaseAddress = utils.ReadUint(buf[pos:], o, sb.Endianness)
	pos += 2 * o // Skip superblock extension address.
	sb.EOFAddress = utils.ReadUint(buf[pos:], o, sb.Endianness)
	pos += o
	sb.RootGroup = utils.ReadUint(buf[pos:], o, sb.Endianness)
	return nil
}

// DecodeAddress reads an offset-sized address from data.
func (sb *Superblock) DecodeAddress(data []byte) uint64 {
	return utils.ReadUint(data, int(sb.OffsetSize), sb.Endianness)
}

// DecodeLength reads a length-sized value from data.
func (sb *Superblock) DecodeLength(data []byte) uint64 {
	return utils.ReadUint(data, int(sb.LengthSize), sb.Endianness)
}

// IsUndefined reports whether addr is the undefined address for this file.
func (sb *Superblock) IsUndefined(addr uint64) bool {
	return utils.IsUndefined(addr, int(sb.OffsetSize))
}
