package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// LinkInfoMessage represents the Link Info message (type 0x0002) found in
// groups created with the 1.8 format.
//
// Format: version(1), flags(1), max creation order(8, if flags bit 0),
// fractal heap address(O), name B-tree address(O), creation order B-tree
// address(O, if flags bit 1).
type LinkInfoMessage struct {
	Version          uint8
	Flags            uint8
	MaxCreationOrder uint64

	FractalHeapAddress        uint64
	NameBTreeAddress          uint64
	CreationOrderBTreeAddress uint64
}

// Flags for LinkInfoMessage.
const (
	LinkInfoTrackCreationOrder uint8 = 0x01
	LinkInfoIndexCreationOrder uint8 = 0x02
)

// ParseLinkInfoMessage parses Link Info message from header message data.
func ParseLinkInfoMessage(data []byte, sb *Superblock) (*LinkInfoMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("link info message too short")
	}

	lim := &LinkInfoMessage{Version: data[0], Flags: data[1]}
	if lim.Version != 0 {
		return nil, fmt.Errorf("unsupported link info version: %d", lim.Version)
	}

	pos := 2
	if lim.Flags&LinkInfoTrackCreationOrder != 0 {
		if len(data) < pos+8 {
			return nil, utils.ErrTruncated
		}
		lim.MaxCreationOrder = sb.Endianness.Uint64(data[pos:])
		pos += 8
	}

	o := int(sb.OffsetSize)
	if len(data) < pos+2*o {
		return nil, utils.ErrTruncated
	}
	lim.FractalHeapAddress = sb.DecodeAddress(data[pos:])
	lim.NameBTreeAddress = sb.DecodeAddress(data[pos+o:])
	pos += 2 * o

	if lim.Flags&LinkInfoIndexCreationOrder != 0 {
		if len(data) < pos+o {
			return nil, utils.ErrTruncated
		}
		lim.CreationOrderBTreeAddress = sb.DecodeAddress(data[pos:])
	}
	return lim, nil
}

// IsDense reports whether links live in a fractal heap rather than in
// link messages of the object header.
func (lim *LinkInfoMessage) IsDense(sb *Superblock) bool {
	return !sb.IsUndefined(lim.FractalHeapAddress) && lim.FractalHeapAddress != 0
}
