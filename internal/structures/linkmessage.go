package structures

import (
	"encoding/binary"
	"fmt"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

// LinkType is the kind of a group member link.
type LinkType uint8

// Link types. Values of 64 and above are user-defined; 64 is external.
const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

func (t LinkType) String() string {
	switch t {
	case LinkTypeHard:
		return "hard"
	case LinkTypeSoft:
		return "soft"
	case LinkTypeExternal:
		return "external"
	}
	return fmt.Sprintf("user-defined(%d)", uint8(t))
}

// Link is a named group member regardless of how the group stores it.
type Link struct {
	Name    string
	Type    LinkType
	Address uint64 // Hard links.
	Target  string // Soft and external links.
	File    string // External links.
}

func (l Link) String() string {
	switch l.Type {
	case LinkTypeHard:
		return fmt.Sprintf("%s -> 0x%x", l.Name, l.Address)
	case LinkTypeExternal:
		return fmt.Sprintf("%s -> %s:%s", l.Name, l.File, l.Target)
	}
	return fmt.Sprintf("%s -> %s", l.Name, l.Target)
}

// Link message flag bits.
const (
	linkNameSizeMask     = 0x03
	linkHasCreationOrder = 0x04
	linkHasType          = 0x08
	linkHasCharset       = 0x10
)

// ParseLinkMessage decodes header message 0x06.
func ParseLinkMessage(data []byte, sb *core.Superblock) (*Link, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("link message too short: %d bytes", len(data))
	}
	if data[0] != 1 {
		return nil, fmt.Errorf("unsupported link message version: %d", data[0])
	}
	flags := data[1]
	pos := 2
	need := func(n int, what string) error {
		if pos+n > len(data) {
			return fmt.Errorf("link message truncated reading %s", what)
		}
		return nil
	}

	link := &Link{Type: LinkTypeHard}
	if flags&linkHasType != 0 {
		if err := need(1, "link type"); err != nil {
			return nil, err
		}
		link.Type = LinkType(data[pos])
		pos++
	}
	if flags&linkHasCreationOrder != 0 {
		pos += 8
	}
	if flags&linkHasCharset != 0 {
		pos++
	}

	width := 1 << (flags & linkNameSizeMask)
	if err := need(width, "name length"); err != nil {
		return nil, err
	}
	nameLen := utils.ReadUint(data[pos:], width, binary.LittleEndian)
	pos += width
	if nameLen == 0 {
		return nil, fmt.Errorf("invalid name length: 0")
	}
	if nameLen > uint64(len(data)-pos) {
		return nil, fmt.Errorf("link message truncated reading name (need %d bytes, have %d)", nameLen, len(data)-pos)
	}
	link.Name = string(data[pos : pos+int(nameLen)])
	pos += int(nameLen)

	switch link.Type {
	case LinkTypeHard:
		if err := need(int(sb.OffsetSize), "object address"); err != nil {
			return nil, err
		}
		link.Address = sb.DecodeAddress(data[pos:])

	case LinkTypeSoft:
		if err := need(2, "soft link length"); err != nil {
			return nil, err
		}
		n := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if err := need(n, "soft link path"); err != nil {
			return nil, err
		}
		link.Target = string(data[pos : pos+n])

	default:
		if err := need(2, "user-defined link length"); err != nil {
			return nil, err
		}
		n := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if err := need(n, "user-defined link data"); err != nil {
			return nil, err
		}
		if link.Type == LinkTypeExternal && n > 1 {
			// Flags byte, then file name and object path, both NUL-terminated.
			body := data[pos+1 : pos+n]
			for i, b := range body {
				if b == 0 {
					link.File = string(body[:i])
					link.Target = trimNUL(body[i+1:])
					break
				}
			}
		}
	}
	return link, nil
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
