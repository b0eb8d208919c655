package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func v1Message(t MessageType, flags uint8, data []byte) []byte {
	padded := make([]byte, (len(data)+7)&^7)
	copy(padded, data)
	return cat(u16(uint16(t)), u16(uint16(len(padded))), []byte{flags, 0, 0, 0}, padded)
}

func v2Message(t MessageType, flags uint8, order bool, data []byte) []byte {
	out := cat([]byte{byte(t)}, u16(uint16(len(data))), []byte{flags})
	if order {
		out = append(out, 0, 0)
	}
	return cat(out, data)
}

func TestReadObjectHeader_V1WithContinuation(t *testing.T) {
	first := cat(
		v1Message(MsgDataspace, 0, []byte{1, 0, 0, 0, 0, 0, 0, 0}),
		v1Message(MsgContinuation, 0, cat(u64(200), u64(16))),
	)
	header := cat([]byte{1, 0}, u16(3), u32(1), u32(uint32(len(first))), u32(0), first)

	file := make([]byte, 216)
	copy(file, header)
	copy(file[200:], v1Message(MsgDatatype, 0, []byte{0x11, 0x08, 0, 0, 8, 0, 0, 0}))

	h, err := ReadObjectHeader(bytes.NewReader(file), 0, testSuperblock())
	require.NoError(t, err)
	require.Equal(t, uint8(1), h.Version)
	require.Len(t, h.Messages, 2)
	require.Equal(t, MsgDataspace, h.Messages[0].Type)
	require.Equal(t, MsgDatatype, h.Messages[1].Type)
	require.Equal(t, ObjectTypeDataset, h.Type)
}

func TestReadObjectHeader_V2WithContinuation(t *testing.T) {
	sb := testSuperblock()

	cont := withChecksum(cat([]byte("OCHK"), v2Message(MsgLinkMessage, 0, true, []byte{1, 2, 3})))
	msgs := cat(
		v2Message(MsgLinkInfo, 0, true, []byte{0, 0}),
		v2Message(MsgContinuation, 0, true, cat(u64(300), u64(uint64(len(cont))))),
	)
	header := withChecksum(cat([]byte("OHDR"), []byte{2, 0x04, byte(len(msgs))}, msgs))

	file := make([]byte, 300+len(cont))
	copy(file[100:], header)
	copy(file[300:], cont)

	h, err := ReadObjectHeader(bytes.NewReader(file), 100, sb)
	require.NoError(t, err)
	require.Equal(t, uint8(2), h.Version)
	require.Equal(t, ObjectTypeGroup, h.Type)
	require.Len(t, h.Messages, 2)

	link := h.Find(MsgLinkMessage)
	require.NotNil(t, link)
	require.Equal(t, []byte{1, 2, 3}, link.Data)
	require.Len(t, h.FindAll(MsgLinkInfo), 1)
	require.Nil(t, h.Find(MsgAttribute))
}

func TestReadObjectHeader_V2BadChecksum(t *testing.T) {
	msgs := v2Message(MsgDataspace, 0, false, []byte{2, 0, 0, 0})
	header := withChecksum(cat([]byte("OHDR"), []byte{2, 0, byte(len(msgs))}, msgs))
	header[8] ^= 0xFF

	_, err := ReadObjectHeader(bytes.NewReader(header), 0, testSuperblock())
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")
}

func TestReadObjectHeader_V2Gap(t *testing.T) {
	// Trailing bytes shorter than a message prefix are a gap.
	msgs := cat(v2Message(MsgDataspace, 0, false, []byte{2, 0, 0, 0}), []byte{0, 0})
	header := withChecksum(cat([]byte("OHDR"), []byte{2, 0, byte(len(msgs))}, msgs))

	h, err := ReadObjectHeader(bytes.NewReader(header), 0, testSuperblock())
	require.NoError(t, err)
	require.Len(t, h.Messages, 1)
}

func TestReadObjectHeader_InvalidSignature(t *testing.T) {
	_, err := ReadObjectHeader(bytes.NewReader([]byte("JUNKJUNKJUNKJUNK")), 0, testSuperblock())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid object header signature")
}

func TestSharedAddress(t *testing.T) {
	sb := testSuperblock()

	addr, err := SharedAddress(cat([]byte{3, 2}, u64(0x1234)), sb)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), addr)

	addr, err = SharedAddress(cat([]byte{1, 0}, make([]byte, 6), u64(0x40)), sb)
	require.NoError(t, err)
	require.Equal(t, uint64(0x40), addr)

	_, err = SharedAddress(cat([]byte{3, 1}, u64(7)), sb)
	require.ErrorIs(t, err, ErrUnsupported)
}
