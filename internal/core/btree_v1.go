package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/utils"
)

// B-tree v1 node types.
const (
	BTreeGroupNode = 0
	BTreeChunkNode = 1
)

const maxBTreeDepth = 64

// BTreeV1Node is a version 1 B-tree node. Raw keys are kept undecoded
// because their layout depends on the node type.
type BTreeV1Node struct {
	Address      uint64
	NodeType     uint8
	NodeLevel    uint8
	EntriesUsed  uint16
	LeftSibling  uint64
	RightSibling uint64
	Keys         [][]byte // EntriesUsed+1 keys.
	Children     []uint64
}

// ReadBTreeV1Node reads the node at address. keySize is the size of one key:
// the superblock length width for group trees, and 8+8*ndims for chunk trees.
func ReadBTreeV1Node(r utils.ReaderAt, address uint64, sb *Superblock, keySize int) (*BTreeV1Node, error) {
	o := int(sb.OffsetSize)
	head := make([]byte, 8+2*o)
	if err := utils.ReadFull(r, head, address); err != nil {
		return nil, utils.WrapErrorAt("B-tree node read failed", address, err)
	}
	if string(head[:4]) != "TREE" {
		return nil, utils.WrapErrorAt("B-tree node", address,
			fmt.Errorf("invalid B-tree signature: %q", head[:4]))
	}

	node := &BTreeV1Node{
		Address:      address,
		NodeType:     head[4],
		NodeLevel:    head[5],
		EntriesUsed:  sb.Endianness.Uint16(head[6:8]),
		LeftSibling:  sb.DecodeAddress(head[8:]),
		RightSibling: sb.DecodeAddress(head[8+o:]),
	}

	n := int(node.EntriesUsed)
	body := make([]byte, n*(keySize+o)+keySize)
	if err := utils.ReadFull(r, body, address+uint64(len(head))); err != nil {
		return nil, utils.WrapErrorAt("B-tree entries read failed", address, err)
	}

	node.Keys = make([][]byte, n+1)
	node.Children = make([]uint64, n)
	pos := 0
	for i := 0; i <= n; i++ {
		node.Keys[i] = body[pos : pos+keySize]
		pos += keySize
		if i < n {
			node.Children[i] = sb.DecodeAddress(body[pos:])
			pos += o
		}
	}
	return node, nil
}

// ChunkEntry locates one stored chunk.
type ChunkEntry struct {
	Offset     []uint64 // Element coordinates of the chunk origin.
	Size       uint32   // Stored (possibly filtered) size; 0 means a full raw chunk.
	FilterMask uint32
	Address    uint64
}

// chunkKeySize is the chunk B-tree key width for a layout rank (including
// the trailing element dimension).
func chunkKeySize(ndims int) int {
	return 8 + 8*ndims
}

// readBTreeChunks walks a chunk B-tree and returns every leaf entry in key
// order.
func readBTreeChunks(r utils.ReaderAt, root uint64, sb *Superblock, ndims int) ([]ChunkEntry, error) {
	var out []ChunkEntry
	visited := map[uint64]bool{}

	var walk func(addr uint64, depth int) error
	walk = func(addr uint64, depth int) error {
		if depth > maxBTreeDepth {
			return errors.New("chunk B-tree too deep")
		}
		if visited[addr] {
			return utils.WrapErrorAt("chunk B-tree", addr, errors.New("cycle detected"))
		}
		visited[addr] = true

		node, err := ReadBTreeV1Node(r, addr, sb, chunkKeySize(ndims))
		if err != nil {
			return err
		}
		if node.NodeType != BTreeChunkNode {
			return utils.WrapErrorAt("chunk B-tree", addr,
				fmt.Errorf("unexpected node type %d", node.NodeType))
		}

		for i, child := range node.Children {
			if node.NodeLevel > 0 {
				if err := walk(child, depth+1); err != nil {
					return err
				}
				continue
			}
			key := node.Keys[i]
			e := ChunkEntry{
				Size:       binary.LittleEndian.Uint32(key[0:4]),
				FilterMask: binary.LittleEndian.Uint32(key[4:8]),
				Address:    child,
				Offset:     make([]uint64, ndims-1),
			}
			for d := range e.Offset {
				e.Offset[d] = binary.LittleEndian.Uint64(key[8+8*d:])
			}
			out = append(out, e)
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return out, nil
}
