package structures

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

const maxGroupDepth = 64

// ReadGroupBTreeEntries walks the group B-tree rooted at address and returns
// the entries of every symbol table node it references, in name order.
// Group tree keys are local heap offsets, one length-width field each.
func ReadGroupBTreeEntries(r utils.ReaderAt, address uint64, sb *core.Superblock) ([]SymbolTableEntry, error) {
	var entries []SymbolTableEntry
	visited := map[uint64]bool{}

	var walk func(addr uint64, depth int) error
	walk = func(addr uint64, depth int) error {
		if depth > maxGroupDepth {
			return errors.New("group B-tree too deep")
		}
		if visited[addr] {
			return utils.WrapErrorAt("group B-tree", addr, errors.New("cycle detected"))
		}
		visited[addr] = true

		node, err := core.ReadBTreeV1Node(r, addr, sb, int(sb.LengthSize))
		if err != nil {
			return err
		}
		if node.NodeType != core.BTreeGroupNode {
			return utils.WrapErrorAt("group B-tree", addr, fmt.Errorf("unexpected node type %d", node.NodeType))
		}

		for _, child := range node.Children {
			if node.NodeLevel > 0 {
				if err := walk(child, depth+1); err != nil {
					return err
				}
				continue
			}
			snod, err := ReadSymbolTableNode(r, child, sb)
			if err != nil {
				return err
			}
			entries = append(entries, snod...)
		}
		return nil
	}

	if err := walk(address, 0); err != nil {
		return nil, err
	}
	return entries, nil
}

// SymbolTableLinks resolves the links of an old-style group.
func SymbolTableLinks(r utils.ReaderAt, msg *SymbolTableMessage, sb *core.Superblock) ([]Link, error) {
	heap, err := LoadLocalHeap(r, msg.HeapAddress, sb)
	if err != nil {
		return nil, err
	}
	entries, err := ReadGroupBTreeEntries(r, msg.BTreeAddress, sb)
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		name, err := heap.GetString(e.NameOffset)
		if err != nil {
			return nil, utils.WrapError("link name", err)
		}
		link := Link{Name: name, Type: LinkTypeHard, Address: e.ObjectAddress}
		if e.CacheType == CacheSoftLink {
			target, err := heap.GetString(e.SoftLinkOffset(sb))
			if err != nil {
				return nil, utils.WrapError(fmt.Sprintf("soft link %q", name), err)
			}
			link = Link{Name: name, Type: LinkTypeSoft, Target: target}
		}
		links = append(links, link)
	}
	return links, nil
}
