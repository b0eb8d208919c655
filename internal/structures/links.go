package structures

import (
	"fmt"
	"sort"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

// ReadLinks lists the members of the group whose header is h, whichever of
// the three storage forms it uses: a symbol table, link messages in the
// header, or dense storage in a fractal heap. Links are sorted by name.
func ReadLinks(r utils.ReaderAt, h *core.ObjectHeader, sb *core.Superblock) ([]Link, error) {
	if m := h.Find(core.MsgSymbolTable); m != nil {
		msg, err := ParseSymbolTableMessage(m.Data, sb)
		if err != nil {
			return nil, err
		}
		links, err := SymbolTableLinks(r, msg, sb)
		if err != nil {
			return nil, err
		}
		sortLinks(links)
		return links, nil
	}

	var links []Link
	for _, m := range h.FindAll(core.MsgLinkMessage) {
		link, err := ParseLinkMessage(m.Data, sb)
		if err != nil {
			return nil, utils.WrapErrorAt("link message", h.Address, err)
		}
		links = append(links, *link)
	}

	if m := h.Find(core.MsgLinkInfo); m != nil {
		info, err := core.ParseLinkInfoMessage(m.Data, sb)
		if err != nil {
			return nil, err
		}
		if info.IsDense(sb) {
			dense, err := denseLinks(r, info, sb)
			if err != nil {
				return nil, err
			}
			links = append(links, dense...)
		}
	}
	sortLinks(links)
	return links, nil
}

func sortLinks(links []Link) {
	sort.SliceStable(links, func(i, j int) bool { return links[i].Name < links[j].Name })
}

// denseLinks reads every link message referenced by the name index.
func denseLinks(r utils.ReaderAt, info *core.LinkInfoMessage, sb *core.Superblock) ([]Link, error) {
	heap, err := OpenFractalHeap(r, info.FractalHeapAddress, sb)
	if err != nil {
		return nil, err
	}
	bt, records, err := ReadBTreeV2Records(r, info.NameBTreeAddress, sb)
	if err != nil {
		return nil, err
	}
	if bt.Type != BTreeV2LinkName {
		return nil, fmt.Errorf("link name index has record type %d", bt.Type)
	}

	links := make([]Link, 0, len(records))
	for _, rec := range records {
		// Name hash (4), then the heap ID.
		obj, err := heap.ReadObject(rec[4:])
		if err != nil {
			return nil, utils.WrapError("dense link", err)
		}
		link, err := ParseLinkMessage(obj, sb)
		if err != nil {
			return nil, utils.WrapError("dense link", err)
		}
		links = append(links, *link)
	}
	return links, nil
}

// ReadAttributes returns every attribute of the object, compact and dense,
// in storage order for compact attributes followed by name order for dense
// ones.
func ReadAttributes(r utils.ReaderAt, h *core.ObjectHeader, sb *core.Superblock, resolve core.TypeResolver) ([]*core.Attribute, error) {
	attrs, info, err := core.ReadAttributes(h, sb, resolve)
	if err != nil || info == nil {
		return attrs, err
	}

	heap, err := OpenFractalHeap(r, info.FractalHeapAddr, sb)
	if err != nil {
		return attrs, err
	}
	bt, records, err := ReadBTreeV2Records(r, info.NameIndexAddr, sb)
	if err != nil {
		return attrs, err
	}
	if bt.Type != BTreeV2AttrName {
		return attrs, fmt.Errorf("attribute name index has record type %d", bt.Type)
	}

	for _, rec := range records {
		// Heap ID (8), flags (1), creation order (4), name hash (4).
		if len(rec) < 9 {
			return attrs, utils.ErrTruncated
		}
		if rec[8]&0x01 != 0 {
			return attrs, fmt.Errorf("%w: shared dense attribute", core.ErrUnsupported)
		}
		obj, err := heap.ReadObject(rec[:8])
		if err != nil {
			return attrs, utils.WrapError("dense attribute", err)
		}
		a, err := core.ParseAttributeMessage(obj, sb, resolve)
		if err != nil {
			return attrs, utils.WrapError("dense attribute", err)
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}
