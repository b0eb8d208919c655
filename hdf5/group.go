package hdf5

import (
	"fmt"
	"strings"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/structures"
)

// maxSoftLinkDepth bounds soft link chains, including cycles.
const maxSoftLinkDepth = 16

// Group is a named container of links to other objects.
type Group struct {
	file    *File
	name    string
	address uint64
	header  *core.ObjectHeader
	links   []structures.Link
	loaded  bool
}

// Name returns the absolute path of the group.
func (g *Group) Name() string {
	return g.name
}

// Address returns the object header address.
func (g *Group) Address() uint64 {
	return g.address
}

// File returns the file the group belongs to.
func (g *Group) File() *File {
	return g.file
}

// Links returns the group's links sorted by name.
func (g *Group) Links() ([]structures.Link, error) {
	if err := g.file.check(); err != nil {
		return nil, err
	}
	if !g.loaded {
		links, err := structures.ReadLinks(g.file.r, g.header, g.file.sb)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.name, err)
		}
		g.links = links
		g.loaded = true
	}
	return g.links, nil
}

// Keys returns the member names sorted.
func (g *Group) Keys() ([]string, error) {
	links, err := g.Links()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.Name
	}
	return names, nil
}

// Children resolves every member reachable through a hard link. Soft and
// external links are skipped.
func (g *Group) Children() ([]Object, error) {
	links, err := g.Links()
	if err != nil {
		return nil, err
	}
	var out []Object
	for _, l := range links {
		if l.Type != structures.LinkTypeHard {
			continue
		}
		obj, err := g.file.loadObject(l.Address, joinPath(g.name, l.Name))
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Attributes returns the group's attributes in storage order.
func (g *Group) Attributes() ([]*Attribute, error) {
	return g.file.attributes(g.header)
}

// Get resolves path relative to the group. A leading slash starts at the
// root group.
func (g *Group) Get(path string) (Object, error) {
	if err := g.file.check(); err != nil {
		return nil, err
	}
	return g.resolve(path, 0)
}

func (g *Group) resolve(path string, depth int) (Object, error) {
	var cur Object = g
	if strings.HasPrefix(path, "/") {
		cur = g.file.root
	}

	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	for _, part := range parts {
		dir, ok := cur.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s (%s is not a group)", ErrNotFound, path, cur.Name())
		}
		link, err := dir.lookup(part)
		if err != nil {
			return nil, err
		}
		if link == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		switch link.Type {
		case structures.LinkTypeHard:
			cur, err = g.file.loadObject(link.Address, joinPath(dir.name, part))
			if err != nil {
				return nil, err
			}
		case structures.LinkTypeSoft:
			if depth >= maxSoftLinkDepth {
				return nil, fmt.Errorf("soft link %s: too many levels of indirection", joinPath(dir.name, part))
			}
			cur, err = dir.resolve(link.Target, depth+1)
			if err != nil {
				return nil, fmt.Errorf("soft link %s -> %s: %w", joinPath(dir.name, part), link.Target, err)
			}
			// The object keeps the name it was reached through.
			cur = rename(cur, joinPath(dir.name, part))
		case structures.LinkTypeExternal:
			return nil, fmt.Errorf("%w: external link %s -> %s:%s",
				ErrUnsupported, joinPath(dir.name, part), link.File, link.Target)
		default:
			return nil, fmt.Errorf("%w: %s link %s", ErrUnsupported, link.Type, joinPath(dir.name, part))
		}
	}
	return cur, nil
}

func (g *Group) lookup(name string) (*structures.Link, error) {
	links, err := g.Links()
	if err != nil {
		return nil, err
	}
	for i := range links {
		if links[i].Name == name {
			return &links[i], nil
		}
	}
	return nil, nil
}

// rename returns a copy of obj that reports name.
func rename(obj Object, name string) Object {
	switch o := obj.(type) {
	case *Group:
		c := *o
		c.name = name
		return &c
	case *Dataset:
		c := *o
		c.name = name
		return &c
	}
	return obj
}

func (g *Group) String() string {
	if g.file.Closed() {
		return "<Closed HDF5 group>"
	}
	links, err := g.Links()
	if err != nil {
		return fmt.Sprintf("<HDF5 group %q>", g.name)
	}
	return fmt.Sprintf("<HDF5 group %q (%d members)>", g.name, len(links))
}
