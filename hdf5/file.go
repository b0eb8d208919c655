// Package hdf5 is a pure Go, read-only reader for HDF5 files. It resolves
// groups and datasets by slash-delimited path and decodes dataset values and
// attributes into Go slices.
package hdf5

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/utils"
)

// Object is a group or dataset reached through a path.
type Object interface {
	// Name is the absolute path the object was reached through.
	Name() string
	// Address is the object header address.
	Address() uint64
	Attributes() ([]*Attribute, error)
}

// File is an open HDF5 file.
type File struct {
	filename string
	osFile   *os.File
	r        *io.SectionReader // Offset 0 is the base address.
	size     int64
	sb       *core.Superblock
	root     *Group
	heap     *core.GlobalHeap
	types    map[uint64]*core.DatatypeMessage
}

// Open opens an HDF5 file read-only. A user block before the superblock is
// skipped.
func Open(filename string) (*File, error) {
	//nolint:gosec // G304: opening a user-supplied path is the point
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	file, err := newFile(f, filename)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return file, nil
}

func newFile(f *os.File, filename string) (*File, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, utils.WrapError("file stat failed", err)
	}
	size := fi.Size()

	off, err := core.FindSignature(f, size)
	if err != nil {
		return nil, fmt.Errorf("unable to open file %q: %w", filename, err)
	}
	sb, err := core.ReadSuperblock(io.NewSectionReader(f, off, size-off))
	if err != nil {
		return nil, utils.WrapError("superblock read failed", err)
	}

	// Addresses are relative to the superblock. A base address that
	// disagrees with where the signature was found is ignored.
	base := off
	if sb.RootGroup >= uint64(size-base) {
		return nil, fmt.Errorf("root group address %d beyond file size %d", sb.RootGroup, size)
	}

	file := &File{
		filename: filename,
		osFile:   f,
		r:        io.NewSectionReader(f, base, size-base),
		size:     size,
		sb:       sb,
		types:    map[uint64]*core.DatatypeMessage{},
	}
	file.heap = core.NewGlobalHeap(file.r, sb)

	root, err := file.loadGroup(sb.RootGroup, "/")
	if err != nil {
		return nil, utils.WrapError("root group load failed", err)
	}
	file.root = root
	return file, nil
}

// Close releases the file. It is safe to call Close more than once; every
// later operation on the file or its objects returns ErrClosed.
func (f *File) Close() error {
	if f.osFile == nil {
		return nil
	}
	err := f.osFile.Close()
	f.osFile = nil
	return err
}

// Closed reports whether Close has been called.
func (f *File) Closed() bool {
	return f.osFile == nil
}

func (f *File) check() error {
	if f.osFile == nil {
		return ErrClosed
	}
	return nil
}

// Filename returns the path the file was opened with.
func (f *File) Filename() string {
	return f.filename
}

// Size is the file size in bytes.
func (f *File) Size() int64 {
	return f.size
}

// SuperblockVersion returns the superblock format version (0 to 3).
func (f *File) SuperblockVersion() uint8 {
	return f.sb.Version
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// ReadAt reads raw bytes at an absolute file offset.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	return f.osFile.ReadAt(p, off)
}

// Get resolves a slash-delimited path. Relative paths start at the root.
func (f *File) Get(path string) (Object, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return f.root.Get(path)
}

// Contains reports whether path names an object. A path that exists but
// cannot be resolved, such as an external link, still counts as present so
// that Get reports the real failure.
func (f *File) Contains(path string) bool {
	_, err := f.Get(path)
	return err == nil || !(errors.Is(err, ErrNotFound) || errors.Is(err, ErrClosed))
}

// Dataset resolves path and requires a dataset.
func (f *File) Dataset(path string) (*Dataset, error) {
	obj, err := f.Get(path)
	if err != nil {
		return nil, err
	}
	d, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, obj.Name())
	}
	return d, nil
}

// Group resolves path and requires a group.
func (f *File) Group(path string) (*Group, error) {
	obj, err := f.Get(path)
	if err != nil {
		return nil, err
	}
	g, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, obj.Name())
	}
	return g, nil
}

// Walk visits every object reachable through hard links, depth first in
// name order, starting with the root group. Objects linked more than once
// are visited once. Returning an error from fn stops the walk.
func (f *File) Walk(fn func(path string, obj Object) error) error {
	if err := f.check(); err != nil {
		return err
	}
	seen := map[uint64]bool{}
	return walk(f.root, seen, fn)
}

func walk(g *Group, seen map[uint64]bool, fn func(string, Object) error) error {
	seen[g.address] = true
	if err := fn(g.name, g); err != nil {
		return err
	}
	children, err := g.Children()
	if err != nil {
		return err
	}
	for _, child := range children {
		if seen[child.Address()] {
			continue
		}
		if cg, ok := child.(*Group); ok {
			if err := walk(cg, seen, fn); err != nil {
				return err
			}
			continue
		}
		seen[child.Address()] = true
		if err := fn(child.Name(), child); err != nil {
			return err
		}
	}
	return nil
}

// String describes the file the way h5py prints it.
func (f *File) String() string {
	if f.Closed() {
		return "<Closed HDF5 file>"
	}
	return fmt.Sprintf("<HDF5 file %q (mode r)>", filepath.Base(f.filename))
}

// loadType reads a committed datatype, caching it by address.
func (f *File) loadType(addr uint64) (*core.DatatypeMessage, error) {
	if dt, ok := f.types[addr]; ok {
		return dt, nil
	}
	dt, err := core.ReadCommittedDatatype(f.r, addr, f.sb)
	if err != nil {
		return nil, err
	}
	f.types[addr] = dt
	return dt, nil
}

// loadObject reads the header at address and builds a group or dataset.
func (f *File) loadObject(address uint64, name string) (Object, error) {
	h, err := core.ReadObjectHeader(f.r, address, f.sb)
	if err != nil {
		return nil, err
	}
	switch h.Type {
	case core.ObjectTypeGroup:
		return &Group{file: f, name: name, address: address, header: h}, nil
	case core.ObjectTypeDataset:
		info, err := core.ReadDatasetInfo(h, f.sb, f.loadType)
		if err != nil {
			return nil, utils.WrapErrorAt("dataset "+name, address, err)
		}
		return &Dataset{file: f, name: name, address: address, header: h, info: info}, nil
	case core.ObjectTypeDatatype:
		return nil, fmt.Errorf("%w: %s is a committed datatype", ErrUnsupported, name)
	}
	return nil, fmt.Errorf("object %s at 0x%x has an unknown type", name, address)
}

func (f *File) loadGroup(address uint64, name string) (*Group, error) {
	obj, err := f.loadObject(address, name)
	if err != nil {
		return nil, err
	}
	g, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, name)
	}
	return g, nil
}

// joinPath appends name to a group path.
func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
