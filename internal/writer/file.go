package writer

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// maxLeafChunks is the most chunks one B-tree leaf can index.
const maxLeafChunks = math.MaxUint16

// File collects groups, datasets, attributes and links in memory and lays
// them out when closed.
type File struct {
	fw   *FileWriter
	root *node
}

type node struct {
	links   []link
	attrs   []attribute
	dataset *datasetSpec // nil for groups.
}

type link struct {
	name   string
	node   *node
	target string // Soft links only.
}

type attribute struct {
	name  string
	value *Value
}

type datasetSpec struct {
	value    *Value
	chunks   []uint64
	filters  *FilterPipeline
	compact  bool
	fill     *Value
	maxShape []uint64
	null     bool
}

type storedChunk struct {
	origin []uint64
	size   uint32
	addr   uint64
}

// DatasetOption configures CreateDataset.
type DatasetOption func(*datasetSpec)

// WithChunks stores the dataset in chunks of the given shape.
func WithChunks(dims ...uint64) DatasetOption {
	return func(s *datasetSpec) { s.chunks = dims }
}

// WithFilters applies filters to every chunk. It requires WithChunks.
func WithFilters(filters ...Filter) DatasetOption {
	return func(s *datasetSpec) { s.filters = NewFilterPipeline(filters...) }
}

// WithCompact stores the data inside the object header.
func WithCompact() DatasetOption {
	return func(s *datasetSpec) { s.compact = true }
}

// WithFillValue records the value used for unwritten elements.
func WithFillValue(v *Value) DatasetOption {
	return func(s *datasetSpec) { s.fill = v }
}

// WithMaxShape records maximum dimensions; Unlimited marks extendible ones.
func WithMaxShape(dims ...uint64) DatasetOption {
	return func(s *datasetSpec) { s.maxShape = dims }
}

// WithNullSpace gives the dataset a null dataspace: it keeps the datatype
// of the value but holds no elements.
func WithNullSpace() DatasetOption {
	return func(s *datasetSpec) { s.null = true }
}

// Unlimited marks an extendible dimension in WithMaxShape.
const Unlimited uint64 = math.MaxUint64

// Create starts a new file.
func Create(filename string, mode CreateMode) (*File, error) {
	fw, err := NewFileWriter(filename, mode, superblockSize)
	if err != nil {
		return nil, err
	}
	return &File{fw: fw, root: &node{}}, nil
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}

func (n *node) child(name string) *link {
	for i := range n.links {
		if n.links[i].name == name {
			return &n.links[i]
		}
	}
	return nil
}

// walk returns the group at parts, creating missing groups when create is
// set.
func (f *File) walk(parts []string, create bool) (*node, error) {
	cur := f.root
	for i, p := range parts {
		l := cur.child(p)
		if l == nil {
			if !create {
				return nil, fmt.Errorf("%s: no such group", "/"+strings.Join(parts[:i+1], "/"))
			}
			g := &node{}
			cur.links = append(cur.links, link{name: p, node: g})
			cur = g
			continue
		}
		if l.node == nil || l.node.dataset != nil {
			return nil, fmt.Errorf("%s: not a group", "/"+strings.Join(parts[:i+1], "/"))
		}
		cur = l.node
	}
	return cur, nil
}

func (f *File) add(path string, l link) error {
	if f.fw == nil {
		return errWriterClosed
	}
	parts := splitPath(path)
	if len(parts) == 0 {
		return errors.New("path names the root group")
	}
	parent, err := f.walk(parts[:len(parts)-1], true)
	if err != nil {
		return err
	}
	l.name = parts[len(parts)-1]
	if parent.child(l.name) != nil {
		return fmt.Errorf("%s: already exists", path)
	}
	parent.links = append(parent.links, l)
	return nil
}

// CreateGroup creates a group and any missing parents.
func (f *File) CreateGroup(path string) error {
	if f.fw == nil {
		return errWriterClosed
	}
	_, err := f.walk(splitPath(path), true)
	return err
}

// CreateDataset creates a dataset holding v and any missing parent groups.
func (f *File) CreateDataset(path string, v *Value, opts ...DatasetOption) error {
	ds := &datasetSpec{value: v}
	for _, opt := range opts {
		opt(ds)
	}
	if err := ds.validate(); err != nil {
		return fmt.Errorf("dataset %s: %w", path, err)
	}
	return f.add(path, link{node: &node{dataset: ds}})
}

func (s *datasetSpec) validate() error {
	rank := len(s.value.Dims)
	if s.chunks != nil {
		if len(s.chunks) != rank || rank == 0 {
			return fmt.Errorf("chunk rank %d does not match dataset rank %d", len(s.chunks), rank)
		}
		if s.compact {
			return errors.New("compact datasets cannot be chunked")
		}
	}
	if !s.filters.IsEmpty() && s.chunks == nil {
		return errors.New("filters require chunked storage")
	}
	if s.compact && len(s.value.Data) > math.MaxUint16 {
		return fmt.Errorf("compact data too large: %d bytes", len(s.value.Data))
	}
	if s.null && (s.chunks != nil || s.compact || s.maxShape != nil) {
		return errors.New("null dataspace takes no storage options")
	}
	if s.fill != nil && s.fill.ElemSize != s.value.ElemSize {
		return errors.New("fill value type does not match dataset type")
	}
	if s.maxShape != nil && len(s.maxShape) != rank {
		return fmt.Errorf("max shape rank %d does not match dataset rank %d", len(s.maxShape), rank)
	}
	for i, m := range s.maxShape {
		if m < s.value.Dims[i] {
			return fmt.Errorf("max shape %d below dimension %d in axis %d", m, s.value.Dims[i], i)
		}
		if m != s.value.Dims[i] && s.chunks == nil {
			return errors.New("extendible datasets must be chunked")
		}
	}
	return nil
}

// SetAttribute attaches an attribute to the object at path ("/" for the
// root group).
func (f *File) SetAttribute(path, name string, v *Value) error {
	if f.fw == nil {
		return errWriterClosed
	}
	parts := splitPath(path)
	target := f.root
	if len(parts) > 0 {
		parent, err := f.walk(parts[:len(parts)-1], false)
		if err != nil {
			return err
		}
		l := parent.child(parts[len(parts)-1])
		if l == nil || l.node == nil {
			return fmt.Errorf("%s: no such object", path)
		}
		target = l.node
	}
	for _, a := range target.attrs {
		if a.name == name {
			return fmt.Errorf("attribute %q already exists on %s", name, path)
		}
	}
	target.attrs = append(target.attrs, attribute{name: name, value: v})
	return nil
}

// CreateSoftLink adds a link at path that resolves to target on lookup.
func (f *File) CreateSoftLink(path, target string) error {
	if target == "" {
		return errors.New("empty soft link target")
	}
	return f.add(path, link{target: target})
}

// CreateHardLink adds a second name for the object at existing.
func (f *File) CreateHardLink(path, existing string) error {
	parts := splitPath(existing)
	if len(parts) == 0 {
		return f.add(path, link{node: f.root})
	}
	parent, err := f.walk(parts[:len(parts)-1], false)
	if err != nil {
		return err
	}
	l := parent.child(parts[len(parts)-1])
	if l == nil || l.node == nil {
		return fmt.Errorf("%s: no such object", existing)
	}
	return f.add(path, link{node: l.node})
}

// Close writes every object, then the superblock, and closes the file.
func (f *File) Close() error {
	if f.fw == nil {
		return nil
	}
	fw := f.fw
	f.fw = nil

	w := &layout{fw: fw, written: map[*node]uint64{}, pending: map[*node]bool{}}
	root, err := w.write(f.root)
	if err == nil {
		err = fw.WriteAtAddress(encodeSuperblock(fw.EndOfFile(), root), 0)
	}
	if err == nil {
		err = fw.allocator.ValidateNoOverlaps()
	}
	if cerr := fw.Close(); err == nil {
		err = cerr
	}
	return err
}

// Abort drops everything collected so far and removes the file. It is a
// no-op after Close.
func (f *File) Abort() error {
	if f.fw == nil {
		return nil
	}
	fw := f.fw
	f.fw = nil
	return fw.Discard()
}

// layout assigns addresses depth first: children are written before the
// header that links to them.
type layout struct {
	fw      *FileWriter
	written map[*node]uint64
	pending map[*node]bool
}

func (w *layout) write(n *node) (uint64, error) {
	if addr, ok := w.written[n]; ok {
		return addr, nil
	}
	if w.pending[n] {
		return 0, errors.New("hard link to an enclosing group")
	}
	w.pending[n] = true
	defer delete(w.pending, n)

	var msgs []message
	var err error
	if n.dataset != nil {
		msgs, err = w.datasetMessages(n.dataset)
	} else {
		msgs, err = w.groupMessages(n)
	}
	if err != nil {
		return 0, err
	}
	for _, a := range n.attrs {
		msgs = append(msgs, message{msgAttribute, encodeAttribute(a.name, a.value)})
	}

	hdr, err := encodeObjectHeader(msgs)
	if err != nil {
		return 0, err
	}
	addr, err := w.fw.WriteAtWithAllocation(hdr)
	if err != nil {
		return 0, err
	}
	w.written[n] = addr
	return addr, nil
}

func (w *layout) groupMessages(n *node) ([]message, error) {
	msgs := []message{
		{msgLinkInfo, encodeLinkInfo()},
		{msgGroupInfo, encodeGroupInfo()},
	}
	for _, l := range n.links {
		if l.node == nil {
			msgs = append(msgs, message{msgLink, encodeLink(l.name, 0, l.target)})
			continue
		}
		addr, err := w.write(l.node)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, message{msgLink, encodeLink(l.name, addr, "")})
	}
	return msgs, nil
}

func (w *layout) datasetMessages(s *datasetSpec) ([]message, error) {
	v := s.value
	space := encodeDataspace(v.Dims, s.maxShape)
	if s.null {
		space = encodeNullDataspace()
	}
	msgs := []message{
		{msgDataspace, space},
		{msgDatatype, v.Datatype},
	}
	var fill []byte
	if s.fill != nil {
		fill = s.fill.Data[:s.fill.ElemSize]
	}
	msgs = append(msgs, message{msgFillValue, encodeFillValue(fill)})

	switch {
	case s.null:
		msgs = append(msgs, message{msgDataLayout, encodeLayoutContiguous(undefined, 0)})

	case s.compact:
		msgs = append(msgs, message{msgDataLayout, encodeLayoutCompact(v.Data)})

	case s.chunks != nil:
		btree, err := w.writeChunks(s)
		if err != nil {
			return nil, err
		}
		if !s.filters.IsEmpty() {
			pipeline, err := s.filters.EncodePipelineMessage()
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, message{msgFilterPipeline, pipeline})
		}
		msgs = append(msgs, message{msgDataLayout, encodeLayoutChunked(btree, s.chunks, v.ElemSize)})

	default:
		addr := uint64(undefined)
		if len(v.Data) > 0 {
			var err error
			if addr, err = w.fw.WriteAtWithAllocation(v.Data); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, message{msgDataLayout, encodeLayoutContiguous(addr, uint64(len(v.Data)))})
	}
	return msgs, nil
}

// writeChunks stores every chunk, filtered, and returns the B-tree address.
func (w *layout) writeChunks(s *datasetSpec) (uint64, error) {
	v := s.value
	cc, err := NewChunkCoordinator(v.Dims, s.chunks)
	if err != nil {
		return 0, err
	}
	total := cc.TotalChunks()
	if total > maxLeafChunks {
		return 0, fmt.Errorf("%d chunks exceed a single B-tree leaf", total)
	}

	chunks := make([]storedChunk, 0, total)
	for i := uint64(0); i < total; i++ {
		coord := cc.ChunkCoordinate(i)
		data := cc.ExtractChunkData(v.Data, coord, v.ElemSize)
		if !s.filters.IsEmpty() {
			if data, err = s.filters.Apply(data); err != nil {
				return 0, err
			}
		}
		addr, err := w.fw.WriteAtWithAllocation(data)
		if err != nil {
			return 0, err
		}
		chunks = append(chunks, storedChunk{
			origin: cc.ChunkOrigin(coord),
			size:   uint32(len(data)), //nolint:gosec // G115: chunk sizes fit the key
			addr:   addr,
		})
	}
	return w.fw.WriteAtWithAllocation(encodeChunkBTree(chunks, v.Dims))
}
