package hdf5

import (
	"fmt"

	"github.com/scigolib/h5inspect/internal/core"
)

// Unlimited marks an extendible dimension in MaxShape.
const Unlimited = core.Unlimited

// Dataset is a multidimensional array of typed elements.
type Dataset struct {
	file    *File
	name    string
	address uint64
	header  *core.ObjectHeader
	info    *core.DatasetInfo
}

// Name returns the absolute path of the dataset.
func (d *Dataset) Name() string {
	return d.name
}

// Address returns the object header address.
func (d *Dataset) Address() uint64 {
	return d.address
}

// File returns the file the dataset belongs to.
func (d *Dataset) File() *File {
	return d.file
}

// Shape returns the current dimensions.
func (d *Dataset) Shape() Shape {
	return Shape(d.info.Dims())
}

// IsNull reports a null dataspace: the dataset has a type but no shape and
// no elements.
func (d *Dataset) IsNull() bool {
	return d.info.Dataspace.Type == core.DataspaceNull
}

// MaxShape returns the maximum dimensions, or nil when they equal the
// current ones. Unlimited dimensions are reported as Unlimited.
func (d *Dataset) MaxShape() Shape {
	return Shape(d.info.Dataspace.MaxDims)
}

// Space describes the dataspace: "scalar", "null" or "simple [10 x 5/inf]".
func (d *Dataset) Space() string {
	return d.info.Dataspace.String()
}

// Dtype returns the element type.
func (d *Dataset) Dtype() Dtype {
	return Dtype{dt: d.info.Datatype}
}

// Size is the number of elements.
func (d *Dataset) Size() uint64 {
	return d.info.ElementCount()
}

// Read decodes every element into a typed slice in row-major order: for
// example []float64, []int32, []uint8, []string or []any for compounds.
func (d *Dataset) Read() (any, error) {
	if err := d.file.check(); err != nil {
		return nil, err
	}
	raw, err := core.ReadRaw(d.file.r, d.info, d.file.sb)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	return d.decode(raw, d.Size())
}

// ReadFloat64 reads the dataset and converts numeric elements to float64.
func (d *Dataset) ReadFloat64() ([]float64, error) {
	vals, err := d.Read()
	if err != nil {
		return nil, err
	}
	out, err := core.ToFloat64(vals)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	return out, nil
}

// ReadSlice reads the hyperslab starting at start with count elements along
// each dimension.
func (d *Dataset) ReadSlice(start, count []uint64) (any, error) {
	if err := d.file.check(); err != nil {
		return nil, err
	}
	raw, err := core.ReadRawSlice(d.file.r, d.info, d.file.sb, start, count)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	return d.decode(raw, Shape(count).Size())
}

func (d *Dataset) decode(raw []byte, n uint64) (any, error) {
	vals, err := core.DecodeValues(raw, d.info.Datatype, n, d.file.heap)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	return vals, nil
}

// Attributes returns the dataset's attributes in storage order.
func (d *Dataset) Attributes() ([]*Attribute, error) {
	return d.file.attributes(d.header)
}

// DatasetInfo summarizes how a dataset is stored.
type DatasetInfo struct {
	Layout      string
	ChunkShape  Shape // nil unless chunked.
	Filters     []string
	Compression string // First filter that changes the data size, or "".
	StorageSize uint64
	DataSize    uint64
}

// Info returns storage details. StorageSize requires walking the chunk
// index of chunked datasets.
func (d *Dataset) Info() (*DatasetInfo, error) {
	if err := d.file.check(); err != nil {
		return nil, err
	}
	storage, err := core.StorageSize(d.file.r, d.info, d.file.sb)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	dataSize, err := d.info.DataSize()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, err)
	}

	info := &DatasetInfo{
		Layout:      d.info.Layout.Class.String(),
		StorageSize: storage,
		DataSize:    dataSize,
	}
	if d.info.Layout.IsChunked() {
		info.ChunkShape = Shape(d.info.Layout.ChunkDims())
	}
	if d.info.Filters != nil {
		for _, f := range d.info.Filters.Filters {
			info.Filters = append(info.Filters, f.DisplayName())
			if info.Compression == "" && f.ID != core.FilterShuffle && f.ID != core.FilterFletcher {
				info.Compression = f.DisplayName()
			}
		}
	}
	return info, nil
}

func (d *Dataset) String() string {
	if d.file.Closed() {
		return "<Closed HDF5 dataset>"
	}
	shape := d.Shape().String()
	if d.IsNull() {
		shape = "None"
	}
	return fmt.Sprintf("<HDF5 dataset %q: shape %s, type %q>", d.name, shape, d.Dtype())
}
