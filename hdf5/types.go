package hdf5

import (
	"fmt"
	"strings"

	"github.com/scigolib/h5inspect/internal/core"
	"github.com/scigolib/h5inspect/internal/structures"
)

// Shape is the ordered list of dimension sizes.
type Shape []uint64

// String formats the shape as a tuple: "(100, 3)", "(5,)" or "()".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Rank is the number of dimensions. Scalars have rank 0.
func (s Shape) Rank() int {
	return len(s)
}

// Size is the number of elements. The empty shape has one element.
func (s Shape) Size() uint64 {
	n := uint64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Dtype describes the element type of a dataset or attribute.
type Dtype struct {
	dt *core.DatatypeMessage
}

// String returns the numpy-style name: "float64", "int32", ">f8", "|S10".
func (d Dtype) String() string {
	if d.dt == nil {
		return "unknown"
	}
	return d.dt.Name()
}

// Class is the HDF5 datatype class name, such as "float".
func (d Dtype) Class() string {
	return d.dt.Class.String()
}

// Size is the element size in bytes.
func (d Dtype) Size() uint32 {
	return d.dt.Size
}

// IsNumeric reports whether values convert to float64.
func (d Dtype) IsNumeric() bool {
	switch d.dt.Class {
	case core.DatatypeFixed, core.DatatypeFloat:
		return true
	case core.DatatypeEnum:
		return d.dt.Base != nil && !d.dt.IsBoolEnum()
	}
	return false
}

// Describe returns the name with class and width.
func (d Dtype) Describe() string {
	return d.dt.String()
}

// Attribute is a decoded attribute.
type Attribute struct {
	Name  string
	Shape Shape
	Dtype Dtype
	// Value is a single Go value for scalars and a typed slice otherwise.
	Value any
}

func (f *File) attributes(h *core.ObjectHeader) ([]*Attribute, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	raw, err := structures.ReadAttributes(f.r, h, f.sb, f.loadType)
	if err != nil {
		return nil, err
	}
	out := make([]*Attribute, 0, len(raw))
	for _, a := range raw {
		v, err := a.Value(f.heap)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		out = append(out, &Attribute{
			Name:  a.Name,
			Shape: Shape(a.Dataspace.Dimensions),
			Dtype: Dtype{dt: a.Datatype},
			Value: v,
		})
	}
	return out, nil
}
