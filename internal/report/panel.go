package report

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/scigolib/h5inspect/hdf5"
)

// DatasetPanel describes where a dataset lives, how it is stored and what
// its elements are.
func DatasetPanel(d *hdf5.Dataset) (Panel, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}

	var p Panel
	p.Add("Path", "%s", d.Name())
	p.Add("Shape", "%s", d.Shape())
	p.Add("Space", "%s", d.Space())
	if info.ChunkShape != nil {
		p.Add("Chunk info", "Chunked %s", info.ChunkShape)
	} else {
		p.Add("Chunk info", "%s", capitalize(info.Layout))
	}
	if len(info.Filters) == 0 {
		p.Add("Compression", "Filter pipeline: none")
	} else {
		p.Add("Compression", "Filter pipeline: %s", strings.Join(info.Filters, ", "))
	}
	p.Add("Storage size", "%s", Bytes(info.StorageSize))
	p.Add("Data size", "%s", Bytes(info.DataSize))
	p.Add("Compression ratio", "%.2f", ratio(info.DataSize, info.StorageSize))
	p.Add("Datatype", "%s", d.Dtype().Describe())
	return p, nil
}

func ratio(data, storage uint64) float64 {
	if storage == 0 {
		return math.NaN()
	}
	return float64(data) / float64(storage)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Tally counts what sits below a group.
type Tally struct {
	Groups        int
	Datasets      int
	TotalGroups   int
	TotalDatasets int
	StorageSize   uint64
}

// Count walks g. Objects reached through several hard links are counted
// once.
func Count(g *hdf5.Group) (Tally, error) {
	var t Tally
	children, err := g.Children()
	if err != nil {
		return t, err
	}
	for _, c := range children {
		switch c.(type) {
		case *hdf5.Group:
			t.Groups++
		case *hdf5.Dataset:
			t.Datasets++
		}
	}

	seen := map[uint64]bool{g.Address(): true}
	err = walkGroup(g, seen, &t)
	return t, err
}

func walkGroup(g *hdf5.Group, seen map[uint64]bool, t *Tally) error {
	children, err := g.Children()
	if err != nil {
		return err
	}
	for _, c := range children {
		if seen[c.Address()] {
			continue
		}
		seen[c.Address()] = true
		switch o := c.(type) {
		case *hdf5.Group:
			t.TotalGroups++
			if err := walkGroup(o, seen, t); err != nil {
				return err
			}
		case *hdf5.Dataset:
			t.TotalDatasets++
			info, err := o.Info()
			if err != nil {
				if errors.Is(err, hdf5.ErrUnsupported) {
					continue
				}
				return err
			}
			t.StorageSize += info.StorageSize
		}
	}
	return nil
}

// GroupPanel summarizes a group's members, attributes and storage.
func GroupPanel(g *hdf5.Group) (Panel, error) {
	t, err := Count(g)
	if err != nil {
		return nil, err
	}
	attrs, err := g.Attributes()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = fmt.Sprintf("%q", a.Name)
	}

	var p Panel
	p.Add("Path", "%s", g.Name())
	p.Add("Number of groups direct", "%d", t.Groups)
	p.Add("Number of groups total", "%d", t.TotalGroups)
	p.Add("Number of datasets direct", "%d", t.Datasets)
	p.Add("Number of datasets total", "%d", t.TotalDatasets)
	p.Add("Number of attributes", "%d", len(attrs))
	p.Add("Attribute names", "[%s]", strings.Join(names, ", "))
	p.Add("Storage size", "%s", Bytes(t.StorageSize))
	return p, nil
}
