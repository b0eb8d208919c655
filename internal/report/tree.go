package report

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/scigolib/h5inspect/hdf5"
)

// Tree writes one line per object reachable through hard links, indented
// by depth. Groups end with a slash; datasets show shape and type.
func Tree(w io.Writer, f *hdf5.File) error {
	return f.Walk(func(p string, obj hdf5.Object) error {
		if p == "/" {
			_, err := fmt.Fprintln(w, "/")
			return err
		}
		indent := strings.Repeat("  ", strings.Count(p, "/"))
		var err error
		switch o := obj.(type) {
		case *hdf5.Group:
			_, err = fmt.Fprintf(w, "%s%s/\n", indent, path.Base(p))
		case *hdf5.Dataset:
			_, err = fmt.Fprintf(w, "%s%s %s %s\n", indent, path.Base(p), o.Shape(), o.Dtype())
		}
		return err
	})
}

// FilePanel describes the file followed by its root group.
func FilePanel(f *hdf5.File) (Panel, error) {
	root, err := GroupPanel(f.Root())
	if err != nil {
		return nil, err
	}
	var p Panel
	p.Add("File", "%s", f.Filename())
	p.Add("File size", "%s", Bytes(uint64(f.Size())))
	p.Add("Superblock version", "%d", f.SuperblockVersion())
	return append(p, root...), nil
}
