// Command h5gen writes a sample HDF5 file for trying out h5inspect: a
// chunked, deflated float32 dataset named variable, a few nested groups
// and a group holding many small datasets.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scigolib/h5inspect/internal/writer"
)

const (
	ny = 100
	nx = 100

	variableRows = 10
	deflateLevel = 3
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		datasets int
		force    bool
	)
	cmd := &cobra.Command{
		Use:          "h5gen [flags] [out.h5]",
		Short:        "Write a sample HDF5 file",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := "dummy.h5"
			if len(args) == 1 {
				out = args[0]
			}
			mode := writer.ModeExclusive
			if force {
				mode = writer.ModeTruncate
			}
			if err := generate(out, mode, datasets); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&datasets, "datasets", "n", 2000, "number of datasets in group3")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

// plane returns the ny x nx values 1000*j + i.
func plane[T float32 | int32]() []T {
	out := make([]T, ny*nx)
	for j := range ny {
		for i := range nx {
			out[j*nx+i] = T(1000*j + i)
		}
	}
	return out
}

func generate(path string, mode writer.CreateMode, datasets int) error {
	if datasets < 0 {
		return fmt.Errorf("dataset count must not be negative, got %d", datasets)
	}
	return build(path, mode, func(f *writer.File) error { return populate(f, datasets) })
}

// build creates path, fills it with fill and closes it. On failure the
// partial file is removed.
func build(path string, mode writer.CreateMode, fill func(*writer.File) error) error {
	f, err := writer.Create(path, mode)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		if aerr := f.Abort(); aerr != nil {
			return errors.Join(err, aerr)
		}
		return err
	}
	return f.Close()
}

func populate(f *writer.File, datasets int) error {
	// variable: (10, 100, 100), first axis extendible, only the first two
	// planes written and the rest left to the fill value.
	fp := plane[float32]()
	data := make([]float32, variableRows*ny*nx)
	copy(data, fp)
	copy(data[ny*nx:], fp)
	variable, err := writer.NewValue(data)
	if err != nil {
		return err
	}
	if err := variable.Reshape(variableRows, ny, nx); err != nil {
		return err
	}
	if err := f.CreateDataset("variable", variable,
		writer.WithChunks(1, ny, nx),
		writer.WithMaxShape(writer.Unlimited, ny, nx),
		writer.WithFilters(writer.NewDeflateFilter(deflateLevel)),
	); err != nil {
		return err
	}

	ip, err := writer.NewValue(plane[int32]())
	if err != nil {
		return err
	}
	if err := ip.Reshape(ny, nx); err != nil {
		return err
	}
	if err := f.CreateDataset("group1/something", ip); err != nil {
		return err
	}
	if err := f.CreateDataset("group1/group2/qweqwe", ip); err != nil {
		return err
	}
	if err := f.CreateGroup("group3"); err != nil {
		return err
	}
	for i := range datasets {
		if err := f.CreateDataset(fmt.Sprintf("group3/dataset_%d", i), ip); err != nil {
			return err
		}
	}
	return nil
}
