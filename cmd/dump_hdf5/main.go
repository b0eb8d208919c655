// Package main provides a command-line utility to dump HDF5 file contents.
// It displays raw hex data from specific offsets in HDF5 files for debugging.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scigolib/h5inspect/internal/hexdump"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		offset int64
		length int
	)
	cmd := &cobra.Command{
		Use:          "dump_hdf5 [flags] <file.h5>",
		Short:        "Dump raw bytes of an HDF5 file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dump(cmd, args[0], offset, length)
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "Offset in file to start dumping from")
	cmd.Flags().IntVar(&length, "length", 128, "Number of bytes to dump")
	return cmd
}

func dump(cmd *cobra.Command, file string, offset int64, length int) error {
	//nolint:gosec // G304: dumping a user-supplied path is the point
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			cmd.PrintErrf("Failed to close file: %v\n", err)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}
	size := fi.Size()

	reg, err := hexdump.Clamp(offset, length, size)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if reg.Truncated {
		fmt.Fprintf(out, "Warning: requested length %d exceeds available bytes (%d). Dumping %d bytes.\n",
			length, size-offset, reg.Length)
	}

	buf, err := hexdump.Read(f, reg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Dumping %d bytes at offset 0x%x (%d) of %s (size: %d bytes):\n",
		len(buf), offset, offset, file, size)
	return hexdump.Write(out, buf, offset)
}
