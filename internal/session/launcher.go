// Package session runs the inspector: it checks the arguments, opens the
// file, resolves the dataset, reports its shape and type and hands both to
// an interactive shell.
package session

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/scigolib/h5inspect/hdf5"
	"github.com/scigolib/h5inspect/internal/logger"
	"github.com/scigolib/h5inspect/internal/shell"
)

// Header is printed when the interactive session starts.
const Header = "Interactive HDF5 session.\nAvailable vars: f (file), dset (dataset)"

// UsageLine is printed when the arguments are not a file and a dataset
// path.
func UsageLine(program string) string {
	return fmt.Sprintf("Usage: %s <file> <dataset_path>", program)
}

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Shell evaluates code with the file and dataset bound.
type Shell interface {
	// Run blocks until the user ends the session.
	Run(ctx context.Context, b shell.Bindings, header string) error
	// Exec evaluates code once.
	Exec(ctx context.Context, b shell.Bindings, code string) error
}

// Options alter what happens after the dataset has been reported.
type Options struct {
	NoShell bool   // return right after the report
	Exec    string // run this code instead of the interactive loop
}

// Launcher holds the collaborators of a run.
type Launcher struct {
	program string
	out     io.Writer
	shell   Shell
	log     *logger.Logger
}

// New creates a launcher. program is the name printed in the usage line.
func New(program string, out io.Writer, sh Shell, log *logger.Logger) *Launcher {
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Launcher{program: program, out: out, shell: sh, log: log}
}

// Launch runs one session and returns the process exit code. args are the
// positional arguments: a file path and a dataset path.
func (l *Launcher) Launch(ctx context.Context, args []string, opts Options) int {
	if len(args) != 2 {
		l.println(UsageLine(l.program))
		return ExitFailure
	}
	filename, path := args[0], args[1]
	log := l.log.With().Str("file", filename).Logger()

	log.Debug().Msg("opening")
	f, err := hdf5.Open(filename)
	if err != nil {
		return l.fail(err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}()

	if !f.Contains(path) {
		l.println(fmt.Sprintf("Dataset path '%s' not found in file.", path))
		return ExitFailure
	}

	obj, err := f.Get(path)
	if err != nil {
		return l.fail(err)
	}
	l.println(fmt.Sprintf("Opened dataset '%s' from '%s'", path, filename))

	dset, ok := obj.(*hdf5.Dataset)
	if !ok {
		return l.fail(fmt.Errorf("%w: %s", hdf5.ErrNotDataset, obj.Name()))
	}
	log.Debug().Str("dataset", dset.Name()).Uint64("address", dset.Address()).Msg("resolved")
	l.println(fmt.Sprintf("Shape: %s, Dtype: %s", shapeOf(dset), dset.Dtype()))

	if opts.NoShell {
		return ExitOK
	}

	b := shell.Bindings{"f": f, "dset": dset}
	if opts.Exec != "" {
		if err := l.shell.Exec(ctx, b, opts.Exec); err != nil {
			return l.fail(err)
		}
		return ExitOK
	}
	if err := l.shell.Run(ctx, b, Header); err != nil {
		l.log.Error().Err(err).Msg("shell ended with an error")
	}
	return ExitOK
}

// shapeOf renders the shape the way h5py reports it: None for a null
// dataspace.
func shapeOf(d *hdf5.Dataset) string {
	if d.IsNull() {
		return "None"
	}
	return d.Shape().String()
}

func (l *Launcher) fail(err error) int {
	l.log.Debug().Err(err).Msg("failed")
	l.println(fmt.Sprintf("Error: %v", err))
	return ExitFailure
}

func (l *Launcher) println(s string) {
	_, _ = fmt.Fprintln(l.out, s)
}
