package hdf5

import (
	"errors"

	"github.com/scigolib/h5inspect/internal/core"
)

var (
	// ErrNotFound is returned when a path names no object.
	ErrNotFound = errors.New("object not found")
	// ErrClosed is returned by every operation on a closed file.
	ErrClosed = errors.New("file is closed")
	// ErrNotDataset is returned when a dataset was required.
	ErrNotDataset = errors.New("not a dataset")
	// ErrNotGroup is returned when a group was required.
	ErrNotGroup = errors.New("not a group")
	// ErrNotHDF5 is returned by Open when no superblock signature is found.
	ErrNotHDF5 = core.ErrNotHDF5
	// ErrUnsupported marks valid HDF5 features this reader does not decode.
	ErrUnsupported = core.ErrUnsupported
)
