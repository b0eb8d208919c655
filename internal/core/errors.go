package core

import "errors"

// ErrUnsupported marks valid HDF5 features this reader does not decode.
var ErrUnsupported = errors.New("unsupported HDF5 feature")
