package utils

import (
	"errors"
	"fmt"
)

// H5Error is a format-layer error carrying the structure being decoded.
type H5Error struct {
	Context string
	Address uint64 // 0 when the failure is not tied to a file address.
	Cause   error
}

// Error implements the error interface.
func (e *H5Error) Error() string {
	if e.Address != 0 {
		return fmt.Sprintf("%s at 0x%x: %v", e.Context, e.Address, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Is and errors.As.
func (e *H5Error) Unwrap() error {
	return e.Cause
}

// WrapError creates a contextual error. A nil cause yields nil.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{Context: context, Cause: cause}
}

// WrapErrorAt is WrapError with the file address of the failing structure.
func WrapErrorAt(context string, address uint64, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{Context: context, Address: address, Cause: cause}
}

// ErrTruncated reports a structure that ends before its declared size.
var ErrTruncated = errors.New("truncated structure")
