package utils

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "context only",
			err:      WrapError("reading superblock", errors.New("invalid signature")),
			expected: "reading superblock: invalid signature",
		},
		{
			name:     "with address",
			err:      WrapErrorAt("object header read failed", 0x60, io.ErrUnexpectedEOF),
			expected: "object header read failed at 0x60: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.EqualError(t, tt.err, tt.expected)
		})
	}
}

func TestWrapError_NilCause(t *testing.T) {
	require.NoError(t, WrapError("ctx", nil))
	require.NoError(t, WrapErrorAt("ctx", 10, nil))
}

func TestWrapError_Unwrap(t *testing.T) {
	err := WrapError("outer", WrapErrorAt("inner", 8, io.ErrUnexpectedEOF))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var h5err *H5Error
	require.ErrorAs(t, err, &h5err)
	require.Equal(t, "outer", h5err.Context)
}
