package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeMultiply(t *testing.T) {
	v, err := SafeMultiply(1000, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), v)

	v, err = SafeMultiply(0, math.MaxUint64)
	require.NoError(t, err)
	require.Zero(t, v)

	_, err = SafeMultiply(math.MaxUint64, 2)
	require.Error(t, err)
}

func TestProduct(t *testing.T) {
	tests := []struct {
		name     string
		dims     []uint64
		elemSize uint64
		want     uint64
		wantErr  bool
	}{
		{"scalar", nil, 8, 8, false},
		{"matrix", []uint64{100, 3}, 8, 2400, false},
		{"empty dimension", []uint64{0, 5}, 4, 0, false},
		{"overflow", []uint64{math.MaxUint64, 2}, 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Product(tt.dims, tt.elemSize)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidateBufferSize(t *testing.T) {
	require.NoError(t, ValidateBufferSize(10, 10, "chunk"))
	require.ErrorContains(t, ValidateBufferSize(11, 10, "chunk"), "chunk: size 11 exceeds maximum 10")
}
