package writer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5inspect/internal/core"
)

func TestFilters_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}, 50)

	tests := []struct {
		name   string
		filter Filter
		id     FilterID
	}{
		{"deflate", NewDeflateFilter(9), FilterDeflate},
		{"shuffle", NewShuffleFilter(4), FilterShuffle},
		{"fletcher32", NewFletcher32Filter(), FilterFletcher32},
		{"zstd", NewZstdFilter(0), FilterZstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.id, tt.filter.ID())
			require.Equal(t, tt.name, tt.filter.Name())

			out, err := tt.filter.Apply(data)
			require.NoError(t, err)
			back, err := tt.filter.Remove(out)
			require.NoError(t, err)
			require.Equal(t, data, back)
		})
	}
}

func TestDeflateFilter_Level(t *testing.T) {
	require.Equal(t, 6, NewDeflateFilter(0).level)
	require.Equal(t, 6, NewDeflateFilter(10).level)
	_, cd := NewDeflateFilter(4).Encode()
	require.Equal(t, []uint32{4}, cd)
}

func TestShuffleFilter(t *testing.T) {
	f := NewShuffleFilter(4)
	out, err := f.Apply([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 5, 9, 2, 6, 10, 3, 7, 11, 4, 8, 12}, out)

	_, err = f.Apply([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestFletcher32Filter_DetectsCorruption(t *testing.T) {
	f := NewFletcher32Filter()
	out, err := f.Apply([]byte("checksummed"))
	require.NoError(t, err)
	require.Len(t, out, 15)

	out[0] ^= 0xFF
	_, err = f.Remove(out)
	require.ErrorContains(t, err, "checksum mismatch")

	_, err = f.Remove([]byte{1})
	require.Error(t, err)
}

func TestFilterPipeline_ReadBack(t *testing.T) {
	fp := NewFilterPipeline(NewShuffleFilter(4), NewDeflateFilter(6))
	fp.AddFilter(NewFletcher32Filter())

	data := bytes.Repeat([]byte{7, 0, 0, 0}, 256)
	stored, err := fp.Apply(data)
	require.NoError(t, err)

	back, err := fp.Remove(stored)
	require.NoError(t, err)
	require.Equal(t, data, back)

	msg, err := fp.EncodePipelineMessage()
	require.NoError(t, err)

	parsed, err := core.ParseFilterPipelineMessage(msg)
	require.NoError(t, err)
	require.Len(t, parsed.Filters, 3)
	require.Equal(t, "shuffle, deflate, fletcher32", parsed.String())
	require.Equal(t, []uint32{4}, parsed.Filters[0].ClientData)

	decoded, err := parsed.ApplyFilters(stored, 0)
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}

func TestFilterPipeline_ZstdMessage(t *testing.T) {
	fp := NewFilterPipeline(NewZstdFilter(5))
	msg, err := fp.EncodePipelineMessage()
	require.NoError(t, err)

	parsed, err := core.ParseFilterPipelineMessage(msg)
	require.NoError(t, err)
	require.Equal(t, core.FilterZstd, parsed.Filters[0].ID)
	require.Equal(t, "zstd", parsed.Filters[0].Name)
	require.True(t, parsed.Filters[0].Optional())
}

func TestFilterPipeline_Empty(t *testing.T) {
	fp := NewFilterPipeline()
	require.True(t, fp.IsEmpty())
	_, err := fp.EncodePipelineMessage()
	require.Error(t, err)

	var nilPipeline *FilterPipeline
	require.True(t, nilPipeline.IsEmpty())
}
