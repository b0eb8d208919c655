package hdf5

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5inspect/internal/writer"
)

func TestDataset_Metadata(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	d, err := f.Dataset("/group/values")
	require.NoError(t, err)
	require.Equal(t, "(100, 3)", d.Shape().String())
	require.Equal(t, "float64", d.Dtype().String())
	require.True(t, d.Dtype().IsNumeric())
	require.Equal(t, uint32(8), d.Dtype().Size())
	require.Equal(t, uint64(300), d.Size())
	require.Equal(t, "simple [100 x 3]", d.Space())
	require.Equal(t, `<HDF5 dataset "/group/values": shape (100, 3), type "float64">`, d.String())

	s, err := f.Dataset("scalar")
	require.NoError(t, err)
	require.Equal(t, "()", s.Shape().String())
	require.Equal(t, 0, s.Shape().Rank())
	require.Equal(t, uint64(1), s.Size())
	require.Equal(t, "float32", s.Dtype().String())
	require.Equal(t, "scalar", s.Space())

	n, err := f.Dataset("names")
	require.NoError(t, err)
	require.Equal(t, "(2,)", n.Shape().String())
	require.False(t, n.Dtype().IsNumeric())
}

func TestDataset_Read(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	d, err := f.Dataset("/group/values")
	require.NoError(t, err)
	vals, err := d.ReadFloat64()
	require.NoError(t, err)
	require.Len(t, vals, 300)
	require.InDelta(t, 149.5, vals[299], 1e-12)

	sq, err := f.Dataset("/group/sub/squares")
	require.NoError(t, err)
	raw, err := sq.Read()
	require.NoError(t, err)
	ints, ok := raw.([]int32)
	require.True(t, ok)
	require.Len(t, ints, 50)
	for i, v := range ints {
		require.Equal(t, int32(i*i), v)
	}

	names, err := f.Dataset("names")
	require.NoError(t, err)
	strs, err := names.Read()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, strs)

	_, err = names.ReadFloat64()
	require.Error(t, err)

	s, err := f.Dataset("scalar")
	require.NoError(t, err)
	sv, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, []float32{1.5}, sv)
}

func TestDataset_ReadSlice(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	d, err := f.Dataset("/group/values")
	require.NoError(t, err)
	got, err := d.ReadSlice([]uint64{10, 1}, []uint64{2, 2})
	require.NoError(t, err)
	require.Equal(t, []float64{15.5, 16, 17, 17.5}, got)

	// Chunked: rows 1-3, columns 3-5 cross chunk boundaries.
	sq, err := f.Dataset("/group/sub/squares")
	require.NoError(t, err)
	got, err = sq.ReadSlice([]uint64{1, 3}, []uint64{3, 3})
	require.NoError(t, err)
	var want []int32
	for r := 1; r < 4; r++ {
		for c := 3; c < 6; c++ {
			i := r*10 + c
			want = append(want, int32(i*i))
		}
	}
	require.Equal(t, want, got)

	_, err = d.ReadSlice([]uint64{99, 0}, []uint64{2, 1})
	require.Error(t, err)
	_, err = d.ReadSlice([]uint64{0}, []uint64{1})
	require.Error(t, err)
}

func TestDataset_Info(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	d, err := f.Dataset("/group/values")
	require.NoError(t, err)
	info, err := d.Info()
	require.NoError(t, err)
	require.Equal(t, "contiguous", info.Layout)
	require.Nil(t, info.ChunkShape)
	require.Empty(t, info.Filters)
	require.Empty(t, info.Compression)
	require.Equal(t, uint64(2400), info.DataSize)
	require.Equal(t, uint64(2400), info.StorageSize)

	sq, err := f.Dataset("/group/sub/squares")
	require.NoError(t, err)
	info, err = sq.Info()
	require.NoError(t, err)
	require.Equal(t, "chunked", info.Layout)
	require.Equal(t, Shape{2, 4}, info.ChunkShape)
	require.Equal(t, []string{"shuffle", "deflate", "fletcher32"}, info.Filters)
	require.Equal(t, "deflate", info.Compression)
	require.Equal(t, uint64(200), info.DataSize)
	require.Positive(t, info.StorageSize)

	n, err := f.Dataset("names")
	require.NoError(t, err)
	info, err = n.Info()
	require.NoError(t, err)
	require.Equal(t, "compact", info.Layout)
	require.Equal(t, uint64(10), info.StorageSize)
}

func TestAttributes(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	attrs, err := f.Root().Attributes()
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	require.Equal(t, "title", attrs[0].Name)
	require.Equal(t, "sample", attrs[0].Value)
	require.Equal(t, "()", attrs[0].Shape.String())

	d, err := f.Dataset("/link")
	require.NoError(t, err)
	attrs, err = d.Attributes()
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	require.Equal(t, "units", attrs[0].Name)
	require.Equal(t, "m", attrs[0].Value)
	require.Equal(t, "range", attrs[1].Name)
	require.Equal(t, []float64{0, 149.5}, attrs[1].Value)
	require.Equal(t, "float64", attrs[1].Dtype.String())
}

func TestShapeString(t *testing.T) {
	tests := []struct {
		shape Shape
		want  string
		size  uint64
	}{
		{Shape{}, "()", 1},
		{nil, "()", 1},
		{Shape{5}, "(5,)", 5},
		{Shape{100, 3}, "(100, 3)", 300},
		{Shape{2, 0, 4}, "(2, 0, 4)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.shape.String())
			require.Equal(t, tt.size, tt.shape.Size())
		})
	}
	require.Equal(t, "unknown", Dtype{}.String())
}

func TestDataset_NullDataspace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "null.h5")
	w, err := writer.Create(path, writer.ModeTruncate)
	require.NoError(t, err)
	require.NoError(t, w.CreateDataset("empty", value(t, int32(0)), writer.WithNullSpace()))
	require.NoError(t, w.Close())

	f, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	d, err := f.Dataset("empty")
	require.NoError(t, err)
	require.True(t, d.IsNull())
	require.Equal(t, "null", d.Space())
	require.Zero(t, d.Size())
	require.Equal(t, "int32", d.Dtype().String())
	require.Equal(t, `<HDF5 dataset "/empty": shape None, type "int32">`, d.String())
}
