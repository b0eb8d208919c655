package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5inspect/hdf5"
	"github.com/scigolib/h5inspect/internal/writer"
)

func openSample(t *testing.T) *hdf5.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.h5")
	w, err := writer.Create(path, writer.ModeTruncate)
	require.NoError(t, err)

	vals := make([]float64, 300)
	v, err := writer.NewValue(vals)
	require.NoError(t, err)
	require.NoError(t, v.Reshape(100, 3))
	require.NoError(t, w.CreateDataset("/group/values", v))

	ints, err := writer.NewValue(make([]int32, 400))
	require.NoError(t, err)
	require.NoError(t, ints.Reshape(20, 20))
	require.NoError(t, w.CreateDataset("/group/sub/zeros", ints,
		writer.WithChunks(10, 10), writer.WithFilters(writer.NewDeflateFilter(9))))

	title, err := writer.NewValue("demo")
	require.NoError(t, err)
	require.NoError(t, w.SetAttribute("/group", "title", title))
	require.NoError(t, w.CreateHardLink("/group/sub/again", "/group/values"))
	require.NoError(t, w.Close())

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestDatasetPanel(t *testing.T) {
	f := openSample(t)

	d, err := f.Dataset("/group/values")
	require.NoError(t, err)
	p, err := DatasetPanel(d)
	require.NoError(t, err)
	require.Equal(t, "/group/values", p.Get("Path"))
	require.Equal(t, "(100, 3)", p.Get("Shape"))
	require.Equal(t, "simple [100 x 3]", p.Get("Space"))
	require.Equal(t, "Contiguous", p.Get("Chunk info"))
	require.Equal(t, "Filter pipeline: none", p.Get("Compression"))
	require.Equal(t, "2.400 kB (2_400 B)", p.Get("Data size"))
	require.Equal(t, "1.00", p.Get("Compression ratio"))
	require.Equal(t, "float64 (float, 8 bytes)", p.Get("Datatype"))

	z, err := f.Dataset("/group/sub/zeros")
	require.NoError(t, err)
	p, err = DatasetPanel(z)
	require.NoError(t, err)
	require.Equal(t, "Chunked (10, 10)", p.Get("Chunk info"))
	require.Equal(t, "Filter pipeline: deflate", p.Get("Compression"))
	require.Equal(t, "1.600 kB (1_600 B)", p.Get("Data size"))
	require.NotEqual(t, "1.00", p.Get("Compression ratio"))
}

func TestGroupPanel(t *testing.T) {
	f := openSample(t)

	g, err := f.Group("/group")
	require.NoError(t, err)
	p, err := GroupPanel(g)
	require.NoError(t, err)
	require.Equal(t, "1", p.Get("Number of groups direct"))
	require.Equal(t, "1", p.Get("Number of groups total"))
	require.Equal(t, "1", p.Get("Number of datasets direct"))
	require.Equal(t, "2", p.Get("Number of datasets total"))
	require.Equal(t, "1", p.Get("Number of attributes"))
	require.Equal(t, `["title"]`, p.Get("Attribute names"))

	root, err := Count(f.Root())
	require.NoError(t, err)
	require.Equal(t, 1, root.Groups)
	require.Equal(t, 2, root.TotalGroups)
	require.Equal(t, 2, root.TotalDatasets)
	require.Greater(t, root.StorageSize, uint64(2400))
}
