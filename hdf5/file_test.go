package hdf5

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5inspect/internal/writer"
)

func value(t *testing.T, data any, dims ...uint64) *writer.Value {
	t.Helper()
	v, err := writer.NewValue(data)
	require.NoError(t, err)
	if len(dims) > 0 {
		require.NoError(t, v.Reshape(dims...))
	}
	return v
}

// sampleFile writes data.h5 with /group/values (100x3 float64), a chunked
// compressed int32 dataset, a scalar, strings, attributes and links.
func sampleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.h5")
	w, err := writer.Create(path, writer.ModeTruncate)
	require.NoError(t, err)

	vals := make([]float64, 300)
	for i := range vals {
		vals[i] = float64(i) / 2
	}
	require.NoError(t, w.CreateDataset("/group/values", value(t, vals, 100, 3)))

	ints := make([]int32, 50)
	for i := range ints {
		ints[i] = int32(i * i)
	}
	require.NoError(t, w.CreateDataset("/group/sub/squares", value(t, ints, 5, 10),
		writer.WithChunks(2, 4),
		writer.WithFilters(writer.NewShuffleFilter(4), writer.NewDeflateFilter(6), writer.NewFletcher32Filter())))

	require.NoError(t, w.CreateDataset("scalar", value(t, float32(1.5))))
	require.NoError(t, w.CreateDataset("names", value(t, []string{"alpha", "beta"}), writer.WithCompact()))
	require.NoError(t, w.CreateGroup("empty"))

	require.NoError(t, w.SetAttribute("/", "title", value(t, "sample")))
	require.NoError(t, w.SetAttribute("/group/values", "units", value(t, "m")))
	require.NoError(t, w.SetAttribute("/group/values", "range", value(t, []float64{0, 149.5})))

	require.NoError(t, w.CreateSoftLink("link", "/group/values"))
	require.NoError(t, w.CreateSoftLink("dangling", "/nowhere"))
	require.NoError(t, w.CreateSoftLink("loop", "/loop"))
	require.NoError(t, w.CreateHardLink("group/again", "/group/values"))
	require.NoError(t, w.Close())
	return path
}

func TestOpen(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, uint8(2), f.SuperblockVersion())
	require.Equal(t, "data.h5", filepath.Base(f.Filename()))
	require.Equal(t, "/", f.Root().Name())
	require.Equal(t, `<HDF5 file "data.h5" (mode r)>`, f.String())
	require.Positive(t, f.Size())
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.h5"))
	require.ErrorIs(t, err, os.ErrNotExist)

	junk := filepath.Join(dir, "junk.h5")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not hdf5"), 0o600))
	_, err = Open(junk)
	require.ErrorIs(t, err, ErrNotHDF5)

	empty := filepath.Join(dir, "empty.h5")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Open(empty)
	require.Error(t, err)
}

func TestOpen_UserBlock(t *testing.T) {
	src, err := os.ReadFile(sampleFile(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "userblock.h5")
	require.NoError(t, os.WriteFile(path, append(make([]byte, 512), src...), 0o600))

	f, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	d, err := f.Dataset("/group/values")
	require.NoError(t, err)
	require.Equal(t, "(100, 3)", d.Shape().String())
}

func TestFile_Contains(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	tests := []struct {
		path string
		want bool
	}{
		{"/group/values", true},
		{"group/values", true},
		{"/group/./values", true},
		{"/group", true},
		{"/", true},
		{"/link", true},
		{"/group/missing", false},
		{"/group/values/deeper", false},
		{"/dangling", false},
		{"/loop", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, f.Contains(tt.path))
		})
	}
}

func TestFile_Get(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	obj, err := f.Get("group/values")
	require.NoError(t, err)
	require.Equal(t, "/group/values", obj.Name())

	obj, err = f.Get("/link")
	require.NoError(t, err)
	require.Equal(t, "/link", obj.Name())
	require.IsType(t, &Dataset{}, obj)

	_, err = f.Get("/missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.Get("/loop")
	require.ErrorContains(t, err, "too many levels")

	_, err = f.Dataset("/group")
	require.ErrorIs(t, err, ErrNotDataset)

	_, err = f.Group("/group/values")
	require.ErrorIs(t, err, ErrNotGroup)

	g, err := f.Group("/group")
	require.NoError(t, err)
	d, err := g.Get("sub/squares")
	require.NoError(t, err)
	require.Equal(t, "/group/sub/squares", d.Name())
}

func TestGroup_Keys(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	keys, err := f.Root().Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"dangling", "empty", "group", "link", "loop", "names", "scalar"}, keys)

	g, err := f.Group("/empty")
	require.NoError(t, err)
	keys, err = g.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
	require.Equal(t, `<HDF5 group "/empty" (0 members)>`, g.String())
}

func TestFile_Walk(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var paths []string
	require.NoError(t, f.Walk(func(path string, _ Object) error {
		paths = append(paths, path)
		return nil
	}))
	// /group/values is reached first as /group/again and visited once.
	require.Equal(t, []string{
		"/", "/empty", "/group", "/group/again", "/group/sub", "/group/sub/squares", "/names", "/scalar",
	}, paths)

	stop := os.ErrDeadlineExceeded
	err = f.Walk(func(string, Object) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestFile_Close(t *testing.T) {
	f, err := Open(sampleFile(t))
	require.NoError(t, err)

	d, err := f.Dataset("/group/values")
	require.NoError(t, err)
	g := f.Root()

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	require.True(t, f.Closed())
	require.Equal(t, "<Closed HDF5 file>", f.String())
	require.Equal(t, "<Closed HDF5 dataset>", d.String())

	_, err = f.Get("/group/values")
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, f.Contains("/group/values"))

	_, err = d.Read()
	require.ErrorIs(t, err, ErrClosed)
	_, err = d.ReadSlice([]uint64{0, 0}, []uint64{1, 1})
	require.ErrorIs(t, err, ErrClosed)
	_, err = d.Attributes()
	require.ErrorIs(t, err, ErrClosed)
	_, err = d.Info()
	require.ErrorIs(t, err, ErrClosed)
	_, err = g.Keys()
	require.ErrorIs(t, err, ErrClosed)
	err = f.Walk(func(string, Object) error { return nil })
	require.ErrorIs(t, err, ErrClosed)
	_, err = f.ReadAt(make([]byte, 4), 0)
	require.ErrorIs(t, err, ErrClosed)

	// Metadata loaded before closing stays available.
	require.Equal(t, "(100, 3)", d.Shape().String())
}
