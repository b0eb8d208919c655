package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5inspect/internal/core"
)

func openRaw(t *testing.T, path string) (*os.File, *core.Superblock) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	sb, err := core.ReadSuperblock(f)
	require.NoError(t, err)
	return f, sb
}

func TestCreate_SuperblockAndRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "root.h5")
	f, err := Create(path, ModeTruncate)
	require.NoError(t, err)

	v, err := NewValue([]float64{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.CreateDataset("/grp/x", v))
	require.NoError(t, f.CreateSoftLink("alias", "/grp/x"))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	r, sb := openRaw(t, path)
	require.Equal(t, uint8(2), sb.Version)
	fi, err := r.Stat()
	require.NoError(t, err)
	require.Equal(t, uint64(fi.Size()), sb.EOFAddress)

	root, err := core.ReadObjectHeader(r, sb.RootGroup, sb)
	require.NoError(t, err)
	require.Equal(t, core.ObjectTypeGroup, root.Type)
	require.Len(t, root.FindAll(core.MsgLinkMessage), 2)
}

func TestCreate_DatasetLayouts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.h5")
	f, err := Create(path, ModeTruncate)
	require.NoError(t, err)

	v, err := NewValue([]int32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.NoError(t, v.Reshape(2, 3))

	require.NoError(t, f.CreateDataset("contiguous", v))
	require.NoError(t, f.CreateDataset("compact", v, WithCompact()))
	require.NoError(t, f.CreateDataset("chunked", v, WithChunks(1, 2),
		WithFilters(NewShuffleFilter(4), NewDeflateFilter(6))))
	require.NoError(t, f.Close())

	r, sb := openRaw(t, path)
	root, err := core.ReadObjectHeader(r, sb.RootGroup, sb)
	require.NoError(t, err)

	want := []core.DataLayoutClass{core.LayoutContiguous, core.LayoutCompact, core.LayoutChunked}
	for i, m := range root.FindAll(core.MsgLinkMessage) {
		addr := sb.DecodeAddress(m.Data[len(m.Data)-8:])
		h, err := core.ReadObjectHeader(r, addr, sb)
		require.NoError(t, err)
		require.Equal(t, core.ObjectTypeDataset, h.Type)

		info, err := core.ReadDatasetInfo(h, sb, nil)
		require.NoError(t, err)
		require.Equal(t, want[i], info.Layout.Class)
		require.Equal(t, "int32", info.Datatype.Name())

		raw, err := core.ReadRaw(r, info, sb)
		require.NoError(t, err)
		vals, err := core.DecodeValues(raw, info.Datatype, info.ElementCount(), nil)
		require.NoError(t, err)
		require.Equal(t, []int32{1, 2, 3, 4, 5, 6}, vals)
	}
}

func TestCreate_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.h5")
	f, err := Create(path, ModeTruncate)
	require.NoError(t, err)

	v, err := NewValue([]float32{1, 2})
	require.NoError(t, err)
	scalar, err := NewValue(int64(3))
	require.NoError(t, err)

	require.NoError(t, f.CreateDataset("d", v))
	require.Error(t, f.CreateDataset("d", v), "duplicate")
	require.Error(t, f.CreateDataset("d/child", v), "dataset as parent")
	require.Error(t, f.CreateDataset("/", v))
	require.Error(t, f.CreateDataset("e", v, WithFilters(NewDeflateFilter(1))))
	require.Error(t, f.CreateDataset("e", v, WithChunks(1, 1)))
	require.Error(t, f.CreateDataset("e", scalar, WithChunks(1)))
	require.Error(t, f.CreateDataset("e", v, WithFillValue(scalar)))
	require.Error(t, f.CreateDataset("e", v, WithMaxShape(Unlimited)), "extendible without chunks")
	require.Error(t, f.CreateDataset("e", v, WithMaxShape(1), WithChunks(1)), "max below dims")
	require.Error(t, f.CreateDataset("e", v, WithNullSpace(), WithChunks(1)), "null with chunks")
	require.Error(t, f.SetAttribute("missing", "a", v))
	require.NoError(t, f.SetAttribute("d", "a", v))
	require.Error(t, f.SetAttribute("d", "a", v))
	require.Error(t, f.CreateSoftLink("s", ""))
	require.Error(t, f.CreateHardLink("h", "/nope"))
	require.NoError(t, f.Close())

	require.ErrorIs(t, f.CreateGroup("late"), errWriterClosed)
}

func TestAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.h5")
	f, err := Create(path, ModeExclusive)
	require.NoError(t, err)
	require.NoError(t, f.CreateGroup("g"))
	require.NoError(t, f.Abort())
	require.NoError(t, f.Abort())
	require.NoError(t, f.Close())

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.ErrorIs(t, f.CreateGroup("late"), errWriterClosed)

	f, err = Create(path, ModeExclusive)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestCreate_HardLinkCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.h5")
	f, err := Create(path, ModeTruncate)
	require.NoError(t, err)
	require.NoError(t, f.CreateHardLink("g/up", "/"))
	require.ErrorContains(t, f.Close(), "enclosing group")
}

func TestNewValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		dt   string
		dims []uint64
		size int
	}{
		{"float64 slice", []float64{1, 2}, "float64", []uint64{2}, 16},
		{"float32 scalar", float32(1), "float32", nil, 4},
		{"uint8 slice", []uint8{1, 2, 3}, "uint8", []uint64{3}, 3},
		{"int16 scalar", int16(-2), "int16", nil, 2},
		{"string", "metres", "|S6", nil, 6},
		{"strings", []string{"a", "bcd"}, "|S3", []uint64{2}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewValue(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.dims, v.Dims)
			require.Len(t, v.Data, tt.size)

			dt, err := core.ParseDatatypeMessage(v.Datatype)
			require.NoError(t, err)
			require.Equal(t, tt.dt, dt.Name())
			require.Equal(t, v.ElemSize, dt.Size)
		})
	}

	_, err := NewValue(struct{ A string }{"x"})
	require.Error(t, err)
	_, err = NewValue(map[string]int{})
	require.Error(t, err)

	v, err := NewValue([]int32{1, 2, 3})
	require.NoError(t, err)
	require.Error(t, v.Reshape(2, 2))
}
