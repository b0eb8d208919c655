package shell

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5inspect/hdf5"
	"github.com/scigolib/h5inspect/internal/writer"
)

const header = "Interactive HDF5 session.\nAvailable vars: f (file), dset (dataset)"

func newValue(t *testing.T, data any, dims ...uint64) *writer.Value {
	t.Helper()
	v, err := writer.NewValue(data)
	require.NoError(t, err)
	if len(dims) > 0 {
		require.NoError(t, v.Reshape(dims...))
	}
	return v
}

func bindings(t *testing.T) Bindings {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.h5")
	w, err := writer.Create(path, writer.ModeTruncate)
	require.NoError(t, err)

	vals := make([]float64, 300)
	for i := range vals {
		vals[i] = float64(i) / 2
	}
	require.NoError(t, w.CreateDataset("/group/values", newValue(t, vals, 100, 3)))
	require.NoError(t, w.SetAttribute("/group/values", "units", newValue(t, "m")))
	require.NoError(t, w.CreateDataset("scalar", newValue(t, float32(2.5))))
	require.NoError(t, w.CreateDataset("names", newValue(t, []string{"alpha", "beta"})))
	require.NoError(t, w.Close())

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	d, err := f.Dataset("/group/values")
	require.NoError(t, err)
	return Bindings{"f": f, "dset": d}
}

// run feeds input to a fresh shell and returns the output lines after the
// header.
func run(t *testing.T, input string, opts ...Option) []string {
	t.Helper()
	var out bytes.Buffer
	opts = append(opts, WithInput(strings.NewReader(input)), WithOutput(&out))
	sh := New(opts...)
	require.NoError(t, sh.Run(context.Background(), bindings(t), header))

	text := out.String()
	require.True(t, strings.HasPrefix(text, header+"\n"))
	text = strings.TrimPrefix(text, header+"\n")
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func TestRun_Bindings(t *testing.T) {
	lines := run(t, "dset.shape\ndset.dtype\ndset.name\nprint(f.mode)\n")
	require.Equal(t, []string{"(100, 3)", "float64", "/group/values", "r"}, lines)
}

func TestRun_EmptyInput(t *testing.T) {
	require.Empty(t, run(t, ""))
}

func TestRun_ErrorsDoNotEndSession(t *testing.T) {
	lines := run(t, "nosuch()\n1 + 1\nif then\n'still here'\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "attempt to call")
	require.Equal(t, "2", lines[1])
	require.Contains(t, lines[2], "stdin:1:")
	require.Equal(t, "still here", lines[3])
}

func TestRun_Exit(t *testing.T) {
	for _, cmd := range []string{"exit()", "quit()", "os.exit(0)"} {
		t.Run(cmd, func(t *testing.T) {
			lines := run(t, "1\n"+cmd+"\nprint('after')\n")
			require.Equal(t, []string{"1"}, lines)
		})
	}
}

func TestRun_MultiLine(t *testing.T) {
	lines := run(t, "for i = 1, 2 do\n  print(i * 10)\nend\nx = 7\nx\n")
	require.Equal(t, []string{"10", "20", "7"}, lines)
}

func TestRun_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	sh := New(WithInput(pr), WithOutput(&out))
	require.NoError(t, sh.Run(ctx, bindings(t), header))
	require.Equal(t, header+"\n", out.String())
}

func TestFileMethods(t *testing.T) {
	lines := run(t, strings.Join([]string{
		`f:keys()`,
		`f:keys("/group")`,
		`f:contains("/group/values")`,
		`f:contains("/missing")`,
		`f:get("/group")`,
		`f:get("scalar"):read()`,
		`f:get("names"):read()`,
		`f:get("/group"):keys()`,
		`f:get("/missing")`,
		`f:tree()`,
	}, "\n"))

	require.Equal(t, `["group", "names", "scalar"]`, lines[0])
	require.Equal(t, `["values"]`, lines[1])
	require.Equal(t, "true", lines[2])
	require.Equal(t, "false", lines[3])
	require.Equal(t, `<HDF5 group "/group" (1 members)>`, lines[4])
	require.Equal(t, "2.5", lines[5])
	require.Equal(t, `["alpha", "beta"]`, lines[6])
	require.Equal(t, `["values"]`, lines[7])
	require.Contains(t, lines[8], "object not found")
	require.Equal(t, []string{
		"/",
		"  group/",
		"    values (100, 3) float64",
		"  names (2,) |S5",
		"  scalar () float32",
	}, lines[9:])
}

func TestFile_Hexdump(t *testing.T) {
	lines := run(t, "f:hexdump(0, 8)\nf:hexdump(-1)\n")
	require.Len(t, lines, 2)
	require.Equal(t, "00000000: 89 48 44 46 0d 0a 1a 0a                           |.HDF....|", lines[0])
	require.Contains(t, lines[1], "invalid offset")
}

func TestDatasetMethods(t *testing.T) {
	lines := run(t, strings.Join([]string{
		`dset:read(4)`,
		`#dset:read()`,
		`dset:slice({1, 0}, {1, 3})`,
		`dset:attrs().units`,
		`dset:attrs()`,
		`dset:stats().max`,
		`dset:stats().count`,
		`dset.size`,
		`dset.ndim`,
		`tostring(dset)`,
		`dset:read(0)`,
		`dset:slice({99, 0}, {5, 1})`,
	}, "\n"), WithMaxPrint(10))

	require.Equal(t, "[0, 0.5, 1, 1.5]", lines[0])
	require.Equal(t, "10", lines[1])
	require.Equal(t, "[1.5, 2, 2.5]", lines[2])
	require.Equal(t, "m", lines[3])
	require.Equal(t, `{units="m"}`, lines[4])
	require.Equal(t, "149.5", lines[5])
	require.Equal(t, "300", lines[6])
	require.Equal(t, "300", lines[7])
	require.Equal(t, "2", lines[8])
	require.Equal(t, `<HDF5 dataset "/group/values": shape (100, 3), type "float64">`, lines[9])
	require.Contains(t, lines[10], "element count must be positive")
	require.Contains(t, lines[11], "out of range")
}

func TestDatasetPanels(t *testing.T) {
	var out bytes.Buffer
	sh := New(WithInput(strings.NewReader("")), WithOutput(&out), WithHistBins(3))
	b := bindings(t)

	require.NoError(t, sh.Exec(context.Background(), b, "return dset:info()"))
	require.Contains(t, out.String(), "Shape:")
	require.Contains(t, out.String(), "(100, 3)")
	require.Contains(t, out.String(), "Filter pipeline: none")

	out.Reset()
	require.NoError(t, sh.Exec(context.Background(), b, "return dset:stats()"))
	require.Contains(t, out.String(), "Mean:")
	require.Contains(t, out.String(), "74.75")

	out.Reset()
	require.NoError(t, sh.Exec(context.Background(), b, "return dset:hist()"))
	require.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)

	out.Reset()
	require.NoError(t, sh.Exec(context.Background(), b, "return f:info()"))
	require.Contains(t, out.String(), "Superblock version:")

	err := sh.Exec(context.Background(), b, `return f:get("names"):stats()`)
	require.ErrorContains(t, err, "non-numeric")
}

func TestExec(t *testing.T) {
	var out bytes.Buffer
	sh := New(WithOutput(&out))
	b := bindings(t)

	require.NoError(t, sh.Exec(context.Background(), b, "print(dset.shape[1] * dset.shape[2])"))
	require.Equal(t, "300\n", out.String())

	out.Reset()
	require.NoError(t, sh.Exec(context.Background(), b, "return dset.dtype, #f:keys()"))
	require.Equal(t, "float64\t3\n", out.String())

	require.Error(t, sh.Exec(context.Background(), b, "error('boom')"))
	require.Error(t, sh.Exec(context.Background(), b, "this is not lua"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sh.Exec(ctx, b, "return 1"), context.Canceled)
}

func TestDataset_NullShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "null.h5")
	w, err := writer.Create(path, writer.ModeTruncate)
	require.NoError(t, err)
	require.NoError(t, w.CreateDataset("empty", newValue(t, float64(0)), writer.WithNullSpace()))
	require.NoError(t, w.Close())

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	d, err := f.Dataset("empty")
	require.NoError(t, err)

	var out bytes.Buffer
	sh := New(WithOutput(&out))
	require.NoError(t, sh.Exec(context.Background(), Bindings{"f": f, "dset": d}, "print(dset.shape == nil, dset.size)"))
	require.Equal(t, "true\t0\n", out.String())
}
