package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5inspect/internal/writer"
)

func sample(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	w, err := writer.Create("data.h5", writer.ModeTruncate)
	require.NoError(t, err)
	v, err := writer.NewValue(make([]float64, 300))
	require.NoError(t, err)
	require.NoError(t, v.Reshape(100, 3))
	require.NoError(t, w.CreateDataset("/group/values", v))
	require.NoError(t, w.Close())
	return "data.h5"
}

func execute(t *testing.T, input string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), "h5inspect", args, strings.NewReader(input), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Usage(t *testing.T) {
	code, out, _ := execute(t, "", "only-one")
	require.Equal(t, 1, code)
	require.Equal(t, "Usage: h5inspect <file> <dataset_path>\n", out)

	code, out, errOut := execute(t, "", "--bogus", "a", "b")
	require.Equal(t, 1, code)
	require.Equal(t, "Usage: h5inspect <file> <dataset_path>\n", out)
	require.Contains(t, errOut, "unknown flag")

	for _, arg := range []string{"--help", "-h", "--version"} {
		t.Run(arg, func(t *testing.T) {
			code, out, _ := execute(t, "", arg)
			require.Equal(t, 1, code)
			require.Equal(t, "Usage: h5inspect <file> <dataset_path>\n", out)
		})
	}
}

func TestRun_UsageTouchesNoFiles(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "h5inspect.log")
	t.Setenv("H5INSPECT_LOG_FILE", logFile)

	code, out, _ := execute(t, "", "only-one")
	require.Equal(t, 1, code)
	require.Equal(t, "Usage: h5inspect <file> <dataset_path>\n", out)
	_, err := os.Stat(filepath.Dir(logFile))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_GroupPath(t *testing.T) {
	path := sample(t)
	code, out, _ := execute(t, "", path, "/group")
	require.Equal(t, 1, code)
	require.Equal(t, "Opened dataset '/group' from 'data.h5'\nError: not a dataset: /group\n", out)
}

func TestRun_Session(t *testing.T) {
	path := sample(t)
	code, out, errOut := execute(t, "dset.dtype\n", path, "/group/values")
	require.Equal(t, 0, code)
	require.Equal(t, "Opened dataset '/group/values' from 'data.h5'\n"+
		"Shape: (100, 3), Dtype: float64\n"+
		"Interactive HDF5 session.\nAvailable vars: f (file), dset (dataset)\n"+
		"float64\n", out)
	require.Empty(t, errOut)
}

func TestRun_Flags(t *testing.T) {
	path := sample(t)

	code, out, _ := execute(t, "", "--no-shell", path, "/group/values")
	require.Equal(t, 0, code)
	require.NotContains(t, out, "Interactive HDF5 session.")

	code, out, _ = execute(t, "", "-e", "print(#f:keys())", path, "/group/values")
	require.Equal(t, 0, code)
	require.True(t, strings.HasSuffix(out, "Dtype: float64\n1\n"))

	code, _, errOut := execute(t, "", "--log-level", "debug", "--no-shell", path, "/group/values")
	require.Equal(t, 0, code)
	require.Contains(t, errOut, "resolved")
	require.Contains(t, errOut, "file=data.h5")
}

func TestRun_Errors(t *testing.T) {
	path := sample(t)

	code, out, _ := execute(t, "", path, "/nope")
	require.Equal(t, 1, code)
	require.Equal(t, "Dataset path '/nope' not found in file.\n", out)

	code, out, _ = execute(t, "", filepath.Join(t.TempDir(), "absent.h5"), "/x")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(out, "Error: "))
}

func TestRun_BadConfig(t *testing.T) {
	t.Setenv("H5INSPECT_MAX_PRINT", "-3")
	code, out, errOut := execute(t, "", "a.h5", "/x")
	require.Equal(t, 1, code)
	require.Empty(t, out)
	require.Contains(t, errOut, "MAX_PRINT")
}
