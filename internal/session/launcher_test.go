package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5inspect/hdf5"
	"github.com/scigolib/h5inspect/internal/logger"
	"github.com/scigolib/h5inspect/internal/shell"
	"github.com/scigolib/h5inspect/internal/writer"
)

type fakeShell struct {
	runs     int
	header   string
	code     string
	bindings shell.Bindings
	onRun    func(shell.Bindings) error
}

func (s *fakeShell) Run(_ context.Context, b shell.Bindings, header string) error {
	s.runs++
	s.header = header
	s.bindings = b
	if s.onRun != nil {
		return s.onRun(b)
	}
	return nil
}

func (s *fakeShell) Exec(_ context.Context, b shell.Bindings, code string) error {
	s.code = code
	s.bindings = b
	if s.onRun != nil {
		return s.onRun(b)
	}
	return nil
}

// dataFile writes data.h5 holding /group/values (100x3 float64) and
// returns its path relative to the working directory.
func dataFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	w, err := writer.Create("data.h5", writer.ModeTruncate)
	require.NoError(t, err)
	v, err := writer.NewValue(make([]float64, 300))
	require.NoError(t, err)
	require.NoError(t, v.Reshape(100, 3))
	require.NoError(t, w.CreateDataset("/group/values", v))
	require.NoError(t, w.Close())
	return "data.h5"
}

func launch(t *testing.T, sh Shell, opts Options, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := New("h5inspect", &out, sh, nil).Launch(context.Background(), args, opts)
	return code, out.String()
}

func TestLaunch_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"a.h5"}, {"a.h5", "/x", "extra"}} {
		sh := &fakeShell{}
		code, out := launch(t, sh, Options{}, args...)
		require.Equal(t, ExitFailure, code)
		require.Equal(t, "Usage: h5inspect <file> <dataset_path>\n", out)
		require.Zero(t, sh.runs)
	}
}

func TestLaunch_OpenErrors(t *testing.T) {
	dir := t.TempDir()

	code, out := launch(t, &fakeShell{}, Options{}, filepath.Join(dir, "missing.h5"), "/x")
	require.Equal(t, ExitFailure, code)
	require.True(t, strings.HasPrefix(out, "Error: "))
	require.Equal(t, 1, strings.Count(out, "\n"))

	junk := filepath.Join(dir, "junk.h5")
	require.NoError(t, os.WriteFile(junk, []byte("plain text"), 0o600))
	code, out = launch(t, &fakeShell{}, Options{}, junk, "/x")
	require.Equal(t, ExitFailure, code)
	require.True(t, strings.HasPrefix(out, "Error: "))
}

func TestLaunch_NotFound(t *testing.T) {
	path := dataFile(t)
	sh := &fakeShell{}
	code, out := launch(t, sh, Options{}, path, "/group/missing")
	require.Equal(t, ExitFailure, code)
	require.Equal(t, "Dataset path '/group/missing' not found in file.\n", out)
	require.Zero(t, sh.runs)
}

func TestLaunch_NotADataset(t *testing.T) {
	path := dataFile(t)
	sh := &fakeShell{}
	code, out := launch(t, sh, Options{}, path, "/group")
	require.Equal(t, ExitFailure, code)
	require.Equal(t, "Opened dataset '/group' from 'data.h5'\nError: not a dataset: /group\n", out)
	require.Zero(t, sh.runs)
}

func TestLaunch_NullDataspace(t *testing.T) {
	t.Chdir(t.TempDir())
	w, err := writer.Create("null.h5", writer.ModeTruncate)
	require.NoError(t, err)
	v, err := writer.NewValue(float64(0))
	require.NoError(t, err)
	require.NoError(t, w.CreateDataset("empty", v, writer.WithNullSpace()))
	require.NoError(t, w.Close())

	code, out := launch(t, &fakeShell{}, Options{NoShell: true}, "null.h5", "/empty")
	require.Equal(t, ExitOK, code)
	require.Equal(t, "Opened dataset '/empty' from 'null.h5'\nShape: None, Dtype: float64\n", out)
}

func TestLaunch_Session(t *testing.T) {
	path := dataFile(t)
	sh := &fakeShell{onRun: func(b shell.Bindings) error {
		// Reading inside the session must not break the close afterwards.
		_, err := b["dset"].(*hdf5.Dataset).Read()
		return err
	}}

	code, out := launch(t, sh, Options{}, path, "/group/values")
	require.Equal(t, ExitOK, code)
	require.Equal(t, "Opened dataset '/group/values' from 'data.h5'\nShape: (100, 3), Dtype: float64\n", out)
	require.Equal(t, 1, sh.runs)
	require.Equal(t, Header, sh.header)

	f := sh.bindings["f"].(*hdf5.File)
	require.True(t, f.Closed())
	require.Equal(t, "/group/values", sh.bindings["dset"].(*hdf5.Dataset).Name())
}

func TestLaunch_RelativeDatasetPath(t *testing.T) {
	path := dataFile(t)
	code, out := launch(t, &fakeShell{}, Options{NoShell: true}, path, "group/values")
	require.Equal(t, ExitOK, code)
	require.Contains(t, out, "Opened dataset 'group/values' from 'data.h5'")
}

func TestLaunch_ShellErrorIsNotFatal(t *testing.T) {
	path := dataFile(t)
	var logs bytes.Buffer
	log, err := logger.New(logger.Config{Level: "error", Out: &logs})
	require.NoError(t, err)

	sh := &fakeShell{onRun: func(shell.Bindings) error { return errors.New("terminal lost") }}
	var out bytes.Buffer
	code := New("h5inspect", &out, sh, log).Launch(context.Background(), []string{path, "/group/values"}, Options{})
	require.Equal(t, ExitOK, code)
	require.Contains(t, logs.String(), `"level":"error"`)
	require.Contains(t, logs.String(), "terminal lost")
}

func TestLaunch_NoShell(t *testing.T) {
	path := dataFile(t)
	sh := &fakeShell{}
	code, out := launch(t, sh, Options{NoShell: true}, path, "/group/values")
	require.Equal(t, ExitOK, code)
	require.Contains(t, out, "Shape: (100, 3), Dtype: float64")
	require.Zero(t, sh.runs)
}

func TestLaunch_Exec(t *testing.T) {
	path := dataFile(t)

	sh := &fakeShell{}
	code, _ := launch(t, sh, Options{Exec: "return dset.shape"}, path, "/group/values")
	require.Equal(t, ExitOK, code)
	require.Equal(t, "return dset.shape", sh.code)
	require.Zero(t, sh.runs)

	sh = &fakeShell{onRun: func(shell.Bindings) error { return errors.New("exec: boom") }}
	code, out := launch(t, sh, Options{Exec: "error('boom')"}, path, "/group/values")
	require.Equal(t, ExitFailure, code)
	require.True(t, strings.HasSuffix(out, "Error: exec: boom\n"))
}

func TestLaunch_LuaShell(t *testing.T) {
	path := dataFile(t)
	var out bytes.Buffer
	sh := shell.New(shell.WithInput(strings.NewReader("dset.shape\nf:contains('/group')\n")), shell.WithOutput(&out))

	code := New("h5inspect", &out, sh, nil).Launch(context.Background(), []string{path, "/group/values"}, Options{})
	require.Equal(t, ExitOK, code)
	require.Equal(t, "Opened dataset '/group/values' from 'data.h5'\n"+
		"Shape: (100, 3), Dtype: float64\n"+
		Header+"\n"+
		"(100, 3)\n"+
		"true\n", out.String())
}
