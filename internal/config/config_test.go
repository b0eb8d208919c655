package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, Config{
		LogLevel:  "warn",
		LogPretty: true,
		Prompt:    "h5> ",
		MaxPrint:  1000,
		HistBins:  10,
	}, cfg)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"H5INSPECT_LOG_LEVEL":  "debug",
		"H5INSPECT_LOG_PRETTY": "false",
		"H5INSPECT_LOG_FILE":   "/tmp/h5.log",
		"H5INSPECT_PROMPT":     ">> ",
		"H5INSPECT_MAX_PRINT":  "20",
		"H5INSPECT_HIST_BINS":  "4",
		"LOG_LEVEL":            "error",
	})
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.False(t, cfg.LogPretty)
	require.Equal(t, "/tmp/h5.log", cfg.LogFile)
	require.Equal(t, ">> ", cfg.Prompt)
	require.Equal(t, 20, cfg.MaxPrint)
	require.Equal(t, 4, cfg.HistBins)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		msg  string
	}{
		{"not a number", map[string]string{"H5INSPECT_MAX_PRINT": "lots"}, "parse env"},
		{"not a bool", map[string]string{"H5INSPECT_LOG_PRETTY": "maybe"}, "parse env"},
		{"zero max print", map[string]string{"H5INSPECT_MAX_PRINT": "0"}, "MAX_PRINT must be positive"},
		{"too many bins", map[string]string{"H5INSPECT_HIST_BINS": "5000"}, "HIST_BINS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("H5INSPECT_PROMPT", "hdf5> ")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "hdf5> ", cfg.Prompt)
}
