package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Config{Level: "debug", Out: &buf})
		require.NoError(t, err)
		defer func() { _ = log.Close() }()

		log.Debug().Str("path", "/group/values").Msg("resolved")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, "debug", entry["level"])
		require.Equal(t, "resolved", entry["message"])
		require.Equal(t, "/group/values", entry["path"])
	})

	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Config{Level: "info", Pretty: true, Out: &buf})
		require.NoError(t, err)

		log.Info().Msg("opened")
		require.Contains(t, buf.String(), "INF")
		require.Contains(t, buf.String(), "opened")
		require.NotContains(t, buf.String(), "\x1b[")
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Config{Level: "warn", Out: &buf})
		require.NoError(t, err)

		log.Info().Msg("hidden")
		log.Debug().Msg("hidden")
		require.Empty(t, buf.String())
		log.Error().Msg("shown")
		require.Contains(t, buf.String(), "shown")
	})

	t.Run("unknown level falls back to warn", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Config{Level: "loud", Out: &buf})
		require.NoError(t, err)
		require.Equal(t, zerolog.WarnLevel, log.Zerolog().GetLevel())
	})

	t.Run("file output", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "logs", "h5inspect.log")
		log, err := New(Config{Level: "info", File: path, Out: &buf})
		require.NoError(t, err)

		log.Warn().Msg("to both")
		require.NoError(t, log.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(data), "to both")
		require.Contains(t, buf.String(), "to both")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.WarnLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"trace", zerolog.TraceLevel, false},
		{"verbose", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Error().Msg("discarded")
	require.NoError(t, log.Close())
}
