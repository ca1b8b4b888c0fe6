package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/upul/ml-dev-assignment/pkg/config"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	require.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewJSONWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(config.LoggingConfig{Level: "info", JSON: true}, &buf)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("api", "health").Msg("recorded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "recorded", entry["message"])
	require.Equal(t, "health", entry["api"])
}

func TestNewTeesIntoRotatedFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "sentiment.log")
	logger, closer := New(config.LoggingConfig{
		Level:         "info",
		FileName:      path,
		MaxFileSizeMB: 1,
		BackupCount:   1,
	}, &buf)

	logger.Info().Msg("model loaded")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "model loaded")
	require.Contains(t, buf.String(), "model loaded")
}
