package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"DEBUG", LevelDebug},
		{"Warning", LevelWarn},
		{" error ", LevelError},
		{"", LevelInfo},
		{"trace", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("yaml"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "resource", "orders")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "orders", rec["resource"])
}

func TestOpen_TeesToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "farmcart.log")

	logger, closer, err := Open(Config{Level: LevelInfo, Format: FormatText, Output: &buf, File: path})
	require.NoError(t, err)

	logger.Info("hello", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestOpen_NoFile(t *testing.T) {
	logger, closer, err := Open(Config{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}

func TestNop(t *testing.T) {
	logger := Nop()
	require.NotNil(t, logger)
	logger.Error("discarded")
}

func TestMultiHandler_LevelsPerHandler(t *testing.T) {
	var debugBuf, errBuf bytes.Buffer
	h := NewMultiHandler(
		New(Config{Level: LevelDebug, Output: &debugBuf}).Handler(),
		New(Config{Level: LevelError, Output: &errBuf}).Handler(),
	)
	l := slog.New(h).With("component", "dispatch")
	l.Debug("debug line")
	l.Error("error line")

	assert.Contains(t, debugBuf.String(), "debug line")
	assert.Contains(t, debugBuf.String(), "component=dispatch")
	assert.NotContains(t, errBuf.String(), "debug line")
	assert.Contains(t, errBuf.String(), "error line")
}
