package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level LogLevel) *TriageLogger {
	return NewLogger(&LoggerConfig{Level: level, Format: "json", Output: buf, Component: "triage-bot"})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestTriageLoggerEmitsKeyValueAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LogLevelInfo)

	logger.Info("engine.event.handled", "channel_id", "C1", "actions", 2)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "engine.event.handled", entry["msg"])
	assert.Equal(t, "C1", entry["channel_id"])
	assert.Equal(t, float64(2), entry["actions"])
	assert.Equal(t, "triage-bot", entry["component"])
}

func TestTriageLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LogLevelWarn)

	logger.Debug("dropped")
	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept", "reason", "backlog")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "backlog", entry["reason"])
}

func TestTriageLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "text", Output: &buf})

	logger.Error("store.open.failed", "path", "/tmp/x.db")

	out := buf.String()
	assert.Contains(t, out, "store.open.failed")
	assert.Contains(t, out, "path=/tmp/x.db")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"info", LogLevelInfo},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), "input %q", tt.in)
	}
}

func TestSlogAdapterPassthrough(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.Info("tool.discovered", "tool", "lookup_ticket")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "tool.discovered", entry["msg"])
	assert.Equal(t, "lookup_ticket", entry["tool"])
}

func TestNoOpLoggerDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		logger := NoOpLogger{}
		logger.Debug("a")
		logger.Info("b", "k", "v")
		logger.Warn("c")
		logger.Error("d")
	})
}
