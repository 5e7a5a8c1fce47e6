package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withLevel(t *testing.T, lvl slog.Level) {
	t.Helper()
	previous := Level()
	SetLevel(lvl)
	t.Cleanup(func() { SetLevel(previous) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimpleFormat(t *testing.T) {
	withLevel(t, slog.LevelInfo)

	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, FormatSimple, false))

	log.Info("Server started", "port", 8080, "host", "0.0.0.0")
	log.With("component", "limiter").Warn("Rate limit exceeded", "window", "minute")
	log.WithGroup("llm").Error("Request failed", "error", "timeout exceeded")
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO Server started port=8080 host=0.0.0.0", lines[0])
	assert.Equal(t, "WARN Rate limit exceeded component=limiter window=minute", lines[1])
	assert.Equal(t, `ERROR Request failed llm.error="timeout exceeded"`, lines[2])
}

func TestVerboseFormatHasTimestamp(t *testing.T) {
	withLevel(t, slog.LevelInfo)

	var buf bytes.Buffer
	slog.New(NewHandler(&buf, FormatVerbose, false)).Info("hello")

	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasSuffix(line, "INFO hello"), line)

	stamp := strings.TrimSuffix(line, " INFO hello")
	_, err := time.ParseInLocation("2006/01/02 15:04:05", stamp, time.Local)
	assert.NoError(t, err)
}

func TestColorWrapsLevel(t *testing.T) {
	withLevel(t, slog.LevelInfo)

	var buf bytes.Buffer
	slog.New(NewHandler(&buf, FormatSimple, true)).Error("bad")

	assert.Equal(t, "\033[31mERROR\033[0m bad\n", buf.String())
}

func TestJSONFormat(t *testing.T) {
	withLevel(t, slog.LevelInfo)

	var buf bytes.Buffer
	slog.New(NewHandler(&buf, FormatJSON, false)).Warn("careful", "remaining", 0)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "careful", entry["msg"])
	assert.Equal(t, float64(0), entry["remaining"])
}

func TestSetLevelAppliesToExistingHandlers(t *testing.T) {
	withLevel(t, slog.LevelWarn)

	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, FormatSimple, false))

	log.Info("dropped")
	assert.Empty(t, buf.String())

	SetLevel(slog.LevelDebug)
	log.Debug("kept")
	assert.Equal(t, "DEBUG kept\n", buf.String())
}

func TestThirdPartyRecordsFilteredAboveDebug(t *testing.T) {
	withLevel(t, slog.LevelInfo)

	var buf bytes.Buffer
	handler := NewHandler(&buf, FormatSimple, false)

	// A zero PC cannot be attributed to this module.
	foreign := slog.NewRecord(time.Now(), slog.LevelInfo, "from a dependency", 0)
	require.NoError(t, handler.Handle(context.Background(), foreign))
	assert.Empty(t, buf.String())

	SetLevel(slog.LevelDebug)
	require.NoError(t, handler.Handle(context.Background(), foreign))
	assert.Equal(t, "INFO from a dependency\n", buf.String())
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notely.log")

	file, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	defer cleanup()

	_, err = file.WriteString("line\n")
	assert.NoError(t, err)

	_, _, err = OpenLogFile(filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
