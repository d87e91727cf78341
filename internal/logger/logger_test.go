package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestModuleScoping(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC)

	log.Module("http").Module("predict").Info("Request handled",
		String("label", "Apple___Apple_scab"),
		Int("status", 200),
		Float32("confidence", 0.5),
		Error(errors.New("boom")))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "http.predict", lines[0]["module"])
	assert.Equal(t, "Request handled", lines[0]["msg"])
	assert.Equal(t, "Apple___Apple_scab", lines[0]["label"])
	assert.InDelta(t, 200, lines[0]["status"], 0)
	assert.InDelta(t, 0.5, lines[0]["confidence"], 1e-6)
	assert.Equal(t, "boom", lines[0]["error"])
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelWarn, time.UTC)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown")

	assert.Len(t, decodeLines(t, buf), 2)
}

func TestWithCarriesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC).With(String("request_id", "abc"))

	log.Module("upload").Info("one")
	log.Info("two")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Equal(t, "abc", l["request_id"])
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel(" Warning ").String())
	assert.Equal(t, "ERROR", ParseLevel("error").String())
	assert.Equal(t, "INFO", ParseLevel("nonsense").String())
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	cl, err := NewCentralLogger(&Config{
		Level:   "info",
		File:    FileOutput{Enabled: true, Path: path, MaxSize: 1},
		Console: io.Discard,
	})
	require.NoError(t, err)

	cl.Module("main").Info("started")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)
}

func TestCentralLoggerConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	cl, err := NewCentralLogger(&Config{Level: "warn", Console: &buf})
	require.NoError(t, err)

	cl.Module("cli").Info("hidden")
	cl.Module("cli").Warn("shown")
	require.NoError(t, cl.Close())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"module":"cli"`)
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := NewCentralLogger(&Config{Level: "info", Timezone: "Mars/Olympus"})
	require.Error(t, err)
}
