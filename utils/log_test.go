package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace":    TRACE,
		"DEBUG":    DEBUG,
		" info ":   INFO,
		"warn":     WARN,
		"warning":  WARN,
		"error":    ERROR,
		"critical": CRITICAL,
		"":         INFO,
		"loud":     INFO,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLogger_FiltersAndFormats(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, WARN)

	l.Info("dropped %d", 1)
	l.Warn("kept %s", "warn")
	l.Critical("kept %s", "critical")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept warn", entry["message"])
	assert.Equal(t, "WARN", entry["severity"])
	assert.Equal(t, "warn", entry["level"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "CRITICAL", entry["severity"])

	l.SetMinLevel(TRACE)
	assert.True(t, l.Enabled(TRACE))
	l.Trace("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	l, err := NewFileLogger(path, DEBUG, false)
	require.NoError(t, err)
	l.Debug("hello %s", "file")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello file"`)
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	assert.False(t, l.Enabled(CRITICAL))
	l.Critical("ignored")
	assert.NoError(t, l.Close())
}
