package log

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

func TestNewLoggerTo_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, nil)
	l.Info("hello", "op", "recommend")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "recommend", rec["op"])
}

func TestNewLoggerTo_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, &Config{Level: "warn", Format: "text"})
	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "msg=kept")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placelens.log")
	l, err := NewLogger(&Config{Level: "debug", File: path})
	require.NoError(t, err)
	l.Debug("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
}

func TestDiscard_Close(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	assert.NoError(t, l.Close())
}
