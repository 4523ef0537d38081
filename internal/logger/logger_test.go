package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fruitcounter/internal/config"
)

func TestWriterLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "warn")

	l.Info("hidden %d", 1)
	l.Warning("shown %d", 2)
	l.Error("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"level":"warn","time"`)
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "shown 3")
	assert.Empty(t, l.LogPath())
}

func TestWriterLogger_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "nonsense")

	l.Info("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewLogger_FileAndCleanLogs(t *testing.T) {
	cfg := config.Default()
	cfg.LogDirectory = filepath.Join(t.TempDir(), "logs")

	l, err := NewLogger(cfg)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, filepath.Join(cfg.LogDirectory, LogFileName), l.LogPath())

	l.Error("disk almost full")
	data, err := os.ReadFile(l.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk almost full")

	require.NoError(t, l.CleanLogs())
	data, err = os.ReadFile(l.LogPath())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "disk almost full")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	assert.NoError(t, l.CleanLogs())
	assert.NoError(t, l.Close())
}
