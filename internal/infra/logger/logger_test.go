package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestObservedEntries(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewWithCore(core).Named("news")

	log.Debug("dropped %d", 1)
	log.Info("connected to %s", "news.example.com")
	log.Warn("plaintext auth")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "connected to news.example.com", entries[0].Message)
	assert.Equal(t, "news", entries[0].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestWriteTrimsNewline(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewWithCore(core)

	line := []byte("GET /capabilities 200\n")
	n, err := log.Write(line)
	require.NoError(t, err)
	assert.Equal(t, len(line), n)

	_, err = log.Write([]byte("\n"))
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "GET /capabilities 200", logs.All()[0].Message)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gonntp.log")
	log, err := New(path, LevelWarn, false)
	require.NoError(t, err)

	log.Info("skipped")
	log.Error("article %s missing", "<a@b>")
	require.NoError(t, log.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "skipped")
	assert.Contains(t, string(b), "ERROR article <a@b> missing")
}
