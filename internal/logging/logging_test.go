package logging

import (
	"fmt"
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
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestRotatingWriterWritesAndSyncs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenarium.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	n, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.NoError(t, w.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenarium.log")

	// 1MB max; write past the limit in large chunks
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	chunk := strings.Repeat("x", 512*1024)
	for i := 0; i < 3; i++ {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}

	// Rotation must have produced scenarium.log.1
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "expected rotated file to exist")

	// Current file stays under the limit
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(1024*1024)+1)
}

func TestRotatingWriterPrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenarium.log")

	// Pre-create rotated files beyond the keep limit
	for i := 1; i <= 4; i++ {
		require.NoError(t, os.WriteFile(fmt.Sprintf("%s.%d", path, i), []byte("old"), 0o644))
	}

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	chunk := strings.Repeat("y", 600*1024)
	_, err = w.Write([]byte(chunk))
	require.NoError(t, err)
	_, err = w.Write([]byte(chunk))
	require.NoError(t, err)

	// Files numbered >= maxFiles are removed during rotation
	_, err = os.Stat(path + ".4")
	assert.True(t, os.IsNotExist(err))
}

func TestSetupWritesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenarium.log")

	logger, cleanup, err := Setup(Config{
		Level:         "debug",
		FilePath:      path,
		MaxSizeMB:     1,
		MaxFiles:      1,
		WriteToStderr: false,
	})
	require.NoError(t, err)

	logger.Info("rescan complete", slog.Int("added", 3))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"rescan complete"`)
	assert.Contains(t, string(data), `"added":3`)
}
