package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, ch <-chan []FileEvent, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(timeout):
		t.Fatal("timeout waiting for watch batch")
		return nil
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}

func TestWatcherDetectsNewDescriptor(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root}, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond) // let the watch get established

	pkg := filepath.Join(root, "dawn-patrol")
	require.NoError(t, os.Mkdir(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "summary.xml"), []byte("<summary/>"), 0o644))

	batch := collectBatch(t, w.Batches(), 3*time.Second)
	assert.NotEmpty(t, batch)
}

func TestWatcherIgnoresExcludedDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	w, err := New([]string{root}, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644))

	select {
	case batch := <-w.Batches():
		t.Fatalf("expected no batch for excluded dir, got %v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root}, Options{})
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}

func TestPollingWatcherDetectsChanges(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "summary.xml")
	require.NoError(t, os.WriteFile(file, []byte("<summary/>"), 0o644))

	p := NewPollingWatcher([]string{root}, 20*time.Millisecond, []string{".git"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Start(ctx) }()
	defer p.Stop()

	time.Sleep(60 * time.Millisecond) // baseline established
	require.NoError(t, os.WriteFile(file, []byte("<summary>longer</summary>"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			if ev.Path == file && ev.Operation == OpModify {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for polling modify event")
		}
	}
}

func TestPollingWatcherDetectsDelete(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "scenario.yaml")
	require.NoError(t, os.WriteFile(file, []byte("title: x"), 0o644))

	p := NewPollingWatcher([]string{root}, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Start(ctx) }()
	defer p.Stop()

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, os.Remove(file))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			if ev.Path == file && ev.Operation == OpDelete {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for polling delete event")
		}
	}
}
