package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HybridWatcher watches the library roots with fsnotify, falling back to
// polling when fsnotify is unavailable. Events pass through a Debouncer so
// consumers see quiet-period batches.
type HybridWatcher struct {
	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool
	debouncer   *Debouncer
	exclude     map[string]struct{}
	roots       []string
	opts        Options

	batches chan []FileEvent
	stopCh  chan struct{}
	stopped sync.Once
}

// New creates a watcher over the given roots. It prefers fsnotify and
// silently falls back to polling when the platform refuses a native
// watcher.
func New(roots []string, opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()
	if len(roots) == 0 {
		return nil, fmt.Errorf("no roots to watch")
	}

	exclude := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		exclude[d] = struct{}{}
	}

	h := &HybridWatcher{
		debouncer: NewDebouncer(opts.Debounce),
		exclude:   exclude,
		roots:     roots,
		opts:      opts,
		batches:   make(chan []FileEvent, opts.EventBufferSize),
		stopCh:    make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		h.fsWatcher = fsw
		h.useFsnotify = true
	} else {
		slog.Warn("fsnotify unavailable, falling back to polling", slog.Any("error", err))
		h.pollWatcher = NewPollingWatcher(roots, opts.PollInterval, opts.ExcludeDirs)
	}

	return h, nil
}

// Start runs the watcher until the context is cancelled or Stop is called.
// Blocking; run it in a goroutine.
func (h *HybridWatcher) Start(ctx context.Context) error {
	go h.forwardBatches(ctx)

	if h.useFsnotify {
		return h.runFsnotify(ctx)
	}
	return h.runPolling(ctx)
}

// Stop shuts the watcher down and closes the batch channel. Safe to call
// more than once.
func (h *HybridWatcher) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
		if h.fsWatcher != nil {
			_ = h.fsWatcher.Close()
		}
		if h.pollWatcher != nil {
			h.pollWatcher.Stop()
		}
		h.debouncer.Stop()
	})
}

// Batches returns the channel of debounced event batches. Each batch means
// at least one real change happened under a root since the last batch.
func (h *HybridWatcher) Batches() <-chan []FileEvent {
	return h.batches
}

func (h *HybridWatcher) runFsnotify(ctx context.Context) error {
	for _, root := range h.roots {
		if err := h.addRecursive(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return nil
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.Any("error", err))
		}
	}
}

func (h *HybridWatcher) runPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case event, ok := <-h.pollWatcher.Events():
				if !ok {
					return
				}
				h.debouncer.Add(event)
			}
		}
	}()

	return h.pollWatcher.Start(ctx)
}

func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	if h.excluded(event.Name) {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		// New directories need their own watch.
		if isDir {
			_ = h.addRecursive(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and friends never change package content.
		return
	}

	h.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

func (h *HybridWatcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case batch, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			select {
			case h.batches <- batch:
			default:
				slog.Warn("watch batch channel full, dropping batch", slog.Int("size", len(batch)))
			}
		}
	}
}

// addRecursive registers root and every non-excluded directory under it.
func (h *HybridWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			if _, skip := h.exclude[d.Name()]; skip {
				return filepath.SkipDir
			}
		}
		return h.fsWatcher.Add(path)
	})
}

// excluded reports whether any path element is an excluded directory name.
func (h *HybridWatcher) excluded(path string) bool {
	for dir := path; ; {
		parent, name := filepath.Split(dir)
		if _, skip := h.exclude[name]; skip {
			return true
		}
		parent = filepath.Clean(parent)
		if parent == dir || parent == "." || parent == string(filepath.Separator) {
			return false
		}
		dir = parent
	}
}
