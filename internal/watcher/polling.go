package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by periodically walking the roots and
// diffing file state. Fallback for filesystems where native notification
// is unavailable (network mounts, some containers).
type PollingWatcher struct {
	interval time.Duration
	exclude  map[string]struct{}
	roots    []string

	mu    sync.Mutex
	state map[string]fileState

	events  chan FileEvent
	stopCh  chan struct{}
	stopped sync.Once
}

type fileState struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher over the given roots.
func NewPollingWatcher(roots []string, interval time.Duration, excludeDirs []string) *PollingWatcher {
	exclude := make(map[string]struct{}, len(excludeDirs))
	for _, d := range excludeDirs {
		exclude[d] = struct{}{}
	}
	return &PollingWatcher{
		interval: interval,
		exclude:  exclude,
		roots:    roots,
		state:    make(map[string]fileState),
		events:   make(chan FileEvent, 256),
		stopCh:   make(chan struct{}),
	}
}

// Start establishes the baseline and polls until the context is cancelled
// or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context) error {
	p.snapshot(func(string, fileState) {})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.detectChanges()
		}
	}
}

// Stop shuts the watcher down. Safe to call more than once.
func (p *PollingWatcher) Stop() {
	p.stopped.Do(func() {
		close(p.stopCh)
		close(p.events)
	})
}

// Events returns the channel of raw (un-debounced) events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// snapshot walks all roots and rebuilds the state map, calling seen for
// every live path.
func (p *PollingWatcher) snapshot(seen func(string, fileState)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]fileState, len(p.state))
	for _, root := range p.roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if _, skip := p.exclude[d.Name()]; skip && path != root {
					return filepath.SkipDir
				}
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			st := fileState{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
			next[path] = st
			seen(path, st)
			return nil
		})
	}
	p.state = next
}

// detectChanges diffs the current filesystem state against the last
// snapshot and emits create, modify, and delete events.
func (p *PollingWatcher) detectChanges() {
	prev := p.state
	now := time.Now()

	p.snapshot(func(path string, st fileState) {
		old, existed := prev[path]
		switch {
		case !existed:
			p.emit(FileEvent{Path: path, Operation: OpCreate, IsDir: st.isDir, Timestamp: now})
		case !st.isDir && (old.modTime != st.modTime || old.size != st.size):
			p.emit(FileEvent{Path: path, Operation: OpModify, IsDir: false, Timestamp: now})
		}
		delete(prev, path)
	})

	// Whatever is left in prev vanished since the last pass.
	for path, st := range prev {
		p.emit(FileEvent{Path: path, Operation: OpDelete, IsDir: st.isDir, Timestamp: now})
	}
}

func (p *PollingWatcher) emit(ev FileEvent) {
	select {
	case p.events <- ev:
	case <-p.stopCh:
	default:
	}
}
