package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hanulsoft/scenarium/internal/index"
	"github.com/hanulsoft/scenarium/internal/watcher"
)

// RescanFunc runs one rescan pass. Matches index.Engine.Rescan.
type RescanFunc func(ctx context.Context, mode index.Mode) (*index.Report, error)

// Rescanner runs rescans in a background goroutine, one at a time, and
// exposes progress to whoever asks. It can also follow a watch channel and
// turn event batches into incremental rescans.
type Rescanner struct {
	rescan   RescanFunc
	progress *Progress

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	err     error
}

// NewRescanner wraps a rescan function, normally engine.Rescan.
func NewRescanner(rescan RescanFunc) *Rescanner {
	return &Rescanner{
		rescan:   rescan,
		progress: NewProgress(),
	}
}

// Progress returns the shared progress tracker. Wire its Update method
// into index.Config.OnProgress so counters flow through.
func (r *Rescanner) Progress() *Progress {
	return r.progress
}

// IsRunning reports whether a background rescan is active.
func (r *Rescanner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches a rescan in the background and returns immediately.
// A rescan already in flight makes Start a no-op.
func (r *Rescanner) Start(ctx context.Context, mode index.Mode) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.err = nil
	r.mu.Unlock()

	go r.run(ctx, mode)
}

func (r *Rescanner) run(ctx context.Context, mode index.Mode) {
	defer close(r.doneCh)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.progress.begin()

	report, err := r.rescan(ctx, mode)
	if err != nil {
		r.progress.setError(err.Error())
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		return
	}
	r.progress.setReady(report)
}

// Stop cancels the in-flight rescan, if any, and waits for it to finish.
func (r *Rescanner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Wait blocks until the current rescan finishes and returns its error.
// Returns nil immediately when nothing is running.
func (r *Rescanner) Wait() error {
	r.mu.Lock()
	doneCh := r.doneCh
	r.mu.Unlock()
	if doneCh == nil {
		return nil
	}
	<-doneCh

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Watch consumes debounced event batches and runs an incremental rescan
// after each one. Blocks until the context is cancelled or the channel
// closes. A batch arriving while a rescan is already running is not lost:
// another pass runs once the current one finishes.
func (r *Rescanner) Watch(ctx context.Context, batches <-chan []watcher.FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			slog.Debug("watch batch received", slog.Int("events", len(batch)))

			report, err := r.rescan(ctx, index.ModeIncremental)
			if errors.Is(err, index.ErrRescanInProgress) {
				// Retry once the running scan completes; its snapshot
				// may predate this batch.
				_ = r.Wait()
				report, err = r.rescan(ctx, index.ModeIncremental)
			}
			switch {
			case err != nil && ctx.Err() != nil:
				return
			case err != nil:
				slog.Warn("watch rescan failed", slog.Any("error", err))
			case report.Changed():
				slog.Info("watch rescan applied changes",
					slog.Int("added", report.Added),
					slog.Int("updated", report.Updated),
					slog.Int("moved", report.Moved),
					slog.Int("orphaned", report.Orphaned),
					slog.Int("purged", report.Purged),
				)
			}
		}
	}
}
