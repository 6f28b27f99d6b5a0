package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanulsoft/scenarium/internal/index"
	"github.com/hanulsoft/scenarium/internal/watcher"
)

func TestRescannerRunsToReady(t *testing.T) {
	r := NewRescanner(func(ctx context.Context, mode index.Mode) (*index.Report, error) {
		return &index.Report{Added: 3}, nil
	})

	assert.False(t, r.IsRunning())
	r.Start(context.Background(), index.ModeFull)
	require.NoError(t, r.Wait())

	snap := r.Progress().Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	require.NotNil(t, snap.LastReport)
	assert.Equal(t, 3, snap.LastReport.Added)
}

func TestRescannerReportsError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRescanner(func(ctx context.Context, mode index.Mode) (*index.Report, error) {
		return nil, boom
	})

	r.Start(context.Background(), index.ModeFull)
	require.ErrorIs(t, r.Wait(), boom)

	snap := r.Progress().Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "boom", snap.ErrorMessage)
}

func TestRescannerStartWhileRunningIsNoop(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewRescanner(func(ctx context.Context, mode index.Mode) (*index.Report, error) {
		calls.Add(1)
		<-release
		return &index.Report{}, nil
	})

	r.Start(context.Background(), index.ModeFull)
	for !r.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	r.Start(context.Background(), index.ModeFull)
	close(release)
	require.NoError(t, r.Wait())

	assert.Equal(t, int32(1), calls.Load())
}

func TestRescannerStopCancelsRun(t *testing.T) {
	r := NewRescanner(func(ctx context.Context, mode index.Mode) (*index.Report, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	r.Start(context.Background(), index.ModeFull)
	for !r.IsRunning() {
		time.Sleep(time.Millisecond)
	}
	r.Stop()

	assert.False(t, r.IsRunning())
	require.ErrorIs(t, r.Wait(), context.Canceled)
}

func TestRescannerProgressCounters(t *testing.T) {
	r := NewRescanner(nil)
	r.rescan = func(ctx context.Context, mode index.Mode) (*index.Report, error) {
		r.Progress().Update(index.Progress{Discovered: 10, Processed: 4})
		return &index.Report{}, nil
	}

	r.Start(context.Background(), index.ModeFull)
	require.NoError(t, r.Wait())

	snap := r.Progress().Snapshot()
	assert.Equal(t, 10, snap.Discovered)
	assert.Equal(t, 4, snap.Processed)
}

func TestWatchTriggersIncrementalRescan(t *testing.T) {
	var calls atomic.Int32
	r := NewRescanner(func(ctx context.Context, mode index.Mode) (*index.Report, error) {
		require.Equal(t, index.ModeIncremental, mode)
		calls.Add(1)
		return &index.Report{Updated: 1}, nil
	})

	batches := make(chan []watcher.FileEvent, 1)
	batches <- []watcher.FileEvent{{Path: "/lib/a/summary.xml", Operation: watcher.OpModify}}
	close(batches)

	r.Watch(context.Background(), batches)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	r := NewRescanner(func(ctx context.Context, mode index.Mode) (*index.Report, error) {
		return &index.Report{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Watch(ctx, make(chan []watcher.FileEvent))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch loop did not exit on cancel")
	}
}
