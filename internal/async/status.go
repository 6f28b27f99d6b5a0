// Package async runs library rescans in the background with progress
// tracking, and drives rescans from watch events.
package async

import (
	"sync"
	"time"

	"github.com/hanulsoft/scenarium/internal/index"
)

// RescanStatus is the overall state of the background rescanner.
type RescanStatus string

const (
	// StatusIdle means no rescan has run yet.
	StatusIdle RescanStatus = "idle"
	// StatusScanning means a rescan is in progress.
	StatusScanning RescanStatus = "scanning"
	// StatusReady means the last rescan completed.
	StatusReady RescanStatus = "ready"
	// StatusError means the last rescan failed.
	StatusError RescanStatus = "error"
)

// ProgressSnapshot is an immutable view of rescan progress.
type ProgressSnapshot struct {
	Status         string `json:"status"`
	Discovered     int    `json:"discovered"`
	Processed      int    `json:"processed"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	ErrorMessage   string `json:"error_message,omitempty"`

	// LastReport is the reconciliation summary of the most recent
	// completed rescan, nil until one finishes.
	LastReport *index.Report `json:"last_report,omitempty"`
}

// Progress tracks one rescanner's state across runs. Safe for concurrent
// use.
type Progress struct {
	mu sync.RWMutex

	status     RescanStatus
	discovered int
	processed  int
	startTime  time.Time
	errMsg     string
	lastReport *index.Report
}

// NewProgress creates an idle progress tracker.
func NewProgress() *Progress {
	return &Progress{status: StatusIdle}
}

func (p *Progress) begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusScanning
	p.discovered = 0
	p.processed = 0
	p.startTime = time.Now()
	p.errMsg = ""
}

// Update records scan counters. Called from engine worker goroutines.
func (p *Progress) Update(ip index.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discovered = ip.Discovered
	p.processed = ip.Processed
}

func (p *Progress) setError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.errMsg = msg
}

func (p *Progress) setReady(report *index.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusReady
	p.lastReport = report
}

// IsScanning reports whether a rescan is in progress.
func (p *Progress) IsScanning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == StatusScanning
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := ProgressSnapshot{
		Status:       string(p.status),
		Discovered:   p.discovered,
		Processed:    p.processed,
		ErrorMessage: p.errMsg,
		LastReport:   p.lastReport,
	}
	if !p.startTime.IsZero() {
		snap.ElapsedSeconds = int(time.Since(p.startTime).Seconds())
	}
	return snap
}
