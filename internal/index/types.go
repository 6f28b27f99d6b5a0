// Package index reconciles filesystem scan passes against the persisted
// store: it discovers packages, parses changed ones in a bounded worker
// pool, and publishes the next snapshot through the store. Only one
// reconciliation runs at a time; queries keep reading the previous
// snapshot until the new one is swapped in.
package index

import (
	"time"

	scerrors "github.com/hanulsoft/scenarium/internal/errors"
)

// Mode selects how much work a rescan does.
type Mode string

const (
	// ModeFull reparses every discovered package, ignoring fingerprints.
	ModeFull Mode = "full"

	// ModeIncremental skips packages whose fingerprint is unchanged since
	// the last pass.
	ModeIncremental Mode = "incremental"
)

// ErrRescanInProgress is returned when a rescan is requested while another
// one is still running.
var ErrRescanInProgress = scerrors.New(scerrors.ErrCodeRescanInProgress,
	"a rescan is already in progress", nil)

// WarningKind classifies per-package problems collected during a pass.
type WarningKind string

const (
	WarningIO        WarningKind = "io"
	WarningParse     WarningKind = "parse"
	WarningTimeout   WarningKind = "timeout"
	WarningDuplicate WarningKind = "duplicate"
)

// Warning is one non-fatal problem from a rescan pass. Warnings never abort
// the pass; the affected package is skipped and any previous entry for it
// is left untouched.
type Warning struct {
	Kind WarningKind
	Path string
	Err  error
}

// Report summarizes one completed rescan pass.
type Report struct {
	Added    int
	Updated  int
	Moved    int
	Orphaned int
	Purged   int
	Skipped  int
	Duration time.Duration
	Warnings []Warning
}

// Changed reports whether the pass altered the index.
func (r *Report) Changed() bool {
	return r.Added > 0 || r.Updated > 0 || r.Moved > 0 || r.Orphaned > 0 || r.Purged > 0
}

// Progress is a point-in-time view of a running pass, for callers that
// report scan progress.
type Progress struct {
	Discovered int
	Processed  int
}
