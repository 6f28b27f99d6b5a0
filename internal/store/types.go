// Package store persists the scenario index in SQLite and publishes
// immutable in-memory snapshots for lock-free reads. The scan-derived entry
// table and the user annotation table are separate stores joined only by
// identity, so a rescan can never overwrite a user edit.
package store

import (
	"time"

	"github.com/hanulsoft/scenarium/internal/identity"
	"github.com/hanulsoft/scenarium/internal/scenario"
)

// EntryState is the lifecycle state of an index entry.
type EntryState string

const (
	// StateActive means the package was found at Path during the latest pass.
	StateActive EntryState = "active"

	// StateOrphaned means no path resolved to this identity during the
	// latest pass; the entry is retained until the grace period elapses.
	StateOrphaned EntryState = "orphaned"
)

// Entry is the canonical scan-derived record for one scenario identity.
// All fields are owned by the sync path; user annotations live in
// UserMetadata and are never written during a rescan.
type Entry struct {
	Identity    identity.ID
	Path        string
	Root        string
	Kind        scenario.DescriptorKind
	Metadata    scenario.Metadata
	Fingerprint identity.Fingerprint
	FirstSeen   time.Time
	LastSeen    time.Time
	State       EntryState
	OrphanedAt  time.Time // zero unless State == StateOrphaned
}

// UserMetadata holds user-entered annotations for one identity. Created,
// updated, and deleted only by explicit user action, except that purging
// an entry removes its annotations with it.
type UserMetadata struct {
	Identity  identity.ID
	Favorite  bool
	Rating    int // 0 (unrated) through 5
	Notes     string
	Tags      []string
	Completed bool
	PlayTime  time.Duration
	UpdatedAt time.Time
}

// MaxRating is the highest allowed rating value.
const MaxRating = 5

// Delta is the outcome of one reconciliation pass, applied to the store in
// a single transaction.
type Delta struct {
	// Upserts are entries to insert or replace, keyed by identity.
	Upserts []*Entry

	// Purges are identities whose grace period elapsed; their entry rows
	// and user metadata are removed.
	Purges []identity.ID
}

// Empty reports whether the delta changes nothing.
func (d *Delta) Empty() bool {
	return d == nil || (len(d.Upserts) == 0 && len(d.Purges) == 0)
}
