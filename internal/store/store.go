package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	scerrors "github.com/hanulsoft/scenarium/internal/errors"
	"github.com/hanulsoft/scenarium/internal/identity"
)

// lockFileName guards the data directory against a second process.
const lockFileName = ".scenarium.lock"

// Options configures opening a store.
type Options struct {
	// DataDir holds the database and lock file.
	DataDir string

	// TextBackend selects the search index implementation: "memory"
	// (default) or "bleve".
	TextBackend string

	// ReadOnly opens the store for queries only: no directory lock is
	// taken and all write operations fail, so queries keep working while
	// another process holds the write lock for a rescan.
	ReadOnly bool
}

// Store owns the durable index and the published snapshot. All writes are
// serialized on one mutex; reads take the current snapshot with an atomic
// load and never block.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	lock *flock.Flock
	text TextIndex

	snap     atomic.Pointer[Snapshot]
	version  uint64
	readOnly bool

	// needsFullRescan is set when the database had to be rebuilt after
	// corruption; the next sync should ignore fingerprints.
	needsFullRescan bool
}

// Open acquires the data directory lock, opens or rebuilds the database,
// loads all rows, and publishes the initial snapshot.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.ReadOnly {
		return openReadOnly(ctx, opts)
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", opts.DataDir, err)
	}

	lock := flock.New(filepath.Join(opts.DataDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !locked {
		return nil, scerrors.New(scerrors.ErrCodeIndexLocked,
			fmt.Sprintf("data directory %s is in use by another scenarium process", opts.DataDir), nil)
	}

	db, rebuilt, err := openDB(opts.DataDir)
	if err != nil {
		_ = lock.Unlock()
		return nil, scerrors.New(scerrors.ErrCodeIndexCorrupt, "cannot open index database", err)
	}

	entries, user, err := loadAll(ctx, db)
	if err != nil {
		_ = lock.Unlock()
		_ = db.Close()
		return nil, scerrors.New(scerrors.ErrCodeIndexCorrupt, "cannot load index", err)
	}

	text, err := NewTextIndex(opts.TextBackend, opts.DataDir)
	if err != nil {
		_ = lock.Unlock()
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:              db,
		lock:            lock,
		text:            text,
		needsFullRescan: rebuilt,
	}

	snap := newSnapshot(1, entries, user)
	s.version = 1
	s.snap.Store(snap)

	if err := s.reindexText(snap); err != nil {
		_ = s.Close()
		return nil, err
	}

	slog.Info("index opened",
		slog.Int("entries", snap.Len()),
		slog.Bool("rebuilt", rebuilt))

	return s, nil
}

// openReadOnly serves queries without contending for the write lock.
// SQLite's WAL mode allows any number of readers alongside one writer. The
// text index is always rebuilt in memory from the loaded rows; the bleve
// directory, if any, belongs to the writer.
func openReadOnly(ctx context.Context, opts Options) (*Store, error) {
	entries := map[identity.ID]*Entry{}
	user := map[identity.ID]*UserMetadata{}

	var db *sql.DB
	path := filepath.Join(opts.DataDir, dbFileName)
	if _, statErr := os.Stat(path); statErr == nil {
		var err error
		db, err = openDBReadOnly(opts.DataDir)
		if err != nil {
			return nil, scerrors.New(scerrors.ErrCodeIndexCorrupt, "cannot open index database", err)
		}
		entries, user, err = loadAll(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, scerrors.New(scerrors.ErrCodeIndexCorrupt, "cannot load index", err)
		}
	} else if !os.IsNotExist(statErr) {
		return nil, fmt.Errorf("stat index database: %w", statErr)
	}

	text, err := NewTextIndex(TextBackendMemory, opts.DataDir)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	s := &Store{
		db:       db,
		text:     text,
		readOnly: true,
	}

	snap := newSnapshot(1, entries, user)
	s.version = 1
	s.snap.Store(snap)

	if err := s.reindexText(snap); err != nil {
		_ = s.Close()
		return nil, err
	}

	slog.Info("index opened read-only", slog.Int("entries", snap.Len()))
	return s, nil
}

// Close releases the text index, lock, and database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.text != nil {
		if err := s.text.Close(); err != nil {
			firstErr = err
		}
		s.text = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.lock = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.db = nil
	}
	return firstErr
}

// Snapshot returns the currently published snapshot. Never nil after Open.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// SearchText runs a text search and binds it to a snapshot as one unit.
// The snapshot and text index are mutated together under the write mutex,
// so the returned pair always reflects a single index version; a rescan
// landing between the two reads cannot skew them apart.
func (s *Store) SearchText(query string, limit int) (*Snapshot, []TextHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snap.Load()
	hits, err := s.text.Search(query, limit)
	if err != nil {
		return nil, nil, err
	}
	return snap, hits, nil
}

// NeedsFullRescan reports whether the database was rebuilt after corruption
// and consumes the flag.
func (s *Store) NeedsFullRescan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	needs := s.needsFullRescan
	s.needsFullRescan = false
	return needs
}

// ApplySync persists a reconciliation delta and publishes a new snapshot.
// Only scan-derived entry fields are written; user metadata rows are
// untouched except for cascading purges.
func (s *Store) ApplySync(ctx context.Context, delta *Delta) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return nil, errReadOnly()
	}

	prev := s.snap.Load()
	if delta.Empty() {
		return prev, nil
	}

	if err := persistDelta(ctx, s.db, delta); err != nil {
		return nil, err
	}

	entries := make(map[identity.ID]*Entry, len(prev.entries)+len(delta.Upserts))
	for id, e := range prev.entries {
		entries[id] = e
	}
	for _, e := range delta.Upserts {
		entries[e.Identity] = e
	}

	purged := make(map[identity.ID]struct{}, len(delta.Purges))
	for _, id := range delta.Purges {
		delete(entries, id)
		purged[id] = struct{}{}
	}

	user := prev.user
	if len(purged) > 0 {
		user = make(map[identity.ID]*UserMetadata, len(prev.user))
		for id, um := range prev.user {
			if _, gone := purged[id]; !gone {
				user[id] = um
			}
		}
	}

	s.version++
	snap := newSnapshot(s.version, entries, user)
	s.snap.Store(snap)

	if err := s.updateText(delta); err != nil {
		// The durable state is already committed; a text index failure
		// degrades search until the next rescan rebuilds it.
		slog.Warn("text index update failed", slog.String("error", err.Error()))
	}

	return snap, nil
}

// SetUserMetadata applies a user edit to the annotations for id. The mutate
// callback receives the current record (zero-valued if none exists) and
// edits it in place. Serialized with ApplySync so a concurrent rescan can
// never lose the edit.
func (s *Store) SetUserMetadata(ctx context.Context, id identity.ID, mutate func(*UserMetadata)) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return nil, errReadOnly()
	}

	prev := s.snap.Load()
	if _, ok := prev.entries[id]; !ok {
		return nil, scerrors.New(scerrors.ErrCodeUnknownIdentity,
			fmt.Sprintf("no indexed scenario with identity %s", id), nil)
	}

	um := &UserMetadata{Identity: id}
	if existing, ok := prev.user[id]; ok {
		cp := *existing
		cp.Tags = append([]string(nil), existing.Tags...)
		um = &cp
	}

	mutate(um)
	um.Identity = id
	um.UpdatedAt = time.Now()

	if um.Rating < 0 || um.Rating > MaxRating {
		return nil, scerrors.New(scerrors.ErrCodeInvalidInput,
			fmt.Sprintf("rating must be between 0 and %d", MaxRating), nil)
	}

	if err := persistUserMetadata(ctx, s.db, um); err != nil {
		return nil, err
	}

	user := make(map[identity.ID]*UserMetadata, len(prev.user)+1)
	for k, v := range prev.user {
		user[k] = v
	}
	user[id] = um

	s.version++
	snap := newSnapshot(s.version, prev.entries, user)
	s.snap.Store(snap)
	return snap, nil
}

// DeleteUserMetadata removes all annotations for id.
func (s *Store) DeleteUserMetadata(ctx context.Context, id identity.ID) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return nil, errReadOnly()
	}

	prev := s.snap.Load()
	if _, ok := prev.user[id]; !ok {
		return prev, nil
	}

	if err := deleteUserMetadata(ctx, s.db, id); err != nil {
		return nil, err
	}

	user := make(map[identity.ID]*UserMetadata, len(prev.user))
	for k, v := range prev.user {
		if k != id {
			user[k] = v
		}
	}

	s.version++
	snap := newSnapshot(s.version, prev.entries, user)
	s.snap.Store(snap)
	return snap, nil
}

func errReadOnly() error {
	return scerrors.New(scerrors.ErrCodeIndexReadOnly, "index is open read-only", nil)
}

// reindexText rebuilds the text index from a snapshot.
func (s *Store) reindexText(snap *Snapshot) error {
	docs := make([]TextDoc, 0, snap.Len())
	for _, e := range snap.Entries() {
		docs = append(docs, textDocFromEntry(e))
	}
	if err := s.text.Reset(); err != nil {
		return err
	}
	return s.text.Upsert(docs)
}

// updateText applies a delta incrementally to the text index.
func (s *Store) updateText(delta *Delta) error {
	docs := make([]TextDoc, 0, len(delta.Upserts))
	for _, e := range delta.Upserts {
		docs = append(docs, textDocFromEntry(e))
	}
	if err := s.text.Upsert(docs); err != nil {
		return err
	}
	return s.text.Delete(delta.Purges)
}

func textDocFromEntry(e *Entry) TextDoc {
	return TextDoc{
		ID:       e.Identity,
		Title:    e.Metadata.Title,
		Author:   e.Metadata.Author,
		Synopsis: e.Metadata.Synopsis,
	}
}
