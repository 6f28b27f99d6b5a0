package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no cgo

	"github.com/hanulsoft/scenarium/internal/identity"
	"github.com/hanulsoft/scenarium/internal/scenario"
)

// schemaVersion is bumped on incompatible schema changes. A database with a
// newer version than this binary understands is treated like corruption:
// moved aside and rebuilt from a full rescan.
const schemaVersion = 1

// dbFileName is the index database inside the data directory.
const dbFileName = "index.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		identity      TEXT PRIMARY KEY,
		path          TEXT NOT NULL,
		root          TEXT NOT NULL,
		kind          TEXT NOT NULL,
		title         TEXT NOT NULL,
		author        TEXT NOT NULL,
		synopsis      TEXT NOT NULL,
		level_min     INTEGER NOT NULL,
		level_max     INTEGER NOT NULL,
		tags          TEXT NOT NULL,
		revision      TEXT NOT NULL,
		language      TEXT NOT NULL,
		coupon_number INTEGER NOT NULL,
		coupon_names  TEXT NOT NULL,
		fingerprint   TEXT NOT NULL,
		first_seen    INTEGER NOT NULL,
		last_seen     INTEGER NOT NULL,
		state         TEXT NOT NULL,
		orphaned_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_path ON entries(path)`,
	`CREATE TABLE IF NOT EXISTS user_metadata (
		identity          TEXT PRIMARY KEY,
		favorite          INTEGER NOT NULL DEFAULT 0,
		rating            INTEGER NOT NULL DEFAULT 0,
		notes             TEXT NOT NULL DEFAULT '',
		tags              TEXT NOT NULL DEFAULT '[]',
		completed         INTEGER NOT NULL DEFAULT 0,
		play_time_seconds INTEGER NOT NULL DEFAULT 0,
		updated_at        INTEGER NOT NULL
	)`,
}

// validateIntegrity checks an existing database before opening it for real.
// A missing file is fine; a failing integrity check or an unreadable schema
// version is reported as corruption.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
	                   WHERE type='table' AND name='state'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		// Fresh or pre-schema database; openDB migrates it.
		return nil
	}

	var version string
	err = db.QueryRow(`SELECT value FROM state WHERE key = 'schema_version'`).Scan(&version)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read schema version: %w", err)
	}
	v, err := strconv.Atoi(version)
	if err != nil || v > schemaVersion {
		return fmt.Errorf("unsupported schema version %q", version)
	}
	return nil
}

// openDB opens (or creates) the index database with WAL mode and a
// single-writer pool, recovering from corruption by moving the bad file
// aside. The bool result reports whether a full rescan is needed because
// the database had to be rebuilt.
func openDB(dataDir string) (*sql.DB, bool, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	path := filepath.Join(dataDir, dbFileName)
	rebuilt := false

	if validErr := validateIntegrity(path); validErr != nil {
		slog.Warn("index database corrupted, rebuilding",
			slog.String("path", path),
			slog.String("error", validErr.Error()))

		quarantine := path + ".corrupt." + time.Now().UTC().Format("20060102T150405")
		if err := os.Rename(path, quarantine); err != nil && !os.IsNotExist(err) {
			return nil, false, fmt.Errorf("index corrupted at %s and cannot move aside: %w (original error: %v)", path, err, validErr)
		}
		_ = os.Remove(path + "-wal")
		_ = os.Remove(path + "-shm")
		rebuilt = true

		slog.Info("corrupt index moved aside",
			slog.String("quarantine", quarantine))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, false, fmt.Errorf("open database: %w", err)
	}

	// Single writer prevents lock contention with the modernc driver.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA with modernc.org/sqlite; DSN params are
	// not reliably honored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, false, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, false, err
	}

	return db, rebuilt, nil
}

// openDBReadOnly opens the index database for queries only: no quarantine,
// no schema migration. WAL mode lets this coexist with one writer process.
func openDBReadOnly(dataDir string) (*sql.DB, error) {
	path := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database read-only: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragma: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	_, err := db.Exec(
		`INSERT INTO state (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(schemaVersion))
	if err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// loadAll reads every entry and user metadata row into memory for the
// initial snapshot.
func loadAll(ctx context.Context, db *sql.DB) (map[identity.ID]*Entry, map[identity.ID]*UserMetadata, error) {
	entries := make(map[identity.ID]*Entry)
	rows, err := db.QueryContext(ctx, `SELECT identity, path, root, kind, title, author,
		synopsis, level_min, level_max, tags, revision, language, coupon_number,
		coupon_names, fingerprint, first_seen, last_seen, state, orphaned_at
		FROM entries`)
	if err != nil {
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, nil, err
		}
		entries[e.Identity] = e
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}

	user := make(map[identity.ID]*UserMetadata)
	urows, err := db.QueryContext(ctx, `SELECT identity, favorite, rating, notes, tags,
		completed, play_time_seconds, updated_at FROM user_metadata`)
	if err != nil {
		return nil, nil, fmt.Errorf("load user metadata: %w", err)
	}
	defer urows.Close()

	for urows.Next() {
		um, err := scanUserMetadata(urows)
		if err != nil {
			return nil, nil, err
		}
		user[um.Identity] = um
	}
	if err := urows.Err(); err != nil {
		return nil, nil, fmt.Errorf("load user metadata: %w", err)
	}

	return entries, user, nil
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		e                   Entry
		id, kind, state     string
		tagsJSON, namesJSON string
		fingerprint         string
		firstSeen, lastSeen int64
		orphanedAt          int64
	)
	err := rows.Scan(&id, &e.Path, &e.Root, &kind, &e.Metadata.Title, &e.Metadata.Author,
		&e.Metadata.Synopsis, &e.Metadata.LevelMin, &e.Metadata.LevelMax, &tagsJSON,
		&e.Metadata.Revision, &e.Metadata.Language, &e.Metadata.Coupons.Number,
		&namesJSON, &fingerprint, &firstSeen, &lastSeen, &state, &orphanedAt)
	if err != nil {
		return nil, fmt.Errorf("scan entry row: %w", err)
	}

	e.Identity = identity.ID(id)
	e.Kind = scenario.DescriptorKind(kind)
	e.State = EntryState(state)
	e.FirstSeen = time.Unix(0, firstSeen)
	e.LastSeen = time.Unix(0, lastSeen)
	if orphanedAt != 0 {
		e.OrphanedAt = time.Unix(0, orphanedAt)
	}

	if e.Fingerprint, err = identity.ParseFingerprint(fingerprint); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Metadata.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(namesJSON), &e.Metadata.Coupons.Names); err != nil {
		return nil, fmt.Errorf("decode coupon names for %s: %w", id, err)
	}
	return &e, nil
}

func scanUserMetadata(rows *sql.Rows) (*UserMetadata, error) {
	var (
		um        UserMetadata
		id        string
		tagsJSON  string
		playSecs  int64
		updatedAt int64
	)
	err := rows.Scan(&id, &um.Favorite, &um.Rating, &um.Notes, &tagsJSON,
		&um.Completed, &playSecs, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan user metadata row: %w", err)
	}

	um.Identity = identity.ID(id)
	um.PlayTime = time.Duration(playSecs) * time.Second
	um.UpdatedAt = time.Unix(0, updatedAt)
	if err := json.Unmarshal([]byte(tagsJSON), &um.Tags); err != nil {
		return nil, fmt.Errorf("decode user tags for %s: %w", id, err)
	}
	return &um, nil
}

// persistDelta writes one reconciliation delta in a single transaction.
func persistDelta(ctx context.Context, db *sql.DB, delta *Delta) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range delta.Upserts {
		if err := upsertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	for _, id := range delta.Purges {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE identity = ?`, string(id)); err != nil {
			return fmt.Errorf("purge entry %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_metadata WHERE identity = ?`, string(id)); err != nil {
			return fmt.Errorf("purge user metadata %s: %w", id, err)
		}
	}

	return tx.Commit()
}

func upsertEntry(ctx context.Context, tx *sql.Tx, e *Entry) error {
	tags, err := json.Marshal(emptyIfNil(e.Metadata.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	names, err := json.Marshal(emptyIfNil(e.Metadata.Coupons.Names))
	if err != nil {
		return fmt.Errorf("encode coupon names: %w", err)
	}

	var orphanedAt int64
	if !e.OrphanedAt.IsZero() {
		orphanedAt = e.OrphanedAt.UnixNano()
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO entries (identity, path, root, kind,
		title, author, synopsis, level_min, level_max, tags, revision, language,
		coupon_number, coupon_names, fingerprint, first_seen, last_seen, state, orphaned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			path = excluded.path, root = excluded.root, kind = excluded.kind,
			title = excluded.title, author = excluded.author, synopsis = excluded.synopsis,
			level_min = excluded.level_min, level_max = excluded.level_max,
			tags = excluded.tags, revision = excluded.revision, language = excluded.language,
			coupon_number = excluded.coupon_number, coupon_names = excluded.coupon_names,
			fingerprint = excluded.fingerprint, last_seen = excluded.last_seen,
			state = excluded.state, orphaned_at = excluded.orphaned_at`,
		string(e.Identity), e.Path, e.Root, string(e.Kind),
		e.Metadata.Title, e.Metadata.Author, e.Metadata.Synopsis,
		e.Metadata.LevelMin, e.Metadata.LevelMax, string(tags),
		e.Metadata.Revision, e.Metadata.Language,
		e.Metadata.Coupons.Number, string(names), e.Fingerprint.String(),
		e.FirstSeen.UnixNano(), e.LastSeen.UnixNano(), string(e.State), orphanedAt)
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", e.Identity, err)
	}
	return nil
}

// persistUserMetadata writes one user metadata record.
func persistUserMetadata(ctx context.Context, db *sql.DB, um *UserMetadata) error {
	tags, err := json.Marshal(emptyIfNil(um.Tags))
	if err != nil {
		return fmt.Errorf("encode user tags: %w", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO user_metadata (identity, favorite,
		rating, notes, tags, completed, play_time_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			favorite = excluded.favorite, rating = excluded.rating,
			notes = excluded.notes, tags = excluded.tags,
			completed = excluded.completed,
			play_time_seconds = excluded.play_time_seconds,
			updated_at = excluded.updated_at`,
		string(um.Identity), um.Favorite, um.Rating, um.Notes, string(tags),
		um.Completed, int64(um.PlayTime/time.Second), um.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("persist user metadata %s: %w", um.Identity, err)
	}
	return nil
}

// deleteUserMetadata removes a user metadata record.
func deleteUserMetadata(ctx context.Context, db *sql.DB, id identity.ID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM user_metadata WHERE identity = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete user metadata %s: %w", id, err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
