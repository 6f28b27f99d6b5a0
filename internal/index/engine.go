package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanulsoft/scenarium/internal/identity"
	"github.com/hanulsoft/scenarium/internal/scanner"
	"github.com/hanulsoft/scenarium/internal/scenario"
	"github.com/hanulsoft/scenarium/internal/store"
)

// Duplicate resolution policies.
const (
	DuplicatePolicyPath      = "path"
	DuplicatePolicyDiscovery = "discovery"
)

// Config configures the sync engine.
type Config struct {
	Roots           []string
	ExcludePatterns []string
	FollowSymlinks  bool

	// MaxWorkers bounds concurrent parsing. Zero means runtime.NumCPU.
	MaxWorkers int

	// ParseTimeout caps a single package's parse plus identity hash.
	ParseTimeout time.Duration

	// OrphanGracePeriod is how long an orphaned entry survives before it
	// is purged. Zero purges on the next pass.
	OrphanGracePeriod time.Duration

	// DuplicatePolicy picks the canonical path when two packages share an
	// identity: "path" (lexicographic, default) or "discovery" (walk order).
	DuplicatePolicy string

	// OnProgress, when set, is called as packages are discovered and
	// processed. Calls may come from multiple goroutines.
	OnProgress func(Progress)
}

// Engine is the sync engine: it owns reconciliation and is the only writer
// of scan-derived entry state.
type Engine struct {
	scanner  *scanner.Scanner
	resolver *identity.Resolver
	store    *store.Store
	cfg      Config

	running atomic.Bool
	now     func() time.Time
}

// NewEngine creates a sync engine over the given store.
func NewEngine(st *store.Store, cfg Config) *Engine {
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = DuplicatePolicyPath
	}
	return &Engine{
		scanner:  scanner.New(),
		resolver: identity.NewResolver(identity.DefaultCacheSize),
		store:    st,
		cfg:      cfg,
		now:      time.Now,
	}
}

// IsRunning reports whether a rescan is currently in flight.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// scanResult is one processed candidate package, ready for reconciliation.
type scanResult struct {
	seq  int // discovery order, for the discovery duplicate policy
	pkg  *scenario.Package
	id   identity.ID
	meta scenario.Metadata
	fp   identity.Fingerprint
}

// Rescan runs one reconciliation pass and publishes the resulting snapshot.
// Only one pass runs at a time; a concurrent call fails immediately with
// ErrRescanInProgress. Cancellation at any point leaves the previously
// published snapshot untouched.
func (e *Engine) Rescan(ctx context.Context, mode Mode) (*Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRescanInProgress
	}
	defer e.running.Store(false)

	if len(e.cfg.Roots) == 0 {
		return nil, fmt.Errorf("no scan roots configured")
	}

	// A store rebuilt after corruption has no fingerprints to trust.
	if e.store.NeedsFullRescan() {
		slog.Info("index was rebuilt, forcing full rescan")
		mode = ModeFull
	}

	start := e.now()
	snap := e.store.Snapshot()

	results, warnings, err := e.runScan(ctx, mode, snap)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Warnings: warnings}
	delta := e.reconcile(snap, results, report)

	if _, err := e.store.ApplySync(ctx, delta); err != nil {
		return nil, err
	}

	report.Duration = e.now().Sub(start)
	slog.Info("rescan complete",
		slog.String("mode", string(mode)),
		slog.Int("added", report.Added),
		slog.Int("updated", report.Updated),
		slog.Int("moved", report.Moved),
		slog.Int("orphaned", report.Orphaned),
		slog.Int("purged", report.Purged),
		slog.Int("skipped", report.Skipped),
		slog.Int("warnings", len(report.Warnings)),
		slog.Duration("duration", report.Duration))

	return report, nil
}

// runScan walks the roots and processes every candidate in a bounded
// worker pool. Per-package failures become warnings, never errors.
func (e *Engine) runScan(ctx context.Context, mode Mode, snap *store.Snapshot) ([]*scanResult, []Warning, error) {
	ch, err := e.scanner.Scan(ctx, &scanner.Options{
		Roots:           e.cfg.Roots,
		ExcludePatterns: e.cfg.ExcludePatterns,
		FollowSymlinks:  e.cfg.FollowSymlinks,
	})
	if err != nil {
		return nil, nil, err
	}

	workers := e.cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu         sync.Mutex
		results    []*scanResult
		warnings   []Warning
		discovered atomic.Int64
		processed  atomic.Int64
	)

	addWarning := func(w Warning) {
		mu.Lock()
		warnings = append(warnings, w)
		mu.Unlock()
	}
	addResult := func(r *scanResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	progress := func() {
		if e.cfg.OnProgress != nil {
			e.cfg.OnProgress(Progress{
				Discovered: int(discovered.Load()),
				Processed:  int(processed.Load()),
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	seq := 0
	for res := range ch {
		if res.Warning != nil {
			addWarning(Warning{Kind: WarningIO, Path: res.Warning.Path, Err: res.Warning.Err})
			continue
		}

		pkg := res.Package
		n := seq
		seq++
		discovered.Add(1)
		progress()

		g.Go(func() error {
			defer func() {
				processed.Add(1)
				progress()
			}()
			if r, w := e.processPackage(gctx, mode, snap, pkg, n); w != nil {
				addWarning(*w)
			} else if r != nil {
				addResult(r)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, warnings, nil
}

// processPackage fingerprints one candidate and, unless the incremental
// skip applies, parses its descriptor and resolves its identity under the
// per-package timeout.
func (e *Engine) processPackage(ctx context.Context, mode Mode, snap *store.Snapshot, pkg *scenario.Package, seq int) (*scanResult, *Warning) {
	fp, err := identity.QuickFingerprint(pkg)
	if err != nil {
		return nil, &Warning{Kind: WarningIO, Path: pkg.Path, Err: err}
	}

	if mode == ModeIncremental {
		if existing, ok := snap.ByPath(pkg.Path); ok && existing.Fingerprint == fp {
			return &scanResult{
				seq:  seq,
				pkg:  pkg,
				id:   existing.Identity,
				meta: existing.Metadata,
				fp:   fp,
			}, nil
		}
	}

	pctx := ctx
	if e.cfg.ParseTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, e.cfg.ParseTimeout)
		defer cancel()
	}

	meta, err := scenario.ParseDescriptor(pctx, pkg)
	if err != nil {
		return nil, classifyWarning(pkg.Path, err)
	}

	id, err := e.resolver.Resolve(pctx, pkg, fp)
	if err != nil {
		return nil, classifyWarning(pkg.Path, err)
	}

	return &scanResult{
		seq:  seq,
		pkg:  pkg,
		id:   id,
		meta: *meta,
		fp:   fp,
	}, nil
}

func classifyWarning(path string, err error) *Warning {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Warning{Kind: WarningTimeout, Path: path, Err: err}
	case errors.Is(err, context.Canceled):
		// Cancellation is handled by the caller, not reported per package.
		return &Warning{Kind: WarningIO, Path: path, Err: err}
	default:
		var perr *scenario.ParseError
		if errors.As(err, &perr) {
			return &Warning{Kind: WarningParse, Path: path, Err: err}
		}
		return &Warning{Kind: WarningIO, Path: path, Err: err}
	}
}

// reconcile merges scan results into the current snapshot, producing the
// delta for one transactional apply. Runs single-threaded.
func (e *Engine) reconcile(snap *store.Snapshot, results []*scanResult, report *Report) *store.Delta {
	now := e.now()

	// Canonical ordering decides which path wins a duplicate identity.
	if e.cfg.DuplicatePolicy == DuplicatePolicyDiscovery {
		sort.Slice(results, func(i, j int) bool { return results[i].seq < results[j].seq })
	} else {
		sort.Slice(results, func(i, j int) bool { return results[i].pkg.Path < results[j].pkg.Path })
	}

	delta := &store.Delta{}
	seen := make(map[identity.ID]*scanResult, len(results))

	for _, r := range results {
		if first, dup := seen[r.id]; dup {
			report.Warnings = append(report.Warnings, Warning{
				Kind: WarningDuplicate,
				Path: r.pkg.Path,
				Err:  fmt.Errorf("duplicate of %s (identity %s)", first.pkg.Path, r.id),
			})
			continue
		}
		seen[r.id] = r

		existing, known := snap.Get(r.id)
		switch {
		case !known:
			delta.Upserts = append(delta.Upserts, &store.Entry{
				Identity:    r.id,
				Path:        r.pkg.Path,
				Root:        r.pkg.Root,
				Kind:        r.pkg.Kind,
				Metadata:    r.meta,
				Fingerprint: r.fp,
				FirstSeen:   now,
				LastSeen:    now,
				State:       store.StateActive,
			})
			report.Added++

		case existing.Path != r.pkg.Path:
			delta.Upserts = append(delta.Upserts, updatedEntry(existing, r, now))
			report.Moved++

		case existing.State == store.StateActive && existing.Fingerprint == r.fp:
			// Unchanged active entry, whether detected by fingerprint skip
			// or by a full reparse: nothing to write, which keeps repeated
			// rescans byte-identical.
			report.Skipped++

		default:
			delta.Upserts = append(delta.Upserts, updatedEntry(existing, r, now))
			report.Updated++
		}
	}

	// Anything previously indexed and not seen this pass is orphaned or,
	// once the grace period has elapsed, purged.
	for _, existing := range snap.Entries() {
		if _, ok := seen[existing.Identity]; ok {
			continue
		}

		switch existing.State {
		case store.StateActive:
			orphaned := *existing
			orphaned.State = store.StateOrphaned
			orphaned.OrphanedAt = now
			delta.Upserts = append(delta.Upserts, &orphaned)
			report.Orphaned++

		case store.StateOrphaned:
			if now.Sub(existing.OrphanedAt) >= e.cfg.OrphanGracePeriod {
				delta.Purges = append(delta.Purges, existing.Identity)
				report.Purged++
			}
		}
	}

	return delta
}

// updatedEntry carries scan-derived fields from a result onto an existing
// entry, preserving FirstSeen. User metadata is untouched by construction:
// it lives in a separate table keyed by the same identity.
func updatedEntry(existing *store.Entry, r *scanResult, now time.Time) *store.Entry {
	return &store.Entry{
		Identity:    r.id,
		Path:        r.pkg.Path,
		Root:        r.pkg.Root,
		Kind:        r.pkg.Kind,
		Metadata:    r.meta,
		Fingerprint: r.fp,
		FirstSeen:   existing.FirstSeen,
		LastSeen:    now,
		State:       store.StateActive,
	}
}
