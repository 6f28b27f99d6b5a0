// Package query answers structured search requests over published index
// snapshots. A query binds one snapshot for its entire execution and never
// touches the filesystem, so results are reproducible and rescans running
// in the background are invisible to it.
package query

import (
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	scerrors "github.com/hanulsoft/scenarium/internal/errors"
	"github.com/hanulsoft/scenarium/internal/identity"
	"github.com/hanulsoft/scenarium/internal/store"
)

// Sort keys.
const (
	SortRelevance = "relevance"
	SortTitle     = "title"
	SortAuthor    = "author"
	SortModified  = "modified"
	SortRating    = "rating"
)

// Request is one structured search query.
type Request struct {
	// Text is matched case-insensitively against title, author, and
	// synopsis. Empty means "match everything".
	Text string

	// Tags must all be present on a result, whether scan-derived or
	// user-assigned. Matched case-insensitively.
	Tags []string

	// FavoriteOnly keeps only entries the user marked as favorites.
	FavoriteOnly bool

	// MinLevel/MaxLevel keep entries whose declared difficulty range
	// overlaps [MinLevel, MaxLevel]. Zero means unbounded on that side.
	MinLevel int
	MaxLevel int

	// Completed filters on the user's completion flag when non-nil.
	Completed *bool

	// MinRating keeps entries the user rated at least this high.
	MinRating int

	// IncludeOrphaned also returns entries whose files have gone missing
	// but are still within the orphan grace period.
	IncludeOrphaned bool

	// Sort selects the ordering. Empty means relevance when Text is set,
	// title otherwise.
	Sort string

	// Limit and Offset page through results. Limit zero means no limit.
	Limit  int
	Offset int
}

// Validate checks the request for coherent values.
func (r *Request) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Sort, validation.In("", SortRelevance, SortTitle, SortAuthor, SortModified, SortRating)),
		validation.Field(&r.MinRating, validation.Min(0), validation.Max(store.MaxRating)),
		validation.Field(&r.MinLevel, validation.Min(0)),
		validation.Field(&r.MaxLevel, validation.Min(0)),
		validation.Field(&r.Limit, validation.Min(0)),
		validation.Field(&r.Offset, validation.Min(0)),
	)
	if err != nil {
		return scerrors.New(scerrors.ErrCodeInvalidQuery, "invalid query", err)
	}
	if r.MinLevel > 0 && r.MaxLevel > 0 && r.MinLevel > r.MaxLevel {
		return scerrors.New(scerrors.ErrCodeInvalidQuery, "min level exceeds max level", nil)
	}
	return nil
}

// Result is one matched entry merged with its user metadata. User is nil
// when the user never annotated the scenario.
type Result struct {
	Entry *store.Entry
	User  *store.UserMetadata
	Score float64
}

// Response is an ordered result page plus the total match count before
// paging.
type Response struct {
	Results []Result
	Total   int
}

// Engine executes queries against the store's published snapshots.
type Engine struct {
	store *store.Store
}

// NewEngine creates a query engine over the store.
func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st}
}

// Search runs one query against the latest published snapshot.
func (e *Engine) Search(req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Text queries bind the snapshot and the scores in one step so both
	// reflect the same index version even while a rescan is applying.
	var snap *store.Snapshot
	var scores map[identity.ID]float64
	if strings.TrimSpace(req.Text) != "" {
		bound, hits, err := e.store.SearchText(req.Text, 0)
		if err != nil {
			return nil, err
		}
		snap = bound
		scores = make(map[identity.ID]float64, len(hits))
		for _, h := range hits {
			scores[h.ID] = h.Score
		}
	} else {
		snap = e.store.Snapshot()
	}

	results := collect(snap, req, scores)
	sortResults(results, effectiveSort(req))

	total := len(results)
	results = page(results, req.Offset, req.Limit)

	return &Response{Results: results, Total: total}, nil
}

// collect walks the snapshot in identity order and keeps entries passing
// every filter.
func collect(snap *store.Snapshot, req *Request, scores map[identity.ID]float64) []Result {
	tags := normalizeTags(req.Tags)

	var results []Result
	for _, e := range snap.Entries() {
		if e.State == store.StateOrphaned && !req.IncludeOrphaned {
			continue
		}

		var score float64
		if scores != nil {
			s, hit := scores[e.Identity]
			if !hit {
				continue
			}
			score = s
		}

		um, _ := snap.User(e.Identity)
		if !matchesFilters(e, um, req, tags) {
			continue
		}

		results = append(results, Result{Entry: e, User: um, Score: score})
	}
	return results
}

func matchesFilters(e *store.Entry, um *store.UserMetadata, req *Request, tags []string) bool {
	if req.FavoriteOnly && (um == nil || !um.Favorite) {
		return false
	}
	if req.Completed != nil {
		completed := um != nil && um.Completed
		if completed != *req.Completed {
			return false
		}
	}
	if req.MinRating > 0 && (um == nil || um.Rating < req.MinRating) {
		return false
	}

	// The declared difficulty range must overlap the requested one. An
	// entry that declares no levels (both zero) passes only an unbounded
	// request.
	if req.MinLevel > 0 && e.Metadata.LevelMax < req.MinLevel {
		return false
	}
	if req.MaxLevel > 0 && e.Metadata.LevelMin > req.MaxLevel {
		return false
	}

	if len(tags) > 0 {
		have := entryTags(e, um)
		for _, want := range tags {
			if _, ok := have[want]; !ok {
				return false
			}
		}
	}
	return true
}

func entryTags(e *store.Entry, um *store.UserMetadata) map[string]struct{} {
	have := make(map[string]struct{}, len(e.Metadata.Tags))
	for _, tag := range e.Metadata.Tags {
		have[strings.ToLower(tag)] = struct{}{}
	}
	if um != nil {
		for _, tag := range um.Tags {
			have[strings.ToLower(tag)] = struct{}{}
		}
	}
	return have
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func effectiveSort(req *Request) string {
	if req.Sort != "" {
		return req.Sort
	}
	if strings.TrimSpace(req.Text) != "" {
		return SortRelevance
	}
	return SortTitle
}

// sortResults orders results by the chosen key. Every ordering falls back
// to ascending identity so a fixed snapshot always yields the same order.
func sortResults(results []Result, key string) {
	less := func(a, b Result) bool { return a.Entry.Identity < b.Entry.Identity }

	switch key {
	case SortRelevance:
		less = func(a, b Result) bool {
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.Entry.Identity < b.Entry.Identity
		}
	case SortTitle:
		less = func(a, b Result) bool {
			at, bt := strings.ToLower(a.Entry.Metadata.Title), strings.ToLower(b.Entry.Metadata.Title)
			if at != bt {
				return at < bt
			}
			return a.Entry.Identity < b.Entry.Identity
		}
	case SortAuthor:
		less = func(a, b Result) bool {
			aa, ba := strings.ToLower(a.Entry.Metadata.Author), strings.ToLower(b.Entry.Metadata.Author)
			if aa != ba {
				return aa < ba
			}
			return a.Entry.Identity < b.Entry.Identity
		}
	case SortModified:
		less = func(a, b Result) bool {
			am, bm := a.Entry.Fingerprint.DescriptorModTime, b.Entry.Fingerprint.DescriptorModTime
			if am != bm {
				return am > bm
			}
			return a.Entry.Identity < b.Entry.Identity
		}
	case SortRating:
		less = func(a, b Result) bool {
			ar, br := 0, 0
			if a.User != nil {
				ar = a.User.Rating
			}
			if b.User != nil {
				br = b.User.Rating
			}
			if ar != br {
				return ar > br
			}
			return a.Entry.Identity < b.Entry.Identity
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return less(results[i], results[j]) })
}

func page(results []Result, offset, limit int) []Result {
	if offset >= len(results) {
		return []Result{}
	}
	results = results[offset:]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
