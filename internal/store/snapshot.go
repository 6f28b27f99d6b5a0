package store

import (
	"sort"
	"time"

	"github.com/hanulsoft/scenarium/internal/identity"
)

// Snapshot is an immutable view of the whole index. Readers hold one
// snapshot for the duration of a query; writers publish a new snapshot by
// atomic pointer swap and never mutate a published one.
type Snapshot struct {
	// Version increases by one per published snapshot.
	Version uint64
	TakenAt time.Time

	entries map[identity.ID]*Entry
	user    map[identity.ID]*UserMetadata
	byPath  map[string]identity.ID
	byTag   map[string][]identity.ID

	// ordered is every identity sorted lexicographically.
	ordered []identity.ID
}

// newSnapshot builds the derived structures for a published snapshot. The
// entries and user maps are owned by the snapshot after this call.
func newSnapshot(version uint64, entries map[identity.ID]*Entry, user map[identity.ID]*UserMetadata) *Snapshot {
	s := &Snapshot{
		Version: version,
		TakenAt: time.Now(),
		entries: entries,
		user:    user,
		byPath:  make(map[string]identity.ID, len(entries)),
		byTag:   make(map[string][]identity.ID),
	}

	s.ordered = make([]identity.ID, 0, len(entries))
	for id := range entries {
		s.ordered = append(s.ordered, id)
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i] < s.ordered[j] })

	for _, id := range s.ordered {
		e := entries[id]
		s.byPath[e.Path] = id

		for _, tag := range e.Metadata.Tags {
			s.byTag[tag] = append(s.byTag[tag], id)
		}
		if um, ok := user[id]; ok {
			for _, tag := range um.Tags {
				s.byTag[tag] = append(s.byTag[tag], id)
			}
		}
	}

	for tag := range s.byTag {
		s.byTag[tag] = dedupeSorted(s.byTag[tag])
	}

	return s
}

func dedupeSorted(ids []identity.ID) []identity.ID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	var prev identity.ID
	for i, id := range ids {
		if i == 0 || id != prev {
			out = append(out, id)
		}
		prev = id
	}
	return out
}

// Get returns the entry for an identity.
func (s *Snapshot) Get(id identity.ID) (*Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// ByPath returns the entry currently indexed at path.
func (s *Snapshot) ByPath(path string) (*Entry, bool) {
	id, ok := s.byPath[path]
	if !ok {
		return nil, false
	}
	return s.entries[id], true
}

// User returns the user metadata for an identity, if any exists.
func (s *Snapshot) User(id identity.ID) (*UserMetadata, bool) {
	um, ok := s.user[id]
	return um, ok
}

// Entries returns all entries in identity order.
func (s *Snapshot) Entries() []*Entry {
	out := make([]*Entry, len(s.ordered))
	for i, id := range s.ordered {
		out[i] = s.entries[id]
	}
	return out
}

// WithTag returns the identities carrying tag, from either scan-derived or
// user tags, in identity order.
func (s *Snapshot) WithTag(tag string) []identity.ID {
	return s.byTag[tag]
}

// Len reports the total number of entries, orphaned included.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// ActiveLen reports the number of entries in the active state.
func (s *Snapshot) ActiveLen() int {
	n := 0
	for _, e := range s.entries {
		if e.State == StateActive {
			n++
		}
	}
	return n
}
