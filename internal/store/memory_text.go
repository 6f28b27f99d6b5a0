package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/hanulsoft/scenarium/internal/identity"
)

// Field weights for the deterministic scorer. A title hit outranks an
// author hit, which outranks a synopsis hit.
const (
	titleWeight    = 3.0
	authorWeight   = 2.0
	synopsisWeight = 1.0

	// exactTitleBoost and prefixTitleBoost lift whole-title and
	// title-prefix matches above ordinary token hits.
	exactTitleBoost  = 10.0
	prefixTitleBoost = 5.0

	// substringFactor discounts substring hits relative to whole-token
	// hits in the same field.
	substringFactor = 0.5
)

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

type memDoc struct {
	id            identity.ID
	titleLower    string
	authorLower   string
	synopsisLower string
	titleTokens   map[string]struct{}
	authorTokens  map[string]struct{}
	synopsisToks  map[string]struct{}
}

// MemoryTextIndex is the default text backend: an in-memory field-weighted
// scorer with fully deterministic scores and ordering. It holds every doc's
// lowercased text, so the same index state and query always return the same
// ranked list regardless of insertion order.
type MemoryTextIndex struct {
	mu      sync.RWMutex
	docs    map[identity.ID]*memDoc
	ordered []identity.ID // sorted; rebuilt lazily
	dirty   bool
}

// NewMemoryTextIndex creates an empty in-memory text index.
func NewMemoryTextIndex() *MemoryTextIndex {
	return &MemoryTextIndex{docs: make(map[identity.ID]*memDoc)}
}

// Upsert adds or replaces documents.
func (m *MemoryTextIndex) Upsert(docs []TextDoc) error {
	if len(docs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.docs[d.ID] = &memDoc{
			id:            d.ID,
			titleLower:    strings.ToLower(d.Title),
			authorLower:   strings.ToLower(d.Author),
			synopsisLower: strings.ToLower(d.Synopsis),
			titleTokens:   tokenSet(d.Title),
			authorTokens:  tokenSet(d.Author),
			synopsisToks:  tokenSet(d.Synopsis),
		}
	}
	m.dirty = true
	return nil
}

// Delete removes documents by identity. Unknown identities are ignored.
func (m *MemoryTextIndex) Delete(ids []identity.ID) error {
	if len(ids) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.docs, id)
	}
	m.dirty = true
	return nil
}

// Reset drops all documents.
func (m *MemoryTextIndex) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[identity.ID]*memDoc)
	m.ordered = nil
	m.dirty = false
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryTextIndex) Close() error {
	return nil
}

// Search scores all documents against query. Hits are sorted by descending
// score, ties broken by ascending identity. An empty query matches nothing.
func (m *MemoryTextIndex) Search(query string, limit int) ([]TextHit, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []TextHit{}, nil
	}
	qTokens := Tokenize(q)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dirty {
		m.ordered = m.ordered[:0]
		for id := range m.docs {
			m.ordered = append(m.ordered, id)
		}
		sort.Slice(m.ordered, func(i, j int) bool { return m.ordered[i] < m.ordered[j] })
		m.dirty = false
	}

	hits := make([]TextHit, 0, 16)
	for _, id := range m.ordered {
		doc := m.docs[id]
		if score := scoreDoc(doc, q, qTokens); score > 0 {
			hits = append(hits, TextHit{ID: id, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// scoreDoc computes the deterministic relevance of one document.
func scoreDoc(doc *memDoc, q string, qTokens []string) float64 {
	score := fieldScore(q, qTokens, doc.titleLower, doc.titleTokens, titleWeight)
	score += fieldScore(q, qTokens, doc.authorLower, doc.authorTokens, authorWeight)
	score += fieldScore(q, qTokens, doc.synopsisLower, doc.synopsisToks, synopsisWeight)

	if score > 0 {
		if doc.titleLower == q {
			score += exactTitleBoost
		} else if strings.HasPrefix(doc.titleLower, q) {
			score += prefixTitleBoost
		}
	}
	return score
}

func fieldScore(q string, qTokens []string, fieldLower string, fieldTokens map[string]struct{}, weight float64) float64 {
	if fieldLower == "" {
		return 0
	}

	score := 0.0
	matched := false
	for _, tok := range qTokens {
		if _, ok := fieldTokens[tok]; ok {
			score += weight
			matched = true
		}
	}

	// Substring fallback catches partial words the tokenizer misses.
	if !matched && strings.Contains(fieldLower, q) {
		score += weight * substringFactor
	}
	return score
}
