package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanulsoft/scenarium/internal/identity"
)

func memIndexWith(t *testing.T, docs ...TextDoc) *MemoryTextIndex {
	t.Helper()
	idx := NewMemoryTextIndex()
	require.NoError(t, idx.Upsert(docs))
	return idx
}

func hitIDs(hits []TextHit) []identity.ID {
	ids := make([]identity.ID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func TestMemorySearchFieldWeighting(t *testing.T) {
	idx := memIndexWith(t,
		TextDoc{ID: "cc", Title: "Dawn Patrol", Author: "someone", Synopsis: "a story"},
		TextDoc{ID: "bb", Title: "Other", Author: "Dawn", Synopsis: "unrelated"},
		TextDoc{ID: "aa", Title: "Third", Author: "someone", Synopsis: "set at dawn"},
		TextDoc{ID: "dd", Title: "No Match", Author: "nobody", Synopsis: "nothing"},
	)

	hits, err := idx.Search("dawn", 0)
	require.NoError(t, err)

	// Title match ranks above author match ranks above synopsis match.
	assert.Equal(t, []identity.ID{"cc", "bb", "aa"}, hitIDs(hits))
}

func TestMemorySearchExactAndPrefixTitleBoost(t *testing.T) {
	idx := memIndexWith(t,
		TextDoc{ID: "aa", Title: "Dawn of War"},
		TextDoc{ID: "bb", Title: "Dawn"},
		TextDoc{ID: "cc", Title: "Before the Dawn"},
	)

	hits, err := idx.Search("dawn", 0)
	require.NoError(t, err)

	// Exact title first, then prefix, then plain token match.
	assert.Equal(t, []identity.ID{"bb", "aa", "cc"}, hitIDs(hits))
}

func TestMemorySearchTieBreakByIdentity(t *testing.T) {
	idx := memIndexWith(t,
		TextDoc{ID: "zz", Title: "Twin Peaks"},
		TextDoc{ID: "aa", Title: "Twin Rivers"},
	)

	hits, err := idx.Search("twin", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, []identity.ID{"aa", "zz"}, hitIDs(hits))
}

func TestMemorySearchSubstring(t *testing.T) {
	idx := memIndexWith(t,
		TextDoc{ID: "aa", Title: "Moonlight Sonata"},
	)

	hits, err := idx.Search("moonli", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, identity.ID("aa"), hits[0].ID)
}

func TestMemorySearchCJK(t *testing.T) {
	idx := memIndexWith(t,
		TextDoc{ID: "aa", Title: "冒険者の宿"},
		TextDoc{ID: "bb", Title: "별빛 이야기"},
	)

	hits, err := idx.Search("冒険", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, identity.ID("aa"), hits[0].ID)

	hits, err = idx.Search("별빛", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, identity.ID("bb"), hits[0].ID)
}

func TestMemorySearchEmptyQuery(t *testing.T) {
	idx := memIndexWith(t, TextDoc{ID: "aa", Title: "Anything"})

	hits, err := idx.Search("   ", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemorySearchLimit(t *testing.T) {
	idx := memIndexWith(t,
		TextDoc{ID: "aa", Title: "story one"},
		TextDoc{ID: "bb", Title: "story two"},
		TextDoc{ID: "cc", Title: "story three"},
	)

	hits, err := idx.Search("story", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestMemoryDeleteAndReset(t *testing.T) {
	idx := memIndexWith(t,
		TextDoc{ID: "aa", Title: "story one"},
		TextDoc{ID: "bb", Title: "story two"},
	)

	require.NoError(t, idx.Delete([]identity.ID{"aa"}))
	hits, err := idx.Search("story", 0)
	require.NoError(t, err)
	assert.Equal(t, []identity.ID{"bb"}, hitIDs(hits))

	require.NoError(t, idx.Reset())
	hits, err = idx.Search("story", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemorySearchDeterministicAcrossRebuilds(t *testing.T) {
	docs := []TextDoc{
		{ID: "cc", Title: "Dawn Patrol", Synopsis: "dawn dawn"},
		{ID: "aa", Title: "Dawnless Keep"},
		{ID: "bb", Author: "Dawn"},
	}

	first := memIndexWith(t, docs...)
	// Same docs inserted in reverse order.
	reversed := NewMemoryTextIndex()
	for i := len(docs) - 1; i >= 0; i-- {
		require.NoError(t, reversed.Upsert(docs[i:i+1]))
	}

	h1, err := first.Search("dawn", 0)
	require.NoError(t, err)
	h2, err := reversed.Search("dawn", 0)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
