package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanulsoft/scenarium/internal/identity"
)

func bleveIndexWith(t *testing.T, docs ...TextDoc) *BleveTextIndex {
	t.Helper()
	idx, err := NewBleveTextIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Upsert(docs))
	return idx
}

func TestBleveSearchFieldOrdering(t *testing.T) {
	idx := bleveIndexWith(t,
		TextDoc{ID: "aa", Title: "Dawn Patrol", Author: "someone", Synopsis: "a story"},
		TextDoc{ID: "bb", Title: "Other", Author: "Dawn", Synopsis: "unrelated"},
		TextDoc{ID: "cc", Title: "No Match", Author: "nobody", Synopsis: "nothing"},
	)

	hits, err := idx.Search("dawn", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, identity.ID("aa"), hits[0].ID, "title match ranks above author match")
}

func TestBleveSearchUnlimitedReturnsAllMatches(t *testing.T) {
	const n = 1200

	docs := make([]TextDoc, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, TextDoc{
			ID:    identity.ID(fmt.Sprintf("id-%04d", i)),
			Title: fmt.Sprintf("Dawn Expedition %d", i),
		})
	}
	idx := bleveIndexWith(t, docs...)

	// Limit zero must not cap the result set below the match count.
	hits, err := idx.Search("dawn", 0)
	require.NoError(t, err)
	assert.Len(t, hits, n)

	hits, err = idx.Search("dawn", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 10)
}

func TestBleveSearchEmptyIndex(t *testing.T) {
	idx := bleveIndexWith(t)

	hits, err := idx.Search("dawn", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
