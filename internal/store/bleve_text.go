package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/hanulsoft/scenarium/internal/identity"
)

// BleveTextIndex is the optional persistent text backend. Bleve's BM25
// scoring is richer than the memory scorer but its absolute scores depend
// on index statistics, so this backend trades score determinism for a
// persistent full-text index; result ordering is still made stable by the
// identity tie-break.
type BleveTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

type bleveTextDoc struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Synopsis string `json:"synopsis"`
}

// NewBleveTextIndex opens or creates a bleve index at path. An empty path
// creates an in-memory index for testing. An unopenable index is treated
// as corrupt: cleared and recreated, leaving a rebuild to the next rescan.
func NewBleveTextIndex(path string) (*BleveTextIndex, error) {
	indexMapping := bleve.NewIndexMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index directory: %w", mkErr)
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil {
			slog.Warn("text index unopenable, clearing",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("text index corrupt at %s and cannot remove: %w (original error: %v)", path, removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open text index: %w", err)
	}

	return &BleveTextIndex{index: idx, path: path}, nil
}

// Upsert adds or replaces documents.
func (b *BleveTextIndex) Upsert(docs []TextDoc) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("text index is closed")
	}

	batch := b.index.NewBatch()
	for _, d := range docs {
		doc := bleveTextDoc{Title: d.Title, Author: d.Author, Synopsis: d.Synopsis}
		if err := batch.Index(string(d.ID), doc); err != nil {
			return fmt.Errorf("index document %s: %w", d.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

// Delete removes documents by identity.
func (b *BleveTextIndex) Delete(ids []identity.ID) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("text index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(string(id))
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute delete batch: %w", err)
	}
	return nil
}

// Reset drops and recreates the index.
func (b *BleveTextIndex) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("text index is closed")
	}

	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close text index for reset: %w", err)
	}

	indexMapping := bleve.NewIndexMapping()
	if b.path == "" {
		idx, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return fmt.Errorf("recreate text index: %w", err)
		}
		b.index = idx
		return nil
	}

	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("clear text index: %w", err)
	}
	idx, err := bleve.New(b.path, indexMapping)
	if err != nil {
		return fmt.Errorf("recreate text index: %w", err)
	}
	b.index = idx
	return nil
}

// Search runs a field-boosted disjunction query: title hits outrank author
// hits, which outrank synopsis hits, mirroring the memory backend.
func (b *BleveTextIndex) Search(queryStr string, limit int) ([]TextHit, error) {
	if strings.TrimSpace(queryStr) == "" {
		return []TextHit{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("text index is closed")
	}

	title := bleve.NewMatchQuery(queryStr)
	title.SetField("title")
	title.SetBoost(titleWeight)

	author := bleve.NewMatchQuery(queryStr)
	author.SetField("author")
	author.SetBoost(authorWeight)

	synopsis := bleve.NewMatchQuery(queryStr)
	synopsis.SetField("synopsis")
	synopsis.SetBoost(synopsisWeight)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(title, author, synopsis))
	if limit > 0 {
		req.Size = limit
	} else {
		// No limit means every match: size the request to the full
		// document count.
		count, err := b.index.DocCount()
		if err != nil {
			return nil, fmt.Errorf("text search: %w", err)
		}
		if count == 0 {
			return []TextHit{}, nil
		}
		req.Size = int(count)
	}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	hits := make([]TextHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, TextHit{ID: identity.ID(hit.ID), Score: hit.Score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return hits, nil
}

// Close releases the underlying index.
func (b *BleveTextIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
