package store

import (
	"fmt"
	"path/filepath"

	"github.com/hanulsoft/scenarium/internal/identity"
)

// TextDoc is one scenario's searchable text.
type TextDoc struct {
	ID       identity.ID
	Title    string
	Author   string
	Synopsis string
}

// TextHit is one scored search result.
type TextHit struct {
	ID    identity.ID
	Score float64
}

// TextIndex scores free-text queries against indexed scenario text.
// Implementations are safe for concurrent use; hits come back sorted by
// descending score with ties broken by ascending identity, so the same
// index state and query always produce the same order.
type TextIndex interface {
	Upsert(docs []TextDoc) error
	Delete(ids []identity.ID) error
	Reset() error
	Search(query string, limit int) ([]TextHit, error)
	Close() error
}

// Text backends.
const (
	TextBackendMemory = "memory"
	TextBackendBleve  = "bleve"
)

// NewTextIndex creates the configured text index backend. The memory
// backend is the default: a deterministic field-weighted scorer rebuilt
// from the database on startup. The bleve backend trades determinism of
// scores for a persistent full-text index.
func NewTextIndex(backend, dataDir string) (TextIndex, error) {
	switch backend {
	case TextBackendMemory, "":
		return NewMemoryTextIndex(), nil

	case TextBackendBleve:
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "text.bleve")
		}
		return NewBleveTextIndex(path)

	default:
		return nil, fmt.Errorf("unknown text backend: %s (valid options: memory, bleve)", backend)
	}
}
