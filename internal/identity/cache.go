package identity

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hanulsoft/scenarium/internal/scenario"
)

// DefaultCacheSize is the default number of resolved identities kept in
// memory. One entry is a fingerprint plus a 64-byte hex digest, so even
// large collections stay well under a megabyte.
const DefaultCacheSize = 4096

type cacheEntry struct {
	fingerprint Fingerprint
	id          ID
}

// Resolver resolves package identities with an LRU cache keyed by
// descriptor path. A cache hit requires the fingerprint to match; a stale
// fingerprint falls through to a full re-hash and replaces the entry.
type Resolver struct {
	cache *lru.Cache[string, cacheEntry]
}

// NewResolver creates a Resolver with the given cache size.
func NewResolver(cacheSize int) *Resolver {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, cacheEntry](cacheSize)
	return &Resolver{cache: cache}
}

// Resolve returns the identity for pkg, reusing the cached digest when the
// package's fingerprint is unchanged since the last resolution.
func (r *Resolver) Resolve(ctx context.Context, pkg *scenario.Package, fp Fingerprint) (ID, error) {
	if entry, ok := r.cache.Get(pkg.DescriptorPath); ok && entry.fingerprint == fp {
		return entry.id, nil
	}

	id, err := Resolve(ctx, pkg)
	if err != nil {
		return "", err
	}

	r.cache.Add(pkg.DescriptorPath, cacheEntry{fingerprint: fp, id: id})
	return id, nil
}

// Forget drops any cached identity for the descriptor path.
func (r *Resolver) Forget(descriptorPath string) {
	r.cache.Remove(descriptorPath)
}

// Len reports the number of cached identities.
func (r *Resolver) Len() int {
	return r.cache.Len()
}
