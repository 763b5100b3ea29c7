package didresolve

import (
	"context"
	"sync"
	"time"

	"github.com/dwnode/dwnd/internal/model"
)

// CachingResolver decorates a Resolver with a TTL cache, keyed by DID
// string. did:web resolutions are network round-trips per spec.md §4.3
// and are worth caching; did:key resolutions are free and can be
// wrapped too without harm.
type CachingResolver struct {
	inner Resolver
	ttl   time.Duration

	mu      sync.Mutex
	entries map[model.DID]cacheEntry
}

type cacheEntry struct {
	doc       *model.Document
	expiresAt time.Time
}

// NewCachingResolver wraps inner with a TTL cache.
func NewCachingResolver(inner Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[model.DID]cacheEntry),
	}
}

// Resolve returns a cached document if still fresh, else resolves
// through inner and caches the result.
func (c *CachingResolver) Resolve(ctx context.Context, did model.DID) (*model.Document, error) {
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.entries[did]
	c.mu.Unlock()

	if ok && now.Before(entry.expiresAt) {
		return entry.doc, nil
	}

	doc, err := c.inner.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[did] = cacheEntry{doc: doc, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	return doc, nil
}

// Invalidate drops any cached entry for did, forcing the next Resolve to refetch.
func (c *CachingResolver) Invalidate(did model.DID) {
	c.mu.Lock()
	delete(c.entries, did)
	c.mu.Unlock()
}
