package provider

import (
	"context"
	"sync"

	"github.com/chiufan/tidescan/internal/core"
)

// CachedClassifier is a write-through cache in front of a Classifier.
// Entries are never invalidated; the accumulated map is persisted
// across runs as the industry-cache document.
type CachedClassifier struct {
	mu    sync.RWMutex
	inner Classifier
	cache map[string]core.Classification
}

// NewCachedClassifier wraps inner with an empty cache.
func NewCachedClassifier(inner Classifier) *CachedClassifier {
	return &CachedClassifier{
		inner: inner,
		cache: make(map[string]core.Classification),
	}
}

// Preload seeds the cache, typically from the persisted document.
func (c *CachedClassifier) Preload(entries map[string]core.Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cl := range entries {
		c.cache[id] = cl
	}
}

// Classify returns the cached classification or falls through to the
// inner classifier and stores the result.
func (c *CachedClassifier) Classify(ctx context.Context, id string) (core.Classification, error) {
	c.mu.RLock()
	cl, ok := c.cache[id]
	c.mu.RUnlock()
	if ok {
		return cl, nil
	}

	cl, err := c.inner.Classify(ctx, id)
	if err != nil {
		return core.Classification{}, err
	}

	c.mu.Lock()
	c.cache[id] = cl
	c.mu.Unlock()
	return cl, nil
}

// Snapshot copies the current cache contents for persistence.
func (c *CachedClassifier) Snapshot() map[string]core.Classification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]core.Classification, len(c.cache))
	for id, cl := range c.cache {
		out[id] = cl
	}
	return out
}
