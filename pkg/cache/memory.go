package cache

import (
	"bytes"
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// MemoryCache is a bounded in-process LRU cache. It is safe for concurrent
// use.
type MemoryCache struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache returns a cache holding at most size entries. A size of
// zero or less selects [DefaultMemorySize].
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "create memory cache")
	}
	return &MemoryCache{entries: entries, now: time.Now}, nil
}

// Get returns a copy of the entry for key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	return bytes.Clone(e.data), true, nil
}

// Set stores a copy of data under key, evicting the least recently used
// entry when full.
func (c *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	e := memoryEntry{data: bytes.Clone(data)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, e)
	return nil
}

// Delete removes the entry for key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// looked up.
func (c *MemoryCache) Len() int { return c.entries.Len() }

// Close drops all entries.
func (c *MemoryCache) Close() error {
	c.entries.Purge()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
