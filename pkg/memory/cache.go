package memory

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrCacheMiss is returned by FastCache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("memory: cache miss")

// FastCache is the TTL-bounded key/value tier sessions are read from first.
type FastCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// DefaultLRUSize is the default number of sessions an LRUCache holds.
const DefaultLRUSize = 4096

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// LRUCache is an in-process FastCache. Entries expire individually by the
// ttl given to Set, bounded above by the cache's own maximum TTL.
type LRUCache struct {
	lru *expirable.LRU[string, lruEntry]
	now func() time.Time
}

var _ FastCache = (*LRUCache)(nil)

// NewLRUCache creates a cache holding up to size entries for at most maxTTL.
func NewLRUCache(size int, maxTTL time.Duration) *LRUCache {
	if size <= 0 {
		size = DefaultLRUSize
	}
	if maxTTL <= 0 {
		maxTTL = DefaultTTL
	}
	return &LRUCache{
		lru: expirable.NewLRU[string, lruEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *LRUCache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *LRUCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := lruEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

// Len returns the number of entries, including ones not yet swept.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

func (c *LRUCache) Close() error {
	c.lru.Purge()
	return nil
}
