package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"fincrime_engine/internal/repository"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// CacheStore is an in-process CacheStore. Expired keys are dropped lazily.
type CacheStore struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	sets    map[string]map[string]struct{}
	lists   map[string][][]byte
	now     func() time.Time
}

func NewCacheStore() *CacheStore {
	return &CacheStore{
		entries: make(map[string]cacheEntry),
		sets:    make(map[string]map[string]struct{}),
		lists:   make(map[string][][]byte),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for expiry.
func (c *CacheStore) WithClock(now func() time.Time) *CacheStore {
	c.now = now
	return c
}

func (c *CacheStore) live(e cacheEntry) bool {
	return e.expiresAt.IsZero() || c.now().Before(e.expiresAt)
}

func (c *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrCacheMiss, key)
	}
	if !c.live(e) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !c.live(cur) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", repository.ErrCacheMiss, key)
	}

	return slices.Clone(e.value), nil
}

func (c *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := cacheEntry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *CacheStore) SetAdd(ctx context.Context, set, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	members, exists := c.sets[set]
	if !exists {
		members = make(map[string]struct{})
		c.sets[set] = members
	}
	members[member] = struct{}{}
	return nil
}

func (c *CacheStore) SetMembers(ctx context.Context, set string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.sets[set]))
	for m := range c.sets[set] {
		out = append(out, m)
	}
	slices.Sort(out)
	return out, nil
}

func (c *CacheStore) SetIsMember(ctx context.Context, set, member string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.sets[set][member]
	return ok, nil
}

func (c *CacheStore) Scan(ctx context.Context, prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var keys []string
	for k, e := range c.entries {
		if strings.HasPrefix(k, prefix) && c.live(e) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (c *CacheStore) ListPush(ctx context.Context, key string, value []byte, maxLen int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := append([][]byte{slices.Clone(value)}, c.lists[key]...)
	if maxLen > 0 && len(list) > maxLen {
		list = list[:maxLen]
	}
	c.lists[key] = list
	return nil
}

func (c *CacheStore) ListRange(ctx context.Context, key string, n int) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := c.lists[key]
	if n > 0 && n < len(list) {
		list = list[:n]
	}

	out := make([][]byte, len(list))
	for i, v := range list {
		out[i] = slices.Clone(v)
	}
	return out, nil
}

func (c *CacheStore) Ping(ctx context.Context) error {
	return nil
}

func (c *CacheStore) Close() error {
	return nil
}
