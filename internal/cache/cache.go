package cache

import (
	"sync"
	"time"
)

// Cache is the freshness-aware capability injected into the upstream client.
// Get reports three states: absent (ok false), present and fresh, or present
// but stale. Stale entries back the fetch-failure fallback.
type Cache interface {
	Get(key string) (value any, fresh bool, ok bool)
	Put(key string, value any)
}

type entry struct {
	value    any
	storedAt time.Time
}

// TTLCache retains entries past their TTL so callers can fall back to stale
// data when the upstream is unavailable. Owned and injected by the caller;
// never package-level state.
type TTLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewTTL constructs a cache whose entries stay fresh for ttl.
func NewTTL(ttl time.Duration) *TTLCache {
	return &TTLCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the stored value and whether it is still within its TTL.
func (c *TTLCache) Get(key string) (any, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	fresh := c.now().Sub(e.storedAt) <= c.ttl
	return e.value, fresh, true
}

// Put stores or refreshes a value.
func (c *TTLCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
}

var _ Cache = (*TTLCache)(nil)
