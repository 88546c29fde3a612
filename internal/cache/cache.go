package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL applies when a caller does not provide an explicit expiry.
const DefaultTTL = 5 * time.Minute

// Store is the context-aware view of the cache, for call sites that thread a
// request context through their reads. Both forms share identical semantics;
// the in-memory implementation backs them with the same mutex-guarded map.
type Store interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an in-process key/value store with per-entry TTL expiry.
//
// Expiry is lazy: an expired entry is removed the next time it is read, there
// is no background sweeper. The map is not size-bounded; distinct
// page/limit/tag-set cache keys accumulate until their TTL passes, which is an
// accepted memory-growth trade-off for this workload.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	clock      func() time.Time
}

// New constructs a cache. A non-positive defaultTTL falls back to DefaultTTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		clock:      time.Now,
	}
}

// GetSync returns the live value for key, removing it when expired.
func (c *Cache) GetSync(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.clock().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// SetSync stores value under key. A non-positive ttl uses the default.
func (c *Cache) SetSync(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiresAt: c.clock().Add(ttl)}
}

// DeleteSync removes the supplied keys. Missing keys are ignored.
func (c *Cache) DeleteSync(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.entries, key)
	}
}

// DeletePatternSync removes every key that starts with prefix.
func (c *Cache) DeletePatternSync(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// ClearSync drops all entries.
func (c *Cache) ClearSync() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

// Len reports the number of physically present entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Get implements Store.
func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, false, err
	}
	value, ok := c.GetSync(key)
	return value, ok, nil
}

// Set implements Store.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	c.SetSync(key, value, ttl)
	return nil
}

// Delete implements Store.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	c.DeleteSync(keys...)
	return nil
}

// DeletePattern implements Store.
func (c *Cache) DeletePattern(ctx context.Context, prefix string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	c.DeletePatternSync(prefix)
	return nil
}

// Clear implements Store.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	c.ClearSync()
	return nil
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

var _ Store = (*Cache)(nil)
