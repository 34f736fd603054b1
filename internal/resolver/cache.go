package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkorzun/flaglab/internal/client"
)

// DefaultTTL is how long a cached resolution stays fresh.
const DefaultTTL = 5 * time.Minute

type entry struct {
	value     Result
	timestamp time.Time
}

// Cache memoizes single-flag resolutions with a TTL. On resolver
// failure it falls back to the last known value, even an expired one,
// in preference to failing the caller. This is the only place stale
// data is ever served. Auth failures are the exception: they mean the
// request itself was invalid, so they propagate and are never masked
// by cached data.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	ttl     time.Duration
	resolve func(ctx context.Context, name string) (Result, error)
	obs     Observer
	log     zerolog.Logger
	now     func() time.Time
}

// NewCache creates a cache over the given resolve function. A zero ttl
// selects DefaultTTL. obs may be nil; it is told about fresh hits only,
// because the resolve function reports the attempts it carries out
// itself and a miss would otherwise be counted twice.
func NewCache(ttl time.Duration, resolve func(ctx context.Context, name string) (Result, error), obs Observer, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		resolve: resolve,
		obs:     obs,
		log:     log,
		now:     time.Now,
	}
}

// Get returns the resolution for name, from cache when fresh.
// Concurrent writes to the same key are idempotent; last-writer-wins is
// acceptable since both writers resolved the same flag.
func (c *Cache) Get(ctx context.Context, name string) (Result, error) {
	start := c.now()

	c.mu.RLock()
	e, exists := c.entries[name]
	c.mu.RUnlock()

	if exists && c.now().Sub(e.timestamp) < c.ttl {
		c.observe(name, e.value.Enabled, nil, c.now().Sub(start))
		return e.value, nil
	}

	value, err := c.resolve(ctx, name)
	if err != nil {
		// Serve the previous value, expired or not, unless the failure
		// was an invalid credential.
		if exists && !client.IsAuthError(err) {
			c.log.Warn().Str("flag", name).Err(err).
				Msg("flag resolution failed, serving stale cache entry")
			return e.value, nil
		}
		return Result{}, err
	}

	c.mu.Lock()
	c.entries[name] = entry{value: value, timestamp: c.now()}
	c.mu.Unlock()

	return value, nil
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Invalidate removes the entries for the given flag names, forcing the
// next Get to hit the resolver.
func (c *Cache) Invalidate(names ...string) {
	c.mu.Lock()
	for _, name := range names {
		delete(c.entries, name)
	}
	c.mu.Unlock()
}

// Len reports the number of cached entries, fresh or expired.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) observe(name string, enabled bool, err error, elapsed time.Duration) {
	if c.obs != nil {
		c.obs.ObserveResolution(name, enabled, err, elapsed)
	}
}
