package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Checker is the remote boundary consumed by the resolver. A flag
// unknown to the service must read as (false, nil), not as an error.
type Checker interface {
	Enabled(ctx context.Context, name string) (bool, error)
}

// Resolver resolves flags against the remote service, applying the
// one-level hierarchy rule: if a flag's name has a parent segment and
// the parent resolves disabled, the flag is disabled without ever
// consulting the service for the flag itself.
//
// Deliberately only the first path segment is treated as the parent:
// "a.b.c" checks "a" and then "a.b.c", never "a.b".
type Resolver struct {
	checker Checker
	cache   *Cache
	obs     Observer
	log     zerolog.Logger
}

// New wires a Resolver and its Cache together and returns both. Parent
// lookups go through the cache, so repeated child resolutions under the
// same parent cost one remote check per TTL window. obs may be nil.
//
// Observation split: the resolver reports every Resolve/ResolveFlat
// call, whichever entry point it came through; the cache reports only
// the hits it answers without invoking the resolver. Together every
// resolution attempt is observed exactly once.
func New(checker Checker, ttl time.Duration, obs Observer, log zerolog.Logger) (*Resolver, *Cache) {
	r := &Resolver{checker: checker, obs: obs, log: log}
	c := NewCache(ttl, r.Resolve, obs, log)
	r.cache = c
	return r, c
}

// parentOf returns the first path segment of name. For names without a
// dot it returns name itself.
func parentOf(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// Resolve resolves a single flag, hierarchy rules applied. Errors from
// the remote service propagate to the caller; the cache layer decides
// whether to mask them with stale data.
func (r *Resolver) Resolve(ctx context.Context, name string) (Result, error) {
	start := time.Now()

	if parent := parentOf(name); parent != name {
		parentRes, err := r.cache.Get(ctx, parent)
		if err != nil {
			r.observe(name, false, err, time.Since(start))
			return Result{}, err
		}
		if !parentRes.Enabled {
			r.log.Debug().Str("flag", name).Str("parent", parent).
				Msg("flag short-circuited by disabled parent")
			r.observe(name, false, nil, time.Since(start))
			return Result{Name: name, Enabled: false, Reason: ReasonParentDisabled}, nil
		}
	}

	enabled, err := r.checker.Enabled(ctx, name)
	r.observe(name, enabled, err, time.Since(start))
	if err != nil {
		return Result{}, err
	}
	return Result{Name: name, Enabled: enabled}, nil
}

// ResolveFlat checks a single flag without hierarchy rules and without
// caching: one direct remote check.
func (r *Resolver) ResolveFlat(ctx context.Context, name string) (Result, error) {
	start := time.Now()
	enabled, err := r.checker.Enabled(ctx, name)
	r.observe(name, enabled, err, time.Since(start))
	if err != nil {
		return Result{}, err
	}
	return Result{Name: name, Enabled: enabled}, nil
}

func (r *Resolver) observe(name string, enabled bool, err error, elapsed time.Duration) {
	if r.obs != nil {
		r.obs.ObserveResolution(name, enabled, err, elapsed)
	}
}
