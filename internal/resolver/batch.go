package resolver

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// defaultBatchConcurrency bounds the in-flight resolutions of a single
// ResolveMany call.
const defaultBatchConcurrency = 8

// Batch fans a resolution out across a list of flag names. Each name is
// resolved independently; one flag failing never fails the batch.
type Batch struct {
	cache *Cache
	limit int
	log   zerolog.Logger
}

// NewBatch creates a batch resolver over the given cache. A limit of 0
// selects the default concurrency bound.
func NewBatch(cache *Cache, limit int, log zerolog.Logger) *Batch {
	if limit <= 0 {
		limit = defaultBatchConcurrency
	}
	return &Batch{cache: cache, limit: limit, log: log}
}

// ResolveMany resolves every requested name concurrently and returns a
// complete map covering each of them. A name whose resolution fails
// maps to false; the error is logged, never propagated.
func (b *Batch) ResolveMany(ctx context.Context, names []string) map[string]bool {
	results := make(map[string]bool, len(names))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for _, name := range names {
		g.Go(func() error {
			res, err := b.cache.Get(gctx, name)
			enabled := false
			if err != nil {
				b.log.Error().Str("flag", name).Err(err).
					Msg("batch resolution failed, defaulting to disabled")
			} else {
				enabled = res.Enabled
			}
			mu.Lock()
			results[name] = enabled
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return results
}
