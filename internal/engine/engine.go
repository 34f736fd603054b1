// Package engine assembles the client-side evaluation stack: the flag
// service client, the cached resolver, batch resolution, flag
// composition, the experiment engine and telemetry, all wired from one
// Config.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mkorzun/flaglab/internal/analytics"
	"github.com/mkorzun/flaglab/internal/client"
	"github.com/mkorzun/flaglab/internal/compose"
	"github.com/mkorzun/flaglab/internal/config"
	"github.com/mkorzun/flaglab/internal/experiment"
	"github.com/mkorzun/flaglab/internal/kv"
	"github.com/mkorzun/flaglab/internal/resolver"
	"github.com/mkorzun/flaglab/internal/telemetry"
)

// Engine is the assembled evaluation stack. All fields are ready to use
// after New returns; Close must be called to release the key-value store
// and drain the analytics forwarder.
type Engine struct {
	Client      *client.Client
	Resolver    *resolver.Resolver
	Cache       *resolver.Cache
	Batch       *resolver.Batch
	Experiments *experiment.Engine
	Telemetry   *telemetry.Aggregator

	forwarder *analytics.Forwarder
	kvStore   kv.Store
	log       zerolog.Logger
}

// New wires an Engine from configuration. The key-value store backs
// experiment assignments and the anonymous user identity; the analytics
// forwarder is started here and receives every experiment event.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Engine, error) {
	cl := client.NewClient(cfg.ServiceURL, cfg.APIKey)
	agg := telemetry.NewAggregator()
	res, cache := resolver.New(cl, cfg.CacheTTL, agg, log)
	batch := resolver.NewBatch(cache, 0, log)

	kvStore, err := kv.NewStore(ctx, cfg.KVBackend, cfg.KVPath, cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value store: %w", err)
	}

	forwarder := analytics.NewForwarder(cfg.AnalyticsURL, log)
	forwarder.Start()

	experiments, err := experiment.NewEngine(ctx, kvStore, forwarder, log)
	if err != nil {
		forwarder.Close()
		kvStore.Close()
		return nil, fmt.Errorf("failed to start experiment engine: %w", err)
	}

	return &Engine{
		Client:      cl,
		Resolver:    res,
		Cache:       cache,
		Batch:       batch,
		Experiments: experiments,
		Telemetry:   agg,
		forwarder:   forwarder,
		kvStore:     kvStore,
		log:         log,
	}, nil
}

// Compose builds a Composer over this engine's resolver and cache for a
// fixed feature set.
func (e *Engine) Compose(features []string, mode compose.Mode, hierarchical bool) (*compose.Composer, error) {
	return compose.NewComposer(e.Resolver, e.Cache, features, mode, hierarchical, e.log)
}

// Close drains the analytics forwarder and releases the key-value store.
func (e *Engine) Close() error {
	err := e.forwarder.Close()
	if cerr := e.kvStore.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
