// Package compose combines multiple flag resolutions into a single
// boolean with all/any semantics. It is the surface conditional-render
// style callers use: per-feature failures default that feature to
// disabled, never abort the evaluation, and subscribers are told about
// in-flight and completed evaluations explicitly instead of through a
// rendering framework's lifecycle.
package compose

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mkorzun/flaglab/internal/resolver"
)

// Mode selects how per-feature results combine.
type Mode string

const (
	// ModeAll enables the composed result only when every feature is enabled.
	ModeAll Mode = "all"
	// ModeAny enables the composed result when at least one feature is enabled.
	ModeAny Mode = "any"
)

// ErrInvalidMode is returned for modes other than "all" and "any".
var ErrInvalidMode = errors.New(`mode must be "all" or "any"`)

// Result is a composed evaluation. Err is observational only: the
// Enabled boolean is well-defined even when Err is set, because failed
// features defaulted to disabled.
type Result struct {
	Enabled bool            `json:"enabled"`
	Flags   map[string]bool `json:"flags"`
	Loading bool            `json:"loading"`
	Err     error           `json:"-"`
}

// Evaluate resolves each feature and combines the outcomes. With
// hierarchical set, features resolve through the cached hierarchical
// resolver; otherwise each feature is a flat single-level check.
func Evaluate(ctx context.Context, res *resolver.Resolver, cache *resolver.Cache, features []string, mode Mode, hierarchical bool, log zerolog.Logger) (Result, error) {
	if mode != ModeAll && mode != ModeAny {
		return Result{}, ErrInvalidMode
	}

	out := Result{Flags: make(map[string]bool, len(features))}
	var firstErr error
	for _, feature := range features {
		var (
			r   resolver.Result
			err error
		)
		if hierarchical {
			r, err = cache.Get(ctx, feature)
		} else {
			r, err = res.ResolveFlat(ctx, feature)
		}
		if err != nil {
			log.Error().Str("flag", feature).Err(err).
				Msg("feature evaluation failed, defaulting to disabled")
			if firstErr == nil {
				firstErr = err
			}
			out.Flags[feature] = false
			continue
		}
		out.Flags[feature] = r.Enabled
	}

	switch mode {
	case ModeAll:
		out.Enabled = true
		for _, enabled := range out.Flags {
			if !enabled {
				out.Enabled = false
				break
			}
		}
		// No features means nothing to gate on.
		if len(features) == 0 {
			out.Enabled = false
		}
	case ModeAny:
		for _, enabled := range out.Flags {
			if enabled {
				out.Enabled = true
				break
			}
		}
	}

	out.Err = firstErr
	return out, nil
}

// Composer is a long-lived evaluation of a fixed feature set. Callers
// subscribe for results and drive re-evaluation explicitly through
// Refresh; there is no coupling to any rendering lifecycle.
type Composer struct {
	res          *resolver.Resolver
	cache        *resolver.Cache
	features     []string
	mode         Mode
	hierarchical bool
	log          zerolog.Logger

	mu      sync.Mutex
	current Result
	subs    map[uint64]func(Result)
	nextSub uint64
}

// NewComposer creates a composer for the given feature set.
func NewComposer(res *resolver.Resolver, cache *resolver.Cache, features []string, mode Mode, hierarchical bool, log zerolog.Logger) (*Composer, error) {
	if mode != ModeAll && mode != ModeAny {
		return nil, ErrInvalidMode
	}
	return &Composer{
		res:          res,
		cache:        cache,
		features:     append([]string(nil), features...),
		mode:         mode,
		hierarchical: hierarchical,
		log:          log,
		current:      Result{Flags: map[string]bool{}, Loading: true},
		subs:         make(map[uint64]func(Result)),
	}, nil
}

// Evaluate runs one evaluation. Subscribers first see a loading
// snapshot, then the settled result.
func (c *Composer) Evaluate(ctx context.Context) Result {
	c.publish(Result{Flags: c.snapshotFlags(), Loading: true})

	out, err := Evaluate(ctx, c.res, c.cache, c.features, c.mode, c.hierarchical, c.log)
	if err != nil {
		// Only invalid modes land here, and the constructor rejects
		// those; treat it as an all-disabled result regardless.
		out = Result{Flags: map[string]bool{}, Err: err}
	}
	c.publish(out)
	return out
}

// Refresh invalidates the cached entries for the composer's features
// and re-evaluates.
func (c *Composer) Refresh(ctx context.Context) Result {
	c.cache.Invalidate(c.features...)
	return c.Evaluate(ctx)
}

// Current returns the most recently published result.
func (c *Composer) Current() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Subscribe registers fn to be called with every published result.
// The returned cancel function removes the subscription.
func (c *Composer) Subscribe(fn func(Result)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Composer) publish(r Result) {
	c.mu.Lock()
	c.current = r
	fns := make([]func(Result), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}

func (c *Composer) snapshotFlags() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	flags := make(map[string]bool, len(c.current.Flags))
	for k, v := range c.current.Flags {
		flags[k] = v
	}
	return flags
}
