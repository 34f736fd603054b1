package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkorzun/flaglab/internal/bucket"
	"github.com/mkorzun/flaglab/internal/kv"
)

const (
	// Keys in the durable key-value store.
	keyAnonymousID = "flaglab:anonymous_id"
	keyAssignments = "flaglab:assignments"

	// bucketModulus is the percentage space variants divide up.
	bucketModulus = 100

	// weightSumTolerance allows for float rounding when validating that
	// weighted variants cover the whole traffic space.
	weightSumTolerance = 1e-3
)

// Sink receives tracked events for best-effort forwarding to an
// external analytics endpoint. Delivery failures never reach the
// tracking caller.
type Sink interface {
	Forward(payload any)
}

// Engine registers experiments, assigns deterministic variants, and
// tracks impressions and conversions. One Engine owns all experiment
// state; there are no package-level registries.
type Engine struct {
	mu          sync.Mutex
	experiments map[string]*Experiment
	events      map[string][]Event
	assignments map[string]string // experimentName_userKey -> variant ID
	anonymousID string

	store kv.Store
	sink  Sink // may be nil
	log   zerolog.Logger
	now   func() time.Time
}

// NewEngine creates an engine backed by the given key-value store and
// loads any previously persisted assignments. sink may be nil when no
// analytics endpoint is configured.
func NewEngine(ctx context.Context, store kv.Store, sink Sink, log zerolog.Logger) (*Engine, error) {
	e := &Engine{
		experiments: make(map[string]*Experiment),
		events:      make(map[string][]Event),
		assignments: make(map[string]string),
		store:       store,
		sink:        sink,
		log:         log,
		now:         time.Now,
	}

	raw, err := store.Get(ctx, keyAssignments)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("failed to load variant assignments: %w", err)
		}
		return e, nil
	}
	if err := json.Unmarshal([]byte(raw), &e.assignments); err != nil {
		return nil, fmt.Errorf("failed to parse persisted assignments: %w", err)
	}
	return e, nil
}

// CreateExperiment registers a new experiment. Variant weights are
// normalized to 1/variantCount for the equal split; for the weighted
// split every variant must carry a positive weight and the weights must
// sum to approximately 1.
func (e *Engine) CreateExperiment(name string, variants []Variant, split Split) (*Experiment, error) {
	if split == "" {
		split = SplitEqual
	}
	if len(variants) == 0 {
		return nil, ErrNoVariants
	}

	vs := make([]Variant, len(variants))
	copy(vs, variants)
	for i := range vs {
		if vs[i].Weight < 0 {
			return nil, ErrNegativeWeight
		}
		if vs[i].ID == "" {
			vs[i].ID = vs[i].Name
		}
	}

	switch split {
	case SplitEqual:
		w := 1.0 / float64(len(vs))
		for i := range vs {
			vs[i].Weight = w
		}
	case SplitWeighted:
		sum := 0.0
		for _, v := range vs {
			if v.Weight == 0 {
				return nil, ErrMissingWeight
			}
			sum += v.Weight
		}
		if math.Abs(sum-1) > weightSumTolerance {
			return nil, fmt.Errorf("%w: got %.4f", ErrWeightSum, sum)
		}
	default:
		return nil, fmt.Errorf("unsupported traffic split: %s", split)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.experiments[name]; exists {
		return nil, ErrExists
	}

	exp := &Experiment{
		ID:           uuid.NewString(),
		Name:         name,
		Variants:     vs,
		TrafficSplit: split,
		Status:       StatusActive,
		StartDate:    e.now().UTC(),
	}
	e.experiments[name] = exp

	e.log.Info().Str("experiment", name).Int("variants", len(vs)).
		Str("split", string(split)).Msg("experiment created")
	return cloneExperiment(exp), nil
}

// GetExperiment returns a copy of the named experiment, or ErrNotFound.
func (e *Engine) GetExperiment(name string) (*Experiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, exists := e.experiments[name]
	if !exists {
		return nil, ErrNotFound
	}
	return cloneExperiment(exp), nil
}

// ListExperiments returns copies of all registered experiments, sorted
// by name.
func (e *Engine) ListExperiments() []*Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Experiment, 0, len(e.experiments))
	for _, exp := range e.experiments {
		out = append(out, cloneExperiment(exp))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetUserVariant returns the variant assigned to the user for the named
// experiment. Returns (nil, nil) when the experiment is missing or not
// active. An empty userID falls back to a persisted anonymous id. The
// first call for a (experiment, user) pair assigns and persists a
// variant; every later call returns the same one. The check-then-assign
// sequence is serialized so two concurrent first-time lookups cannot
// persist different variants.
func (e *Engine) GetUserVariant(ctx context.Context, experimentName, userID string) (*Variant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, exists := e.experiments[experimentName]
	if !exists || exp.Status != StatusActive {
		return nil, nil
	}

	userKey := userID
	if userKey == "" {
		var err error
		userKey, err = e.anonymousKeyLocked(ctx)
		if err != nil {
			return nil, err
		}
	}

	assignKey := experimentName + "_" + userKey
	if variantID, ok := e.assignments[assignKey]; ok {
		if v := findVariant(exp.Variants, variantID); v != nil {
			return v, nil
		}
		// The persisted variant no longer exists (experiment was
		// redefined); fall through and assign anew.
	}

	chosen := assignVariant(exp.Variants, userKey)
	e.assignments[assignKey] = chosen.ID
	if err := e.persistAssignmentsLocked(ctx); err != nil {
		e.log.Warn().Str("experiment", experimentName).Err(err).
			Msg("failed to persist variant assignment")
	}

	e.log.Debug().Str("experiment", experimentName).Str("variant", chosen.Name).
		Int("bucket", bucket.Bucket(userKey, bucketModulus)).Msg("variant assigned")
	return chosen, nil
}

// assignVariant walks the variants accumulating weight*100 and picks
// the first whose cumulative threshold exceeds the user's bucket. If
// rounding leaves no match, the first variant wins.
func assignVariant(variants []Variant, userKey string) *Variant {
	b := float64(bucket.Bucket(userKey, bucketModulus))
	cumulative := 0.0
	for i := range variants {
		cumulative += variants[i].Weight * bucketModulus
		if cumulative > b {
			v := variants[i]
			return &v
		}
	}
	v := variants[0]
	return &v
}

// TrackView records an impression for a variant of an active
// experiment. The matching event is appended to the log and forwarded
// to the analytics sink best-effort.
func (e *Engine) TrackView(experimentName, variant string) error {
	return e.track(EventView, experimentName, variant, 0)
}

// TrackConversion records a conversion with the given value (1 for a
// plain conversion).
func (e *Engine) TrackConversion(experimentName, variant string, value float64) error {
	if value == 0 {
		value = 1
	}
	return e.track(EventConversion, experimentName, variant, value)
}

func (e *Engine) track(eventType EventType, experimentName, variant string, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, exists := e.experiments[experimentName]
	if !exists {
		return ErrNotFound
	}
	if exp.Status != StatusActive {
		// Ended experiments are frozen; metrics never change again.
		return ErrNotActive
	}

	v := findVariant(exp.Variants, variant)
	if v == nil {
		return fmt.Errorf("experiment %s has no variant %q", experimentName, variant)
	}

	switch eventType {
	case EventView:
		exp.Metrics.Impressions++
	case EventConversion:
		exp.Metrics.Conversions++
	}
	if exp.Metrics.Impressions > 0 {
		exp.Metrics.ConversionRate = float64(exp.Metrics.Conversions) / float64(exp.Metrics.Impressions)
	}

	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Experiment: experimentName,
		Variant:    v.Name,
		VariantID:  v.ID,
		Timestamp:  e.now().UTC(),
		UserID:     e.anonymousID,
		Value:      value,
	}
	e.events[experimentName] = append(e.events[experimentName], event)

	if e.sink != nil {
		e.sink.Forward(event)
	}
	return nil
}

// Statistics derives per-variant views, conversions and rates from the
// experiment's event log, plus experiment totals.
func (e *Engine) Statistics(experimentName string) (*Statistics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, exists := e.experiments[experimentName]
	if !exists {
		return nil, ErrNotFound
	}
	return e.statisticsLocked(exp), nil
}

func (e *Engine) statisticsLocked(exp *Experiment) *Statistics {
	stats := &Statistics{
		Experiment: exp.Name,
		Status:     exp.Status,
		Totals:     exp.Metrics,
		Variants:   make([]VariantStats, len(exp.Variants)),
	}
	for i, v := range exp.Variants {
		vs := VariantStats{Variant: v.Name, VariantID: v.ID}
		for _, ev := range e.events[exp.Name] {
			if ev.VariantID != v.ID {
				continue
			}
			switch ev.Type {
			case EventView:
				vs.Views++
			case EventConversion:
				vs.Conversions++
			}
		}
		if vs.Views > 0 {
			vs.ConversionRate = float64(vs.Conversions) / float64(vs.Views)
		}
		stats.Variants[i] = vs
	}
	return stats
}

// EndExperiment transitions an experiment to ended, stamps the end
// date, and records the variant with the highest conversion rate as the
// winner. The transition is terminal: later assignment lookups return
// nil and tracking calls are rejected. Ending an already ended
// experiment is a no-op.
func (e *Engine) EndExperiment(experimentName string) (*Experiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, exists := e.experiments[experimentName]
	if !exists {
		return nil, ErrNotFound
	}
	if exp.Status == StatusEnded {
		return cloneExperiment(exp), nil
	}

	exp.Status = StatusEnded
	endDate := e.now().UTC()
	exp.EndDate = &endDate

	stats := e.statisticsLocked(exp)
	var best *VariantStats
	for i := range stats.Variants {
		vs := &stats.Variants[i]
		if vs.ConversionRate <= 0 {
			continue
		}
		if best == nil || vs.ConversionRate > best.ConversionRate {
			best = vs
		}
	}
	if best != nil {
		exp.Winner = findVariant(exp.Variants, best.VariantID)
	}

	e.log.Info().Str("experiment", experimentName).
		Msg("experiment ended")
	return cloneExperiment(exp), nil
}

// Events returns a copy of the experiment's event log.
func (e *Engine) Events(experimentName string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events[experimentName]...)
}

// anonymousKeyLocked returns the persisted anonymous user identifier,
// generating and storing one on first use. Caller must hold e.mu.
func (e *Engine) anonymousKeyLocked(ctx context.Context) (string, error) {
	if e.anonymousID != "" {
		return e.anonymousID, nil
	}

	id, err := e.store.Get(ctx, keyAnonymousID)
	if err == nil {
		e.anonymousID = id
		return id, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return "", fmt.Errorf("failed to load anonymous id: %w", err)
	}

	id = "anon-" + uuid.NewString()
	if err := e.store.Set(ctx, keyAnonymousID, id); err != nil {
		return "", fmt.Errorf("failed to persist anonymous id: %w", err)
	}
	e.anonymousID = id
	return id, nil
}

// persistAssignmentsLocked writes the full assignment map through to
// the key-value store. Caller must hold e.mu.
func (e *Engine) persistAssignmentsLocked(ctx context.Context) error {
	data, err := json.Marshal(e.assignments)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, keyAssignments, string(data))
}

// findVariant matches by ID first, then by name.
func findVariant(variants []Variant, idOrName string) *Variant {
	for i := range variants {
		if variants[i].ID == idOrName {
			v := variants[i]
			return &v
		}
	}
	for i := range variants {
		if variants[i].Name == idOrName {
			v := variants[i]
			return &v
		}
	}
	return nil
}

func cloneExperiment(exp *Experiment) *Experiment {
	out := *exp
	out.Variants = append([]Variant(nil), exp.Variants...)
	if exp.Winner != nil {
		w := *exp.Winner
		out.Winner = &w
	}
	if exp.EndDate != nil {
		d := *exp.EndDate
		out.EndDate = &d
	}
	return &out
}
