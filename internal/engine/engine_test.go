package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkorzun/flaglab/internal/compose"
	"github.com/mkorzun/flaglab/internal/config"
	"github.com/mkorzun/flaglab/internal/experiment"
	"github.com/mkorzun/flaglab/internal/testutil"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ts, st := testutil.StartFlagService(t)
	testutil.SeedFlag(t, st, "events", true)
	testutil.SeedFlag(t, st, "events.creation", true)
	testutil.SeedFlag(t, st, "billing", false)
	testutil.SeedFlag(t, st, "billing.invoices", true)

	cfg := &config.Config{
		ServiceURL: ts.URL,
		APIKey:     testutil.ClientKey,
		CacheTTL:   5 * time.Minute,
		KVBackend:  "memory",
	}
	eng, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestEngineResolvesAgainstService(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Resolver.Resolve(ctx, "events.creation")
	require.NoError(t, err)
	assert.True(t, res.Enabled)

	// parent disabled short-circuits the child
	res, err = eng.Resolver.Resolve(ctx, "billing.invoices")
	require.NoError(t, err)
	assert.False(t, res.Enabled)
	assert.Equal(t, "parent feature disabled", res.Reason)

	// unknown flags read as disabled
	res, err = eng.Resolver.Resolve(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, res.Enabled)
}

func TestEngineBatchResolution(t *testing.T) {
	eng := newTestEngine(t)

	results := eng.Batch.ResolveMany(context.Background(), []string{"events", "billing", "missing"})
	assert.Equal(t, map[string]bool{
		"events":  true,
		"billing": false,
		"missing": false,
	}, results)
}

func TestEngineCompose(t *testing.T) {
	eng := newTestEngine(t)

	comp, err := eng.Compose([]string{"events", "events.creation"}, compose.ModeAll, true)
	require.NoError(t, err)

	result := comp.Evaluate(context.Background())
	assert.True(t, result.Enabled)
	assert.Equal(t, map[string]bool{"events": true, "events.creation": true}, result.Flags)
}

func TestEngineExperimentRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	exp, err := eng.Experiments.CreateExperiment("cta-copy", []experiment.Variant{
		{Name: "control"},
		{Name: "treatment"},
	}, experiment.SplitEqual)
	require.NoError(t, err)

	variant, err := eng.Experiments.GetUserVariant(ctx, exp.Name, "user-1")
	require.NoError(t, err)
	require.NotNil(t, variant)

	require.NoError(t, eng.Experiments.TrackView(exp.Name, variant.Name))

	stats, err := eng.Experiments.Statistics(exp.Name)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Totals.Impressions)
}

func TestEngineTelemetryObservesResolutions(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Resolver.Resolve(context.Background(), "events")
	require.NoError(t, err)

	stats := eng.Telemetry.UsageStatistics()
	assert.Greater(t, stats.TotalChecks, int64(0))
}
