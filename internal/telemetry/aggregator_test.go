package telemetry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveResolutionCounters(t *testing.T) {
	agg := NewAggregator()

	agg.ObserveResolution("checkout.v2", true, nil, 2*time.Millisecond)
	agg.ObserveResolution("checkout.v2", true, nil, 4*time.Millisecond)
	agg.ObserveResolution("dark-mode", false, errors.New("connection refused"), time.Millisecond)

	stats := agg.UsageStatistics()
	assert.Equal(t, 2, stats.FlagsTracked)
	assert.Equal(t, int64(3), stats.TotalChecks)
	assert.Equal(t, int64(1), stats.TotalErrors)
	assert.InDelta(t, 1.0/3.0, stats.ErrorRate, 1e-9)

	require.Len(t, stats.MostUsed, 2)
	assert.Equal(t, "checkout.v2", stats.MostUsed[0].Name)
	assert.Equal(t, int64(2), stats.MostUsed[0].Checks)
	assert.InDelta(t, 3.0, stats.MostUsed[0].AvgResponseTimeMs, 1e-9)
	assert.InDelta(t, 4.0, stats.MostUsed[0].MaxResponseTimeMs, 1e-9)
}

func TestErrorBufferBounded(t *testing.T) {
	agg := NewAggregator()
	agg.maxErrors = 5

	for i := 0; i < 20; i++ {
		agg.RecordError("resolve", fmt.Sprintf("failure %d", i))
	}

	stats := agg.ErrorStatistics()
	assert.Equal(t, int64(20), stats.TotalErrors)

	agg.mu.Lock()
	buffered := len(agg.errors)
	newest := agg.errors[len(agg.errors)-1].Message
	agg.mu.Unlock()
	assert.Equal(t, 5, buffered)
	assert.Equal(t, "failure 19", newest)
}

func TestPatternGrouping(t *testing.T) {
	agg := NewAggregator()

	agg.RecordError("resolve", "timeout after 100ms")
	agg.RecordError("resolve", "timeout after 250ms")
	agg.RecordError("resolve", "Timeout after 9ms")
	agg.RecordError("resolve", "connection refused")

	stats := agg.ErrorStatistics()
	require.Len(t, stats.Patterns, 2)
	assert.Equal(t, int64(3), stats.Patterns[0].Count)
	assert.Equal(t, "timeout after 100ms", stats.Patterns[0].Sample)
	assert.Equal(t, int64(1), stats.Patterns[1].Count)
}

func TestTrailingWindow(t *testing.T) {
	agg := NewAggregator()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return current }

	agg.RecordError("resolve", "old failure")
	current = current.Add(2 * time.Hour)
	agg.RecordError("resolve", "recent failure")

	stats := agg.ErrorStatistics()
	assert.Equal(t, int64(2), stats.TotalErrors)
	assert.Equal(t, int64(1), stats.WindowErrors)
	assert.InDelta(t, 1.0/60.0, stats.WindowPerMinute, 1e-9)
}

func TestRecentErrorsCapped(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 25; i++ {
		agg.RecordError("resolve", fmt.Sprintf("failure %d", i))
	}

	stats := agg.ErrorStatistics()
	require.Len(t, stats.Recent, recentErrorCount)
	assert.Equal(t, "failure 24", stats.Recent[len(stats.Recent)-1].Message)
	assert.Equal(t, "failure 15", stats.Recent[0].Message)
}

func TestExportSnapshot(t *testing.T) {
	agg := NewAggregator()
	agg.ObserveResolution("fast", true, nil, time.Millisecond)
	agg.ObserveResolution("slow", true, nil, 50*time.Millisecond)
	agg.ObserveResolution("slow", false, errors.New("boom"), 10*time.Millisecond)

	snap := agg.ExportSnapshot()
	assert.Equal(t, int64(3), snap.Usage.TotalChecks)
	assert.Equal(t, int64(1), snap.Errors.TotalErrors)
	assert.InDelta(t, 50.0, snap.Performance.MaxResponseTimeMs, 1e-9)
	require.NotEmpty(t, snap.Performance.Slowest)
	assert.Equal(t, "slow", snap.Performance.Slowest[0].Name)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestReset(t *testing.T) {
	agg := NewAggregator()
	agg.ObserveResolution("x", true, errors.New("boom"), time.Millisecond)
	agg.Reset()

	assert.Equal(t, 0, agg.UsageStatistics().FlagsTracked)
	assert.Equal(t, int64(0), agg.ErrorStatistics().TotalErrors)
}

func TestConcurrentObserve(t *testing.T) {
	agg := NewAggregator()
	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func() {
			for i := 0; i < 500; i++ {
				agg.ObserveResolution("hot", true, nil, time.Microsecond)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < 8; w++ {
		<-done
	}
	assert.Equal(t, int64(4000), agg.UsageStatistics().TotalChecks)
}
