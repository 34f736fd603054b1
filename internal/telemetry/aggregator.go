// Package telemetry accumulates flag usage counters, error records and
// response-time statistics as a side channel of the resolution path.
// Every update is best-effort: nothing here returns an error, blocks on
// I/O, or changes what a flag check returns.
package telemetry

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultErrorWindow is the trailing window used for error rates.
	DefaultErrorWindow = time.Hour

	// DefaultErrorBuffer bounds the rolling error record buffer.
	DefaultErrorBuffer = 100

	// recentErrorCount is how many errors ErrorStatistics reports verbatim.
	recentErrorCount = 10

	// topFlagCount is how many flags the usage ranking includes.
	topFlagCount = 10
)

// UsageRecord holds running counters for one flag.
type UsageRecord struct {
	TotalChecks         int64   `json:"totalChecks"`
	ErrorCount          int64   `json:"errorCount"`
	TotalResponseTimeMs float64 `json:"totalResponseTimeMs"`
	MaxResponseTimeMs   float64 `json:"maxResponseTimeMs"`
}

// ErrorRecord is one captured resolution failure.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Context   string    `json:"context"`
}

// Pattern groups errors whose normalized messages collide.
type Pattern struct {
	Fingerprint string `json:"fingerprint"`
	Sample      string `json:"sample"`
	Count       int64  `json:"count"`
}

// FlagUsage is one row of the usage ranking.
type FlagUsage struct {
	Name              string  `json:"name"`
	Checks            int64   `json:"checks"`
	Errors            int64   `json:"errors"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	MaxResponseTimeMs float64 `json:"maxResponseTimeMs"`
}

// UsageStats summarizes all tracked flags.
type UsageStats struct {
	FlagsTracked      int         `json:"flagsTracked"`
	TotalChecks       int64       `json:"totalChecks"`
	TotalErrors       int64       `json:"totalErrors"`
	ErrorRate         float64     `json:"errorRate"`
	AvgResponseTimeMs float64     `json:"avgResponseTimeMs"`
	MostUsed          []FlagUsage `json:"mostUsed"`
}

// ErrorStats summarizes captured failures.
type ErrorStats struct {
	TotalErrors     int64         `json:"totalErrors"`
	WindowErrors    int64         `json:"windowErrors"`
	WindowPerMinute float64       `json:"windowPerMinute"`
	Recent          []ErrorRecord `json:"recent"`
	Patterns        []Pattern     `json:"patterns"`
}

// PerformanceStats summarizes response times.
type PerformanceStats struct {
	AvgResponseTimeMs float64     `json:"avgResponseTimeMs"`
	MaxResponseTimeMs float64     `json:"maxResponseTimeMs"`
	Slowest           []FlagUsage `json:"slowest"`
}

// Snapshot is the serializable export artifact.
type Snapshot struct {
	Usage       UsageStats       `json:"usage"`
	Errors      ErrorStats       `json:"errors"`
	Performance PerformanceStats `json:"performance"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Aggregator accumulates usage and error telemetry. Safe for concurrent
// use; a single mutex serializes all updates so counters never tear.
type Aggregator struct {
	mu       sync.Mutex
	usage    map[string]*UsageRecord
	errors   []ErrorRecord // rolling, newest last
	patterns map[string]*Pattern

	totalErrors int64
	window      time.Duration
	maxErrors   int
	now         func() time.Time
}

// NewAggregator creates an aggregator with the default trailing window
// and error buffer size.
func NewAggregator() *Aggregator {
	return &Aggregator{
		usage:     make(map[string]*UsageRecord),
		patterns:  make(map[string]*Pattern),
		window:    DefaultErrorWindow,
		maxErrors: DefaultErrorBuffer,
		now:       time.Now,
	}
}

// ObserveResolution records the outcome of one resolution attempt.
// Implements the resolver's Observer contract.
func (a *Aggregator) ObserveResolution(name string, enabled bool, err error, elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.usage[name]
	if !ok {
		rec = &UsageRecord{}
		a.usage[name] = rec
	}
	rec.TotalChecks++
	rec.TotalResponseTimeMs += ms
	if ms > rec.MaxResponseTimeMs {
		rec.MaxResponseTimeMs = ms
	}
	if err != nil {
		rec.ErrorCount++
		a.recordErrorLocked(name, err.Error())
	}
}

// RecordError captures a failure that happened outside the resolution
// path (for example an analytics delivery problem a caller wants
// aggregated).
func (a *Aggregator) RecordError(context, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordErrorLocked(context, message)
}

func (a *Aggregator) recordErrorLocked(context, message string) {
	a.totalErrors++
	a.errors = append(a.errors, ErrorRecord{
		Timestamp: a.now(),
		Message:   message,
		Context:   context,
	})
	if len(a.errors) > a.maxErrors {
		a.errors = a.errors[len(a.errors)-a.maxErrors:]
	}

	fp := fingerprint(message)
	p, ok := a.patterns[fp]
	if !ok {
		p = &Pattern{Fingerprint: fp, Sample: message}
		a.patterns[fp] = p
	}
	p.Count++
}

// digitRuns matches runs of digits so "timeout after 100ms" and
// "timeout after 9ms" normalize identically.
var digitRuns = regexp.MustCompile(`[0-9]+`)

// fingerprint normalizes a message so errors differing only in numbers
// or casing group together, then hashes the result.
func fingerprint(message string) string {
	normalized := digitRuns.ReplaceAllString(strings.ToLower(message), "#")
	sum := xxhash.Sum64String(normalized)
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[sum&0xf]
		sum >>= 4
	}
	return string(out)
}

// UsageStatistics reports totals and the most-checked flags.
func (a *Aggregator) UsageStatistics() UsageStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := UsageStats{FlagsTracked: len(a.usage)}
	var totalTime float64
	rows := make([]FlagUsage, 0, len(a.usage))
	for name, rec := range a.usage {
		stats.TotalChecks += rec.TotalChecks
		stats.TotalErrors += rec.ErrorCount
		totalTime += rec.TotalResponseTimeMs
		rows = append(rows, flagUsageRow(name, rec))
	}
	if stats.TotalChecks > 0 {
		stats.ErrorRate = float64(stats.TotalErrors) / float64(stats.TotalChecks)
		stats.AvgResponseTimeMs = totalTime / float64(stats.TotalChecks)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Checks != rows[j].Checks {
			return rows[i].Checks > rows[j].Checks
		}
		return rows[i].Name < rows[j].Name
	})
	if len(rows) > topFlagCount {
		rows = rows[:topFlagCount]
	}
	stats.MostUsed = rows
	return stats
}

// ErrorStatistics reports totals, the trailing-window rate, recent
// errors and grouped patterns.
func (a *Aggregator) ErrorStatistics() ErrorStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := ErrorStats{TotalErrors: a.totalErrors}

	cutoff := a.now().Add(-a.window)
	for _, rec := range a.errors {
		if rec.Timestamp.After(cutoff) {
			stats.WindowErrors++
		}
	}
	stats.WindowPerMinute = float64(stats.WindowErrors) / a.window.Minutes()

	n := len(a.errors)
	recent := n
	if recent > recentErrorCount {
		recent = recentErrorCount
	}
	stats.Recent = append([]ErrorRecord(nil), a.errors[n-recent:]...)

	stats.Patterns = make([]Pattern, 0, len(a.patterns))
	for _, p := range a.patterns {
		stats.Patterns = append(stats.Patterns, *p)
	}
	sort.Slice(stats.Patterns, func(i, j int) bool {
		if stats.Patterns[i].Count != stats.Patterns[j].Count {
			return stats.Patterns[i].Count > stats.Patterns[j].Count
		}
		return stats.Patterns[i].Fingerprint < stats.Patterns[j].Fingerprint
	})
	return stats
}

// ExportSnapshot produces the serializable telemetry artifact.
func (a *Aggregator) ExportSnapshot() Snapshot {
	usage := a.UsageStatistics()
	errs := a.ErrorStatistics()

	perf := PerformanceStats{AvgResponseTimeMs: usage.AvgResponseTimeMs}

	a.mu.Lock()
	rows := make([]FlagUsage, 0, len(a.usage))
	for name, rec := range a.usage {
		row := flagUsageRow(name, rec)
		if row.MaxResponseTimeMs > perf.MaxResponseTimeMs {
			perf.MaxResponseTimeMs = row.MaxResponseTimeMs
		}
		rows = append(rows, row)
	}
	a.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AvgResponseTimeMs != rows[j].AvgResponseTimeMs {
			return rows[i].AvgResponseTimeMs > rows[j].AvgResponseTimeMs
		}
		return rows[i].Name < rows[j].Name
	})
	if len(rows) > topFlagCount {
		rows = rows[:topFlagCount]
	}
	perf.Slowest = rows

	return Snapshot{
		Usage:       usage,
		Errors:      errs,
		Performance: perf,
		Timestamp:   a.now().UTC(),
	}
}

// Reset clears all accumulated telemetry.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.usage = make(map[string]*UsageRecord)
	a.errors = nil
	a.patterns = make(map[string]*Pattern)
	a.totalErrors = 0
}

func flagUsageRow(name string, rec *UsageRecord) FlagUsage {
	row := FlagUsage{
		Name:              name,
		Checks:            rec.TotalChecks,
		Errors:            rec.ErrorCount,
		MaxResponseTimeMs: rec.MaxResponseTimeMs,
	}
	if rec.TotalChecks > 0 {
		row.AvgResponseTimeMs = rec.TotalResponseTimeMs / float64(rec.TotalChecks)
	}
	return row
}
