// Package resolver decides whether feature flags are enabled. It layers
// a TTL cache with stale-on-error fallback over hierarchical resolution
// against the remote flag service, plus a batch fan-out that isolates
// per-flag failures.
package resolver

import "time"

// ReasonParentDisabled is set on results that were short-circuited
// because the flag's parent resolved disabled.
const ReasonParentDisabled = "parent feature disabled"

// Result is the outcome of resolving a single flag.
type Result struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Observer receives the outcome of every resolution attempt, success or
// failure, with elapsed time. Implementations must not block; the
// resolution path does not wait on them beyond the method call itself.
type Observer interface {
	ObserveResolution(name string, enabled bool, err error, elapsed time.Duration)
}
