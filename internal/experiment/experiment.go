// Package experiment implements A/B-test experiment management:
// deterministic variant assignment, impression/conversion tracking, and
// per-variant statistics derived from an append-only event log.
package experiment

import (
	"errors"
	"time"
)

// Split selects how traffic divides across variants.
type Split string

const (
	// SplitEqual divides traffic evenly; caller-supplied weights are
	// replaced with 1/variantCount.
	SplitEqual Split = "equal"
	// SplitWeighted uses the caller-supplied weights as-is; they must
	// sum to approximately 1.
	SplitWeighted Split = "weighted"
)

// Status is the lifecycle state of an experiment. The only transition
// is active to ended, and it is irreversible.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Validation errors raised synchronously by CreateExperiment.
var (
	ErrNoVariants     = errors.New("experiment requires at least one variant")
	ErrMissingWeight  = errors.New("weighted split requires a positive weight on every variant")
	ErrWeightSum      = errors.New("weighted split requires variant weights to sum to 1")
	ErrNegativeWeight = errors.New("variant weights must be non-negative")
)

// Lifecycle errors.
var (
	ErrNotFound  = errors.New("experiment not found")
	ErrNotActive = errors.New("experiment is not active")
	ErrExists    = errors.New("experiment already exists")
)

// Variant is one named alternative configuration within an experiment.
// Weight is a fraction of traffic in [0, 1].
type Variant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Value  any     `json:"value,omitempty"`
	Weight float64 `json:"weight"`
}

// Metrics are running experiment totals, recomputed on every tracked
// event.
type Metrics struct {
	Impressions    int64   `json:"impressions"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
}

// Experiment is a registered A/B test.
type Experiment struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Variants     []Variant  `json:"variants"`
	TrafficSplit Split      `json:"trafficSplit"`
	Status       Status     `json:"status"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Metrics      Metrics    `json:"metrics"`
	Winner       *Variant   `json:"winner,omitempty"`
}

// EventType distinguishes impressions from conversions.
type EventType string

const (
	EventView       EventType = "view"
	EventConversion EventType = "conversion"
)

// Event is one append-only entry in an experiment's log. Events are
// never mutated after creation.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Experiment string    `json:"experimentName"`
	Variant    string    `json:"variant"`
	VariantID  string    `json:"variantId"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"userId,omitempty"`
	Value      float64   `json:"value,omitempty"`
}

// VariantStats are per-variant numbers derived from the event log.
type VariantStats struct {
	Variant        string  `json:"variant"`
	VariantID      string  `json:"variantId"`
	Views          int64   `json:"views"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
}

// Statistics is the full derived view of an experiment.
type Statistics struct {
	Experiment string         `json:"experiment"`
	Status     Status         `json:"status"`
	Totals     Metrics        `json:"totals"`
	Variants   []VariantStats `json:"variants"`
}
