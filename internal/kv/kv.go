// Package kv provides durable key-value storage used by the experiment
// engine for the persisted anonymous identifier and variant assignments.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("key not found")

// Store defines the interface for key-value persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value stored under key.
	// Returns ErrNotFound if the key has never been set.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Close releases any resources held by the store.
	Close() error
}
