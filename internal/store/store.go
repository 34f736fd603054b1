package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a flag does not exist.
var ErrNotFound = errors.New("flag not found")

// ErrExists is returned when creating a flag whose name is already taken.
var ErrExists = errors.New("flag already exists")

// Store defines the interface for flag persistence operations.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// ListFlags retrieves all flags.
	// Returns an empty slice if no flags exist.
	ListFlags(ctx context.Context) ([]Flag, error)

	// ListFlagsByStatus retrieves flags filtered by their enabled state.
	ListFlagsByStatus(ctx context.Context, enabled bool) ([]Flag, error)

	// GetFlag retrieves a single flag by name.
	// Returns ErrNotFound if the flag does not exist.
	GetFlag(ctx context.Context, name string) (*Flag, error)

	// CreateFlag creates a new flag.
	// Returns ErrExists if a flag with the same name already exists.
	CreateFlag(ctx context.Context, params UpsertParams) (*Flag, error)

	// UpdateFlag updates the enabled state and description of a flag.
	// Returns ErrNotFound if the flag does not exist.
	UpdateFlag(ctx context.Context, params UpsertParams) (*Flag, error)

	// DeleteFlag removes a flag by name.
	// Returns no error if the flag doesn't exist (idempotent).
	DeleteFlag(ctx context.Context, name string) error

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// Flag represents a feature flag definition. Names are dot-separated
// hierarchical paths; the segment before the first dot is the flag's
// parent (e.g. "events.creation" is a child of "events").
type Flag struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UpsertParams contains the parameters for creating or updating a flag.
type UpsertParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}
