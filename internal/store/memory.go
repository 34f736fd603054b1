package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or
// single-instance deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]Flag // name -> Flag
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags: make(map[string]Flag),
	}
}

// ListFlags retrieves all flags, sorted by name for stable output.
func (m *MemoryStore) ListFlags(ctx context.Context) ([]Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Flag, 0, len(m.flags))
	for _, flag := range m.flags {
		result = append(result, flag)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ListFlagsByStatus retrieves flags filtered by enabled state.
func (m *MemoryStore) ListFlagsByStatus(ctx context.Context, enabled bool) ([]Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Flag, 0, len(m.flags)/2)
	for _, flag := range m.flags {
		if flag.Enabled == enabled {
			result = append(result, flag)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// GetFlag retrieves a single flag by name.
func (m *MemoryStore) GetFlag(ctx context.Context, name string) (*Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	if !exists {
		return nil, ErrNotFound
	}
	return &flag, nil
}

// CreateFlag creates a new flag in memory.
func (m *MemoryStore) CreateFlag(ctx context.Context, params UpsertParams) (*Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.flags[params.Name]; exists {
		return nil, ErrExists
	}

	now := time.Now().UTC()
	flag := Flag{
		Name:        params.Name,
		Description: params.Description,
		Enabled:     params.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.flags[params.Name] = flag
	return &flag, nil
}

// UpdateFlag updates an existing flag in memory.
func (m *MemoryStore) UpdateFlag(ctx context.Context, params UpsertParams) (*Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag, exists := m.flags[params.Name]
	if !exists {
		return nil, ErrNotFound
	}

	flag.Description = params.Description
	flag.Enabled = params.Enabled
	flag.UpdatedAt = time.Now().UTC()
	m.flags[params.Name] = flag
	return &flag, nil
}

// DeleteFlag removes a flag from memory. Idempotent.
func (m *MemoryStore) DeleteFlag(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.flags, name)
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
