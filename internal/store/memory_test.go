package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.CreateFlag(ctx, UpsertParams{Name: "events", Description: "event features", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, "events", created.Name)
	assert.True(t, created.Enabled)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetFlag(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Enabled, got.Enabled)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.CreateFlag(ctx, UpsertParams{Name: "events", Enabled: true})
	require.NoError(t, err)
	_, err = s.CreateFlag(ctx, UpsertParams{Name: "events", Enabled: false})
	assert.ErrorIs(t, err, ErrExists)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	_, err := NewMemoryStore().GetFlag(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.CreateFlag(ctx, UpsertParams{Name: "events", Enabled: true})
	require.NoError(t, err)

	updated, err := s.UpdateFlag(ctx, UpsertParams{Name: "events", Description: "changed", Enabled: false})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "changed", updated.Description)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = s.UpdateFlag(ctx, UpsertParams{Name: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Delete_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.CreateFlag(ctx, UpsertParams{Name: "events"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteFlag(ctx, "events"))
	require.NoError(t, s.DeleteFlag(ctx, "events")) // second delete is a no-op

	_, err = s.GetFlag(ctx, "events")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListByStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, p := range []UpsertParams{
		{Name: "events", Enabled: true},
		{Name: "events.creation", Enabled: true},
		{Name: "comments", Enabled: false},
	} {
		_, err := s.CreateFlag(ctx, p)
		require.NoError(t, err)
	}

	all, err := s.ListFlags(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Sorted by name
	assert.Equal(t, "comments", all[0].Name)

	enabled, err := s.ListFlagsByStatus(ctx, true)
	require.NoError(t, err)
	assert.Len(t, enabled, 2)

	disabled, err := s.ListFlagsByStatus(ctx, false)
	require.NoError(t, err)
	require.Len(t, disabled, 1)
	assert.Equal(t, "comments", disabled[0].Name)
}
