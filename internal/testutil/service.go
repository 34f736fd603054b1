// Package testutil provides helpers for tests that need a running flag
// service backed by the in-memory store.
package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mkorzun/flaglab/internal/api"
	"github.com/mkorzun/flaglab/internal/store"
)

// Keys the test service accepts.
const (
	AdminKey  = "test-admin-key"
	ClientKey = "test-client-key"
)

// StartFlagService starts an in-memory flag service and returns it along
// with its backing store for direct seeding. The server is shut down
// when the test finishes.
func StartFlagService(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	srv := api.NewServer(st, api.Options{
		AdminAPIKey:  AdminKey,
		ClientAPIKey: ClientKey,
		Logger:       zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, st
}

// SeedFlag inserts a flag directly into the service's store.
func SeedFlag(t *testing.T, st store.Store, name string, enabled bool) {
	t.Helper()
	if _, err := st.CreateFlag(t.Context(), store.UpsertParams{Name: name, Enabled: enabled}); err != nil {
		t.Fatalf("seed flag %s: %v", name, err)
	}
}
