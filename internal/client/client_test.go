package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Enabled(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"events.creation","enabled":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-123")
	enabled, err := c.Enabled(context.Background(), "events.creation")
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "Bearer key-123", gotAuth)
	// Dotted names ride in the path, escaped.
	assert.Equal(t, "/flags/events.creation/enabled", gotPath)
}

func TestClient_Enabled_NotFoundReadsDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such flag", http.StatusNotFound)
	}))
	defer srv.Close()

	enabled, err := NewClient(srv.URL, "k").Enabled(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestClient_Enabled_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "wrong").Enabled(context.Background(), "events")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestClient_Enabled_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").Enabled(context.Background(), "events")
	require.Error(t, err)
	var te *TransportError
	assert.ErrorAs(t, err, &te)

	// Connection refused is transport too.
	srv.Close()
	_, err = NewClient(srv.URL, "k").Enabled(context.Background(), "events")
	assert.ErrorAs(t, err, &te)
}

func TestClient_GetFlag_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").GetFlag(context.Background(), "ghost")
	assert.True(t, IsNotFound(err))
}

func TestClient_ListFlags_StatusFilter(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"flags":[{"name":"events","enabled":true}]}`))
	}))
	defer srv.Close()

	flags, err := NewClient(srv.URL, "k").ListFlags(context.Background(), "enabled")
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "events", flags[0].Name)
	assert.Equal(t, "status=enabled", gotQuery)
}

func TestClient_DeleteFlag_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone already", http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL, "k").DeleteFlag(context.Background(), "ghost"))
}
