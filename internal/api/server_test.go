package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkorzun/flaglab/internal/store"
)

const (
	testAdminKey  = "admin-key"
	testClientKey = "client-key"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := NewServer(store.NewMemoryStore(), Options{
		AdminAPIKey:  testAdminKey,
		ClientAPIKey: testClientKey,
		Logger:       zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createFlag(t *testing.T, ts *httptest.Server, name string, enabled bool) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/flags", testAdminKey, store.UpsertParams{
		Name:    name,
		Enabled: enabled,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodGet, "/flags", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, ts, http.MethodGet, "/flags", "wrong-key", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClientKeyCannotWrite(t *testing.T) {
	ts := newTestServer(t)
	resp := doRequest(t, ts, http.MethodPost, "/flags", testClientKey, store.UpsertParams{Name: "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var errResp ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, ErrCodeForbidden, errResp.Code)
	assert.NotEmpty(t, errResp.RequestID)
}

func TestAdminKeyCanRead(t *testing.T) {
	ts := newTestServer(t)
	resp := doRequest(t, ts, http.MethodGet, "/flags", testAdminKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndGetFlag(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/flags", testAdminKey, store.UpsertParams{
		Name:        "dark-mode",
		Description: "new theme",
		Enabled:     true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created store.Flag
	decodeBody(t, resp, &created)
	assert.Equal(t, "dark-mode", created.Name)
	assert.True(t, created.Enabled)
	assert.False(t, created.CreatedAt.IsZero())

	resp = doRequest(t, ts, http.MethodGet, "/flags/dark-mode", testClientKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got store.Flag
	decodeBody(t, resp, &got)
	assert.Equal(t, "dark-mode", got.Name)
	assert.Equal(t, "new theme", got.Description)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	ts := newTestServer(t)
	createFlag(t, ts, "dup", true)

	resp := doRequest(t, ts, http.MethodPost, "/flags", testAdminKey, store.UpsertParams{Name: "dup"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, ErrCodeConflict, errResp.Code)
}

func TestCreateFlagValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/flags", testAdminKey, store.UpsertParams{Name: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, ErrCodeValidation, errResp.Code)
	assert.Contains(t, errResp.Fields, "name")
}

func TestListFlagsWithStatusFilter(t *testing.T) {
	ts := newTestServer(t)
	createFlag(t, ts, "on-flag", true)
	createFlag(t, ts, "off-flag", false)

	var result struct {
		Flags []store.Flag `json:"flags"`
	}

	resp := doRequest(t, ts, http.MethodGet, "/flags", testClientKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &result)
	assert.Len(t, result.Flags, 2)

	resp = doRequest(t, ts, http.MethodGet, "/flags?status=enabled", testClientKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &result)
	require.Len(t, result.Flags, 1)
	assert.Equal(t, "on-flag", result.Flags[0].Name)

	resp = doRequest(t, ts, http.MethodGet, "/flags?status=bogus", testClientKey, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnabledEndpoint(t *testing.T) {
	ts := newTestServer(t)
	createFlag(t, ts, "events.creation", true)

	resp := doRequest(t, ts, http.MethodGet, "/flags/events.creation/enabled", testClientKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, "events.creation", result.Name)
	assert.True(t, result.Enabled)

	resp = doRequest(t, ts, http.MethodGet, "/flags/missing/enabled", testClientKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateFlag(t *testing.T) {
	ts := newTestServer(t)
	createFlag(t, ts, "toggle-me", false)

	resp := doRequest(t, ts, http.MethodPut, "/flags/toggle-me", testAdminKey, store.UpsertParams{
		Description: "flipped",
		Enabled:     true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated store.Flag
	decodeBody(t, resp, &updated)
	assert.True(t, updated.Enabled)
	assert.Equal(t, "flipped", updated.Description)

	resp = doRequest(t, ts, http.MethodPut, "/flags/missing", testAdminKey, store.UpsertParams{Enabled: true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteFlagIdempotent(t *testing.T) {
	ts := newTestServer(t)
	createFlag(t, ts, "doomed", true)

	resp := doRequest(t, ts, http.MethodDelete, "/flags/doomed", testAdminKey, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, ts, http.MethodDelete, "/flags/doomed", testAdminKey, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, ts, http.MethodGet, "/flags/doomed", testClientKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
