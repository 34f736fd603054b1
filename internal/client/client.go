// Package client is an HTTP client for the flaglab flag service. It is
// the only component that talks to the remote service; everything above
// it (cache, resolver, composer) works in terms of its results and
// error taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mkorzun/flaglab/internal/store"
)

// Client is an HTTP client for the flaglab flag service API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// EnabledResult is the response of the enabled-check endpoint.
type EnabledResult struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	return req, nil
}

// do executes the request and classifies failures: network errors become
// TransportError, 401/403 become AuthError, 404 becomes ErrNotFound.
// Any other non-2xx status is reported as a TransportError carrying the
// response body.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg := readErrorBody(resp)
		resp.Body.Close()
		return nil, &AuthError{Status: resp.StatusCode, Message: msg}
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		msg := readErrorBody(resp)
		resp.Body.Close()
		return nil, &TransportError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)}
	}
}

func readErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return string(body)
}

// Enabled checks whether a single flag is enabled. Flag names may
// contain dots, so the name is path-escaped. A flag unknown to the
// service reads as disabled rather than an error.
func (c *Client) Enabled(ctx context.Context, name string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/flags/"+url.PathEscape(name)+"/enabled", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.do(req, "check flag "+name)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	defer resp.Body.Close()

	var result EnabledResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, &TransportError{Op: "check flag " + name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return result.Enabled, nil
}

// GetFlag retrieves a single flag definition by name.
func (c *Client) GetFlag(ctx context.Context, name string) (*store.Flag, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/flags/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "get flag "+name)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var flag store.Flag
	if err := json.NewDecoder(resp.Body).Decode(&flag); err != nil {
		return nil, &TransportError{Op: "get flag " + name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &flag, nil
}

// ListFlags retrieves all flags. status may be "", "enabled" or
// "disabled" to filter by state.
func (c *Client) ListFlags(ctx context.Context, status string) ([]store.Flag, error) {
	path := "/flags"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "list flags")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Flags []store.Flag `json:"flags"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{Op: "list flags", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return result.Flags, nil
}

// CreateFlag creates a new flag.
func (c *Client) CreateFlag(ctx context.Context, params store.UpsertParams) (*store.Flag, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/flags", body)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "create flag "+params.Name)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var flag store.Flag
	if err := json.NewDecoder(resp.Body).Decode(&flag); err != nil {
		return nil, &TransportError{Op: "create flag " + params.Name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &flag, nil
}

// UpdateFlag updates the enabled state and description of a flag.
func (c *Client) UpdateFlag(ctx context.Context, params store.UpsertParams) (*store.Flag, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPut, "/flags/"+url.PathEscape(params.Name), body)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "update flag "+params.Name)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var flag store.Flag
	if err := json.NewDecoder(resp.Body).Decode(&flag); err != nil {
		return nil, &TransportError{Op: "update flag " + params.Name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &flag, nil
}

// DeleteFlag deletes a flag. Deleting a flag that does not exist is not
// an error.
func (c *Client) DeleteFlag(ctx context.Context, name string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/flags/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, "delete flag "+name)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	resp.Body.Close()
	return nil
}
