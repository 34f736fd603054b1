// Package analytics forwards experiment events and telemetry exports to
// an external analytics endpoint. Forwarding is strictly best-effort: a
// full queue drops the event, a failed delivery is logged and abandoned
// after a few retries, and nothing in the primary tracking path ever
// waits on a delivery.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const (
	// queueSize is the buffer size for the event queue.
	queueSize = 1000

	// maxDeliveryAttempts bounds retries for a single payload.
	maxDeliveryAttempts = 4

	// deliveryTimeout bounds a single HTTP attempt.
	deliveryTimeout = 10 * time.Second
)

// Forwarder ships JSON payloads to a configured endpoint from a single
// background worker. A Forwarder with an empty endpoint is valid and
// silently discards everything, which is how "analytics disabled" is
// modeled.
type Forwarder struct {
	endpoint string
	client   *http.Client
	queue    chan any
	done     chan struct{}
	log      zerolog.Logger

	// mu orders Forward's send against Close's channel close so a
	// concurrent Forward can never hit a closed queue.
	mu     sync.RWMutex
	closed bool
}

// NewForwarder creates a forwarder for the given endpoint. An empty
// endpoint disables forwarding entirely.
func NewForwarder(endpoint string, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: deliveryTimeout},
		queue:    make(chan any, queueSize),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Enabled reports whether an endpoint is configured.
func (f *Forwarder) Enabled() bool { return f.endpoint != "" }

// Start begins processing queued payloads.
func (f *Forwarder) Start() {
	go f.worker()
}

// Close shuts the forwarder down after draining pending payloads.
// Safe to call multiple times and concurrently with Forward.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	<-f.done
	return nil
}

// Forward queues a payload for delivery without blocking the caller.
// When the queue is full the payload is dropped and the drop is logged.
// After Close it is a no-op.
func (f *Forwarder) Forward(payload any) {
	if !f.Enabled() {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- payload:
	default:
		f.log.Warn().Int("queue_size", queueSize).
			Msg("analytics queue full, dropping event")
	}
}

func (f *Forwarder) worker() {
	defer close(f.done)
	for payload := range f.queue {
		f.deliver(payload)
	}
}

// deliver posts one payload, retrying transient failures with
// exponential backoff. Failures are logged, never surfaced.
func (f *Forwarder) deliver(payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		f.log.Error().Err(err).Msg("failed to marshal analytics payload")
		return
	}

	operation := func() (struct{}, error) {
		return struct{}{}, f.post(body)
	}

	_, err = backoff.Retry(context.Background(), operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxDeliveryAttempts))
	if err != nil {
		f.log.Warn().Err(err).Str("endpoint", f.endpoint).
			Msg("analytics delivery failed permanently")
	}
}

func (f *Forwarder) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// The payload will never be accepted; don't retry.
		return backoff.Permanent(fmt.Errorf("analytics endpoint rejected payload: status %d", resp.StatusCode))
	}
	return fmt.Errorf("analytics endpoint returned status %d", resp.StatusCode)
}
