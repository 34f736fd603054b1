package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarder_DeliversPayload(t *testing.T) {
	var mu sync.Mutex
	var received []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := NewForwarder(srv.URL, zerolog.Nop())
	f.Start()
	f.Forward(map[string]any{"type": "view", "experiment": "checkout_cta"})
	require.NoError(t, f.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "view", received[0]["type"])
}

func TestForwarder_RetriesTransientFailure(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewForwarder(srv.URL, zerolog.Nop())
	f.Start()
	f.Forward(map[string]any{"type": "conversion"})
	require.NoError(t, f.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestForwarder_ClientErrorNotRetried(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	f := NewForwarder(srv.URL, zerolog.Nop())
	f.Start()
	f.Forward(map[string]any{"type": "view"})
	require.NoError(t, f.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}

func TestForwarder_DisabledDropsSilently(t *testing.T) {
	f := NewForwarder("", zerolog.Nop())
	f.Start()
	assert.False(t, f.Enabled())
	f.Forward(map[string]any{"type": "view"}) // must not block or panic
	require.NoError(t, f.Close())
}

func TestForwarder_CloseIsIdempotent(t *testing.T) {
	f := NewForwarder("", zerolog.Nop())
	f.Start()
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestForwarder_ConcurrentForwardAndClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewForwarder(srv.URL, zerolog.Nop())
	f.Start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				f.Forward(map[string]any{"type": "view"})
			}
		}()
	}
	require.NoError(t, f.Close())
	wg.Wait()
}

func TestForwarder_ForwardAfterCloseIsNoop(t *testing.T) {
	f := NewForwarder("http://localhost:1", zerolog.Nop())
	f.Start()
	require.NoError(t, f.Close())
	done := make(chan struct{})
	go func() {
		f.Forward(map[string]any{"type": "view"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward blocked after Close")
	}
}
