package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomTransport_SetsHeaders(t *testing.T) {
	var mu sync.Mutex
	var auth, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x33"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", 100, 1, 0, 5*time.Second, nil)
	rc, err := c.Dial(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	var result string
	require.NoError(t, rc.CallContext(context.Background(), &result, "eth_chainId"))
	assert.Equal(t, "0x33", result)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "application/json", contentType)
}

func TestCustomTransport_NoKeyNoAuthorization(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", 100, 1, 0, 5*time.Second, nil)
	resp, err := c.HTTPClient.Post(server.URL, "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Empty(t, auth)
}

func TestCustomTransport_RateLimitRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	// one token per minute: the second request has to wait
	c := NewClient(server.URL, "", 1.0/60, 1, 0, 5*time.Second, nil)
	resp, err := c.HTTPClient.Get(server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = c.HTTPClient.Do(req)
	assert.Error(t, err)
}

func TestRetry(t *testing.T) {
	c := NewClient("http://unused", "", 10, 3, time.Millisecond, time.Second, nil)

	calls := 0
	err := c.Retry(context.Background(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("permanent")
	err = c.Retry(context.Background(), "broken", func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnContextDone(t *testing.T) {
	c := NewClient("http://unused", "", 10, 5, time.Hour, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := c.Retry(ctx, "cancelled", func() error {
		calls++
		return errors.New("temporary")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewClient_ClampsRetries(t *testing.T) {
	c := NewClient("http://unused", "", 10, 0, 0, time.Second, nil)
	assert.Equal(t, 1, c.MaxRetries)
}
