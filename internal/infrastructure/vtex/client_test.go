package vtex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestClient builds a client against a test server with instant sleeps,
// recording every sleep duration into the returned slice.
func newTestClient(t *testing.T, serverURL string, cfg ClientConfig) (*Client, *[]time.Duration) {
	t.Helper()
	cfg.BaseURL = serverURL
	cfg.RateLimitPerSec = 10000
	client := NewClient(cfg, zap.NewNop())

	var slept []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return client, &slept
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, slept := newTestClient(t, server.URL, ClientConfig{
		MaxAttempts: 3,
		BackoffBase: 2 * time.Second,
	})

	resp, err := client.get(context.Background(), "/api/oms/pvt/orders/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, calls)
	// exponential backoff with base 2s, multiplier 2, no jitter
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestClientCoolsDownOnThrottling(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, slept := newTestClient(t, server.URL, ClientConfig{
		MaxAttempts:   3,
		CooldownOn429: 20 * time.Second,
	})

	_, err := client.get(context.Background(), "/api/oms/pvt/orders/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{20 * time.Second}, *slept)
}

func TestClientThrottlingConsumesAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, ClientConfig{MaxAttempts: 3})

	_, err := client.get(context.Background(), "/api/oms/pvt/orders/", nil, nil)

	var maxErr *MaxAttemptsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, http.StatusTooManyRequests, maxErr.LastStatus)
	assert.Equal(t, 3, calls)
}

func TestClientFailsFastOnClientErrors(t *testing.T) {
	for _, status := range []int{400, 403, 404, 422} {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"no such order"}}`))
		}))

		client, slept := newTestClient(t, server.URL, ClientConfig{MaxAttempts: 3})

		_, err := client.get(context.Background(), "/api/oms/pvt/orders/x", url.Values{"page": {"1"}}, nil)
		server.Close()

		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr, "status %d", status)
		assert.Equal(t, status, reqErr.Code)
		assert.Equal(t, "no such order", reqErr.Message)
		assert.Equal(t, "/api/oms/pvt/orders/x", reqErr.Endpoint)
		assert.False(t, reqErr.SendToClient)
		assert.Equal(t, 1, calls, "client errors must not retry")
		assert.Empty(t, *slept)
	}
}

func TestClientNotFoundMatchesSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, ClientConfig{})

	_, err := client.get(context.Background(), "/api/pricing/prices/9", nil, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClientExhaustsAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, slept := newTestClient(t, server.URL, ClientConfig{
		MaxAttempts: 3,
		BackoffBase: 2 * time.Second,
	})

	_, err := client.get(context.Background(), "/api/oms/pvt/orders/", nil, nil)

	var maxErr *MaxAttemptsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, http.StatusBadGateway, maxErr.LastStatus)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)

	// a server that kept failing is distinguishable from a connectivity
	// failure, and flagged for the account owner
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadGateway, reqErr.Code)
	assert.True(t, reqErr.SendToClient)
}

func TestClientCapsMaxAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, ClientConfig{MaxAttempts: 12})

	_, err := client.get(context.Background(), "/", nil, nil)
	assert.Error(t, err)
	assert.Equal(t, 5, calls)
}

func TestClientSendsCredentialHeaders(t *testing.T) {
	var gotKey, gotToken, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-VTEX-API-AppKey")
		gotToken = r.Header.Get("X-VTEX-API-AppToken")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, ClientConfig{
		AppKey:   "key-123",
		AppToken: "token-456",
	})

	_, err := client.get(context.Background(), "/api/oms/pvt/orders/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "key-123", gotKey)
	assert.Equal(t, "token-456", gotToken)
	assert.Equal(t, "application/vnd.vtex.ds.v10+json", gotAccept)
}
