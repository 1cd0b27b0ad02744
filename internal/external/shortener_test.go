package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdrain/internal/types"
)

func TestShortenSuccess(t *testing.T) {
	var gotAuth string
	var gotReq shortenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v4/shorten", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]string{"link": "https://bit.ly/abc"})
	}))
	defer srv.Close()

	c := NewShortenerClient(srv.Client(), srv.URL, "tkn", "bit.ly")

	link, err := c.Shorten(context.Background(), "https://example.com/very/long", "")
	require.NoError(t, err)
	assert.Equal(t, "https://bit.ly/abc", link)
	assert.Equal(t, "Bearer tkn", gotAuth)
	assert.Equal(t, "https://example.com/very/long", gotReq.LongURL)
	assert.Equal(t, "bit.ly", gotReq.Domain)
}

func TestShortenRoutingDomainOverridesDefault(t *testing.T) {
	var gotReq shortenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]string{"link": "https://cust.om/x"})
	}))
	defer srv.Close()

	c := NewShortenerClient(srv.Client(), srv.URL, "tkn", "bit.ly")

	_, err := c.Shorten(context.Background(), "https://example.com/a", "cust.om")
	require.NoError(t, err)
	assert.Equal(t, "cust.om", gotReq.Domain)
}

func TestShortenUpstreamFailureNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewShortenerClient(srv.Client(), srv.URL, "tkn", "bit.ly")

	_, err := c.Shorten(context.Background(), "https://example.com/a", "")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a failed call must not be retried")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamShortener, appErr.Code)
}

func TestShortenBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewShortenerClient(srv.Client(), srv.URL, "tkn", "bit.ly")
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := c.Shorten(ctx, "https://example.com/a", "")
		require.Error(t, err)
	}
	// After the trip point the breaker rejects without reaching the server.
	assert.Less(t, calls, 10)
}

func TestShortenMissingLinkField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "abc"})
	}))
	defer srv.Close()

	c := NewShortenerClient(srv.Client(), srv.URL, "tkn", "bit.ly")

	_, err := c.Shorten(context.Background(), "https://example.com/a", "")
	require.Error(t, err)
}
