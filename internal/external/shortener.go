// Package external provides the anti-corruption layer between linkdrain and
// the third-party shortening API. Outbound calls go through a circuit
// breaker so a hard-down upstream fails fast instead of burning Lambda time;
// there is deliberately no retry loop, since the batch threshold is the rate
// control and a failed item surfaces as a join gap at finalize time.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"linkdrain/internal/types"
)

// shortenPath is the API endpoint for creating a short link.
const shortenPath = "/v4/shorten"

// ShortenerClient implements types.Shortener against a bitly-compatible API.
type ShortenerClient struct {
	client        *http.Client
	breaker       *gobreaker.CircuitBreaker[*shortenResponse]
	baseURL       string
	token         string
	defaultDomain string
}

type shortenRequest struct {
	LongURL string `json:"long_url"`
	Domain  string `json:"domain"`
}

type shortenResponse struct {
	Link string `json:"link"`
}

// NewShortenerClient creates a ShortenerClient. The breaker opens after five
// consecutive failures and probes with a single request after its timeout.
func NewShortenerClient(httpClient *http.Client, baseURL, token, defaultDomain string) *ShortenerClient {
	cb := gobreaker.NewCircuitBreaker[*shortenResponse](gobreaker.Settings{
		Name:        "shortener",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &ShortenerClient{
		client:        httpClient,
		breaker:       cb,
		baseURL:       baseURL,
		token:         token,
		defaultDomain: defaultDomain,
	}
}

// Shorten performs one synchronous call to the shortening API. domain may be
// empty, in which case the configured default domain is used. A non-2xx
// response or transport failure is returned as an upstream error; the caller
// does not retry.
func (c *ShortenerClient) Shorten(ctx context.Context, longURL, domain string) (string, error) {
	if domain == "" {
		domain = c.defaultDomain
	}

	resp, err := c.breaker.Execute(func() (*shortenResponse, error) {
		return c.doShorten(ctx, longURL, domain)
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamShortener,
			fmt.Sprintf("shorten call failed for %s", longURL), err)
	}
	return resp.Link, nil
}

func (c *ShortenerClient) doShorten(ctx context.Context, longURL, domain string) (*shortenResponse, error) {
	body, err := json.Marshal(shortenRequest{LongURL: longURL, Domain: domain})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shorten request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+shortenPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build shorten request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shorten request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Body is bounded; error bodies from the API are small JSON blobs.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("shorten returned status %d: %s", resp.StatusCode, snippet)
	}

	var out shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode shorten response: %w", err)
	}
	if out.Link == "" {
		return nil, fmt.Errorf("shorten response missing link field")
	}
	return &out, nil
}
