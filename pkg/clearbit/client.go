// Package clearbit provides a client for the Clearbit company autocomplete
// API, which maps a free-text company name to candidate web domains.
package clearbit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the autocomplete operations.
type Client interface {
	// Suggest returns companies matching name, best match first.
	Suggest(ctx context.Context, name string) ([]Suggestion, error)
}

// Suggestion is one autocomplete result.
type Suggestion struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Logo   string `json:"logo"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an autocomplete client. The endpoint is unauthenticated.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://autocomplete.clearbit.com/v1",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Suggest(ctx context.Context, name string) ([]Suggestion, error) {
	reqURL := c.baseURL + "/companies/suggest?query=" + url.QueryEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "clearbit: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "clearbit: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "clearbit: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("clearbit: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out []Suggestion
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "clearbit: unmarshal response")
	}
	return out, nil
}
