// Package hunter provides a client for the Hunter.io domain search API.
package hunter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// ErrQuotaExceeded is returned when Hunter answers 403: the account's
// monthly search allowance is spent and further calls will keep failing.
var ErrQuotaExceeded = eris.New("hunter: search quota exceeded")

// Client defines the Hunter operations.
type Client interface {
	// DomainSearch returns the email addresses Hunter knows for domain.
	DomainSearch(ctx context.Context, domain string, opts ...SearchOption) (*DomainSearchResponse, error)
}

// DomainSearchResponse is the parsed domain search payload.
type DomainSearchResponse struct {
	Data DomainData `json:"data"`
	Meta Meta       `json:"meta"`
}

// DomainData holds the organization and its known emails.
type DomainData struct {
	Domain       string  `json:"domain"`
	Organization string  `json:"organization"`
	Pattern      string  `json:"pattern"`
	Emails       []Email `json:"emails"`
}

// Email is one address with the person it belongs to.
type Email struct {
	Value      string `json:"value"`
	Type       string `json:"type"`
	Confidence *int   `json:"confidence"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Position   string `json:"position"`
	Seniority  string `json:"seniority"`
	Department string `json:"department"`
}

// Meta carries result counts.
type Meta struct {
	Results int `json:"results"`
	Limit   int `json:"limit"`
	Offset  int `json:"offset"`
}

// SearchOption configures a domain search.
type SearchOption func(url.Values)

// WithLimit caps the number of emails returned.
func WithLimit(n int) SearchOption {
	return func(v url.Values) {
		if n > 0 {
			v.Set("limit", fmt.Sprint(n))
		}
	}
}

// WithType restricts results to "personal" or "generic" addresses.
func WithType(t string) SearchOption {
	return func(v url.Values) {
		if t != "" {
			v.Set("type", t)
		}
	}
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
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Hunter client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.hunter.io/v2",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx answer from Hunter.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hunter: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *httpClient) DomainSearch(ctx context.Context, domain string, opts ...SearchOption) (*DomainSearchResponse, error) {
	params := url.Values{}
	params.Set("domain", domain)
	params.Set("api_key", c.apiKey)
	for _, opt := range opts {
		opt(params)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain-search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "hunter: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrQuotaExceeded
	case resp.StatusCode != http.StatusOK:
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	var out DomainSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "hunter: unmarshal response")
	}
	return &out, nil
}
