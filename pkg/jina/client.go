// Package jina provides a client for the Jina AI web search API, used to
// find a company's website from its name and location.
package jina

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Jina search operations.
type Client interface {
	// Search performs a web search and returns the ranked results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the parsed Jina Search API response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// URLs returns the result URLs in rank order.
func (r *SearchResponse) URLs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Data))
	for _, d := range r.Data {
		if d.URL != "" {
			out = append(out, d.URL)
		}
	}
	return out
}

// SearchOption configures a search request.
type SearchOption func(url.Values)

// WithCount caps the number of results requested.
func WithCount(n int) SearchOption {
	return func(v url.Values) {
		if n > 0 {
			v.Set("count", strconv.Itoa(n))
		}
	}
}

// WithCountry biases results toward a country code such as "US".
func WithCountry(code string) SearchOption {
	return func(v url.Values) {
		if code != "" {
			v.Set("gl", strings.ToLower(code))
		}
	}
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithSearchBaseURL sets a custom search base URL (for testing).
func WithSearchBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetries sets how many times a 429 or 5xx answer is tried and the first
// wait between tries. The wait doubles per attempt unless the server sends
// Retry-After.
func WithRetries(attempts int, wait time.Duration) Option {
	return func(c *httpClient) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.wait = wait
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	attempts int
	wait     time.Duration
	http     *http.Client
}

// NewClient creates a Jina search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  "https://s.jina.ai",
		attempts: 3,
		wait:     time.Second,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryAfter is the pause a throttled answer asks for, or zero.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

type answer struct {
	status int
	body   []byte
	pause  time.Duration
}

func (c *httpClient) get(ctx context.Context, reqURL string) (answer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return answer{}, eris.Wrap(err, "jina: create search request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Respond-With", "no-content")

	resp, err := c.http.Do(req)
	if err != nil {
		return answer{}, eris.Wrap(err, "jina: search request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return answer{}, eris.Wrap(err, "jina: read response body")
	}
	return answer{status: resp.StatusCode, body: body, pause: retryAfter(resp.Header)}, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, eris.New("jina: empty search query")
	}

	params := url.Values{}
	for _, opt := range opts {
		opt(params)
	}
	reqURL := c.baseURL + "/" + url.PathEscape(query)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var (
		ans  answer
		err  error
		wait = c.wait
	)
	for attempt := 1; ; attempt++ {
		ans, err = c.get(ctx, reqURL)
		if err == nil && !retryable(ans.status) {
			break
		}
		if attempt >= c.attempts || ctx.Err() != nil {
			break
		}
		pause := wait
		if ans.pause > 0 {
			pause = ans.pause
		}
		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "jina: search cancelled")
		case <-time.After(pause):
		}
		wait *= 2
	}
	if err != nil {
		return nil, err
	}

	switch ans.status {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		// No results for the query.
		return &SearchResponse{Code: ans.status}, nil
	default:
		msg := string(ans.body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, eris.Errorf("jina: search unexpected status %d: %s", ans.status, msg)
	}

	var result SearchResponse
	if err := json.Unmarshal(ans.body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}
	return &result, nil
}
