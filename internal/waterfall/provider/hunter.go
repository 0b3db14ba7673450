package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-bridge/internal/model"
	"github.com/sells-group/lead-bridge/internal/ratelimit"
	"github.com/sells-group/lead-bridge/internal/resilience"
	"github.com/sells-group/lead-bridge/pkg/hunter"
)

// Hunter adapts Hunter.io domain search.
type Hunter struct {
	client hunter.Client
	window *ratelimit.Window
	limit  int
	retry  resilience.RetryConfig
}

// NewHunter wraps a Hunter client. window paces every HTTP request; limit
// caps emails per search.
func NewHunter(client hunter.Client, window *ratelimit.Window, limit int) *Hunter {
	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = hunterRetryable
	retry.OnRetry = resilience.RetryLogger("hunter", "domain-search")
	return &Hunter{client: client, window: window, limit: limit, retry: retry}
}

// WithRetry overrides the retry policy.
func (h *Hunter) WithRetry(cfg resilience.RetryConfig) *Hunter {
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = hunterRetryable
	}
	h.retry = cfg
	return h
}

func (h *Hunter) Name() string         { return "hunter" }
func (h *Hunter) RequiresDomain() bool { return true }

func (h *Hunter) Lookup(ctx context.Context, q Query) (*Result, error) {
	if q.Domain == "" {
		return nil, eris.New("hunter: domain required")
	}

	resp, err := resilience.DoVal(ctx, h.retry, func(ctx context.Context) (*hunter.DomainSearchResponse, error) {
		if err := h.window.Acquire(ctx); err != nil {
			return nil, err
		}
		return h.client.DomainSearch(ctx, q.Domain, hunter.WithLimit(h.limit))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "hunter: domain search %s", q.Domain)
	}

	res := &Result{Domain: resp.Data.Domain}
	for _, e := range resp.Data.Emails {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		res.Candidates = append(res.Candidates, model.Candidate{
			FirstName:  e.FirstName,
			LastName:   e.LastName,
			Title:      e.Position,
			Email:      e.Value,
			Confidence: e.Confidence,
		})
	}
	return res, nil
}

func hunterRetryable(err error) bool {
	var se *hunter.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.StatusCode)
	}
	if errors.Is(err, hunter.ErrQuotaExceeded) {
		return false
	}
	return resilience.IsTransient(err)
}
