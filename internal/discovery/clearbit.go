package discovery

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-bridge/internal/gate"
	"github.com/sells-group/lead-bridge/pkg/clearbit"
)

// Clearbit discovers domains through company autocomplete. Only the first
// suggestion is considered; a blocked first suggestion is reported as
// blocked, not skipped in favour of the second.
type Clearbit struct {
	client   clearbit.Client
	denylist *gate.Denylist
}

// NewClearbit creates a Clearbit discoverer.
func NewClearbit(client clearbit.Client, denylist *gate.Denylist) *Clearbit {
	return &Clearbit{client: client, denylist: denylist}
}

func (c *Clearbit) Name() string { return "clearbit" }

func (c *Clearbit) Discover(ctx context.Context, q Query) (Result, error) {
	suggestions, err := c.client.Suggest(ctx, q.Name)
	if err != nil {
		return Result{}, eris.Wrapf(err, "discovery: clearbit suggest %q", q.Name)
	}
	if len(suggestions) == 0 {
		return Result{}, nil
	}

	domain := RootDomain(suggestions[0].Domain)
	if domain == "" {
		return Result{}, nil
	}
	if c.denylist.IsBlocked(domain) {
		return Result{Blocked: []string{domain}}, nil
	}
	return Result{Domain: domain}, nil
}
