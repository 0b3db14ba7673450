package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-bridge/internal/gate"
	"github.com/sells-group/lead-bridge/pkg/jina"
)

// Search discovers domains through web search. Query templates are tried in
// order; a later template runs only when every result of the earlier ones
// was blocked or unusable. Templates use {name}, {city} and {state}.
type Search struct {
	client    jina.Client
	denylist  *gate.Denylist
	templates []string
	count     int
}

// DefaultSearchTemplates is used when a profile names none.
var DefaultSearchTemplates = []string{
	"{name} {city} {state}",
	"{name} official website",
}

// NewSearch creates a search discoverer. count caps results per query.
func NewSearch(client jina.Client, denylist *gate.Denylist, templates []string, count int) *Search {
	if len(templates) == 0 {
		templates = DefaultSearchTemplates
	}
	if count <= 0 {
		count = 10
	}
	return &Search{client: client, denylist: denylist, templates: templates, count: count}
}

func (s *Search) Name() string { return "search" }

func (s *Search) Discover(ctx context.Context, q Query) (Result, error) {
	var (
		res      Result
		seen     = map[string]bool{}
		failures int
		lastErr  error
	)

	for _, tmpl := range s.templates {
		query := expand(tmpl, q)
		if query == "" {
			continue
		}

		resp, err := s.client.Search(ctx, query, jina.WithCount(s.count))
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			zap.L().Debug("discovery: search query failed", zap.String("query", query), zap.Error(err))
			failures++
			lastErr = err
			continue
		}

		for _, u := range resp.URLs() {
			domain := RootDomain(u)
			if domain == "" || seen[domain] {
				continue
			}
			seen[domain] = true
			if s.denylist.IsBlocked(domain) {
				res.Blocked = append(res.Blocked, domain)
				continue
			}
			res.Domain = domain
			return res, nil
		}
	}

	if failures > 0 && failures == len(s.templates) {
		return res, eris.Wrapf(lastErr, "discovery: every search query failed for %q", q.Name)
	}
	return res, nil
}

// expand fills a template and collapses the whitespace left by empty fields.
func expand(tmpl string, q Query) string {
	r := strings.NewReplacer("{name}", q.Name, "{city}", q.City, "{state}", q.State)
	return strings.Join(strings.Fields(r.Replace(tmpl)), " ")
}
