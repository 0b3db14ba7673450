package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-bridge/internal/model"
	"github.com/sells-group/lead-bridge/internal/ratelimit"
	"github.com/sells-group/lead-bridge/pkg/apollo"
)

// Apollo adapts Apollo's org-then-people search: the organization is resolved
// by name (scoped by domain or location when known), then its people are
// listed.
type Apollo struct {
	client  apollo.Client
	window  *ratelimit.Window
	perPage int
	titles  []string
}

// NewApollo wraps an Apollo client. titles, when set, narrows the people
// search server-side; ranking still happens locally.
func NewApollo(client apollo.Client, window *ratelimit.Window, perPage int, titles []string) *Apollo {
	return &Apollo{client: client, window: window, perPage: perPage, titles: titles}
}

func (a *Apollo) Name() string         { return "apollo" }
func (a *Apollo) RequiresDomain() bool { return false }

func (a *Apollo) Lookup(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.Name) == "" && q.Domain == "" {
		return nil, eris.New("apollo: name or domain required")
	}

	oq := apollo.OrgQuery{Name: q.Name, PerPage: 1}
	if q.Domain != "" {
		oq.Domains = []string{q.Domain}
	} else if loc := location(q); loc != "" {
		oq.Locations = []string{loc}
	}

	if err := a.window.Acquire(ctx); err != nil {
		return nil, err
	}
	orgs, err := a.client.SearchOrganizations(ctx, oq)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 || orgs[0].ID == "" {
		return &Result{}, nil
	}
	org := orgs[0]

	if err := a.window.Acquire(ctx); err != nil {
		return nil, err
	}
	people, err := a.client.SearchPeople(ctx, apollo.PeopleQuery{
		OrganizationIDs: []string{org.ID},
		Titles:          a.titles,
		PerPage:         a.perPage,
	})
	if err != nil {
		// The organization id is still worth keeping.
		return &Result{OrgID: org.ID, Domain: org.PrimaryDomain}, err
	}

	res := &Result{OrgID: org.ID, Domain: org.PrimaryDomain}
	for _, p := range people {
		first, last := p.FirstName, p.LastName
		if first == "" && last == "" && p.Name != "" {
			first, last, _ = strings.Cut(p.Name, " ")
		}
		res.Candidates = append(res.Candidates, model.Candidate{
			FirstName: first,
			LastName:  last,
			Title:     p.Title,
			Email:     p.UsableEmail(),
		})
	}
	return res, nil
}

func location(q Query) string {
	switch {
	case q.City != "" && q.State != "":
		return q.City + ", " + q.State
	case q.State != "":
		return q.State
	default:
		return q.City
	}
}
