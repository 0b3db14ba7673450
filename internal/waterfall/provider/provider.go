// Package provider defines the contact lookup providers the waterfall walks.
package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/lead-bridge/internal/model"
)

// Query identifies the organization to look up.
type Query struct {
	Name   string
	Domain string
	City   string
	State  string
}

// QueryFor builds a query from an entity and the domain the caller trusts.
func QueryFor(e *model.Entity, domain string) Query {
	return Query{
		Name:   e.Name,
		Domain: domain,
		City:   e.Location.City,
		State:  e.Location.State,
	}
}

// Result is what one lookup produced.
type Result struct {
	Candidates []model.Candidate
	// OrgID is the provider's organization id, when it resolved one.
	OrgID string
	// Domain is the organization's primary domain as the provider knows it.
	Domain string
}

// Empty reports whether the lookup produced nothing usable.
func (r *Result) Empty() bool {
	return r == nil || (len(r.Candidates) == 0 && r.OrgID == "" && r.Domain == "")
}

// Provider looks up candidate contacts for one organization. The two shapes
// in use are domain search (needs a verified domain) and org-then-people
// search (works from the name).
type Provider interface {
	Name() string
	// RequiresDomain reports whether Lookup is pointless without a domain.
	RequiresDomain() bool
	Lookup(ctx context.Context, q Query) (*Result, error)
}

// Registry holds the providers configured for a run. Providers whose
// credentials are missing are simply never registered.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
