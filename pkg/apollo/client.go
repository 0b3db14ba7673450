// Package apollo provides a client for the Apollo.io organization and people
// search APIs.
package apollo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// Client defines the Apollo operations used for contact lookup.
type Client interface {
	// SearchOrganizations resolves an organization name (optionally scoped to
	// a location or domain) to Apollo organizations.
	SearchOrganizations(ctx context.Context, q OrgQuery) ([]Organization, error)
	// SearchPeople lists people at the given organizations or domains.
	SearchPeople(ctx context.Context, q PeopleQuery) ([]Person, error)
}

// OrgQuery scopes an organization search.
type OrgQuery struct {
	Name      string   `json:"q_organization_name,omitempty"`
	Locations []string `json:"organization_locations,omitempty"`
	Domains   []string `json:"q_organization_domains_list,omitempty"`
	Page      int      `json:"page"`
	PerPage   int      `json:"per_page"`
}

// Organization is one organization match.
type Organization struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WebsiteURL    string `json:"website_url"`
	PrimaryDomain string `json:"primary_domain"`
}

// PeopleQuery scopes a people search.
type PeopleQuery struct {
	OrganizationIDs []string `json:"organization_ids,omitempty"`
	Domains         []string `json:"q_organization_domains_list,omitempty"`
	Titles          []string `json:"person_titles,omitempty"`
	Page            int      `json:"page"`
	PerPage         int      `json:"per_page"`
}

// Person is one person record.
type Person struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Name           string `json:"name"`
	Title          string `json:"title"`
	Email          string `json:"email"`
	EmailStatus    string `json:"email_status"`
	OrganizationID string `json:"organization_id"`
}

// Placeholder Apollo returns for emails the plan cannot reveal.
const lockedEmail = "email_not_unlocked@domain.com"

// UsableEmail returns the person's email unless Apollo masked it.
func (p Person) UsableEmail() string {
	e := strings.TrimSpace(p.Email)
	if e == "" || strings.EqualFold(e, lockedEmail) || !strings.Contains(e, "@") {
		return ""
	}
	return e
}

type orgSearchResponse struct {
	Organizations []Organization `json:"organizations"`
	Accounts      []Organization `json:"accounts"`
}

type peopleSearchResponse struct {
	People   []Person `json:"people"`
	Contacts []Person `json:"contacts"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Option configures the client.
type Option func(*restClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *restClient) {
		c.http.SetBaseURL(u)
	}
}

// WithRetries sets the retry count and initial wait for 429 and 5xx answers.
func WithRetries(count int, wait time.Duration) Option {
	return func(c *restClient) {
		c.http.SetRetryCount(count).SetRetryWaitTime(wait).SetRetryMaxWaitTime(wait * 8)
	}
}

type restClient struct {
	http *resty.Client
}

// NewClient creates an Apollo client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	hc := resty.New().
		SetBaseURL("https://api.apollo.io/api/v1").
		SetTimeout(20*time.Second).
		SetHeader("X-Api-Key", apiKey).
		SetHeader("Cache-Control", "no-cache").
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(20 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return false
			}
			code := r.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		})

	c := &restClient{http: hc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *restClient) SearchOrganizations(ctx context.Context, q OrgQuery) ([]Organization, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 1
	}

	var out orgSearchResponse
	if err := c.post(ctx, "/mixed_companies/search", q, &out); err != nil {
		return nil, eris.Wrap(err, "apollo: organization search")
	}
	return append(out.Organizations, out.Accounts...), nil
}

func (c *restClient) SearchPeople(ctx context.Context, q PeopleQuery) ([]Person, error) {
	if len(q.OrganizationIDs) == 0 && len(q.Domains) == 0 {
		return nil, eris.New("apollo: people search needs an organization id or domain")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 10
	}

	var out peopleSearchResponse
	if err := c.post(ctx, "/mixed_people/search", q, &out); err != nil {
		return nil, eris.Wrap(err, "apollo: people search")
	}
	return append(out.People, out.Contacts...), nil
}

func (c *restClient) post(ctx context.Context, path string, body, result any) error {
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = apiErr.Message
		}
		if msg == "" {
			msg = truncate(resp.String(), 200)
		}
		return eris.Errorf("unexpected status %d: %s", resp.StatusCode(), msg)
	}
	if resp.StatusCode() != http.StatusOK {
		return eris.Errorf("unexpected status %d", resp.StatusCode())
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
