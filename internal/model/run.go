package model

import "time"

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusStopped  RunStatus = "stopped" // hard cap reached
	RunStatusFailed   RunStatus = "failed"
)

// Run is one execution of a profile.
type Run struct {
	ID        string    `json:"id"`
	Profile   string    `json:"profile"`
	Status    RunStatus `json:"status"`
	Stats     RunStats  `json:"stats"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStats summarizes a run for the ledger and the final report.
type RunStats struct {
	Entities        int            `json:"entities"`
	DomainsFound    int            `json:"domains_found"`
	DomainsBlocked  int            `json:"domains_blocked"`
	DomainsCached   int            `json:"domains_cached"`
	Enriched        int            `json:"enriched"`
	NotFound        int            `json:"not_found"`
	ProviderCalls   int            `json:"provider_calls"`
	BudgetExhausted bool           `json:"budget_exhausted"`
	BySource        map[string]int `json:"by_source,omitempty"`
}
