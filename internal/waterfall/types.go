package waterfall

import (
	"context"
	"time"
)

// Call outcomes, used for the ledger and metrics.
const (
	CallOK          = "ok"
	CallEmpty       = "empty"
	CallError       = "error"
	CallCircuitOpen = "circuit_open"
)

// CallRecord describes one provider lookup.
type CallRecord struct {
	RunID      string
	Entity     string
	Provider   string
	Stage      string
	Outcome    string
	Candidates int
	Error      string
	Duration   time.Duration
	At         time.Time
}

// CallRecorder persists call records. Recording failures are logged, never
// propagated.
type CallRecorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

// Outcome is the result of enriching one entity.
type Outcome struct {
	// Tag is the final provenance tag; never empty.
	Tag string
	// Calls is the number of provider lookups made for this entity.
	Calls int
	// DomainBlocked is set when the stored domain failed re-validation.
	DomainBlocked bool
	// BudgetExhausted is set when the run cap stopped the chain.
	BudgetExhausted bool
}
