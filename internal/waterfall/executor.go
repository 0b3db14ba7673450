package waterfall

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-bridge/internal/gate"
	"github.com/sells-group/lead-bridge/internal/metrics"
	"github.com/sells-group/lead-bridge/internal/model"
	"github.com/sells-group/lead-bridge/internal/rank"
	"github.com/sells-group/lead-bridge/internal/ratelimit"
	"github.com/sells-group/lead-bridge/internal/resilience"
	"github.com/sells-group/lead-bridge/internal/waterfall/provider"
)

// Executor walks the provider chain for one entity at a time. It is safe for
// concurrent use across different entities.
type Executor struct {
	stages   []Stage
	denylist *gate.Denylist
	budget   *ratelimit.Budget
	breakers map[string]*resilience.CircuitBreaker
	recorder CallRecorder
	runID    string
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewExecutor creates an executor over stages. A nil budget is unlimited.
func NewExecutor(stages []Stage, denylist *gate.Denylist, budget *ratelimit.Budget) *Executor {
	e := &Executor{
		stages:   stages,
		denylist: denylist,
		budget:   budget,
		breakers: make(map[string]*resilience.CircuitBreaker),
		now:      time.Now,
	}
	return e.WithBreakers(resilience.DefaultCircuitBreakerConfig())
}

// WithBreakers gives every provider in the chain its own circuit breaker.
func (e *Executor) WithBreakers(cfg resilience.CircuitBreakerConfig) *Executor {
	e.breakers = make(map[string]*resilience.CircuitBreaker, len(e.stages))
	for _, s := range e.stages {
		name := s.Provider.Name()
		if _, ok := e.breakers[name]; !ok {
			e.breakers[name] = resilience.NewCircuitBreaker(name, cfg)
		}
	}
	return e
}

// WithRecorder persists every call under runID.
func (e *Executor) WithRecorder(runID string, rec CallRecorder) *Executor {
	e.runID = runID
	e.recorder = rec
	return e
}

// WithMetrics counts calls on m.
func (e *Executor) WithMetrics(m *metrics.Metrics) *Executor {
	e.metrics = m
	return e
}

// WithNow sets the clock used for call records (for testing).
func (e *Executor) WithNow(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Active reports whether any stage survived configuration.
func (e *Executor) Active() bool {
	return len(e.stages) > 0
}

// Budget returns the run budget.
func (e *Executor) Budget() *ratelimit.Budget {
	return e.budget
}

// Enrich runs the chain for ent and writes the merged contact and provenance
// tag back to it. Provider failures never escape: a failed call counts as a
// call that returned nothing.
func (e *Executor) Enrich(ctx context.Context, ent *model.Entity) Outcome {
	log := zap.L().With(zap.String("entity", ent.Name))
	var out Outcome

	if ent.Contact.Email != "" {
		if ent.Contact.Source == "" {
			ent.Contact.Source = model.SourceInput
		}
		out.Tag = ent.Contact.Source
		return out
	}

	domain := ent.Domain
	if domain != "" && e.denylist.IsBlocked(domain) {
		log.Info("waterfall: stored domain is blocked, treating as absent",
			zap.String("domain", domain),
			zap.String("match", e.denylist.Match(domain)),
		)
		out.DomainBlocked = true
		domain = ""
	}

	contact := ent.Contact
	tag := ""

	for _, st := range e.stages {
		if contact.Email != "" || ctx.Err() != nil {
			break
		}
		name := st.Provider.Name()

		if st.Provider.RequiresDomain() && domain == "" {
			log.Debug("waterfall: no usable domain, stage skipped", zap.String("stage", st.Label))
			continue
		}

		breaker := e.breakers[name]
		if breaker != nil && breaker.State() == resilience.CircuitOpen {
			e.record(ctx, ent, st, CallCircuitOpen, 0, nil, 0)
			continue
		}

		if !e.budget.TryAcquire() {
			out.BudgetExhausted = true
			log.Info("waterfall: call budget exhausted", zap.Int("max_calls", e.budget.Max()))
			break
		}
		e.metrics.SetBudgetUsed(e.budget.Used())
		out.Calls++

		start := e.now()
		res, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*provider.Result, error) {
			return st.Provider.Lookup(ctx, provider.QueryFor(ent, domain))
		})
		elapsed := e.now().Sub(start)

		// Metadata is kept even from a failed call.
		if res != nil {
			if ent.OrgID == "" && res.OrgID != "" {
				ent.OrgID = res.OrgID
			}
			if domain == "" && !out.DomainBlocked {
				if d := normalizeDomain(res.Domain); d != "" && !e.denylist.IsBlocked(d) {
					domain = d
					if ent.Domain == "" {
						ent.Domain = d
					}
				}
			}
		}

		if err != nil {
			outcome := CallError
			if resilience.IsCircuitOpen(err) {
				outcome = CallCircuitOpen
			}
			log.Warn("waterfall: provider lookup failed",
				zap.String("provider", name),
				zap.Error(err),
			)
			e.record(ctx, ent, st, outcome, 0, err, elapsed)
			continue
		}

		candidates := 0
		if res != nil {
			candidates = len(res.Candidates)
		}
		pick, ok := rank.PickBest(resCandidates(res), st.Tiers)
		if !ok {
			e.record(ctx, ent, st, CallEmpty, candidates, nil, elapsed)
			continue
		}
		e.record(ctx, ent, st, CallOK, candidates, nil, elapsed)

		if model.MergeContact(&contact, pick.Candidate.Contact()) && tag == "" {
			tag = st.Label + "_" + pick.Tag()
		}
	}

	if contact.Email == "" {
		tag = model.SourceNotFound
	}
	contact.Source = tag
	ent.Contact = contact
	out.Tag = tag
	return out
}

func (e *Executor) record(ctx context.Context, ent *model.Entity, st Stage, outcome string, candidates int, err error, elapsed time.Duration) {
	name := st.Provider.Name()
	e.metrics.ProviderCall(name, outcome)
	if e.recorder == nil {
		return
	}
	rec := CallRecord{
		RunID:      e.runID,
		Entity:     ent.Name,
		Provider:   name,
		Stage:      st.Label,
		Outcome:    outcome,
		Candidates: candidates,
		Duration:   elapsed,
		At:         e.now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	// A cancelled run still records the calls already made.
	if rerr := e.recorder.RecordCall(context.WithoutCancel(ctx), rec); rerr != nil {
		zap.L().Warn("waterfall: record call failed", zap.Error(rerr))
	}
}

func resCandidates(res *provider.Result) []model.Candidate {
	if res == nil {
		return nil
	}
	return res.Candidates
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}
