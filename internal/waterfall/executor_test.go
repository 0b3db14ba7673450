package waterfall

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-bridge/internal/gate"
	"github.com/sells-group/lead-bridge/internal/metrics"
	"github.com/sells-group/lead-bridge/internal/model"
	"github.com/sells-group/lead-bridge/internal/rank"
	"github.com/sells-group/lead-bridge/internal/ratelimit"
	"github.com/sells-group/lead-bridge/internal/resilience"
	"github.com/sells-group/lead-bridge/internal/waterfall/provider"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	name           string
	requiresDomain bool
	result         *provider.Result
	err            error

	calls   atomic.Int32
	mu      sync.Mutex
	queries []provider.Query
}

func (m *mockProvider) Name() string         { return m.name }
func (m *mockProvider) RequiresDomain() bool { return m.requiresDomain }
func (m *mockProvider) Lookup(_ context.Context, q provider.Query) (*provider.Result, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	return m.result, m.err
}

type memRecorder struct {
	mu      sync.Mutex
	records []CallRecord
}

func (r *memRecorder) RecordCall(_ context.Context, rec CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

var testTiers = []rank.Tier{
	{Name: "ops", Keywords: []string{"operations", "coo"}},
	{Name: "exec", Keywords: []string{"ceo", "owner", "founder"}},
}

func stage(p provider.Provider, label string) Stage {
	return Stage{Provider: p, Label: label, Tiers: testTiers}
}

func candidates(c ...model.Candidate) *provider.Result {
	return &provider.Result{Candidates: c}
}

func TestEnrich_PrimaryProducesEmail(t *testing.T) {
	primary := &mockProvider{name: "apollo", result: candidates(
		model.Candidate{FirstName: "Jane", LastName: "Roe", Title: "VP Operations", Email: "jane@beta.com"},
		model.Candidate{FirstName: "Sam", Title: "CEO", Email: "sam@beta.com"},
	)}
	fallback := &mockProvider{name: "hunter", requiresDomain: true}

	exec := NewExecutor([]Stage{stage(primary, "apollo"), stage(fallback, "hunter")}, gate.Default(), nil)
	ent := &model.Entity{Name: "Beta Inc", Domain: "beta.com"}

	out := exec.Enrich(context.Background(), ent)

	assert.Equal(t, "apollo_ops", out.Tag)
	assert.Equal(t, 1, out.Calls)
	assert.Equal(t, model.Contact{Name: "Jane Roe", Title: "VP Operations", Email: "jane@beta.com", Source: "apollo_ops"}, ent.Contact)
	assert.Equal(t, int32(0), fallback.calls.Load(), "fallback must not be called once an email is present")
}

func TestEnrich_FallbackFillsOnlyEmptyFields(t *testing.T) {
	a := &mockProvider{name: "a", result: candidates(model.Candidate{Title: "X"})}
	b := &mockProvider{name: "b", result: candidates(model.Candidate{Title: "Y", Email: "e@x.com"})}

	exec := NewExecutor([]Stage{stage(a, "primary"), stage(b, "fallback")}, nil, nil)
	ent := &model.Entity{Name: "Acme", Domain: "x.com"}

	out := exec.Enrich(context.Background(), ent)

	assert.Equal(t, "X", ent.Contact.Title)
	assert.Equal(t, "e@x.com", ent.Contact.Email)
	assert.Equal(t, "fallback_generic", out.Tag)
	assert.Equal(t, 2, out.Calls)
}

func TestEnrich_NoEmailIsNotFound(t *testing.T) {
	a := &mockProvider{name: "a", result: candidates(model.Candidate{FirstName: "Only", Title: "Owner"})}
	exec := NewExecutor([]Stage{stage(a, "primary")}, nil, nil)
	ent := &model.Entity{Name: "Acme", Domain: "acme.com"}

	out := exec.Enrich(context.Background(), ent)

	assert.Equal(t, model.SourceNotFound, out.Tag)
	assert.Equal(t, model.SourceNotFound, ent.Contact.Source)
	assert.Equal(t, "Owner", ent.Contact.Title)
}

func TestEnrich_NoDomainSkipsDomainProviders(t *testing.T) {
	hunter := &mockProvider{name: "hunter", requiresDomain: true}
	exec := NewExecutor([]Stage{stage(hunter, "hunter")}, gate.Default(), nil)
	ent := &model.Entity{Name: "Acme Co"}

	out := exec.Enrich(context.Background(), ent)

	assert.Equal(t, model.SourceNotFound, out.Tag)
	assert.Equal(t, 0, out.Calls)
	assert.Equal(t, int32(0), hunter.calls.Load())
	assert.Empty(t, ent.Contact.Email)
}

func TestEnrich_BlockedStoredDomainTreatedAsAbsent(t *testing.T) {
	hunter := &mockProvider{name: "hunter", requiresDomain: true, result: candidates(model.Candidate{Email: "x@facebook.com"})}
	exec := NewExecutor([]Stage{stage(hunter, "hunter")}, gate.New("facebook.com"), nil)
	ent := &model.Entity{Name: "Acme Co", Domain: "facebook.com"}

	out := exec.Enrich(context.Background(), ent)

	assert.True(t, out.DomainBlocked)
	assert.Equal(t, model.SourceNotFound, out.Tag)
	assert.Equal(t, int32(0), hunter.calls.Load())
}

func TestEnrich_ProviderErrorIsRecovered(t *testing.T) {
	broken := &mockProvider{name: "apollo", err: errors.New("apollo: unexpected status 500")}
	hunter := &mockProvider{name: "hunter", requiresDomain: true, result: candidates(
		model.Candidate{FirstName: "Kim", Title: "Founder", Email: "kim@beta.com", Confidence: ptr(80)},
	)}
	rec := &memRecorder{}

	exec := NewExecutor([]Stage{stage(broken, "apollo"), stage(hunter, "hunter")}, nil, nil).
		WithRecorder("run-1", rec)
	ent := &model.Entity{Name: "Beta", Domain: "beta.com"}

	out := exec.Enrich(context.Background(), ent)

	assert.Equal(t, "hunter_exec", out.Tag)
	assert.Equal(t, "kim@beta.com", ent.Contact.Email)
	require.Len(t, rec.records, 2)
	assert.Equal(t, CallError, rec.records[0].Outcome)
	assert.Contains(t, rec.records[0].Error, "500")
	assert.Equal(t, "run-1", rec.records[0].RunID)
	assert.Equal(t, CallOK, rec.records[1].Outcome)
	assert.Equal(t, 1, rec.records[1].Candidates)
}

func TestEnrich_ProviderDomainUnlocksDomainStage(t *testing.T) {
	apollo := &mockProvider{name: "apollo", result: &provider.Result{OrgID: "org-7", Domain: "https://www.Gamma.com/"}}
	hunter := &mockProvider{name: "hunter", requiresDomain: true, result: candidates(
		model.Candidate{Title: "Director of Operations", Email: "ops@gamma.com"},
	)}
	exec := NewExecutor([]Stage{stage(apollo, "apollo"), stage(hunter, "hunter")}, gate.Default(), nil)
	ent := &model.Entity{Name: "Gamma LLC"}

	out := exec.Enrich(context.Background(), ent)

	assert.Equal(t, "hunter_ops", out.Tag)
	assert.Equal(t, "gamma.com", ent.Domain)
	assert.Equal(t, "org-7", ent.OrgID)
	require.Len(t, hunter.queries, 1)
	assert.Equal(t, "gamma.com", hunter.queries[0].Domain)
}

func TestEnrich_ProviderBlockedDomainIgnored(t *testing.T) {
	apollo := &mockProvider{name: "apollo", result: &provider.Result{Domain: "linkedin.com"}}
	hunter := &mockProvider{name: "hunter", requiresDomain: true}
	exec := NewExecutor([]Stage{stage(apollo, "apollo"), stage(hunter, "hunter")}, gate.Default(), nil)
	ent := &model.Entity{Name: "Gamma LLC"}

	exec.Enrich(context.Background(), ent)

	assert.Empty(t, ent.Domain)
	assert.Equal(t, int32(0), hunter.calls.Load())
}

func TestEnrich_ExistingEmailUntouched(t *testing.T) {
	p := &mockProvider{name: "hunter"}
	exec := NewExecutor([]Stage{stage(p, "hunter")}, nil, nil)
	ent := &model.Entity{Name: "Done", Contact: model.Contact{Email: "a@done.com", Source: "hunter_ops"}}

	out := exec.Enrich(context.Background(), ent)
	assert.Equal(t, "hunter_ops", out.Tag)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestEnrich_HardCap(t *testing.T) {
	p := &mockProvider{name: "apollo", result: candidates(model.Candidate{Title: "Sales"})}
	budget := ratelimit.NewBudget(3)
	exec := NewExecutor([]Stage{stage(p, "apollo")}, nil, budget)

	var entities []*model.Entity
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		entities = append(entities, &model.Entity{Name: n})
	}

	exhausted := 0
	for _, ent := range entities {
		out := exec.Enrich(context.Background(), ent)
		if out.BudgetExhausted {
			exhausted++
		}
	}

	assert.Equal(t, int32(3), p.calls.Load())
	assert.Equal(t, 2, exhausted)
	for _, ent := range entities {
		assert.Equal(t, model.SourceNotFound, ent.Contact.Source)
	}
	assert.True(t, budget.Exhausted())
}

func TestEnrich_CircuitOpenSkipsProvider(t *testing.T) {
	quota := &mockProvider{name: "hunter", err: errors.New("hunter: search quota exceeded")}
	exec := NewExecutor([]Stage{stage(quota, "hunter")}, nil, ratelimit.NewBudget(0)).
		WithBreakers(resilience.CircuitBreakerConfig{FailureThreshold: 2})
	m := metrics.New("test")
	exec.WithMetrics(m)

	for _, n := range []string{"a", "b", "c", "d"} {
		exec.Enrich(context.Background(), &model.Entity{Name: n, Domain: n + ".com"})
	}

	assert.Equal(t, int32(2), quota.calls.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("hunter", CallError)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("hunter", CallCircuitOpen)), 0)
	assert.Equal(t, 2, exec.Budget().Used(), "skipped calls are not charged")
}

func TestEnrich_NoStages(t *testing.T) {
	exec := NewExecutor(nil, nil, nil)
	assert.False(t, exec.Active())

	ent := &model.Entity{Name: "Lonely"}
	out := exec.Enrich(context.Background(), ent)
	assert.Equal(t, model.SourceNotFound, out.Tag)
}

func TestEnrich_ConcurrentEntities(t *testing.T) {
	p := &mockProvider{name: "hunter", requiresDomain: true, result: candidates(
		model.Candidate{Title: "Owner", Email: "o@x.com"},
	)}
	budget := ratelimit.NewBudget(10)
	exec := NewExecutor([]Stage{stage(p, "hunter")}, nil, budget)

	var wg sync.WaitGroup
	entities := make([]*model.Entity, 40)
	for i := range entities {
		entities[i] = &model.Entity{Name: "e", Domain: "x.com"}
		wg.Add(1)
		go func(ent *model.Entity) {
			defer wg.Done()
			exec.Enrich(context.Background(), ent)
		}(entities[i])
	}
	wg.Wait()

	assert.Equal(t, int32(10), p.calls.Load())
	found := 0
	for _, ent := range entities {
		require.NotEmpty(t, ent.Contact.Source)
		if ent.Contact.Source == "hunter_exec" {
			found++
		}
	}
	assert.Equal(t, 10, found)
}

func TestBuildStages(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&mockProvider{name: "hunter"})

	stages := BuildStages([]StageConfig{
		{Provider: "apollo", Label: "primary"},
		{Provider: "hunter", Tiers: testTiers},
	}, reg)

	require.Len(t, stages, 1)
	assert.Equal(t, "hunter", stages[0].Label)
	assert.Equal(t, testTiers, stages[0].Tiers)
}

func TestLoadStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
waterfall:
  - provider: apollo
    label: apollo
    tiers:
      - name: ops
        keywords: [operations, logistics]
  - provider: hunter
    tiers:
      - name: exec
        keywords: [owner]
`), 0o644))

	cfgs, err := LoadStages(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "apollo", cfgs[0].Provider)
	assert.Equal(t, []string{"operations", "logistics"}, cfgs[0].Tiers[0].Keywords)
	assert.Equal(t, "exec", cfgs[1].Tiers[0].Name)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("waterfall: []\n"), 0o644))
	_, err = LoadStages(empty)
	assert.Error(t, err)

	_, err = LoadStages(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "gamma.com", normalizeDomain(" https://www.Gamma.com/about?x=1 "))
	assert.Equal(t, "beta.io", normalizeDomain("beta.io"))
	assert.Equal(t, "", normalizeDomain(""))
}

func ptr(v int) *int { return &v }
