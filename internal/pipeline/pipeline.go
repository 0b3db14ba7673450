// Package pipeline runs a lead profile end to end: load entities, discover
// their domains, enrich contacts through the provider waterfall and export.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-bridge/internal/discovery"
	"github.com/sells-group/lead-bridge/internal/export"
	"github.com/sells-group/lead-bridge/internal/gate"
	"github.com/sells-group/lead-bridge/internal/metrics"
	"github.com/sells-group/lead-bridge/internal/model"
	"github.com/sells-group/lead-bridge/internal/ratelimit"
	"github.com/sells-group/lead-bridge/internal/resilience"
	"github.com/sells-group/lead-bridge/internal/source"
	"github.com/sells-group/lead-bridge/internal/store"
	"github.com/sells-group/lead-bridge/internal/waterfall"
	"github.com/sells-group/lead-bridge/internal/waterfall/provider"
)

// ErrNoEntities is returned when the source yields nothing to work on.
var ErrNoEntities = eris.New("pipeline: source returned no entities")

// Deps are the collaborators a run needs. Discoverer and Registry may be nil;
// the matching stage is then skipped.
type Deps struct {
	Source     source.Source
	Discoverer discovery.Discoverer
	Registry   *provider.Registry
	Store      store.Store
	Metrics    *metrics.Metrics
}

// Options tune a single run. Zero values fall back to the profile.
type Options struct {
	Test     bool
	Limit    int
	MaxCalls int
	Output   string

	Concurrency          int
	DiscoveryConcurrency int
	// DiscoveryDelay overrides the profile's delay_ms when set.
	DiscoveryDelay time.Duration
	Breaker        *resilience.CircuitBreakerConfig

	SkipDiscovery bool
	SkipEnrich    bool

	// MetricsTextfile, when set, receives the run counters at the end.
	MetricsTextfile string
}

// Report summarises a finished run.
type Report struct {
	RunID     string            `json:"run_id"`
	Profile   string            `json:"profile"`
	Output    string            `json:"output"`
	Status    model.RunStatus   `json:"status"`
	Stats     model.RunStats    `json:"stats"`
	Discovery discovery.Summary `json:"discovery"`
	Coverage  export.Coverage   `json:"coverage"`
	Elapsed   time.Duration     `json:"elapsed"`
	Entities  []*model.Entity   `json:"-"`
}

// Pipeline runs one profile.
type Pipeline struct {
	profile Profile
	deps    Deps
	opts    Options
	gate    *gate.Denylist
}

// New creates a pipeline for profile.
func New(profile Profile, deps Deps, opts Options) *Pipeline {
	if deps.Store == nil {
		deps.Store = store.Nop{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.DiscoveryConcurrency < 1 {
		opts.DiscoveryConcurrency = 1
	}
	return &Pipeline{
		profile: profile,
		deps:    deps,
		opts:    opts,
		gate:    profile.Gate(),
	}
}

// OutputPath is where Run writes.
func (p *Pipeline) OutputPath() string {
	if p.opts.Output != "" {
		return p.opts.Output
	}
	return p.profile.OutputPath(p.opts.Test)
}

func (p *Pipeline) limit() int {
	if p.opts.Limit > 0 {
		return p.opts.Limit
	}
	if p.opts.Test {
		return p.profile.Test.Limit
	}
	return 0
}

func (p *Pipeline) maxCalls() int {
	if p.opts.MaxCalls > 0 {
		return p.opts.MaxCalls
	}
	if p.opts.Test {
		return p.profile.Test.MaxCalls
	}
	return p.profile.MaxCalls
}

// Run executes the profile. Only a source that yields no entities, or
// cancellation, fails the run; every provider or discovery failure degrades
// to not_found for the affected entity.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	log := zap.L().With(zap.String("profile", p.profile.Name))
	log.Info("pipeline: starting",
		zap.Bool("test", p.opts.Test),
		zap.Int("limit", p.limit()),
		zap.Int("max_calls", p.maxCalls()),
	)

	report := &Report{Profile: p.profile.Name, Output: p.OutputPath()}

	run, err := p.deps.Store.CreateRun(ctx, p.profile.Name)
	if err != nil {
		log.Warn("pipeline: run ledger unavailable", zap.Error(err))
		run = &model.Run{Profile: p.profile.Name}
	}
	report.RunID = run.ID

	finish := func(status model.RunStatus) {
		report.Status = status
		report.Elapsed = time.Since(start)
		// The ledger write must survive a cancelled run context.
		if ferr := p.deps.Store.FinishRun(context.WithoutCancel(ctx), run.ID, status, report.Stats); ferr != nil && run.ID != "" {
			log.Warn("pipeline: failed to finish run", zap.Error(ferr))
		}
	}

	phase := func(name string, fn func() error) error {
		t := time.Now()
		err := fn()
		if err != nil {
			log.Error("pipeline: phase failed", zap.String("phase", name), zap.Duration("elapsed", time.Since(t)), zap.Error(err))
			return err
		}
		log.Info("pipeline: phase complete", zap.String("phase", name), zap.Duration("elapsed", time.Since(t)))
		return nil
	}

	// ===== Phase 1: Load =====
	var entities []*model.Entity
	if err := phase("load", func() error {
		var lerr error
		entities, lerr = p.load(ctx)
		return lerr
	}); err != nil {
		finish(model.RunStatusFailed)
		return report, err
	}
	report.Stats.Entities = len(entities)
	report.Entities = entities

	// ===== Phase 2: Discovery =====
	if n := discovery.DropBlocked(entities, p.gate); n > 0 {
		log.Info("pipeline: stored domains rejected by gate", zap.Int("count", n))
	}
	if p.deps.Discoverer != nil && !p.opts.SkipDiscovery {
		if err := phase("discovery", func() error {
			var derr error
			report.Discovery, derr = p.discover(ctx, entities)
			return derr
		}); err != nil {
			finish(model.RunStatusFailed)
			return report, err
		}
		report.Stats.DomainsFound = report.Discovery.Found
		report.Stats.DomainsBlocked = report.Discovery.Blocked
		report.Stats.DomainsCached = report.Discovery.Cached
	}

	// ===== Phase 3: Registry emails =====
	if n := p.tagRegistryEmails(entities); n > 0 {
		log.Info("pipeline: registry emails kept", zap.Int("count", n), zap.String("tag", p.profile.RegistryEmailTag))
	}

	// ===== Phase 4: Enrichment =====
	if !p.opts.SkipEnrich {
		if err := phase("enrich", func() error {
			return p.enrich(ctx, run.ID, entities, &report.Stats)
		}); err != nil {
			finishNotFound(entities)
			finish(model.RunStatusFailed)
			return report, err
		}
	}
	finishNotFound(entities)

	// ===== Phase 5: Export =====
	if err := phase("export", func() error {
		return export.Write(report.Output, p.profile.Columns, entities)
	}); err != nil {
		finish(model.RunStatusFailed)
		return report, err
	}

	report.Coverage = export.Measure(entities)
	report.Stats.BySource = report.Coverage.BySource
	report.Stats.NotFound = report.Coverage.BySource[model.SourceNotFound]
	report.Stats.Enriched = report.Coverage.WithEmail

	status := model.RunStatusComplete
	if report.Stats.BudgetExhausted {
		status = model.RunStatusStopped
	}
	finish(status)

	if p.opts.MetricsTextfile != "" {
		if err := p.deps.Metrics.WriteTextfile(p.opts.MetricsTextfile); err != nil {
			log.Warn("pipeline: failed to write metrics textfile", zap.Error(err))
		}
	}

	log.Info("pipeline: complete",
		zap.String("run_id", report.RunID),
		zap.String("status", string(report.Status)),
		zap.String("output", report.Output),
		zap.Int("entities", report.Coverage.Total),
		zap.Int("with_website", report.Coverage.WithWebsite),
		zap.Int("with_email", report.Coverage.WithEmail),
		zap.Float64("email_pct", report.Coverage.EmailPct()),
		zap.Int("provider_calls", report.Stats.ProviderCalls),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (p *Pipeline) load(ctx context.Context) ([]*model.Entity, error) {
	if p.deps.Source == nil {
		return nil, eris.New("pipeline: no source configured")
	}
	src := p.deps.Source
	if n := p.limit(); n > 0 {
		src = source.Limit(src, n)
	}

	entities, err := src.Load(ctx)
	if err != nil && len(entities) == 0 {
		return nil, eris.Wrapf(err, "pipeline: load %s", src.Name())
	}
	if err != nil {
		zap.L().Warn("pipeline: source returned partial results", zap.String("source", src.Name()), zap.Error(err))
	}
	if len(entities) == 0 {
		return nil, ErrNoEntities
	}
	p.deps.Metrics.EntitiesLoaded(src.Name(), len(entities))
	return entities, nil
}

func (p *Pipeline) discover(ctx context.Context, entities []*model.Entity) (discovery.Summary, error) {
	delay := p.opts.DiscoveryDelay
	if delay == 0 {
		delay = time.Duration(p.profile.Discovery.DelayMs) * time.Millisecond
	}
	stage := discovery.NewStage(p.deps.Discoverer, p.gate, discovery.StageOptions{
		Delay:       delay,
		Concurrency: p.opts.DiscoveryConcurrency,
		Cache:       p.deps.Store,
		Metrics:     p.deps.Metrics,
	})
	if n, err := p.deps.Store.DeleteExpiredDomains(ctx); err != nil {
		zap.L().Warn("pipeline: failed to prune domain cache", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("pipeline: pruned domain cache", zap.Int("expired", n))
	}
	return stage.Run(ctx, entities)
}

// tagRegistryEmails marks entities whose source carried an organization
// email with the profile's tag. The email stays on the entity and the
// contact stays empty; the entity is never sent to a paid provider.
func (p *Pipeline) tagRegistryEmails(entities []*model.Entity) int {
	tag := p.profile.RegistryEmailTag
	if tag == "" {
		return 0
	}
	n := 0
	for _, e := range entities {
		if !p.hasRegistryEmail(e) || e.Contact.Email != "" {
			continue
		}
		e.Contact.Source = tag
		p.deps.Metrics.Contact(tag)
		n++
	}
	return n
}

func (p *Pipeline) hasRegistryEmail(e *model.Entity) bool {
	return p.profile.RegistryEmailTag != "" && e.Email != ""
}

func (p *Pipeline) enrich(ctx context.Context, runID string, entities []*model.Entity, stats *model.RunStats) error {
	log := zap.L().With(zap.String("profile", p.profile.Name))

	var stages []waterfall.Stage
	if p.deps.Registry != nil {
		stages = waterfall.BuildStages(p.profile.Providers, p.deps.Registry)
	}
	budget := ratelimit.NewBudget(p.maxCalls())
	exec := waterfall.NewExecutor(stages, p.gate, budget).
		WithRecorder(runID, p.deps.Store).
		WithMetrics(p.deps.Metrics)
	if p.opts.Breaker != nil {
		exec = exec.WithBreakers(*p.opts.Breaker)
	}
	if !exec.Active() {
		log.Warn("pipeline: no providers available, enrichment skipped")
		return nil
	}

	var (
		stopped atomic.Bool
		mu      sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for _, ent := range entities {
		if ent.Contact.Email != "" || p.hasRegistryEmail(ent) {
			continue
		}
		if p.profile.RequireDomain && (ent.Domain == "" || p.gate.IsBlocked(ent.Domain)) {
			ent.Contact.Source = model.SourceNotFound
			p.deps.Metrics.Contact(model.SourceNotFound)
			continue
		}
		if stopped.Load() || budget.Exhausted() {
			stopped.Store(true)
			break
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := exec.Enrich(gctx, ent)
			p.deps.Metrics.Contact(out.Tag)
			if out.BudgetExhausted {
				stopped.Store(true)
			}
			if out.DomainBlocked {
				mu.Lock()
				stats.DomainsBlocked++
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers never return errors, so Wait only reports success.
	_ = g.Wait()
	stats.ProviderCalls = budget.Used()
	stats.BudgetExhausted = stopped.Load() || budget.Exhausted()
	p.deps.Metrics.SetBudgetUsed(budget.Used())

	if stats.BudgetExhausted {
		log.Info("pipeline: call budget exhausted, remaining entities left not_found",
			zap.Int("max_calls", budget.Max()),
		)
	}
	return ctx.Err()
}

// finishNotFound stamps every entity still without a tag: input for an
// email that came with the row, not_found otherwise.
func finishNotFound(entities []*model.Entity) {
	for _, e := range entities {
		switch {
		case e.Contact.Source != "":
		case e.Contact.Email != "":
			e.Contact.Source = model.SourceInput
		default:
			e.Contact.Source = model.SourceNotFound
		}
	}
}
