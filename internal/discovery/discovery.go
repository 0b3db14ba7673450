// Package discovery resolves organization names to their own web domains,
// rejecting directory and social domains through the gate.
package discovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-bridge/internal/gate"
	"github.com/sells-group/lead-bridge/internal/metrics"
	"github.com/sells-group/lead-bridge/internal/model"
)

// Domain outcomes.
const (
	OutcomeFound    = "found"
	OutcomeBlocked  = "blocked"
	OutcomeNotFound = "not_found"
	OutcomeCached   = "cached"
	OutcomeExisting = "existing"
)

// Query is what a discoverer knows about the organization.
type Query struct {
	Name  string
	City  string
	State string
}

// Result is a discoverer's answer. Domain is the accepted domain, if any;
// Blocked lists candidates the gate rejected along the way.
type Result struct {
	Domain  string
	Blocked []string
}

// Discoverer maps an organization to a candidate domain.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context, q Query) (Result, error)
}

// DomainCache remembers earlier answers, including misses (empty domain), so
// an interrupted run can resume without repeating lookups.
type DomainCache interface {
	GetCachedDomain(ctx context.Context, key string) (domain string, ok bool, err error)
	SetCachedDomain(ctx context.Context, key, domain string) error
}

// Summary counts outcomes for one stage run.
type Summary struct {
	Found    int `json:"found"`
	Blocked  int `json:"blocked"`
	NotFound int `json:"not_found"`
	Cached   int `json:"cached"`
	Existing int `json:"existing"`
}

// StageOptions tunes a Stage.
type StageOptions struct {
	// Delay is the minimum spacing between lookups.
	Delay       time.Duration
	Concurrency int
	Cache       DomainCache
	Metrics     *metrics.Metrics
}

// Stage runs a discoverer over a list of entities.
type Stage struct {
	discoverer  Discoverer
	denylist    *gate.Denylist
	cache       DomainCache
	limiter     *rate.Limiter
	concurrency int
	metrics     *metrics.Metrics
}

// NewStage creates a discovery stage.
func NewStage(d Discoverer, denylist *gate.Denylist, opts StageOptions) *Stage {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Stage{
		discoverer:  d,
		denylist:    denylist,
		cache:       opts.Cache,
		limiter:     limiter,
		concurrency: opts.Concurrency,
		metrics:     opts.Metrics,
	}
}

// DropBlocked clears stored domains the denylist rejects, keeping each one
// as the blocked_domain attribute. Stored domains may come from an input file
// or an earlier run with a narrower list. It returns how many were cleared.
func DropBlocked(entities []*model.Entity, denylist *gate.Denylist) int {
	n := 0
	for _, ent := range entities {
		if ent.Domain == "" || !denylist.IsBlocked(ent.Domain) {
			continue
		}
		ent.SetAttr("blocked_domain", ent.Domain)
		ent.Domain = ""
		n++
	}
	return n
}

// Run resolves a domain for every entity that lacks one, after dropping
// stored domains the denylist rejects. Lookup failures are
// logged and counted as not found; only cancellation is returned.
func (s *Stage) Run(ctx context.Context, entities []*model.Entity) (Summary, error) {
	log := zap.L().With(zap.String("discoverer", s.discoverer.Name()))

	var (
		mu  sync.Mutex
		sum Summary
	)
	count := func(outcome string) {
		s.metrics.Domain(outcome)
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case OutcomeFound:
			sum.Found++
		case OutcomeBlocked:
			sum.Blocked++
		case OutcomeCached:
			sum.Cached++
		case OutcomeExisting:
			sum.Existing++
		default:
			sum.NotFound++
		}
	}

	if n := DropBlocked(entities, s.denylist); n > 0 {
		log.Info("discovery: stored domains rejected", zap.Int("count", n))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, ent := range entities {
		if gctx.Err() != nil {
			break
		}
		if ent.Domain != "" {
			count(OutcomeExisting)
			continue
		}
		g.Go(func() error {
			outcome, err := s.resolve(gctx, ent)
			if err != nil {
				return err
			}
			count(outcome)
			log.Debug("discovery: resolved",
				zap.String("entity", ent.Name),
				zap.String("outcome", outcome),
				zap.String("domain", ent.Domain),
			)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	log.Info("discovery: stage complete",
		zap.Int("found", sum.Found),
		zap.Int("blocked", sum.Blocked),
		zap.Int("not_found", sum.NotFound),
		zap.Int("cached", sum.Cached),
		zap.Int("existing", sum.Existing),
	)
	return sum, err
}

func (s *Stage) resolve(ctx context.Context, ent *model.Entity) (string, error) {
	key := CacheKey(s.discoverer.Name(), ent.Name, ent.Location.State)

	if s.cache != nil {
		domain, ok, err := s.cache.GetCachedDomain(ctx, key)
		if err != nil {
			zap.L().Warn("discovery: cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok && !s.denylist.IsBlocked(domain) {
			ent.Domain = domain
			return OutcomeCached, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	res, err := s.discoverer.Discover(ctx, Query{Name: ent.Name, City: ent.Location.City, State: ent.Location.State})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		zap.L().Warn("discovery: lookup failed",
			zap.String("entity", ent.Name),
			zap.Error(err),
		)
		return OutcomeNotFound, nil
	}

	outcome := OutcomeNotFound
	domain := res.Domain
	switch {
	case domain != "" && s.denylist.IsBlocked(domain):
		// A discoverer built with a narrower list can still leak one.
		res.Blocked = append(res.Blocked, domain)
		domain = ""
		outcome = OutcomeBlocked
	case domain != "":
		ent.Domain = domain
		outcome = OutcomeFound
	case len(res.Blocked) > 0:
		outcome = OutcomeBlocked
	}
	if len(res.Blocked) > 0 {
		ent.SetAttr("blocked_domain", res.Blocked[0])
	}

	if s.cache != nil {
		if err := s.cache.SetCachedDomain(context.WithoutCancel(ctx), key, domain); err != nil {
			zap.L().Warn("discovery: cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return outcome, nil
}
