package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-bridge/internal/config"
	"github.com/sells-group/lead-bridge/internal/discovery"
	"github.com/sells-group/lead-bridge/internal/fetcher"
	"github.com/sells-group/lead-bridge/internal/metrics"
	"github.com/sells-group/lead-bridge/internal/pipeline"
	"github.com/sells-group/lead-bridge/internal/ratelimit"
	"github.com/sells-group/lead-bridge/internal/resilience"
	"github.com/sells-group/lead-bridge/internal/source"
	"github.com/sells-group/lead-bridge/internal/store"
	"github.com/sells-group/lead-bridge/internal/waterfall/provider"
	"github.com/sells-group/lead-bridge/pkg/apollo"
	"github.com/sells-group/lead-bridge/pkg/clearbit"
	"github.com/sells-group/lead-bridge/pkg/hunter"
	"github.com/sells-group/lead-bridge/pkg/jina"
)

// initStore opens the run ledger and domain cache named by the config.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

func loadProfiles(c *config.Config) (pipeline.Profiles, error) {
	ps, err := pipeline.LoadProfiles(c.ProfilesFile)
	if err != nil {
		return nil, eris.Wrap(err, "load profiles")
	}
	return ps, nil
}

func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:      c.Fetch.UserAgent,
		Timeout:        time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:     c.Fetch.MaxRetries,
		RequestsPerSec: c.Fetch.RequestsPerSec,
	})
}

// newRegistry registers the providers prof uses whose credentials are
// present. A provider without a key is left out with a warning; the
// waterfall then skips its stage.
func newRegistry(c *config.Config, prof pipeline.Profile) *provider.Registry {
	reg := provider.NewRegistry()
	for _, sc := range prof.Providers {
		if reg.Get(sc.Provider) != nil {
			continue
		}
		switch sc.Provider {
		case "hunter":
			if c.Hunter.Key == "" {
				zap.L().Warn("hunter: no api key, stage skipped", zap.String("profile", prof.Name))
				continue
			}
			client := hunter.NewClient(c.Hunter.Key, hunter.WithBaseURL(c.Hunter.BaseURL))
			reg.Register(provider.NewHunter(client, ratelimit.NewWindow(c.Hunter.RPM), c.Hunter.Limit).
				WithRetry(resilience.RetryFromAttempts(c.Fetch.MaxRetries)))
		case "apollo":
			if c.Apollo.Key == "" {
				zap.L().Warn("apollo: no api key, stage skipped", zap.String("profile", prof.Name))
				continue
			}
			client := apollo.NewClient(c.Apollo.Key, apollo.WithBaseURL(c.Apollo.BaseURL))
			reg.Register(provider.NewApollo(client, ratelimit.NewWindow(c.Apollo.RPM), c.Apollo.PerPage, sc.Titles))
		default:
			zap.L().Warn("unknown provider, stage skipped",
				zap.String("profile", prof.Name),
				zap.String("provider", sc.Provider),
			)
		}
	}
	return reg
}

// newDiscoverer builds the domain discoverer prof asks for. It returns nil
// when the profile has no discovery step or the search key is missing.
func newDiscoverer(c *config.Config, prof pipeline.Profile) discovery.Discoverer {
	switch prof.Discovery.Kind {
	case pipeline.DiscoveryClearbit:
		client := clearbit.NewClient(clearbit.WithBaseURL(c.Clearbit.BaseURL))
		return discovery.NewClearbit(client, prof.Gate())
	case pipeline.DiscoverySearch:
		if c.Jina.Key == "" {
			zap.L().Warn("jina: no api key, domain search skipped", zap.String("profile", prof.Name))
			return nil
		}
		client := jina.NewClient(c.Jina.Key,
			jina.WithSearchBaseURL(c.Jina.SearchBaseURL),
			jina.WithRetries(c.Fetch.MaxRetries, time.Second),
		)
		return discovery.NewSearch(client, prof.Gate(), prof.Discovery.Queries, prof.Discovery.Count)
	default:
		return nil
	}
}

// buildDeps wires a profile's source, discoverer and providers. The caller
// owns st and m.
func buildDeps(c *config.Config, prof pipeline.Profile, st store.Store, m *metrics.Metrics) (pipeline.Deps, error) {
	src, err := source.New(prof.Source, source.Deps{
		Fetcher:      newFetcher(c),
		SocrataToken: c.Socrata.AppToken,
	})
	if err != nil {
		return pipeline.Deps{}, eris.Wrapf(err, "profile %s", prof.Name)
	}

	if missing := c.MissingCredentials(); len(missing) > 0 {
		zap.L().Debug("credentials not configured", zap.Strings("providers", missing))
	}

	return pipeline.Deps{
		Source:     src,
		Discoverer: newDiscoverer(c, prof),
		Registry:   newRegistry(c, prof),
		Store:      st,
		Metrics:    m,
	}, nil
}

// pipelineOptions maps config onto run options. Flags override the result.
func pipelineOptions(c *config.Config, prof pipeline.Profile) pipeline.Options {
	breaker := resilience.FromCircuitConfig(c.Breaker.FailureThreshold, c.Breaker.ResetTimeoutSecs)
	opts := pipeline.Options{
		MaxCalls:             c.Enrich.MaxCalls,
		Concurrency:          c.Enrich.Concurrency,
		DiscoveryConcurrency: c.Discovery.Concurrency,
		Breaker:              &breaker,
		MetricsTextfile:      c.Metrics.Textfile,
	}
	if prof.Discovery.DelayMs == 0 {
		opts.DiscoveryDelay = time.Duration(c.Discovery.DelayMs) * time.Millisecond
	}
	return opts
}

// resolveOutput places a relative output path under the configured output
// directory.
func resolveOutput(c *config.Config, path string) string {
	if path == "" || filepath.IsAbs(path) || c.OutputDir == "" || c.OutputDir == "." {
		return path
	}
	return filepath.Join(c.OutputDir, path)
}

// runPipeline locks the output, runs prof and prints the report.
func runPipeline(ctx context.Context, out io.Writer, prof pipeline.Profile, opts pipeline.Options) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	m := metrics.New(prof.Name)
	deps, err := buildDeps(cfg, prof, st, m)
	if err != nil {
		return err
	}

	p := pipeline.New(prof, deps, opts)
	var report *pipeline.Report
	err = withOutputLock(p.OutputPath(), func() error {
		var rerr error
		report, rerr = p.Run(ctx)
		return rerr
	})
	if err != nil {
		return eris.Wrap(err, "pipeline run")
	}

	formatReport(out, report)
	return nil
}

// formatReport writes a run summary to w.
func formatReport(out io.Writer, r *pipeline.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Profile:\t%s\n", r.Profile)
	if r.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.RunID)
	}
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Output:\t%s\n", r.Output)
	_, _ = fmt.Fprintf(w, "Entities:\t%d\n", r.Coverage.Total)
	_, _ = fmt.Fprintf(w, "With website:\t%d (%.1f%%)\n", r.Coverage.WithWebsite, r.Coverage.WebsitePct())
	_, _ = fmt.Fprintf(w, "With email:\t%d (%.1f%%)\n", r.Coverage.WithEmail, r.Coverage.EmailPct())
	if r.Discovery != (discovery.Summary{}) {
		_, _ = fmt.Fprintf(w, "Domains:\t%d found, %d blocked, %d not found, %d cached\n",
			r.Discovery.Found, r.Discovery.Blocked, r.Discovery.NotFound, r.Discovery.Cached)
	}
	_, _ = fmt.Fprintf(w, "Provider calls:\t%d\n", r.Stats.ProviderCalls)

	tags := make([]string, 0, len(r.Coverage.BySource))
	for tag := range r.Coverage.BySource {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	for _, tag := range tags {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", tag, r.Coverage.BySource[tag])
	}
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", r.Elapsed.Round(time.Second))
	_ = w.Flush()
}
