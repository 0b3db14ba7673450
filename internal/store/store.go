// Package store persists the run ledger and the discovery domain cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-bridge/internal/config"
	"github.com/sells-group/lead-bridge/internal/model"
	"github.com/sells-group/lead-bridge/internal/waterfall"
)

// Store defines the persistence interface for lead runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, profile string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Provider call ledger
	RecordCall(ctx context.Context, rec waterfall.CallRecord) error

	// Domain cache. A cached empty domain is a remembered miss.
	GetCachedDomain(ctx context.Context, key string) (string, bool, error)
	SetCachedDomain(ctx context.Context, key, domain string) error
	DeleteExpiredDomains(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultCacheTTL = 30 * 24 * time.Hour

// Open builds the store named by cfg.Driver and migrates it. Driver "none"
// returns a Nop store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	ttl := time.Duration(cfg.CacheTTLDays) * 24 * time.Hour
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		s, err = NewSQLite(dsn, ttl)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, ttl)
	case "none":
		return Nop{}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Nop discards everything and never hits the cache.
type Nop struct{}

func (Nop) CreateRun(_ context.Context, profile string) (*model.Run, error) {
	now := time.Now().UTC()
	return &model.Run{Profile: profile, Status: model.RunStatusRunning, CreatedAt: now, UpdatedAt: now}, nil
}

func (Nop) FinishRun(context.Context, string, model.RunStatus, model.RunStats) error { return nil }

func (Nop) GetRun(_ context.Context, runID string) (*model.Run, error) {
	return nil, eris.Errorf("run not found: %s", runID)
}

func (Nop) ListRuns(context.Context, int) ([]model.Run, error) { return nil, nil }
func (Nop) RecordCall(context.Context, waterfall.CallRecord) error { return nil }
func (Nop) GetCachedDomain(context.Context, string) (string, bool, error) { return "", false, nil }
func (Nop) SetCachedDomain(context.Context, string, string) error { return nil }
func (Nop) DeleteExpiredDomains(context.Context) (int, error) { return 0, nil }
func (Nop) Migrate(context.Context) error { return nil }
func (Nop) Close() error { return nil }

func listLimit(n int) int {
	if n <= 0 {
		return 20
	}
	return n
}
