package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-bridge/internal/model"
	"github.com/sells-group/lead-bridge/internal/waterfall"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	ttl     time.Duration
}

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString string, ttl time.Duration) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool, pool.Close, ttl), nil
}

func newPostgresWithPool(pool Pool, closeFn func(), ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &PostgresStore{pool: pool, closeFn: closeFn, ttl: ttl}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	profile    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stats      JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_calls (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL,
	entity      TEXT NOT NULL,
	provider    TEXT NOT NULL,
	stage       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	candidates  INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	called_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS domain_cache (
	cache_key  TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_profile ON runs(profile);
CREATE INDEX IF NOT EXISTS idx_provider_calls_run_id ON provider_calls(run_id);
CREATE INDEX IF NOT EXISTS idx_domain_cache_expires_at ON domain_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, profile string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, profile, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, profile, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Profile:   profile,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, updated_at = $3 WHERE id = $4`,
		string(status), statsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, profile, status, stats, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run: run not found: %s", runID)
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, profile, status, stats, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordCall(ctx context.Context, rec waterfall.CallRecord) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	var errText *string
	if rec.Error != "" {
		errText = &rec.Error
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_calls (run_id, entity, provider, stage, outcome, candidates, error, duration_ms, called_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.RunID, rec.Entity, rec.Provider, rec.Stage, rec.Outcome, rec.Candidates,
		errText, rec.Duration.Milliseconds(), at.UTC(),
	)
	return eris.Wrap(err, "postgres: record call")
}

func (s *PostgresStore) GetCachedDomain(ctx context.Context, key string) (string, bool, error) {
	var domain string
	err := s.pool.QueryRow(ctx,
		`SELECT domain FROM domain_cache WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: get cached domain")
	}
	return domain, true, nil
}

func (s *PostgresStore) SetCachedDomain(ctx context.Context, key, domain string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO domain_cache (cache_key, domain, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET domain = EXCLUDED.domain,
		   cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		key, domain, now, now.Add(s.ttl),
	)
	return eris.Wrap(err, "postgres: set cached domain")
}

func (s *PostgresStore) DeleteExpiredDomains(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM domain_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired domains")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var statsJSON []byte

	if err := row.Scan(&r.ID, &r.Profile, &status, &statsJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.Status = model.RunStatus(status)
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
	}
	return &r, nil
}
