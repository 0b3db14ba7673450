package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-bridge/internal/model"
	"github.com/sells-group/lead-bridge/internal/waterfall"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Provider calls are recorded from many goroutines; one writer avoids
	// SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &SQLiteStore{db: db, ttl: ttl}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	profile    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stats      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS provider_calls (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	entity      TEXT NOT NULL,
	provider    TEXT NOT NULL,
	stage       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	candidates  INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	called_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS domain_cache (
	cache_key  TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_profile ON runs(profile);
CREATE INDEX IF NOT EXISTS idx_provider_calls_run_id ON provider_calls(run_id);
CREATE INDEX IF NOT EXISTS idx_domain_cache_expires_at ON domain_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, profile string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, profile, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, profile, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Profile:   profile,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, updated_at = ? WHERE id = ?`,
		string(status), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, profile, status, stats, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile, status, stats, created_at, updated_at FROM runs
		 ORDER BY created_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordCall(ctx context.Context, rec waterfall.CallRecord) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_calls (run_id, entity, provider, stage, outcome, candidates, error, duration_ms, called_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Entity, rec.Provider, rec.Stage, rec.Outcome, rec.Candidates,
		nullString(rec.Error), rec.Duration.Milliseconds(), at.UTC(),
	)
	return eris.Wrap(err, "sqlite: record call")
}

// CallCounts returns the number of recorded calls per provider for a run.
func (s *SQLiteStore) CallCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COUNT(*) FROM provider_calls WHERE run_id = ? GROUP BY provider`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: call counts")
	}
	defer rows.Close() //nolint:errcheck

	counts := map[string]int{}
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan call count")
		}
		counts[p] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: call counts iterate")
}

func (s *SQLiteStore) GetCachedDomain(ctx context.Context, key string) (string, bool, error) {
	var domain string
	err := s.db.QueryRowContext(ctx,
		`SELECT domain FROM domain_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().Unix(),
	).Scan(&domain)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: get cached domain")
	}
	return domain, true, nil
}

func (s *SQLiteStore) SetCachedDomain(ctx context.Context, key, domain string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domain_cache (cache_key, domain, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET domain = excluded.domain,
		   cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, domain, now.Unix(), now.Add(s.ttl).Unix(),
	)
	return eris.Wrap(err, "sqlite: set cached domain")
}

func (s *SQLiteStore) DeleteExpiredDomains(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM domain_cache WHERE expires_at <= ?`, time.Now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired domains")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var statsJSON sql.NullString

	err := row.Scan(&r.ID, &r.Profile, &r.Status, &statsJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if statsJSON.Valid {
		if err := json.Unmarshal([]byte(statsJSON.String), &r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	return &r, nil
}
