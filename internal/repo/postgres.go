package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/risk"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// PostgresStore persists runs in PostgreSQL, results and raw rows as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPool opens a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const insertRun = `
INSERT INTO scoring_runs (id, created_at, source_name, id_column, t90, t95, t99, row_count, results, raw_rows)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// SaveRun inserts run.
func (s *PostgresStore) SaveRun(ctx context.Context, run models.Run) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("postgres: marshal results: %w", err)
	}
	raw, err := json.Marshal(run.Raw)
	if err != nil {
		return fmt.Errorf("postgres: marshal raw rows: %w", err)
	}
	_, err = s.pool.Exec(ctx, insertRun,
		run.ID, run.CreatedAt, run.SourceName, run.IDColumn,
		run.Thresholds.T90, run.Thresholds.T95, run.Thresholds.T99,
		len(run.Results), results, raw,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}
	return nil
}

const selectRun = `
SELECT id::text, created_at, source_name, id_column, t90, t95, t99, results, raw_rows
FROM scoring_runs`

// GetRun loads the run with id.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (models.Run, error) {
	run, err := s.scanRun(s.pool.QueryRow(ctx, selectRun+` WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, utils.NotFound("repo.GetRun", "run "+id+" not found")
	}
	return run, err
}

// LatestRun loads the most recently created run.
func (s *PostgresStore) LatestRun(ctx context.Context) (models.Run, error) {
	run, err := s.scanRun(s.pool.QueryRow(ctx, selectRun+` ORDER BY created_at DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, utils.NotFound("repo.LatestRun", "no runs recorded")
	}
	return run, err
}

const selectSummaries = `
SELECT id::text, created_at, source_name, t90, t95, t99, row_count,
       COALESCE((
           SELECT jsonb_object_agg(tier, n)
           FROM (
               SELECT r->>'risk_tier' AS tier, count(*) AS n
               FROM jsonb_array_elements(results) AS r
               WHERE r->>'risk_tier' IS NOT NULL
               GROUP BY 1
           ) AS counts
       ), '{}'::jsonb)
FROM scoring_runs
ORDER BY created_at DESC
LIMIT $1`

// ListRuns returns run summaries, newest first. Tier counts are aggregated
// in the database so the stored rows are never decoded.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, selectSummaries, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		var (
			sum    models.RunSummary
			counts []byte
		)
		if err := rows.Scan(&sum.ID, &sum.CreatedAt, &sum.SourceName,
			&sum.Thresholds.T90, &sum.Thresholds.T95, &sum.Thresholds.T99,
			&sum.RowCount, &counts); err != nil {
			return nil, fmt.Errorf("postgres: scan summary: %w", err)
		}
		sum.TierCounts = make(map[string]int, len(risk.Tiers))
		for _, tier := range risk.Tiers {
			sum.TierCounts[tier.String()] = 0
		}
		if err := json.Unmarshal(counts, &sum.TierCounts); err != nil {
			return nil, fmt.Errorf("postgres: decode tier counts for %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) scanRun(row pgx.Row) (models.Run, error) {
	var (
		run          models.Run
		results, raw []byte
	)
	err := row.Scan(&run.ID, &run.CreatedAt, &run.SourceName, &run.IDColumn,
		&run.Thresholds.T90, &run.Thresholds.T95, &run.Thresholds.T99, &results, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Run{}, err
		}
		return models.Run{}, fmt.Errorf("postgres: scan run: %w", err)
	}
	if err := json.Unmarshal(results, &run.Results); err != nil {
		return models.Run{}, fmt.Errorf("postgres: decode results: %w", err)
	}
	if err := json.Unmarshal(raw, &run.Raw); err != nil {
		return models.Run{}, fmt.Errorf("postgres: decode raw rows: %w", err)
	}
	return run, nil
}
