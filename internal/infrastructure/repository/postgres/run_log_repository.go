package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

// RunLogRepository persists the per-query audit log.
type RunLogRepository struct {
	db *sql.DB
}

func NewRunLogRepository(db *sql.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

func (r *RunLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082602)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS query_runs (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	reformulated_query TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	validation_status TEXT NOT NULL DEFAULT '',
	confidence INTEGER NOT NULL DEFAULT 0,
	source_count INTEGER NOT NULL DEFAULT 0,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_runs_created_at ON query_runs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunLogRepository) Record(ctx context.Context, rec domain.RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO query_runs (
	id, query, reformulated_query, state, validation_status, confidence, source_count, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		rec.ID, rec.Query, rec.ReformulatedQuery, string(rec.State), string(rec.ValidationStatus),
		rec.Confidence, rec.SourceCount, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query run: %w", err)
	}
	return nil
}

// Stats aggregates over all runs; average confidence counts only runs
// that reached validation, so failed runs do not drag it to zero.
func (r *RunLogRepository) Stats(ctx context.Context) (domain.RunStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(AVG(duration_ms), 0),
	COALESCE(AVG(confidence) FILTER (WHERE state = $1), 0)
FROM query_runs
`, string(domain.StageDone))

	var stats domain.RunStats
	if err := row.Scan(&stats.TotalQueries, &stats.AvgLatencyMS, &stats.AvgConfidence); err != nil {
		return domain.RunStats{}, fmt.Errorf("scan run stats: %w", err)
	}
	return stats, nil
}
