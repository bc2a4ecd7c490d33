package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/polycopy/ftsync/internal/model"
)

type PostgresRunRepo struct {
	db *sqlx.DB
}

func NewPostgresRunRepo(db *sqlx.DB) *PostgresRunRepo {
	repo := &PostgresRunRepo{db: db}
	repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresRunRepo) InsertRun(ctx context.Context, run *model.RunSummary) error {
	if run == nil {
		return nil
	}
	summary, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ft_sync_runs (
			run_id, started_at, finished_at, duration_ms,
			wallets_processed, inserted, timed_out, summary
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (run_id) DO NOTHING
	`, run.RunID, run.StartedAt, run.FinishedAt, run.DurationMs,
		run.WalletsProcessed, run.Inserted, run.TimedOut, summary)
	return err
}

func (r *PostgresRunRepo) ListRuns(ctx context.Context, limit int) ([]*model.RunSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryxContext(ctx,
		`SELECT summary FROM ft_sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*model.RunSummary, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var run model.RunSummary
		if err := json.Unmarshal(raw, &run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (r *PostgresRunRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM ft_sync_runs WHERE started_at < $1`, cutoff)
	return err
}

func (r *PostgresRunRepo) ensureSchema(ctx context.Context) {
	ensure(ctx, r.db, "ft_sync_runs", `
		CREATE TABLE IF NOT EXISTS ft_sync_runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL,
			wallets_processed INTEGER NOT NULL DEFAULT 0,
			inserted INTEGER NOT NULL DEFAULT 0,
			timed_out BOOLEAN NOT NULL DEFAULT FALSE,
			summary JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ft_sync_runs_started ON ft_sync_runs(started_at DESC)`,
	)
}
