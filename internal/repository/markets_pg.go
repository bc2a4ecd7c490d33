package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/polycopy/ftsync/internal/model"
)

type PostgresMarketRepo struct {
	db *sqlx.DB
}

func NewPostgresMarketRepo(db *sqlx.DB) *PostgresMarketRepo {
	repo := &PostgresMarketRepo{db: db}
	repo.ensureSchema(context.Background())
	return repo
}

const marketColumns = `condition_id, title, slug, outcomes, outcome_prices, end_time, game_start_time,
	closed, resolved, winning_side, tags, market_type, niche, bet_structure, updated_at`

// GetMarkets loads the stored rows for ids, keyed by condition id.
func (r *PostgresMarketRepo) GetMarkets(ctx context.Context, ids []string) (map[string]*model.Market, error) {
	out := make(map[string]*model.Market, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := inQuery(r.db, `SELECT `+marketColumns+` FROM markets WHERE condition_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []model.Market
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ConditionID] = &rows[i]
	}
	return out, nil
}

// UpsertMarkets writes markets back, newest data wins.
func (r *PostgresMarketRepo) UpsertMarkets(ctx context.Context, markets []model.Market) error {
	if len(markets) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO markets (`+marketColumns+`)
		VALUES (:condition_id, :title, :slug, :outcomes, :outcome_prices, :end_time, :game_start_time,
			:closed, :resolved, :winning_side, :tags, :market_type, :niche, :bet_structure, :updated_at)
		ON CONFLICT (condition_id) DO UPDATE SET
			title = EXCLUDED.title,
			slug = EXCLUDED.slug,
			outcomes = EXCLUDED.outcomes,
			outcome_prices = EXCLUDED.outcome_prices,
			end_time = COALESCE(EXCLUDED.end_time, markets.end_time),
			game_start_time = COALESCE(EXCLUDED.game_start_time, markets.game_start_time),
			closed = EXCLUDED.closed,
			resolved = EXCLUDED.resolved,
			winning_side = EXCLUDED.winning_side,
			tags = EXCLUDED.tags,
			market_type = EXCLUDED.market_type,
			niche = EXCLUDED.niche,
			bet_structure = EXCLUDED.bet_structure,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range markets {
		if _, err := stmt.ExecContext(ctx, &markets[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresMarketRepo) ensureSchema(ctx context.Context) {
	ensure(ctx, r.db, "markets", `
		CREATE TABLE IF NOT EXISTS markets (
			condition_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			slug TEXT NOT NULL DEFAULT '',
			outcomes JSONB NOT NULL DEFAULT '[]',
			outcome_prices JSONB NOT NULL DEFAULT '[]',
			end_time TIMESTAMPTZ,
			game_start_time TIMESTAMPTZ,
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			winning_side TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`ALTER TABLE markets ADD COLUMN IF NOT EXISTS market_type TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE markets ADD COLUMN IF NOT EXISTS niche TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE markets ADD COLUMN IF NOT EXISTS bet_structure TEXT NOT NULL DEFAULT ''`,
	)
}
