package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/polycopy/ftsync/internal/model"
)

type PostgresOrderRepo struct {
	db *sqlx.DB
}

func NewPostgresOrderRepo(db *sqlx.DB) *PostgresOrderRepo {
	repo := &PostgresOrderRepo{db: db}
	repo.ensureSchema(context.Background())
	return repo
}

// SourceTradeIDs returns every source trade id already copied by the wallet.
func (r *PostgresOrderRepo) SourceTradeIDs(ctx context.Context, walletID string) (map[string]struct{}, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids,
		`SELECT source_trade_id FROM ft_orders WHERE wallet_id = $1`, walletID); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Exposure sums realized PnL of settled orders and the stake of open ones.
func (r *PostgresOrderRepo) Exposure(ctx context.Context, walletID string) (model.Exposure, error) {
	var e model.Exposure
	err := r.db.GetContext(ctx, &e, `
		SELECT
			COALESCE(SUM(CASE WHEN outcome_status <> 'OPEN' THEN COALESCE(pnl, 0) ELSE 0 END), 0) AS realized_pnl,
			COALESCE(SUM(CASE WHEN outcome_status = 'OPEN' THEN size ELSE 0 END), 0) AS open_exposure,
			COUNT(*) FILTER (WHERE outcome_status = 'OPEN') AS open_orders
		FROM ft_orders
		WHERE wallet_id = $1
	`, walletID)
	return e, err
}

// InsertOrder writes o. A second copy of the same source trade for the same
// wallet yields ErrDuplicateKey.
func (r *PostgresOrderRepo) InsertOrder(ctx context.Context, o *model.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO ft_orders (
			id, wallet_id, source_trade_id, trader_address, condition_id, outcome, market_title,
			trader_price, entry_price, size, shares, edge, trader_win_rate, conviction,
			model_probability, allocation_method, outcome_status, pnl, resolved_at, trade_time, created_at
		) VALUES (
			:id, :wallet_id, :source_trade_id, :trader_address, :condition_id, :outcome, :market_title,
			:trader_price, :entry_price, :size, :shares, :edge, :trader_win_rate, :conviction,
			:model_probability, :allocation_method, :outcome_status, :pnl, :resolved_at, :trade_time, :created_at
		)
		ON CONFLICT (wallet_id, source_trade_id) DO NOTHING
	`, o)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicateKey
	}
	return nil
}

// ListOrders returns a wallet's orders, newest trade first.
func (r *PostgresOrderRepo) ListOrders(ctx context.Context, walletID string, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []model.Order
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, wallet_id, source_trade_id, trader_address, condition_id, outcome, market_title,
			trader_price, entry_price, size, shares, edge, trader_win_rate, conviction,
			model_probability, allocation_method, outcome_status, pnl, resolved_at, trade_time, created_at
		FROM ft_orders
		WHERE wallet_id = $1
		ORDER BY trade_time DESC
		LIMIT $2
	`, walletID, limit)
	return out, err
}

func (r *PostgresOrderRepo) ensureSchema(ctx context.Context) {
	ensure(ctx, r.db, "ft_orders", `
		CREATE TABLE IF NOT EXISTS ft_orders (
			id TEXT PRIMARY KEY,
			wallet_id TEXT NOT NULL,
			source_trade_id TEXT NOT NULL,
			trader_address TEXT NOT NULL,
			condition_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			market_title TEXT NOT NULL DEFAULT '',
			trader_price DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			size DOUBLE PRECISION NOT NULL,
			shares DOUBLE PRECISION NOT NULL,
			edge DOUBLE PRECISION NOT NULL DEFAULT 0,
			trader_win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			conviction DOUBLE PRECISION NOT NULL DEFAULT 1,
			model_probability DOUBLE PRECISION,
			allocation_method TEXT NOT NULL,
			outcome_status TEXT NOT NULL DEFAULT 'OPEN',
			pnl DOUBLE PRECISION,
			resolved_at TIMESTAMPTZ,
			trade_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (wallet_id, source_trade_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ft_orders_wallet_status ON ft_orders(wallet_id, outcome_status)`,
	)
}
