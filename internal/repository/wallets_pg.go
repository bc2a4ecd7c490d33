package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/polycopy/ftsync/internal/model"
)

type PostgresWalletRepo struct {
	db *sqlx.DB
}

func NewPostgresWalletRepo(db *sqlx.DB) *PostgresWalletRepo {
	repo := &PostgresWalletRepo{db: db}
	repo.ensureSchema(context.Background())
	return repo
}

const walletColumns = `wallet_id, name, price_min, price_max, min_edge, max_edge, min_win_rate, max_win_rate,
	use_profile_stats, min_trader_resolved_count, min_conviction, max_conviction,
	min_original_trade_usd, max_original_trade_usd, allocation_method, bet_size, kelly_fraction,
	min_bet, max_bet, target_traders, mirror_mode, market_categories, live_only, use_model,
	model_threshold, starting_balance, start_date, end_date, last_sync_time, is_active, created_at`

// ListWallets returns every wallet, stalest watermark first.
func (r *PostgresWalletRepo) ListWallets(ctx context.Context) ([]model.WalletStrategy, error) {
	var out []model.WalletStrategy
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+walletColumns+` FROM ft_wallets ORDER BY last_sync_time ASC NULLS FIRST, wallet_id`)
	return out, err
}

func (r *PostgresWalletRepo) GetWallet(ctx context.Context, id string) (*model.WalletStrategy, error) {
	var w model.WalletStrategy
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM ft_wallets WHERE wallet_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// AdvanceSyncTime moves the watermark forward to t; it never moves backwards.
func (r *PostgresWalletRepo) AdvanceSyncTime(ctx context.Context, walletID string, t time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ft_wallets
		SET last_sync_time = GREATEST(COALESCE(last_sync_time, $2), $2)
		WHERE wallet_id = $1
	`, walletID, t)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertWallet creates or replaces a wallet's configuration. The watermark is kept.
func (r *PostgresWalletRepo) UpsertWallet(ctx context.Context, w *model.WalletStrategy) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO ft_wallets (`+walletColumns+`)
		VALUES (:wallet_id, :name, :price_min, :price_max, :min_edge, :max_edge, :min_win_rate, :max_win_rate,
			:use_profile_stats, :min_trader_resolved_count, :min_conviction, :max_conviction,
			:min_original_trade_usd, :max_original_trade_usd, :allocation_method, :bet_size, :kelly_fraction,
			:min_bet, :max_bet, :target_traders, :mirror_mode, :market_categories, :live_only, :use_model,
			:model_threshold, :starting_balance, :start_date, :end_date, :last_sync_time, :is_active, :created_at)
		ON CONFLICT (wallet_id) DO UPDATE SET
			name = EXCLUDED.name,
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			min_edge = EXCLUDED.min_edge,
			max_edge = EXCLUDED.max_edge,
			min_win_rate = EXCLUDED.min_win_rate,
			max_win_rate = EXCLUDED.max_win_rate,
			use_profile_stats = EXCLUDED.use_profile_stats,
			min_trader_resolved_count = EXCLUDED.min_trader_resolved_count,
			min_conviction = EXCLUDED.min_conviction,
			max_conviction = EXCLUDED.max_conviction,
			min_original_trade_usd = EXCLUDED.min_original_trade_usd,
			max_original_trade_usd = EXCLUDED.max_original_trade_usd,
			allocation_method = EXCLUDED.allocation_method,
			bet_size = EXCLUDED.bet_size,
			kelly_fraction = EXCLUDED.kelly_fraction,
			min_bet = EXCLUDED.min_bet,
			max_bet = EXCLUDED.max_bet,
			target_traders = EXCLUDED.target_traders,
			mirror_mode = EXCLUDED.mirror_mode,
			market_categories = EXCLUDED.market_categories,
			live_only = EXCLUDED.live_only,
			use_model = EXCLUDED.use_model,
			model_threshold = EXCLUDED.model_threshold,
			starting_balance = EXCLUDED.starting_balance,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			is_active = EXCLUDED.is_active
	`, w)
	return err
}

func (r *PostgresWalletRepo) ensureSchema(ctx context.Context) {
	ensure(ctx, r.db, "ft_wallets", `
		CREATE TABLE IF NOT EXISTS ft_wallets (
			wallet_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			price_min DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_max DOUBLE PRECISION NOT NULL DEFAULT 1,
			min_edge DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_edge DOUBLE PRECISION,
			min_win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_win_rate DOUBLE PRECISION,
			use_profile_stats BOOLEAN NOT NULL DEFAULT FALSE,
			min_trader_resolved_count INTEGER NOT NULL DEFAULT 0,
			min_conviction DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_conviction DOUBLE PRECISION,
			min_original_trade_usd DOUBLE PRECISION,
			max_original_trade_usd DOUBLE PRECISION,
			allocation_method TEXT NOT NULL DEFAULT 'FIXED',
			bet_size DOUBLE PRECISION NOT NULL DEFAULT 1.2,
			kelly_fraction DOUBLE PRECISION NOT NULL DEFAULT 0.25,
			min_bet DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			max_bet DOUBLE PRECISION NOT NULL DEFAULT 0,
			target_traders JSONB NOT NULL DEFAULT '[]',
			mirror_mode BOOLEAN NOT NULL DEFAULT FALSE,
			market_categories JSONB NOT NULL DEFAULT '[]',
			live_only BOOLEAN NOT NULL DEFAULT FALSE,
			use_model BOOLEAN NOT NULL DEFAULT FALSE,
			model_threshold DOUBLE PRECISION,
			starting_balance DOUBLE PRECISION NOT NULL DEFAULT 1000,
			start_date TIMESTAMPTZ,
			end_date TIMESTAMPTZ,
			last_sync_time TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	)
}
