package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/polycopy/ftsync/internal/model"
)

// PostgresStatsRepo reads the trader statistics tables maintained by the
// nightly enrichment job. It never writes them outside of tests.
type PostgresStatsRepo struct {
	db *sqlx.DB
}

func NewPostgresStatsRepo(db *sqlx.DB) *PostgresStatsRepo {
	repo := &PostgresStatsRepo{db: db}
	repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresStatsRepo) GlobalStats(ctx context.Context, addrs []string) ([]model.GlobalStatRow, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	query, args, err := inQuery(r.db, `
		SELECT wallet_address, l_count, l_win_rate, l_avg_trade_size_usd,
			d30_count, d30_win_rate, d30_avg_trade_size_usd
		FROM trader_global_stats
		WHERE wallet_address IN (?)`, lowerAll(addrs))
	if err != nil {
		return nil, err
	}
	var rows []model.GlobalStatRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

func (r *PostgresStatsRepo) ProfileStats(ctx context.Context, addrs []string) ([]model.ProfileStat, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	query, args, err := inQuery(r.db, `
		SELECT wallet_address, final_niche, structure, bracket, win_rate, trade_count, avg_trade_size_usd
		FROM trader_profile_stats
		WHERE wallet_address IN (?)`, lowerAll(addrs))
	if err != nil {
		return nil, err
	}
	var rows []model.ProfileStat
	err = r.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

func (r *PostgresStatsRepo) UpsertGlobalStat(ctx context.Context, row model.GlobalStatRow) error {
	row.Address = strings.ToLower(row.Address)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO trader_global_stats (wallet_address, l_count, l_win_rate, l_avg_trade_size_usd,
			d30_count, d30_win_rate, d30_avg_trade_size_usd)
		VALUES (:wallet_address, :l_count, :l_win_rate, :l_avg_trade_size_usd,
			:d30_count, :d30_win_rate, :d30_avg_trade_size_usd)
		ON CONFLICT (wallet_address) DO UPDATE SET
			l_count = EXCLUDED.l_count,
			l_win_rate = EXCLUDED.l_win_rate,
			l_avg_trade_size_usd = EXCLUDED.l_avg_trade_size_usd,
			d30_count = EXCLUDED.d30_count,
			d30_win_rate = EXCLUDED.d30_win_rate,
			d30_avg_trade_size_usd = EXCLUDED.d30_avg_trade_size_usd
	`, row)
	return err
}

func (r *PostgresStatsRepo) ensureSchema(ctx context.Context) {
	ensure(ctx, r.db, "trader_global_stats", `
		CREATE TABLE IF NOT EXISTS trader_global_stats (
			wallet_address TEXT PRIMARY KEY,
			l_count INTEGER NOT NULL DEFAULT 0,
			l_win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			l_avg_trade_size_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			d30_count INTEGER NOT NULL DEFAULT 0,
			d30_win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			d30_avg_trade_size_usd DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
	)
	ensure(ctx, r.db, "trader_profile_stats", `
		CREATE TABLE IF NOT EXISTS trader_profile_stats (
			wallet_address TEXT NOT NULL,
			final_niche TEXT NOT NULL,
			structure TEXT NOT NULL,
			bracket TEXT NOT NULL,
			win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			trade_count INTEGER NOT NULL DEFAULT 0,
			avg_trade_size_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (wallet_address, final_niche, structure, bracket)
		)`,
	)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
