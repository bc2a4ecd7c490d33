package service

import (
	"context"
	"time"

	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/upstream"
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

type MarketStore interface {
	GetMarkets(ctx context.Context, ids []string) (map[string]*model.Market, error)
	UpsertMarkets(ctx context.Context, markets []model.Market) error
}

type WalletStore interface {
	ListWallets(ctx context.Context) ([]model.WalletStrategy, error)
	AdvanceSyncTime(ctx context.Context, walletID string, t time.Time) error
}

// OrderStore must report a second insert of the same (wallet, source trade)
// with repository.ErrDuplicateKey.
type OrderStore interface {
	SourceTradeIDs(ctx context.Context, walletID string) (map[string]struct{}, error)
	Exposure(ctx context.Context, walletID string) (model.Exposure, error)
	InsertOrder(ctx context.Context, o *model.Order) error
}

type StatsStore interface {
	GlobalStats(ctx context.Context, addrs []string) ([]model.GlobalStatRow, error)
	ProfileStats(ctx context.Context, addrs []string) ([]model.ProfileStat, error)
}

type RunRepo interface {
	InsertRun(ctx context.Context, run *model.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]*model.RunSummary, error)
}

// PriceCache holds the latest outcome prices seen by the market resolver.
type PriceCache interface {
	PutMarket(ctx context.Context, m *model.Market)
	Price(ctx context.Context, conditionID, outcome string) (float64, bool)
}

type LeaderboardSource interface {
	Leaderboard(ctx context.Context, timePeriod, orderBy string, limit, offset int) ([]upstream.LeaderboardEntry, error)
}

type TradeSource interface {
	Trades(ctx context.Context, user string, limit, offset int) ([]upstream.TradeRecord, error)
	Activity(ctx context.Context, user string, q upstream.ActivityQuery) ([]upstream.ActivityRecord, error)
}

// MarketSource looks markets up upstream. MarketBySlug returns nil, nil when
// nothing matches.
type MarketSource interface {
	MarketsByConditionIDs(ctx context.Context, ids []string) ([]model.Market, error)
	MarketBySlug(ctx context.Context, slug string) (*model.Market, error)
}

type ScoreSource interface {
	Score(ctx context.Context, req upstream.ScoreRequest) (float64, error)
}
