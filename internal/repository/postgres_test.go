package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a throwaway postgres and returns a connected handle.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ftsync"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Connect(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestPostgresRepos(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	markets := NewPostgresMarketRepo(db)
	wallets := NewPostgresWalletRepo(db)
	orders := NewPostgresOrderRepo(db)
	stats := NewPostgresStatsRepo(db)
	runs := NewPostgresRunRepo(db)

	t.Run("markets round trip", func(t *testing.T) {
		end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		m := model.Market{
			ConditionID:   "0xcond",
			Title:         "Lakers vs Celtics",
			Outcomes:      model.StringList{"Lakers", "Celtics"},
			OutcomePrices: model.FloatList{0.45, 0.55},
			EndTime:       &end,
			Tags:          model.StringList{"NBA"},
			MarketType:    "SPORTS",
			Niche:         "NBA",
			Structure:     "HEAD_TO_HEAD",
			UpdatedAt:     time.Now().UTC(),
		}
		require.NoError(t, markets.UpsertMarkets(ctx, []model.Market{m}))

		m.EndTime = nil
		m.Title = "Lakers vs. Celtics"
		require.NoError(t, markets.UpsertMarkets(ctx, []model.Market{m}))

		got, err := markets.GetMarkets(ctx, []string{"0xcond", "0xnone"})
		require.NoError(t, err)
		require.Contains(t, got, "0xcond")
		assert.Equal(t, "Lakers vs. Celtics", got["0xcond"].Title)
		assert.Equal(t, []string{"Lakers", "Celtics"}, []string(got["0xcond"].Outcomes))
		require.NotNil(t, got["0xcond"].EndTime)
		assert.True(t, got["0xcond"].EndTime.Equal(end))
	})

	t.Run("wallet watermark never regresses", func(t *testing.T) {
		w := &model.WalletStrategy{
			ID:              "FT_TEST",
			Name:            "test",
			PriceMax:        1,
			Allocation:      model.AllocKelly,
			BetSize:         1.2,
			KellyFraction:   0.25,
			MinBet:          0.5,
			TargetTraders:   model.StringList{"0xabc"},
			StartingBalance: 1000,
			MaxEdge:         ptr(0.5),
			Active:          true,
		}
		require.NoError(t, wallets.UpsertWallet(ctx, w))

		t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, wallets.AdvanceSyncTime(ctx, "FT_TEST", t1))
		require.NoError(t, wallets.AdvanceSyncTime(ctx, "FT_TEST", t1.Add(-time.Hour)))

		got, err := wallets.GetWallet(ctx, "FT_TEST")
		require.NoError(t, err)
		require.NotNil(t, got.LastSyncTime)
		assert.True(t, got.LastSyncTime.Equal(t1))
		require.NotNil(t, got.MaxEdge)
		assert.Equal(t, 0.5, *got.MaxEdge)
		assert.True(t, got.IsTarget("0xABC"))

		assert.ErrorIs(t, wallets.AdvanceSyncTime(ctx, "missing", t1), ErrNotFound)
	})

	t.Run("orders dedupe and exposure", func(t *testing.T) {
		won := 9.0
		o := &model.Order{
			ID: "o-1", WalletID: "FT_TEST", SourceTradeID: "tx:1", Trader: "0xabc",
			ConditionID: "0xcond", Outcome: "Lakers", TraderPrice: 0.45, EntryPrice: 0.468,
			Size: 10, Shares: 21.37, Allocation: model.AllocKelly, Status: model.OrderOpen,
			TradeTime: time.Now().UTC(),
		}
		require.NoError(t, orders.InsertOrder(ctx, o))

		dup := *o
		dup.ID = "o-2"
		assert.ErrorIs(t, orders.InsertOrder(ctx, &dup), ErrDuplicateKey)

		settled := *o
		settled.ID = "o-3"
		settled.SourceTradeID = "tx:2"
		settled.Status = model.OrderWon
		settled.PnL = &won
		require.NoError(t, orders.InsertOrder(ctx, &settled))

		ids, err := orders.SourceTradeIDs(ctx, "FT_TEST")
		require.NoError(t, err)
		assert.Len(t, ids, 2)

		e, err := orders.Exposure(ctx, "FT_TEST")
		require.NoError(t, err)
		assert.Equal(t, 10.0, e.OpenExposure)
		assert.Equal(t, 9.0, e.RealizedPnL)
		assert.Equal(t, 1, e.OpenOrders)
	})

	t.Run("stats lookup lowercases addresses", func(t *testing.T) {
		require.NoError(t, stats.UpsertGlobalStat(ctx, model.GlobalStatRow{
			Address: "0xDEF", LCount: 50, LWinRate: 0.6, D30Count: 12, D30WinRate: 0.7,
		}))
		rows, err := stats.GlobalStats(ctx, []string{"0xDeF"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 0.7, rows[0].Stats().WinRate)
	})

	t.Run("runs newest first", func(t *testing.T) {
		base := time.Now().UTC()
		for i, id := range []string{"run-a", "run-b"} {
			require.NoError(t, runs.InsertRun(ctx, &model.RunSummary{
				RunID:     id,
				StartedAt: base.Add(time.Duration(i) * time.Minute),
				Inserted:  i,
			}))
		}
		got, err := runs.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "run-b", got[0].RunID)
	})
}
