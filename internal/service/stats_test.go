package service

import (
	"context"
	"testing"

	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedResolver(t *testing.T, rows ...model.ProfileStat) *StatsResolver {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertGlobalStat(ctx, model.GlobalStatRow{
		Address: addrA, LCount: 200, LWinRate: 0.55, LAvgTradeSize: 40,
		D30Count: 20, D30WinRate: 0.62, D30AvgTradeSize: 50,
	}))
	require.NoError(t, store.UpsertGlobalStat(ctx, model.GlobalStatRow{
		Address: addrB, LCount: 15, LWinRate: 0.48, LAvgTradeSize: 12,
	}))
	for _, r := range rows {
		require.NoError(t, store.AddProfileStat(ctx, r))
	}
	r, err := LoadStats(ctx, store, []string{addrA, addrB, addrC}, true)
	require.NoError(t, err)
	return r
}

func TestLoadStatsPrefersThirtyDayWindow(t *testing.T) {
	r := loadedResolver(t)

	a, ok := r.Global(addrA)
	require.True(t, ok)
	assert.Equal(t, model.TraderStats{WinRate: 0.62, TradeCount: 20, AvgTradeSize: 50}, a)

	b, ok := r.Global(addrB)
	require.True(t, ok)
	assert.Equal(t, model.TraderStats{WinRate: 0.48, TradeCount: 15, AvgTradeSize: 12}, b)

	_, ok = r.Global(addrC)
	assert.False(t, ok)
}

func TestResolveFallbackTiers(t *testing.T) {
	r := loadedResolver(t,
		model.ProfileStat{Address: addrA, Niche: "NBA", Structure: "SPREAD", Bracket: "LOW", WinRate: 0.70, TradeCount: 10, AvgTradeSize: 20},
		model.ProfileStat{Address: addrA, Niche: "NBA", Structure: "SPREAD", Bracket: "HIGH", WinRate: 0.40, TradeCount: 30, AvgTradeSize: 60},
		model.ProfileStat{Address: addrA, Niche: "NBA_PLAYOFFS", Structure: "YES_NO", Bracket: "MID", WinRate: 0.50, TradeCount: 10, AvgTradeSize: 10},
		model.ProfileStat{Address: addrA, Niche: "NFL", Structure: "SPREAD", Bracket: "MID", WinRate: 0.90, TradeCount: 0},
	)
	fallback := model.TraderStats{WinRate: 0.55, TradeCount: 99, AvgTradeSize: 1}

	exact := r.Resolve(addrA, "NBA", "SPREAD", "LOW", fallback)
	assert.Equal(t, model.TraderStats{WinRate: 0.70, TradeCount: 10, AvgTradeSize: 20}, exact)

	// no MID slice: aggregate across brackets, weighted by count
	acrossBrackets := r.Resolve(addrA, "nba", "spread", "MID", fallback)
	assert.Equal(t, 40, acrossBrackets.TradeCount)
	assert.InDelta(t, (0.70*10+0.40*30)/40, acrossBrackets.WinRate, 1e-9)
	assert.InDelta(t, (20*10+60*30)/40.0, acrossBrackets.AvgTradeSize, 1e-9)

	// no NBA/OVER_UNDER slice: every niche containing "NBA"
	fuzzy := r.Resolve(addrA, "NBA", "OVER_UNDER", "MID", fallback)
	assert.Equal(t, 50, fuzzy.TradeCount)
	assert.InDelta(t, (0.70*10+0.40*30+0.50*10)/50, fuzzy.WinRate, 1e-9)

	// the only NFL slice has no trades, so it falls through
	assert.Equal(t, fallback, r.Resolve(addrA, "NFL", "SPREAD", "MID", fallback))
	assert.Equal(t, fallback, r.Resolve(addrB, "NBA", "SPREAD", "LOW", fallback))
	assert.Equal(t, fallback, r.Resolve(addrA, "", "SPREAD", "LOW", fallback))
}

func TestResolveNilResolver(t *testing.T) {
	var r *StatsResolver
	fallback := model.TraderStats{WinRate: 0.5}
	assert.Equal(t, fallback, r.Resolve(addrA, "NBA", "SPREAD", "LOW", fallback))
	_, ok := r.Global(addrA)
	assert.False(t, ok)
}
