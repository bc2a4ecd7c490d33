package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/upstream"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
	addrC = "0x3333333333333333333333333333333333333333"
	addrW = "0xAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaa"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// testConfig returns the production defaults.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

// fromJSON builds upstream rows the way the API client decodes them.
func fromJSON[T any](t *testing.T, v any) T {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type fakeLeaderboard struct {
	mu    sync.Mutex
	pages map[string][]upstream.LeaderboardEntry // "PERIOD/ORDER/offset"
	fail  map[string]error
	calls int
}

func lbKey(period, order string, offset int) string {
	return fmt.Sprintf("%s/%s/%d", period, order, offset)
}

func (f *fakeLeaderboard) Leaderboard(ctx context.Context, period, order string, limit, offset int) ([]upstream.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	key := lbKey(period, order, offset)
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return f.pages[key], nil
}

func entry(addr string) upstream.LeaderboardEntry {
	return upstream.LeaderboardEntry{ProxyWallet: addr}
}

type fakeTrades struct {
	mu       sync.Mutex
	trades   map[string][]upstream.TradeRecord    // newest first
	activity map[string][]upstream.ActivityRecord // newest first
	fail     map[string]error
	calls    map[string]int
	types    []string // type filter of every activity call
}

func newFakeTrades() *fakeTrades {
	return &fakeTrades{
		trades:   map[string][]upstream.TradeRecord{},
		activity: map[string][]upstream.ActivityRecord{},
		fail:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeTrades) Trades(ctx context.Context, user string, limit, offset int) ([]upstream.TradeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["trades:"+user]++
	if err := f.fail[user]; err != nil {
		return nil, err
	}
	rows := f.trades[user]
	if offset >= len(rows) {
		return nil, nil
	}
	return rows[offset:min(offset+limit, len(rows))], nil
}

// Activity honours the type filter, the end cursor and the offset the way the
// data API does.
func (f *fakeTrades) Activity(ctx context.Context, user string, q upstream.ActivityQuery) ([]upstream.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["activity:"+user]++
	f.types = append(f.types, strings.Join(q.Types, ","))
	if err := f.fail[user]; err != nil {
		return nil, err
	}
	var out []upstream.ActivityRecord
	skip := q.Offset
	for _, r := range f.activity[user] {
		if len(q.Types) > 0 && !slices.Contains(q.Types, r.Type) {
			continue
		}
		if q.End > 0 && r.Timestamp.Time().Unix() > q.End {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, r)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func tradeRow(t *testing.T, tx, condition, outcome, side string, price, size float64, ts time.Time) upstream.TradeRecord {
	return fromJSON[upstream.TradeRecord](t, map[string]any{
		"side":            side,
		"asset":           condition + "-" + outcome,
		"conditionId":     condition,
		"outcome":         outcome,
		"price":           price,
		"size":            size,
		"timestamp":       ts.Unix(),
		"transactionHash": tx,
		"title":           "Market " + condition,
	})
}

func activityRow(t *testing.T, typ, side, condition, outcome string, price, size float64, ts time.Time) upstream.ActivityRecord {
	return fromJSON[upstream.ActivityRecord](t, map[string]any{
		"type":        typ,
		"side":        side,
		"conditionId": condition,
		"outcome":     outcome,
		"price":       price,
		"size":        size,
		"usdcSize":    price * size,
		"timestamp":   ts.Unix(),
	})
}

func sortNewestFirst(rows []upstream.ActivityRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Time().After(rows[j].Timestamp.Time())
	})
}

type fakeMarkets struct {
	mu        sync.Mutex
	markets   map[string]model.Market
	bySlug    map[string]model.Market // only reachable by slug
	calls     [][]string
	slugCalls []string
	err       error
}

func (f *fakeMarkets) MarketBySlug(ctx context.Context, slug string) (*model.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slugCalls = append(f.slugCalls, slug)
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.bySlug[slug]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeMarkets) MarketsByConditionIDs(ctx context.Context, ids []string) ([]model.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Market
	for _, id := range ids {
		if m, ok := f.markets[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeScorer struct {
	mu    sync.Mutex
	value float64
	err   error
	calls int
}

func (f *fakeScorer) Score(ctx context.Context, req upstream.ScoreRequest) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.value, f.err
}

func openMarket(id, title string, yes float64) model.Market {
	end := baseTime.Add(72 * time.Hour)
	return model.Market{
		ConditionID:   id,
		Title:         title,
		Outcomes:      model.StringList{"Yes", "No"},
		OutcomePrices: model.FloatList{yes, 1 - yes},
		EndTime:       &end,
		UpdatedAt:     baseTime,
	}
}
