package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/logger"
	"github.com/polycopy/ftsync/internal/upstream"
	"golang.org/x/sync/errgroup"
)

// FetchResult is the candidate trades of one run, in pool order.
type FetchResult struct {
	Trades         []model.CandidateTrade
	TradersFetched int
	Errors         []string
}

// TradeFetcher pulls recent BUY fills for eligible traders.
type TradeFetcher struct {
	source           TradeSource
	batchSize        int
	tradePageSize    int
	activityPageSize int
	maxTradePages    int
	maxActivityPages int
	minTrades        int
}

func NewTradeFetcher(source TradeSource, cfg *config.Config) *TradeFetcher {
	f := &TradeFetcher{
		source:           source,
		batchSize:        cfg.Sync.FetchBatchSize,
		tradePageSize:    cfg.Upstream.TradePageSize,
		activityPageSize: cfg.Upstream.ActivityPageSize,
		maxTradePages:    cfg.Sync.MaxTradePages,
		maxActivityPages: cfg.Sync.MaxActivityPages,
		minTrades:        cfg.Sync.MinTraderTrades,
	}
	if f.batchSize <= 0 {
		f.batchSize = 10
	}
	if f.tradePageSize <= 0 {
		f.tradePageSize = 100
	}
	if f.activityPageSize <= 0 {
		f.activityPageSize = 500
	}
	if f.maxTradePages <= 0 {
		f.maxTradePages = 5
	}
	if f.maxActivityPages <= 0 {
		f.maxActivityPages = 10
	}
	return f
}

// Eligible reports whether a trader has enough history to be fetched. Day-active
// and pinned traders are always eligible.
func (f *TradeFetcher) Eligible(t model.Trader, stats *StatsResolver) bool {
	if t.DayActive || t.Target {
		return true
	}
	s, _ := stats.Global(t.Address)
	return s.TradeCount >= f.minTrades
}

// Fetch walks the pool in fixed-size batches. Traders inside a batch are fetched
// concurrently; a failing trader contributes whatever it fetched plus a soft error.
func (f *TradeFetcher) Fetch(ctx context.Context, pool []model.Trader, stats *StatsResolver, horizon time.Time) FetchResult {
	eligible := make([]model.Trader, 0, len(pool))
	for _, t := range pool {
		if f.Eligible(t, stats) {
			eligible = append(eligible, t)
		}
	}

	perTrader := make([][]model.CandidateTrade, len(eligible))
	var (
		mu  sync.Mutex
		res FetchResult
	)
	for start := 0; start < len(eligible); start += f.batchSize {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("fetch stopped: %v", ctx.Err()))
			break
		}
		end := min(start+f.batchSize, len(eligible))

		var g errgroup.Group
		for i := start; i < end; i++ {
			trader := eligible[i]
			g.Go(func() error {
				var (
					trades []model.CandidateTrade
					err    error
				)
				if trader.Target {
					trades, err = f.fetchActivity(ctx, trader.Address, horizon)
				} else {
					trades, err = f.fetchTrades(ctx, trader.Address, horizon)
				}
				s, _ := stats.Global(trader.Address)
				for j := range trades {
					trades[j].Enrich(s)
				}
				perTrader[i] = trades

				mu.Lock()
				defer mu.Unlock()
				res.TradersFetched++
				if err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("fetch %s: %v", trader.Address, err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, trades := range perTrader {
		res.Trades = append(res.Trades, trades...)
	}
	logger.Info("trades fetched",
		"eligible", len(eligible), "trades", len(res.Trades), "errors", len(res.Errors))
	return res
}

// fetchTrades pages the trade list, newest first, until a short page, a page that
// reaches past horizon, or the page cap.
func (f *TradeFetcher) fetchTrades(ctx context.Context, addr string, horizon time.Time) ([]model.CandidateTrade, error) {
	var out []model.CandidateTrade
	for page := 0; page < f.maxTradePages; page++ {
		rows, err := f.source.Trades(ctx, addr, f.tradePageSize, page*f.tradePageSize)
		if err != nil {
			return out, err
		}
		reachedHorizon := false
		for _, r := range rows {
			if !r.Timestamp.Time().After(horizon) {
				reachedHorizon = true
				continue
			}
			if !r.IsBuy() {
				continue
			}
			out = append(out, upstream.NormalizeTrade(addr, r))
		}
		if len(rows) < f.tradePageSize || reachedHorizon {
			break
		}
	}
	return out, nil
}

type position struct {
	trade  model.CandidateTrade
	shares float64
	usd    float64
}

// fetchActivity pages raw trade activity backwards and folds BUY fills after
// horizon into one position per (condition, outcome).
func (f *TradeFetcher) fetchActivity(ctx context.Context, addr string, horizon time.Time) ([]model.CandidateTrade, error) {
	pager := activityPager{
		source:   f.source,
		types:    upstream.TradeActivity,
		pageSize: f.activityPageSize,
		maxPages: f.maxActivityPages,
	}
	var fills []upstream.ActivityRecord
	err := pager.each(ctx, addr, func(rows []upstream.ActivityRecord) bool {
		reachedHorizon := false
		for _, r := range rows {
			if !r.Timestamp.Time().After(horizon) {
				reachedHorizon = true
				continue
			}
			if r.IsBuyFill() {
				fills = append(fills, r)
			}
		}
		return !reachedHorizon
	})
	return AggregateFills(addr, fills), err
}

// AggregateFills folds fills sharing (condition, outcome) into one synthetic
// trade: summed shares and USD, price = USD/shares, timestamp = latest fill.
// Output order follows the first fill of each position.
func AggregateFills(addr string, fills []upstream.ActivityRecord) []model.CandidateTrade {
	trader := normalizeAddress(addr)
	if trader == "" {
		trader = addr
	}
	var order []string
	positions := make(map[string]*position)
	for _, r := range fills {
		key := r.ConditionID + "\x00" + r.Outcome
		p, ok := positions[key]
		if !ok {
			p = &position{trade: model.CandidateTrade{
				ID:          fmt.Sprintf("agg:%s:%s:%s", trader, r.ConditionID, r.Outcome),
				Trader:      trader,
				ConditionID: r.ConditionID,
				Outcome:     r.Outcome,
				Title:       r.Title,
				Slug:        r.Slug,
				Aggregated:  true,
			}}
			positions[key] = p
			order = append(order, key)
		}
		p.shares += float64(r.Size)
		p.usd += r.USD()
		p.trade.FillCount++
		if ts := r.Timestamp.Time(); ts.After(p.trade.Timestamp) {
			p.trade.Timestamp = ts
		}
	}

	out := make([]model.CandidateTrade, 0, len(order))
	for _, key := range order {
		p := positions[key]
		if p.shares <= 0 {
			continue
		}
		p.trade.Size = p.shares
		p.trade.Price = p.usd / p.shares
		out = append(out, p.trade)
	}
	return out
}
