package service

import (
	"context"
	"sort"
	"strings"

	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/pkg/apperrors"
	"github.com/polycopy/ftsync/internal/pkg/logger"
	"github.com/polycopy/ftsync/internal/upstream"
	"github.com/shopspring/decimal"
)

// MarketPnL is a trader's FIFO-matched result on one (market, outcome).
type MarketPnL struct {
	ConditionID   string   `json:"condition_id"`
	Outcome       string   `json:"outcome"`
	Title         string   `json:"title,omitempty"`
	BoughtShares  float64  `json:"bought_shares"`
	SoldShares    float64  `json:"sold_shares"`
	OpenShares    float64  `json:"open_shares"`
	OpenCost      float64  `json:"open_cost"`
	RealizedPnL   float64  `json:"realized_pnl"`
	UnrealizedPnL *float64 `json:"unrealized_pnl,omitempty"`
	// UnmatchedShares were sold without a known buy inside the fetched window.
	UnmatchedShares float64 `json:"unmatched_shares,omitempty"`
}

type TraderPnL struct {
	Address     string      `json:"address"`
	Fills       int         `json:"fills"`
	RealizedPnL float64     `json:"realized_pnl"`
	OpenCost    float64     `json:"open_cost"`
	Markets     []MarketPnL `json:"markets"`
}

// TraderPnLService rebuilds a trader's realized PnL from raw activity.
type TraderPnLService struct {
	source   TradeSource
	prices   PriceCache
	pageSize int
	maxPages int
}

func NewTraderPnLService(source TradeSource, prices PriceCache, cfg *config.Config) *TraderPnLService {
	s := &TraderPnLService{
		source:   source,
		prices:   prices,
		pageSize: cfg.Upstream.ActivityPageSize,
		maxPages: cfg.Sync.MaxActivityPages,
	}
	if s.pageSize <= 0 {
		s.pageSize = 500
	}
	if s.maxPages <= 0 {
		s.maxPages = 10
	}
	return s
}

func (s *TraderPnLService) Compute(ctx context.Context, address string) (*TraderPnL, error) {
	addr := normalizeAddress(address)
	if addr == "" {
		return nil, apperrors.NewInvalidRequest("invalid trader address")
	}

	pager := activityPager{
		source:   s.source,
		types:    upstream.SettlementActivity,
		pageSize: s.pageSize,
		maxPages: s.maxPages,
	}
	var rows []upstream.ActivityRecord
	err := pager.each(ctx, addr, func(batch []upstream.ActivityRecord) bool {
		rows = append(rows, batch...)
		return true
	})
	if err != nil && len(rows) == 0 {
		return nil, apperrors.NewUpstream("activity fetch failed", err)
	}
	if err != nil {
		logger.Warn("activity fetch cut short", "address", addr, "rows", len(rows), "error", err)
	}

	markets, fills := MatchFIFO(rows)
	out := &TraderPnL{Address: addr, Fills: fills, Markets: markets}
	for i := range out.Markets {
		m := &out.Markets[i]
		out.RealizedPnL += m.RealizedPnL
		out.OpenCost += m.OpenCost
		if s.prices == nil || m.OpenShares <= 0 {
			continue
		}
		if p, ok := s.prices.Price(ctx, m.ConditionID, m.Outcome); ok {
			u := decimal.NewFromFloat(m.OpenShares).Mul(decimal.NewFromFloat(p)).
				Sub(decimal.NewFromFloat(m.OpenCost)).Round(2).InexactFloat64()
			m.UnrealizedPnL = &u
		}
	}
	out.RealizedPnL = decimal.NewFromFloat(out.RealizedPnL).Round(2).InexactFloat64()
	out.OpenCost = decimal.NewFromFloat(out.OpenCost).Round(2).InexactFloat64()
	return out, nil
}

type pnlBook struct {
	pnl       MarketPnL
	queue     LotQueue
	realized  decimal.Decimal
	unmatched decimal.Decimal
}

// MatchFIFO replays trade and redeem rows oldest first. Buys open lots; sells and
// redemptions close them in purchase order. It returns per-market results and the
// number of rows that were applied.
func MatchFIFO(rows []upstream.ActivityRecord) ([]MarketPnL, int) {
	sorted := make([]upstream.ActivityRecord, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Time().Before(sorted[j].Timestamp.Time())
	})

	books := make(map[string]*pnlBook)
	var order []string
	book := func(r upstream.ActivityRecord) *pnlBook {
		key := r.ConditionID + "\x00" + r.Outcome
		b, ok := books[key]
		if !ok {
			b = &pnlBook{pnl: MarketPnL{ConditionID: r.ConditionID, Outcome: r.Outcome, Title: r.Title}}
			books[key] = b
			order = append(order, key)
		}
		return b
	}

	applied := 0
	for _, r := range sorted {
		if r.ConditionID == "" || r.Size <= 0 {
			continue
		}
		shares := decimal.NewFromFloat(float64(r.Size))
		switch {
		case strings.EqualFold(r.Type, "TRADE") && strings.EqualFold(r.Side, "BUY"):
			b := book(r)
			b.queue.Push(Lot{Shares: shares, Price: decimal.NewFromFloat(r.USD()).Div(shares)})
			b.pnl.BoughtShares += float64(r.Size)
		case strings.EqualFold(r.Type, "TRADE") && strings.EqualFold(r.Side, "SELL"),
			strings.EqualFold(r.Type, "REDEEM"):
			b := book(r)
			proceeds := decimal.NewFromFloat(r.USD())
			matched, cost := b.queue.Consume(shares)
			if matched.IsPositive() {
				// proceeds are attributed pro rata to the matched part
				b.realized = b.realized.Add(proceeds.Mul(matched).Div(shares)).Sub(cost)
			}
			b.unmatched = b.unmatched.Add(shares.Sub(matched))
			b.pnl.SoldShares += float64(r.Size)
		default:
			continue
		}
		applied++
	}

	out := make([]MarketPnL, 0, len(order))
	for _, key := range order {
		b := books[key]
		openShares, openCost := b.queue.Open()
		b.pnl.OpenShares = openShares.Round(4).InexactFloat64()
		b.pnl.OpenCost = openCost.Round(2).InexactFloat64()
		b.pnl.RealizedPnL = b.realized.Round(2).InexactFloat64()
		b.pnl.UnmatchedShares = b.unmatched.Round(4).InexactFloat64()
		out = append(out, b.pnl)
	}
	return out, applied
}
