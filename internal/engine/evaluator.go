package engine

import (
	"context"
	"strings"
	"time"

	"github.com/polycopy/ftsync/internal/classify"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/shopspring/decimal"
)

// Params are the run-wide knobs shared by every wallet.
type Params struct {
	Now             time.Time
	Slippage        float64
	FixedMultiplier float64
}

// ProfileResolver returns the best profile-stats match for a trade, or fallback.
type ProfileResolver interface {
	Resolve(trader, niche, structure, bracket string, fallback model.TraderStats) model.TraderStats
}

// Scorer returns a normalized model probability for a trade.
type Scorer interface {
	Probability(ctx context.Context, t *model.CandidateTrade, m *model.Market) (float64, error)
}

// Decision is the outcome of evaluating one trade for one wallet.
type Decision struct {
	Reason      Reason
	Stats       model.TraderStats
	Edge        float64
	Probability *float64
	Bet         decimal.Decimal
	Order       *model.Order // set when accepted
}

func (d Decision) Accepted() bool {
	return d.Reason == ReasonNone
}

// WalletRun evaluates a wallet's candidate trades in order. It owns the wallet's
// dedup set and running bankroll, so one WalletRun must not be shared between
// goroutines.
type WalletRun struct {
	wallet    *model.WalletStrategy
	params    Params
	watermark time.Time
	seen      map[string]struct{}

	starting decimal.Decimal
	realized decimal.Decimal
	open     decimal.Decimal

	profiles ProfileResolver
	scorer   Scorer
	ranks    *ValueRanks
}

// WalletRunOptions wires optional collaborators into a WalletRun.
type WalletRunOptions struct {
	ExistingIDs map[string]struct{}
	Exposure    model.Exposure
	Watermark   time.Time
	Profiles    ProfileResolver
	Scorer      Scorer
	Ranks       *ValueRanks
}

func NewWalletRun(w *model.WalletStrategy, params Params, opts WalletRunOptions) *WalletRun {
	seen := make(map[string]struct{}, len(opts.ExistingIDs))
	for id := range opts.ExistingIDs {
		seen[id] = struct{}{}
	}
	return &WalletRun{
		wallet:    w,
		params:    params,
		watermark: opts.Watermark,
		seen:      seen,
		starting:  decimal.NewFromFloat(w.StartingBalance),
		realized:  decimal.NewFromFloat(opts.Exposure.RealizedPnL),
		open:      decimal.NewFromFloat(opts.Exposure.OpenExposure),
		profiles:  opts.Profiles,
		scorer:    opts.Scorer,
		ranks:     opts.Ranks,
	}
}

// Bankroll is starting balance + realized PnL - open exposure.
func (r *WalletRun) Bankroll() decimal.Decimal {
	return r.starting.Add(r.realized).Sub(r.open)
}

// OpenExposure is the running sum of open order sizes.
func (r *WalletRun) OpenExposure() decimal.Decimal {
	return r.open
}

// Evaluate runs the ordered predicate chain. The first failure wins.
func (r *WalletRun) Evaluate(ctx context.Context, t *model.CandidateTrade, m *model.Market) Decision {
	w := r.wallet

	// 1. dedup
	if _, dup := r.seen[t.ID]; dup {
		return Decision{Reason: ReasonDuplicate}
	}
	if !r.watermark.IsZero() && !t.Timestamp.After(r.watermark) {
		return Decision{Reason: ReasonBeforeWatermark}
	}

	// 2. target trader
	if reason := CheckTarget(w, t); reason != ReasonNone {
		return Decision{Reason: reason}
	}

	// 3. market
	if reason := CheckMarket(w, t, m); reason != ReasonNone {
		return Decision{Reason: reason}
	}

	// 4. live only
	if reason := CheckLive(w, m, r.params.Now); reason != ReasonNone {
		return Decision{Reason: reason}
	}

	// 5. price band
	if reason := CheckPrice(w, t.Price); reason != ReasonNone {
		return Decision{Reason: reason}
	}

	stats := r.statsFor(t, m)
	edge := Edge(stats.WinRate, t.Price, r.params.Slippage)
	d := Decision{Stats: stats, Edge: edge}

	// 6-11. quantitative filters; mirror wallets copy unconditionally
	if !w.MirrorMode {
		for _, reason := range []Reason{
			CheckWinRate(w, stats.WinRate),
			CheckEdge(w, edge),
			CheckTradeCount(w, stats.TradeCount),
			CheckConviction(w, t.Conviction),
			CheckCategory(w, m),
			CheckTradeSize(w, t.TradeValue),
		} {
			if reason != ReasonNone {
				d.Reason = reason
				return d
			}
		}
	}

	// 12. model gate
	if w.UseModel {
		if r.scorer != nil {
			if p, err := r.scorer.Probability(ctx, t, m); err == nil {
				d.Probability = &p
			}
		}
		if reason := CheckModel(w, d.Probability); reason != ReasonNone {
			d.Reason = reason
			return d
		}
	}

	// 13. sizing + bankroll
	entry := EntryPrice(t.Price, r.params.Slippage)
	bankroll := r.Bankroll()
	bet := SizeBet(SizingInput{
		Method:          w.Allocation,
		BetSize:         w.BetSize,
		KellyFraction:   w.KellyFraction,
		MinBet:          w.MinBet,
		MaxBet:          w.MaxBet,
		FixedMultiplier: r.params.FixedMultiplier,
		Bankroll:        bankroll,
		Edge:            edge,
		EntryPrice:      entry,
		Conviction:      t.Conviction,
		TradeCount:      stats.TradeCount,
		Probability:     d.Probability,
		ValuePercentile: r.ranks.Percentile(t.TradeValue),
	})
	d.Bet = bet
	if !bankroll.IsPositive() || bet.GreaterThan(bankroll) {
		d.Reason = ReasonInsufficientBankroll
		return d
	}
	if !bet.IsPositive() {
		d.Reason = ReasonInvalidBetSize
		return d
	}

	d.Order = r.buildOrder(t, m, d, entry)
	return d
}

// Commit records an inserted order so later trades see it.
func (r *WalletRun) Commit(o *model.Order) {
	r.seen[o.SourceTradeID] = struct{}{}
	switch o.Status {
	case model.OrderOpen:
		r.open = r.open.Add(decimal.NewFromFloat(o.Size))
	default:
		if o.PnL != nil {
			r.realized = r.realized.Add(decimal.NewFromFloat(*o.PnL))
		}
	}
}

// MarkSeen treats id as already persisted.
func (r *WalletRun) MarkSeen(id string) {
	r.seen[id] = struct{}{}
}

func (r *WalletRun) statsFor(t *model.CandidateTrade, m *model.Market) model.TraderStats {
	global := model.TraderStats{
		WinRate:      t.TraderWinRate,
		TradeCount:   t.TraderTradeCount,
		AvgTradeSize: t.TraderAvgSize,
	}
	if !r.wallet.UseProfileStats || r.profiles == nil {
		return global
	}
	niche, structure := m.Niche, m.Structure
	if niche == "" || structure == "" {
		c := classify.Market(m.Title, m.Tags)
		if niche == "" {
			niche = c.Niche
		}
		if structure == "" {
			structure = c.Structure
		}
	}
	return r.profiles.Resolve(t.Trader, niche, structure, classify.PriceBracket(t.Price), global)
}

func (r *WalletRun) buildOrder(t *model.CandidateTrade, m *model.Market, d Decision, entry float64) *model.Order {
	size := d.Bet
	shares := size.Div(decimal.NewFromFloat(entry)).Round(4)
	o := &model.Order{
		WalletID:         r.wallet.ID,
		SourceTradeID:    t.ID,
		Trader:           t.Trader,
		ConditionID:      t.ConditionID,
		Outcome:          t.Outcome,
		Title:            firstNonEmpty(m.Title, t.Title),
		TraderPrice:      t.Price,
		EntryPrice:       entry,
		Size:             size.InexactFloat64(),
		Shares:           shares.InexactFloat64(),
		Edge:             d.Edge,
		TraderWinRate:    d.Stats.WinRate,
		Conviction:       t.Conviction,
		ModelProbability: d.Probability,
		Allocation:       r.wallet.Allocation,
		Status:           model.OrderOpen,
		TradeTime:        t.Timestamp,
		CreatedAt:        r.params.Now,
	}

	// Mirror wallets may copy into already-settled markets. Binary settlement:
	// a win pays shares, a loss forfeits the stake.
	if r.wallet.MirrorMode && m.Resolved && m.WinningSide != "" {
		var pnl decimal.Decimal
		if strings.EqualFold(m.WinningSide, t.Outcome) {
			o.Status = model.OrderWon
			pnl = shares.Sub(size)
		} else {
			o.Status = model.OrderLost
			pnl = size.Neg()
		}
		v := pnl.Round(2).InexactFloat64()
		now := r.params.Now
		o.PnL = &v
		o.ResolvedAt = &now
	}
	return o
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
