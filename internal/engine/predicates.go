package engine

import (
	"time"

	"github.com/polycopy/ftsync/internal/model"
)

// Every predicate here is a pure function of its arguments. They return
// ReasonNone when the trade passes.

// CheckTarget enforces the wallet's trader restriction.
func CheckTarget(w *model.WalletStrategy, t *model.CandidateTrade) Reason {
	if !w.HasTargets() {
		if w.MirrorMode {
			return ReasonNoTargetConfigured
		}
		return ReasonNone
	}
	if !w.IsTarget(t.Trader) {
		return ReasonNotTargetTrader
	}
	return ReasonNone
}

// CheckMarket rejects unknown, settled or expired markets. Mirror wallets let
// settled markets through.
func CheckMarket(w *model.WalletStrategy, t *model.CandidateTrade, m *model.Market) Reason {
	if m == nil {
		return ReasonMarketNotFound
	}
	if w.MirrorMode {
		return ReasonNone
	}
	if m.Resolved || m.Closed {
		return ReasonMarketResolved
	}
	if m.EndTime != nil && !t.Timestamp.Before(*m.EndTime) {
		return ReasonAfterMarketEnd
	}
	return ReasonNone
}

// CheckLive requires the event to have started when the wallet is live-only.
func CheckLive(w *model.WalletStrategy, m *model.Market, now time.Time) Reason {
	if !w.LiveOnly {
		return ReasonNone
	}
	if m.GameStartTime == nil || m.GameStartTime.After(now) {
		return ReasonGameNotStarted
	}
	return ReasonNone
}

func CheckPrice(w *model.WalletStrategy, price float64) Reason {
	maxPrice := w.PriceMax
	if maxPrice <= 0 {
		maxPrice = 1
	}
	if price < w.PriceMin || price > maxPrice {
		return ReasonPriceOutOfRange
	}
	return ReasonNone
}

func CheckWinRate(w *model.WalletStrategy, winRate float64) Reason {
	if winRate < w.MinWinRate {
		return ReasonLowWinRate
	}
	if w.MaxWinRate != nil && winRate > *w.MaxWinRate {
		return ReasonHighWinRate
	}
	return ReasonNone
}

// Edge is the trader's win rate minus the slippage-adjusted price.
func Edge(winRate, price, slippage float64) float64 {
	return winRate - price*(1+slippage)
}

func CheckEdge(w *model.WalletStrategy, edge float64) Reason {
	if edge < w.MinEdge {
		return ReasonLowEdge
	}
	if w.MaxEdge != nil && edge > *w.MaxEdge {
		return ReasonHighEdge
	}
	return ReasonNone
}

func CheckTradeCount(w *model.WalletStrategy, count int) Reason {
	if count < w.MinTraderTrades {
		return ReasonLowTradeCount
	}
	return ReasonNone
}

func CheckConviction(w *model.WalletStrategy, conviction float64) Reason {
	if conviction < w.MinConviction {
		return ReasonLowConviction
	}
	if w.MaxConviction != nil && conviction > *w.MaxConviction {
		return ReasonHighConviction
	}
	return ReasonNone
}

// CheckCategory passes when any allowed category appears in the title or tags.
func CheckCategory(w *model.WalletStrategy, m *model.Market) Reason {
	if len(w.Categories) == 0 {
		return ReasonNone
	}
	for _, c := range w.Categories {
		if m.Matches(c) {
			return ReasonNone
		}
	}
	return ReasonCategoryMismatch
}

// CheckTradeSize bounds the trader's original notional.
func CheckTradeSize(w *model.WalletStrategy, tradeValue float64) Reason {
	if w.MinOriginalSize != nil && tradeValue < *w.MinOriginalSize {
		return ReasonTradeSizeOutOfRange
	}
	if w.MaxOriginalSize != nil && tradeValue > *w.MaxOriginalSize {
		return ReasonTradeSizeOutOfRange
	}
	return ReasonNone
}

// CheckModel gates on the scorer's probability; nil means the scorer failed.
func CheckModel(w *model.WalletStrategy, probability *float64) Reason {
	if !w.UseModel {
		return ReasonNone
	}
	if probability == nil {
		return ReasonMLUnavailable
	}
	if w.ModelThreshold != nil && *probability < *w.ModelThreshold {
		return ReasonLowMLScore
	}
	return ReasonNone
}

// NormalizeProbability folds 0-100 scores onto 0-1.
func NormalizeProbability(p float64) float64 {
	if p > 1 {
		return p / 100
	}
	return p
}
