package model

import (
	"strings"
	"time"
)

type Allocation string

const (
	AllocFixed      Allocation = "FIXED"
	AllocKelly      Allocation = "KELLY"
	AllocEdgeScaled Allocation = "EDGE_SCALED"
	AllocTiered     Allocation = "TIERED"
	AllocConfidence Allocation = "CONFIDENCE"
	AllocConviction Allocation = "CONVICTION"
	AllocMLScaled   Allocation = "ML_SCALED"
	AllocWhale      Allocation = "WHALE"
)

// Valid reports whether a is one of the known allocation methods.
func (a Allocation) Valid() bool {
	switch a {
	case AllocFixed, AllocKelly, AllocEdgeScaled, AllocTiered,
		AllocConfidence, AllocConviction, AllocMLScaled, AllocWhale:
		return true
	}
	return false
}

// WalletStrategy is one forward-test wallet and the policy it trades with.
// Optional bounds are nil when unset.
type WalletStrategy struct {
	ID   string `db:"wallet_id" json:"wallet_id"`
	Name string `db:"name" json:"name"`

	PriceMin        float64  `db:"price_min" json:"price_min"`
	PriceMax        float64  `db:"price_max" json:"price_max"`
	MinEdge         float64  `db:"min_edge" json:"min_edge"`
	MaxEdge         *float64 `db:"max_edge" json:"max_edge,omitempty"`
	MinWinRate      float64  `db:"min_win_rate" json:"min_win_rate"`
	MaxWinRate      *float64 `db:"max_win_rate" json:"max_win_rate,omitempty"`
	UseProfileStats bool     `db:"use_profile_stats" json:"use_profile_stats"`
	MinTraderTrades int      `db:"min_trader_resolved_count" json:"min_trader_resolved_count"`
	MinConviction   float64  `db:"min_conviction" json:"min_conviction"`
	MaxConviction   *float64 `db:"max_conviction" json:"max_conviction,omitempty"`
	MinOriginalSize *float64 `db:"min_original_trade_usd" json:"min_original_trade_usd,omitempty"`
	MaxOriginalSize *float64 `db:"max_original_trade_usd" json:"max_original_trade_usd,omitempty"`

	Allocation    Allocation `db:"allocation_method" json:"allocation_method"`
	BetSize       float64    `db:"bet_size" json:"bet_size"`
	KellyFraction float64    `db:"kelly_fraction" json:"kelly_fraction"`
	MinBet        float64    `db:"min_bet" json:"min_bet"`
	MaxBet        float64    `db:"max_bet" json:"max_bet"`

	TargetTraders StringList `db:"target_traders" json:"target_traders"`
	MirrorMode    bool       `db:"mirror_mode" json:"mirror_mode"`
	Categories    StringList `db:"market_categories" json:"market_categories"`
	LiveOnly      bool       `db:"live_only" json:"live_only"`

	UseModel       bool     `db:"use_model" json:"use_model"`
	ModelThreshold *float64 `db:"model_threshold" json:"model_threshold,omitempty"`

	StartingBalance float64    `db:"starting_balance" json:"starting_balance"`
	StartDate       *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate         *time.Time `db:"end_date" json:"end_date,omitempty"`
	LastSyncTime    *time.Time `db:"last_sync_time" json:"last_sync_time,omitempty"`
	Active          bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether now falls inside the wallet's trading window.
func (w *WalletStrategy) ActiveAt(now time.Time) bool {
	if !w.Active {
		return false
	}
	if w.StartDate != nil && now.Before(*w.StartDate) {
		return false
	}
	if w.EndDate != nil && now.After(*w.EndDate) {
		return false
	}
	return true
}

// HasTargets reports whether the wallet pins specific traders.
func (w *WalletStrategy) HasTargets() bool {
	for _, t := range w.TargetTraders {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}

// IsTarget reports whether addr is one of the pinned traders.
func (w *WalletStrategy) IsTarget(addr string) bool {
	for _, t := range w.TargetTraders {
		if strings.EqualFold(strings.TrimSpace(t), addr) {
			return true
		}
	}
	return false
}

// Watermark is the newest trade time already covered: the later of the last
// sync and the start date. Zero when neither is set.
func (w *WalletStrategy) Watermark() time.Time {
	var mark time.Time
	if w.LastSyncTime != nil {
		mark = *w.LastSyncTime
	}
	if w.StartDate != nil && w.StartDate.After(mark) {
		mark = *w.StartDate
	}
	return mark
}
