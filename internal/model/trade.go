package model

import "time"

// CandidateTrade is a normalized BUY fill, or an aggregated position for pinned traders.
// It lives for one run only.
type CandidateTrade struct {
	ID          string    `json:"id"` // source trade id, dedup key
	Trader      string    `json:"trader"`
	ConditionID string    `json:"condition_id"`
	Outcome     string    `json:"outcome"`
	Title       string    `json:"title,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	Price       float64   `json:"price"`
	Size        float64   `json:"size"` // shares
	TradeValue  float64   `json:"trade_value"`
	Conviction  float64   `json:"conviction"`
	Timestamp   time.Time `json:"timestamp"`

	TraderWinRate    float64 `json:"trader_win_rate"`
	TraderTradeCount int     `json:"trader_trade_count"`
	TraderAvgSize    float64 `json:"trader_avg_size"`

	Aggregated bool `json:"aggregated,omitempty"`
	FillCount  int  `json:"fill_count,omitempty"`
}

// Enrich attaches trader context and derives value and conviction.
func (t *CandidateTrade) Enrich(stats TraderStats) {
	t.TraderWinRate = stats.WinRate
	t.TraderTradeCount = stats.TradeCount
	t.TraderAvgSize = stats.AvgTradeSize
	t.TradeValue = t.Price * t.Size
	t.Conviction = 1
	if stats.AvgTradeSize > 0 {
		t.Conviction = t.TradeValue / stats.AvgTradeSize
	}
}
