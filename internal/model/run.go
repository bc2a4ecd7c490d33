package model

import "time"

// RunSummary is what one sync pass reports back to its caller.
type RunSummary struct {
	RunID            string          `json:"run_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	DurationMs       int64           `json:"duration_ms"`
	TradersInPool    int             `json:"traders_in_pool"`
	TradersFetched   int             `json:"traders_fetched"`
	TradesFetched    int             `json:"trades_fetched"`
	MarketsResolved  int             `json:"markets_resolved"`
	WalletsTotal     int             `json:"wallets_total"`
	WalletsProcessed int             `json:"wallets_processed"`
	WalletsRemaining int             `json:"wallets_remaining"`
	Inserted         int             `json:"inserted"`
	TimedOut         bool            `json:"timed_out"`
	Wallets          []WalletSummary `json:"wallets"`
	Errors           []string        `json:"errors"`
}

// WalletSummary holds per-wallet counts and the skip-reason histogram.
type WalletSummary struct {
	WalletID  string         `json:"wallet_id"`
	Evaluated int            `json:"evaluated"`
	Skipped   int            `json:"skipped"`
	Inserted  int            `json:"inserted"`
	Reasons   map[string]int `json:"reasons"`
	TimedOut  bool           `json:"timed_out,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Skip records one rejected trade under reason.
func (w *WalletSummary) Skip(reason string) {
	if w.Reasons == nil {
		w.Reasons = make(map[string]int)
	}
	w.Reasons[reason]++
	w.Skipped++
}
