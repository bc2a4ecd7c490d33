package model

// Trader is one entry of the candidate pool.
type Trader struct {
	Address  string   `json:"address"`
	Username string   `json:"username,omitempty"`
	PnL      float64  `json:"pnl"`
	Volume   float64  `json:"volume"`
	Views    []string `json:"views,omitempty"` // leaderboard views the trader appeared in
	// DayActive is set when the trader shows up on a DAY leaderboard.
	DayActive bool `json:"day_active"`
	Target    bool `json:"target"`
}

// TraderStats is the unified win-rate view used by the filter engine.
type TraderStats struct {
	WinRate      float64 `json:"win_rate"`
	TradeCount   int     `json:"trade_count"`
	AvgTradeSize float64 `json:"avg_trade_size"`
}

// GlobalStatRow mirrors trader_global_stats: a lifetime (l_) and a 30 day (d30_) window.
type GlobalStatRow struct {
	Address         string  `db:"wallet_address"`
	LCount          int     `db:"l_count"`
	LWinRate        float64 `db:"l_win_rate"`
	LAvgTradeSize   float64 `db:"l_avg_trade_size_usd"`
	D30Count        int     `db:"d30_count"`
	D30WinRate      float64 `db:"d30_win_rate"`
	D30AvgTradeSize float64 `db:"d30_avg_trade_size_usd"`
}

// Stats prefers the 30 day window and falls back to lifetime.
func (r GlobalStatRow) Stats() TraderStats {
	if r.D30Count > 0 {
		avg := r.D30AvgTradeSize
		if avg <= 0 {
			avg = r.LAvgTradeSize
		}
		return TraderStats{WinRate: r.D30WinRate, TradeCount: r.D30Count, AvgTradeSize: avg}
	}
	return TraderStats{WinRate: r.LWinRate, TradeCount: r.LCount, AvgTradeSize: r.LAvgTradeSize}
}

// ProfileStat is one (niche, structure, bracket) slice of a trader's history.
type ProfileStat struct {
	Address      string  `db:"wallet_address" json:"address"`
	Niche        string  `db:"final_niche" json:"niche"`
	Structure    string  `db:"structure" json:"structure"`
	Bracket      string  `db:"bracket" json:"bracket"`
	WinRate      float64 `db:"win_rate" json:"win_rate"`
	TradeCount   int     `db:"trade_count" json:"trade_count"`
	AvgTradeSize float64 `db:"avg_trade_size_usd" json:"avg_trade_size"`
}
