package model

import "time"

type OrderStatus string

const (
	OrderOpen OrderStatus = "OPEN"
	OrderWon  OrderStatus = "WON"
	OrderLost OrderStatus = "LOST"
)

// Order is a simulated position opened by a forward-test wallet.
type Order struct {
	ID               string      `db:"id" json:"id"`
	WalletID         string      `db:"wallet_id" json:"wallet_id"`
	SourceTradeID    string      `db:"source_trade_id" json:"source_trade_id"`
	Trader           string      `db:"trader_address" json:"trader_address"`
	ConditionID      string      `db:"condition_id" json:"condition_id"`
	Outcome          string      `db:"outcome" json:"outcome"`
	Title            string      `db:"market_title" json:"market_title"`
	TraderPrice      float64     `db:"trader_price" json:"trader_price"`
	EntryPrice       float64     `db:"entry_price" json:"entry_price"`
	Size             float64     `db:"size" json:"size"`
	Shares           float64     `db:"shares" json:"shares"`
	Edge             float64     `db:"edge" json:"edge"`
	TraderWinRate    float64     `db:"trader_win_rate" json:"trader_win_rate"`
	Conviction       float64     `db:"conviction" json:"conviction"`
	ModelProbability *float64    `db:"model_probability" json:"model_probability,omitempty"`
	Allocation       Allocation  `db:"allocation_method" json:"allocation_method"`
	Status           OrderStatus `db:"outcome_status" json:"outcome_status"`
	PnL              *float64    `db:"pnl" json:"pnl,omitempty"`
	ResolvedAt       *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
	TradeTime        time.Time   `db:"trade_time" json:"trade_time"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// Exposure is the persisted bankroll state of a wallet at the start of its loop.
type Exposure struct {
	RealizedPnL  float64 `db:"realized_pnl" json:"realized_pnl"`
	OpenExposure float64 `db:"open_exposure" json:"open_exposure"`
	OpenOrders   int     `db:"open_orders" json:"open_orders"`
}
