package engine

// Reason names why a candidate trade was skipped. Empty means accepted.
type Reason string

const (
	ReasonNone Reason = ""

	ReasonDuplicate            Reason = "duplicate"
	ReasonBeforeWatermark      Reason = "before_watermark"
	ReasonNotTargetTrader      Reason = "not_target_trader"
	ReasonNoTargetConfigured   Reason = "no_target_configured"
	ReasonMarketNotFound       Reason = "market_not_found"
	ReasonMarketResolved       Reason = "market_resolved"
	ReasonAfterMarketEnd       Reason = "after_market_end"
	ReasonGameNotStarted       Reason = "game_not_started"
	ReasonPriceOutOfRange      Reason = "price_out_of_range"
	ReasonLowWinRate           Reason = "low_win_rate"
	ReasonHighWinRate          Reason = "high_win_rate"
	ReasonLowEdge              Reason = "low_edge"
	ReasonHighEdge             Reason = "high_edge"
	ReasonLowTradeCount        Reason = "low_trade_count"
	ReasonLowConviction        Reason = "low_conviction"
	ReasonHighConviction       Reason = "high_conviction"
	ReasonCategoryMismatch     Reason = "category_mismatch"
	ReasonTradeSizeOutOfRange  Reason = "trade_size_out_of_range"
	ReasonMLUnavailable        Reason = "ml_unavailable"
	ReasonLowMLScore           Reason = "low_ml_score"
	ReasonInvalidBetSize       Reason = "invalid_bet_size"
	ReasonInsufficientBankroll Reason = "insufficient_bankroll"
	ReasonPerWalletTimeout     Reason = "per_wallet_timeout"
	ReasonInsertFailed         Reason = "insert_failed"
)
