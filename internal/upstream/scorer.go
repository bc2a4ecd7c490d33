package upstream

import (
	"context"
	"errors"
)

// ScoreRequest is the trade and market context sent to the probability scorer.
type ScoreRequest struct {
	TradeID     string  `json:"trade_id"`
	Trader      string  `json:"trader"`
	ConditionID string  `json:"condition_id"`
	Outcome     string  `json:"outcome"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	TradeValue  float64 `json:"trade_value"`
	Conviction  float64 `json:"conviction"`
	WinRate     float64 `json:"trader_win_rate"`
	TradeCount  int     `json:"trader_trade_count"`
	Niche       string  `json:"niche,omitempty"`
	Structure   string  `json:"bet_structure,omitempty"`
}

var ErrNoScore = errors.New("scorer returned no probability")

// Scorer calls the external ML model. The raw value may be on a 0-1 or 0-100 scale.
type Scorer struct {
	c *Client
}

func NewScorer(c *Client) *Scorer {
	return &Scorer{c: c}
}

func (s *Scorer) Score(ctx context.Context, req ScoreRequest) (float64, error) {
	var resp struct {
		Probability *float64 `json:"probability"`
		Score       *float64 `json:"score"`
	}
	if err := s.c.post(ctx, "/score", req, &resp); err != nil {
		return 0, err
	}
	switch {
	case resp.Probability != nil:
		return *resp.Probability, nil
	case resp.Score != nil:
		return *resp.Score, nil
	default:
		return 0, ErrNoScore
	}
}
