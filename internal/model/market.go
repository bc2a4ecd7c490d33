package model

import (
	"strings"
	"time"
)

// ResolvedPriceThreshold marks an outcome as effectively settled.
const ResolvedPriceThreshold = 0.9

// Market is the canonical market shape. Upstream payloads are normalized into it
// before anything else looks at them.
type Market struct {
	ConditionID   string     `db:"condition_id" json:"condition_id"`
	Title         string     `db:"title" json:"title"`
	Slug          string     `db:"slug" json:"slug"`
	Outcomes      StringList `db:"outcomes" json:"outcomes"`
	OutcomePrices FloatList  `db:"outcome_prices" json:"outcome_prices"`
	EndTime       *time.Time `db:"end_time" json:"end_time,omitempty"`
	GameStartTime *time.Time `db:"game_start_time" json:"game_start_time,omitempty"`
	Closed        bool       `db:"closed" json:"closed"`
	Resolved      bool       `db:"resolved" json:"resolved"`
	WinningSide   string     `db:"winning_side" json:"winning_side,omitempty"`
	Tags          StringList `db:"tags" json:"tags"`
	MarketType    string     `db:"market_type" json:"market_type,omitempty"`
	Niche         string     `db:"niche" json:"niche,omitempty"`
	Structure     string     `db:"bet_structure" json:"bet_structure,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// DeriveResolution sets Resolved and WinningSide from Closed and the outcome prices.
func (m *Market) DeriveResolution() {
	high := -1
	for i, p := range m.OutcomePrices {
		if p > ResolvedPriceThreshold {
			high = i
			break
		}
	}
	m.Resolved = m.Closed || high >= 0
	m.WinningSide = ""
	if m.Closed && high >= 0 && high < len(m.Outcomes) {
		m.WinningSide = m.Outcomes[high]
	}
}

// PriceOf returns the current price of an outcome label.
func (m *Market) PriceOf(outcome string) (float64, bool) {
	for i, o := range m.Outcomes {
		if strings.EqualFold(o, outcome) && i < len(m.OutcomePrices) {
			return m.OutcomePrices[i], true
		}
	}
	return 0, false
}

// Matches reports whether title or any tag contains needle, case-insensitively.
func (m *Market) Matches(needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	if strings.Contains(strings.ToLower(m.Title), needle) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
