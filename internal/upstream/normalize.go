package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/polycopy/ftsync/internal/model"
)

// Upstream payloads are inconsistent: numbers arrive as strings, list fields as
// JSON-encoded strings or arrays, dates in several layouts. Everything is
// converted to model types here and nowhere else.

// flexFloat accepts 0.5, "0.5" and null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// unixTime accepts seconds or milliseconds, as a number or a string.
type unixTime int64

func (u *unixTime) UnmarshalJSON(data []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	v := int64(f)
	if v > 1e12 {
		v /= 1000
	}
	*u = unixTime(v)
	return nil
}

func (u unixTime) Time() time.Time {
	return time.Unix(int64(u), 0).UTC()
}

// TradeRecord is one row of the trade-list endpoint.
type TradeRecord struct {
	ProxyWallet     string    `json:"proxyWallet"`
	Side            string    `json:"side"`
	Asset           string    `json:"asset"`
	ConditionID     string    `json:"conditionId"`
	Size            flexFloat `json:"size"`
	Price           flexFloat `json:"price"`
	Timestamp       unixTime  `json:"timestamp"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Outcome         string    `json:"outcome"`
	TransactionHash string    `json:"transactionHash"`
}

// ActivityRecord is one row of the raw-activity endpoint.
type ActivityRecord struct {
	ProxyWallet     string    `json:"proxyWallet"`
	Timestamp       unixTime  `json:"timestamp"`
	ConditionID     string    `json:"conditionId"`
	Type            string    `json:"type"`
	Side            string    `json:"side"`
	Size            flexFloat `json:"size"`
	USDCSize        flexFloat `json:"usdcSize"`
	Price           flexFloat `json:"price"`
	Asset           string    `json:"asset"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Outcome         string    `json:"outcome"`
	TransactionHash string    `json:"transactionHash"`
}

// LeaderboardEntry is one row of a leaderboard page.
type LeaderboardEntry struct {
	ProxyWallet string    `json:"proxyWallet"`
	UserName    string    `json:"userName"`
	Volume      flexFloat `json:"vol"`
	PnL         flexFloat `json:"pnl"`
}

// IsBuy reports whether the fill is a BUY with a market reference.
func (r TradeRecord) IsBuy() bool {
	return strings.EqualFold(r.Side, "BUY") && r.ConditionID != ""
}

// NormalizeTrade converts a trade-list row into a candidate trade.
func NormalizeTrade(trader string, r TradeRecord) model.CandidateTrade {
	return model.CandidateTrade{
		ID:          tradeID(trader, r.TransactionHash, r.Asset, r.ConditionID, r.Outcome, int64(r.Timestamp)),
		Trader:      strings.ToLower(trader),
		ConditionID: r.ConditionID,
		Outcome:     r.Outcome,
		Title:       r.Title,
		Slug:        r.Slug,
		Price:       float64(r.Price),
		Size:        float64(r.Size),
		Timestamp:   r.Timestamp.Time(),
	}
}

// IsBuyFill reports whether the activity row is a BUY trade fill.
func (r ActivityRecord) IsBuyFill() bool {
	return strings.EqualFold(r.Type, "TRADE") && strings.EqualFold(r.Side, "BUY") && r.ConditionID != ""
}

// USD returns the notional of the fill, falling back to price*size.
func (r ActivityRecord) USD() float64 {
	if r.USDCSize > 0 {
		return float64(r.USDCSize)
	}
	return float64(r.Price) * float64(r.Size)
}

func tradeID(trader, txHash, asset, conditionID, outcome string, ts int64) string {
	if txHash != "" {
		if asset != "" {
			return txHash + ":" + asset
		}
		return txHash + ":" + conditionID + ":" + outcome
	}
	return fmt.Sprintf("%s:%s:%s:%d", strings.ToLower(trader), conditionID, outcome, ts)
}

// gammaMarket is the market shape served by the gamma API.
type gammaMarket struct {
	ConditionID   string          `json:"conditionId"`
	Question      string          `json:"question"`
	Slug          string          `json:"slug"`
	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	EndDate       string          `json:"endDate"`
	EndDateISO    string          `json:"endDateIso"`
	GameStartTime string          `json:"gameStartTime"`
	Closed        bool            `json:"closed"`
	Category      string          `json:"category"`
	Tags          json.RawMessage `json:"tags"`
	Events        []gammaEvent    `json:"events"`
}

// gammaEvent is the event envelope; markets appear nested inside it on
// /events and the event appears nested inside markets on /markets.
type gammaEvent struct {
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	EndDate   string          `json:"endDate"`
	StartTime string          `json:"startTime"`
	StartDate string          `json:"startDate"`
	Tags      json.RawMessage `json:"tags"`
	Markets   []gammaMarket   `json:"markets"`
}

// NormalizeGammaMarket converts a /markets row into the canonical Market.
func NormalizeGammaMarket(raw gammaMarket, now time.Time) model.Market {
	m := model.Market{
		ConditionID:   raw.ConditionID,
		Title:         raw.Question,
		Slug:          raw.Slug,
		Outcomes:      decodeStringList(raw.Outcomes),
		OutcomePrices: decodeFloatList(raw.OutcomePrices),
		EndTime:       parseTime(firstNonEmpty(raw.EndDate, raw.EndDateISO)),
		GameStartTime: parseTime(raw.GameStartTime),
		Closed:        raw.Closed,
		Tags:          decodeTags(raw.Tags),
		UpdatedAt:     now,
	}
	if raw.Category != "" {
		m.Tags = appendUnique(m.Tags, raw.Category)
	}
	if len(raw.Events) > 0 {
		ev := raw.Events[0]
		if m.EndTime == nil {
			m.EndTime = parseTime(ev.EndDate)
		}
		if m.GameStartTime == nil {
			m.GameStartTime = parseTime(ev.StartTime)
		}
		for _, tag := range decodeTags(ev.Tags) {
			m.Tags = appendUnique(m.Tags, tag)
		}
	}
	m.DeriveResolution()
	return m
}

// NormalizeGammaEvent flattens an /events row into its markets, inheriting
// event-level dates and tags.
func NormalizeGammaEvent(ev gammaEvent, now time.Time) []model.Market {
	out := make([]model.Market, 0, len(ev.Markets))
	for _, raw := range ev.Markets {
		m := NormalizeGammaMarket(raw, now)
		if m.EndTime == nil {
			m.EndTime = parseTime(ev.EndDate)
		}
		if m.GameStartTime == nil {
			m.GameStartTime = parseTime(firstNonEmpty(ev.StartTime, ev.StartDate))
		}
		for _, tag := range decodeTags(ev.Tags) {
			m.Tags = appendUnique(m.Tags, tag)
		}
		out = append(out, m)
	}
	return out
}

// decodeStringList handles ["a","b"], "[\"a\",\"b\"]" and "a,b".
func decodeStringList(raw json.RawMessage) model.StringList {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return list
		}
		return nil
	}
	if s == "" {
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		list = append(list, strings.TrimSpace(part))
	}
	return list
}

// decodeFloatList handles [0.4,0.6], ["0.4","0.6"] and "[\"0.4\",\"0.6\"]".
func decodeFloatList(raw json.RawMessage) model.FloatList {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var flex []flexFloat
	if err := json.Unmarshal(raw, &flex); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(s), &flex); err != nil {
			return nil
		}
	}
	out := make(model.FloatList, len(flex))
	for i, v := range flex {
		out[i] = float64(v)
	}
	return out
}

// decodeTags handles ["a"], [{"label":"a","slug":"a"}] and string-encoded forms.
func decodeTags(raw json.RawMessage) model.StringList {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var objs []struct {
		Label string `json:"label"`
		Slug  string `json:"slug"`
	}
	if err := json.Unmarshal(raw, &objs); err == nil {
		out := make(model.StringList, 0, len(objs))
		for _, o := range objs {
			if v := firstNonEmpty(o.Label, o.Slug); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return decodeStringList(raw)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func appendUnique(list model.StringList, v string) model.StringList {
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}
