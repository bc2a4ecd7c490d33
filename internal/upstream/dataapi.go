package upstream

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// DataAPI reads leaderboards, trades and activity.
type DataAPI struct {
	c *Client
}

func NewDataAPI(c *Client) *DataAPI {
	return &DataAPI{c: c}
}

// Leaderboard fetches one page of a leaderboard view.
func (d *DataAPI) Leaderboard(ctx context.Context, timePeriod, orderBy string, limit, offset int) ([]LeaderboardEntry, error) {
	params := url.Values{}
	params.Set("timePeriod", timePeriod)
	params.Set("orderBy", orderBy)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var out []LeaderboardEntry
	if err := d.c.get(ctx, "/v1/leaderboard", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Trades fetches one page of a user's trades, newest first.
func (d *DataAPI) Trades(ctx context.Context, user string, limit, offset int) ([]TradeRecord, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("takerOnly", "false")

	var out []TradeRecord
	if err := d.c.get(ctx, "/trades", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Activity type filters.
var (
	TradeActivity = []string{"TRADE"}
	// SettlementActivity adds redemptions so positions held to resolution close.
	SettlementActivity = []string{"TRADE", "REDEEM"}
)

// ActivityQuery selects one page of raw activity, newest first. End is unix
// seconds, 0 for "now". Offset skips rows at or before End, which lets a caller
// step through a second holding more rows than one page.
type ActivityQuery struct {
	Types  []string
	Limit  int
	End    int64
	Offset int
}

// Activity fetches one page of raw activity. An empty Types returns every kind.
func (d *DataAPI) Activity(ctx context.Context, user string, q ActivityQuery) ([]ActivityRecord, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("limit", strconv.Itoa(q.Limit))
	if len(q.Types) > 0 {
		params.Set("type", strings.Join(q.Types, ","))
	}
	params.Set("sortBy", "TIMESTAMP")
	params.Set("sortDirection", "DESC")
	if q.End > 0 {
		params.Set("end", strconv.FormatInt(q.End, 10))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var out []ActivityRecord
	if err := d.c.get(ctx, "/activity", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}
