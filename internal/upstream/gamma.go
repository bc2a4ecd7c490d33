package upstream

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/polycopy/ftsync/internal/model"
)

// Gamma reads market metadata.
type Gamma struct {
	c   *Client
	now func() time.Time
}

func NewGamma(c *Client, now func() time.Time) *Gamma {
	if now == nil {
		now = time.Now
	}
	return &Gamma{c: c, now: now}
}

// MarketsByConditionIDs looks up a batch of markets in one request.
func (g *Gamma) MarketsByConditionIDs(ctx context.Context, ids []string) ([]model.Market, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	for _, id := range ids {
		params.Add("condition_ids", id)
	}
	params.Set("limit", strconv.Itoa(len(ids)))

	var raw []gammaMarket
	if err := g.c.get(ctx, "/markets", params, &raw); err != nil {
		return nil, err
	}
	now := g.now().UTC()
	out := make([]model.Market, 0, len(raw))
	for _, r := range raw {
		if r.ConditionID == "" {
			continue
		}
		out = append(out, NormalizeGammaMarket(r, now))
	}
	return out, nil
}

// MarketBySlug resolves a single market by slug, falling back to the event
// endpoint when the slug names an event rather than a market.
func (g *Gamma) MarketBySlug(ctx context.Context, slug string) (*model.Market, error) {
	params := url.Values{}
	params.Set("slug", slug)

	now := g.now().UTC()
	var raw []gammaMarket
	if err := g.c.get(ctx, "/markets", params, &raw); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		m := NormalizeGammaMarket(raw[0], now)
		return &m, nil
	}

	var events []gammaEvent
	if err := g.c.get(ctx, "/events", params, &events); err != nil {
		return nil, err
	}
	for _, ev := range events {
		if markets := NormalizeGammaEvent(ev, now); len(markets) > 0 {
			return &markets[0], nil
		}
	}
	return nil, nil
}
