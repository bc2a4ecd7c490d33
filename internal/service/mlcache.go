package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/engine"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/metrics"
	"github.com/polycopy/ftsync/internal/upstream"
)

type mlEntry struct {
	p   float64
	err error
}

// MLCache scores each source trade at most once per run and shares the result
// across wallets. Failures are cached too so a dead scorer is asked once per trade.
type MLCache struct {
	source ScoreSource
	cache  *expirable.LRU[string, mlEntry]
}

func NewMLCache(source ScoreSource, cfg *config.Config) *MLCache {
	size := cfg.Sync.MLCacheSize
	if size <= 0 {
		size = 10000
	}
	ttl := time.Duration(cfg.Sync.MLCacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MLCache{
		source: source,
		cache:  expirable.NewLRU[string, mlEntry](size, nil, ttl),
	}
}

// Probability implements engine.Scorer.
func (c *MLCache) Probability(ctx context.Context, t *model.CandidateTrade, m *model.Market) (float64, error) {
	if e, ok := c.cache.Get(t.ID); ok {
		metrics.MLCache.WithLabelValues("hit").Inc()
		return e.p, e.err
	}
	metrics.MLCache.WithLabelValues("miss").Inc()

	req := upstream.ScoreRequest{
		TradeID:     t.ID,
		Trader:      t.Trader,
		ConditionID: t.ConditionID,
		Outcome:     t.Outcome,
		Title:       t.Title,
		Price:       t.Price,
		Size:        t.Size,
		TradeValue:  t.TradeValue,
		Conviction:  t.Conviction,
		WinRate:     t.TraderWinRate,
		TradeCount:  t.TraderTradeCount,
	}
	if m != nil {
		req.Title = m.Title
		req.Niche = m.Niche
		req.Structure = m.Structure
	}

	raw, err := c.source.Score(ctx, req)
	e := mlEntry{err: err}
	if err == nil {
		e.p = engine.NormalizeProbability(raw)
	}
	// a cancelled caller says nothing about the scorer
	if ctx.Err() == nil {
		c.cache.Add(t.ID, e)
	}
	return e.p, e.err
}

func (c *MLCache) Len() int {
	return c.cache.Len()
}
