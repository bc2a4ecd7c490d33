package service

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/polycopy/ftsync/internal/model"
)

// MemoryPriceCache is the in-process PriceCache: outcome prices per market,
// bounded in size and expiring after ttl.
type MemoryPriceCache struct {
	lru *expirable.LRU[string, map[string]float64]
}

func NewMemoryPriceCache(size int, ttl time.Duration) *MemoryPriceCache {
	if size <= 0 {
		size = 5000
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryPriceCache{lru: expirable.NewLRU[string, map[string]float64](size, nil, ttl)}
}

func (c *MemoryPriceCache) PutMarket(ctx context.Context, m *model.Market) {
	if m == nil || len(m.Outcomes) == 0 || len(m.Outcomes) != len(m.OutcomePrices) {
		return
	}
	prices := make(map[string]float64, len(m.Outcomes))
	for i, o := range m.Outcomes {
		prices[strings.ToLower(o)] = m.OutcomePrices[i]
	}
	c.lru.Add(m.ConditionID, prices)
}

func (c *MemoryPriceCache) Price(ctx context.Context, conditionID, outcome string) (float64, bool) {
	prices, ok := c.lru.Get(conditionID)
	if !ok {
		return 0, false
	}
	p, ok := prices[strings.ToLower(outcome)]
	return p, ok
}
