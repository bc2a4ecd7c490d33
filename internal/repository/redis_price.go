package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/polycopy/ftsync/internal/model"
)

// RedisPriceCache keeps the latest outcome prices of each market in a hash
// that expires after ttl.
type RedisPriceCache struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisPriceCache(client *RedisClient, ttl time.Duration) *RedisPriceCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisPriceCache{client: client, ttl: ttl}
}

func (c *RedisPriceCache) PutMarket(ctx context.Context, m *model.Market) {
	if m == nil || len(m.Outcomes) == 0 || len(m.Outcomes) != len(m.OutcomePrices) {
		return
	}
	key := c.client.key("price", m.ConditionID)
	fields := make(map[string]interface{}, len(m.Outcomes))
	for i, o := range m.Outcomes {
		fields[strings.ToLower(o)] = strconv.FormatFloat(m.OutcomePrices[i], 'f', -1, 64)
	}

	pipe := c.client.Client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, c.ttl)
	_, _ = pipe.Exec(ctx)
}

func (c *RedisPriceCache) Price(ctx context.Context, conditionID, outcome string) (float64, bool) {
	val, err := c.client.Client.HGet(ctx, c.client.key("price", conditionID), strings.ToLower(outcome)).Float64()
	if err != nil {
		return 0, false
	}
	return val, true
}
