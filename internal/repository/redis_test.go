package repository

import (
	"context"
	"testing"
	"time"

	"github.com/polycopy/ftsync/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) *RedisClient {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := NewRedisClientFrom(redis.NewClient(&redis.Options{Addr: addr}), "test:")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRunLock(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	lock := NewRedisRunLock(client)

	token, ok, err := lock.Acquire(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx, "sync", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must wait")

	ok, err = lock.Refresh(ctx, "sync", token, 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ttl, err := client.Client.PTTL(ctx, client.key("lock", "sync")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)

	ok, err = lock.Refresh(ctx, "sync", "not-the-token", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "sync", "not-the-token"))
	_, ok, _ = lock.Acquire(ctx, "sync", time.Minute)
	assert.False(t, ok, "foreign token leaves the lock alone")

	require.NoError(t, lock.Release(ctx, "sync", token))
	_, ok, err = lock.Acquire(ctx, "sync", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisPriceCache(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	cache := NewRedisPriceCache(client, time.Minute)

	cache.PutMarket(ctx, &model.Market{
		ConditionID:   "0xc",
		Outcomes:      model.StringList{"Yes", "No"},
		OutcomePrices: model.FloatList{0.62, 0.38},
	})

	p, ok := cache.Price(ctx, "0xc", "yes")
	require.True(t, ok)
	assert.Equal(t, 0.62, p)

	_, ok = cache.Price(ctx, "0xc", "Maybe")
	assert.False(t, ok)
	_, ok = cache.Price(ctx, "0xmissing", "Yes")
	assert.False(t, ok)

	ttl, err := client.Client.TTL(ctx, client.key("price", "0xc")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
