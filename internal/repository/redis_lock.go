package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lock only while it still holds the caller's token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisRunLock is a single-holder lease built on SET NX PX.
type RedisRunLock struct {
	client *RedisClient
}

func NewRedisRunLock(client *RedisClient) *RedisRunLock {
	return &RedisRunLock{client: client}
}

// Acquire takes the lease for ttl. ok is false when someone else holds it.
func (l *RedisRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	token := uuid.NewString()
	err := l.client.Client.SetArgs(ctx, l.client.key("lock", name), token, redis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (l *RedisRunLock) Release(ctx context.Context, name, token string) error {
	if token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.client.Client, []string{l.client.key("lock", name)}, token).Err()
}

func (l *RedisRunLock) Refresh(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := refreshScript.Run(ctx, l.client.Client, []string{l.client.key("lock", name)},
		token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
