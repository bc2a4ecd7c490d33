package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/polycopy/ftsync/internal/pkg/logger"
)

// RunLocker serializes sync passes across processes.
type RunLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
	// Refresh extends the lease to ttl from now. ok is false once another
	// holder has taken it.
	Refresh(ctx context.Context, name, token string, ttl time.Duration) (ok bool, err error)
}

// HoldRunLock acquires name and renews the lease every ttl/3 until release is
// called, so a pass that outlives ttl keeps the lock.
func HoldRunLock(ctx context.Context, l RunLocker, name string, ttl time.Duration) (release func(), ok bool, err error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	token, ok, err := l.Acquire(ctx, name, ttl)
	if err != nil || !ok {
		return func() {}, ok, err
	}

	ctx = context.WithoutCancel(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				held, err := l.Refresh(ctx, name, token, ttl)
				if err != nil {
					logger.Warn("run lock refresh failed", "lock", name, "error", err)
					continue
				}
				if !held {
					logger.Error("run lock lost to another holder", "lock", name)
					return
				}
			}
		}
	}()

	var once sync.Once
	release = func() {
		once.Do(func() {
			close(done)
			<-stopped
			if err := l.Release(ctx, name, token); err != nil {
				logger.Warn("run lock release failed", "lock", name, "error", err)
			}
		})
	}
	return release, true, nil
}

type lease struct {
	token   string
	expires time.Time
}

// MemoryRunLock is the single-process RunLocker used when Redis is not configured.
type MemoryRunLock struct {
	mu     sync.Mutex
	leases map[string]lease
	now    Clock
}

func NewMemoryRunLock(now Clock) *MemoryRunLock {
	if now == nil {
		now = SystemClock
	}
	return &MemoryRunLock{leases: make(map[string]lease), now: now}
}

func (l *MemoryRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, held := l.leases[name]; held && now.Before(cur.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.leases[name] = lease{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryRunLock) Refresh(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, held := l.leases[name]
	if !held || cur.token != token {
		return false, nil
	}
	l.leases[name] = lease{token: token, expires: l.now().Add(ttl)}
	return true, nil
}

func (l *MemoryRunLock) Release(ctx context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, held := l.leases[name]; held && cur.token == token {
		delete(l.leases, name)
	}
	return nil
}
