package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runIDs(runs []*model.RunSummary) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	return ids
}

func TestRunBufferWrapsNewestFirst(t *testing.T) {
	b := newRunBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Add(&model.RunSummary{RunID: fmt.Sprintf("r%d", i)})
	}
	assert.Equal(t, []string{"r5", "r4", "r3"}, runIDs(b.List(0)))
	assert.Equal(t, []string{"r5", "r4"}, runIDs(b.List(2)))
}

type brokenRuns struct{}

func (brokenRuns) InsertRun(ctx context.Context, run *model.RunSummary) error {
	return errors.New("db gone")
}

func (brokenRuns) ListRuns(ctx context.Context, limit int) ([]*model.RunSummary, error) {
	return nil, errors.New("db gone")
}

func TestRunLogFallsBackToBuffer(t *testing.T) {
	ctx := context.Background()
	l := NewRunLog(brokenRuns{}, 10, 0)
	l.Record(ctx, &model.RunSummary{RunID: "a"})
	l.Record(ctx, &model.RunSummary{RunID: "b"})

	runs, err := l.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, runIDs(runs))
}

func TestRunLogPrefersRepo(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	l := NewRunLog(store, 10, 24*time.Hour)
	l.Record(ctx, &model.RunSummary{RunID: "a"})

	runs, err := l.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, runIDs(runs))
}

func TestMemoryRunLock(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	l := NewMemoryRunLock(func() time.Time { return now })

	token, ok, err := l.Acquire(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.Acquire(ctx, "sync", time.Minute)
	assert.False(t, ok, "held")

	require.NoError(t, l.Release(ctx, "sync", "someone-else"))
	_, ok, _ = l.Acquire(ctx, "sync", time.Minute)
	assert.False(t, ok, "foreign token does not release")

	now = now.Add(2 * time.Minute)
	stolen, ok, _ := l.Acquire(ctx, "sync", time.Minute)
	assert.True(t, ok, "expired lease can be taken")

	require.NoError(t, l.Release(ctx, "sync", token))
	_, ok, _ = l.Acquire(ctx, "sync", time.Minute)
	assert.False(t, ok, "stale holder cannot release the new lease")

	require.NoError(t, l.Release(ctx, "sync", stolen))
	_, ok, _ = l.Acquire(ctx, "sync", time.Minute)
	assert.True(t, ok)
}

func TestMemoryRunLockRefresh(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	l := NewMemoryRunLock(func() time.Time { return now })

	token, ok, err := l.Acquire(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(50 * time.Second)
	ok, err = l.Refresh(ctx, "sync", token, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(50 * time.Second)
	_, ok, _ = l.Acquire(ctx, "sync", time.Minute)
	assert.False(t, ok, "refreshed lease is still held")

	ok, _ = l.Refresh(ctx, "sync", "someone-else", time.Minute)
	assert.False(t, ok)
}

func TestHoldRunLockRenewsUntilReleased(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryRunLock(nil)
	ttl := 60 * time.Millisecond

	release, ok, err := HoldRunLock(ctx, l, "sync", ttl)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(4 * ttl)
	_, ok, _ = l.Acquire(ctx, "sync", ttl)
	assert.False(t, ok, "lease outlives its ttl while held")

	_, ok, err = HoldRunLock(ctx, l, "sync", ttl)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release()
	token, ok, err := l.Acquire(ctx, "sync", ttl)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx, "sync", token))
}
