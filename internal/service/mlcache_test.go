package service

import (
	"context"
	"errors"
	"testing"

	"github.com/polycopy/ftsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMLCacheScoresEachTradeOnce(t *testing.T) {
	scorer := &fakeScorer{value: 72}
	c := NewMLCache(scorer, testConfig(t))
	ctx := context.Background()
	trade := &model.CandidateTrade{ID: "tx:1"}

	for i := 0; i < 3; i++ {
		p, err := c.Probability(ctx, trade, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.72, p, 1e-9)
	}
	assert.Equal(t, 1, scorer.calls)

	_, err := c.Probability(ctx, &model.CandidateTrade{ID: "tx:2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, scorer.calls)
	assert.Equal(t, 2, c.Len())
}

func TestMLCacheRemembersFailures(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("model offline")}
	c := NewMLCache(scorer, testConfig(t))
	trade := &model.CandidateTrade{ID: "tx:1"}

	_, err := c.Probability(context.Background(), trade, nil)
	assert.Error(t, err)
	_, err = c.Probability(context.Background(), trade, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, scorer.calls)
}
