package service

import (
	"testing"
	"time"

	"github.com/polycopy/ftsync/internal/upstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLotQueueConsumesOldestFirst(t *testing.T) {
	var q LotQueue
	q.Push(Lot{Shares: d("10"), Price: d("0.5")})
	q.Push(Lot{Shares: d("20"), Price: d("0.6")})
	q.Push(Lot{Shares: d("0"), Price: d("0.9")})
	assert.Equal(t, 2, q.Len())

	matched, cost := q.Consume(d("15"))
	assert.Equal(t, "15", matched.String())
	assert.Equal(t, "8", cost.String()) // 10*0.5 + 5*0.6
	assert.Equal(t, 1, q.Len())

	shares, open := q.Open()
	assert.Equal(t, "15", shares.String())
	assert.Equal(t, "9", open.String())

	matched, cost = q.Consume(d("40"))
	assert.Equal(t, "15", matched.String())
	assert.Equal(t, "9", cost.String())
	assert.Zero(t, q.Len())
}

func TestMatchFIFO(t *testing.T) {
	rows := []upstream.ActivityRecord{
		activityRow(t, "TRADE", "SELL", "0xc", "Yes", 0.8, 15, baseTime.Add(3*time.Minute)),
		activityRow(t, "TRADE", "BUY", "0xc", "Yes", 0.5, 10, baseTime.Add(1*time.Minute)),
		activityRow(t, "TRADE", "BUY", "0xc", "Yes", 0.6, 20, baseTime.Add(2*time.Minute)),
		activityRow(t, "REDEEM", "", "0xc", "Yes", 1, 15, baseTime.Add(4*time.Minute)),
		activityRow(t, "TRADE", "BUY", "0xd", "No", 0.25, 8, baseTime.Add(5*time.Minute)),
		activityRow(t, "TRADE", "SELL", "0xe", "Yes", 0.5, 4, baseTime.Add(6*time.Minute)),
		activityRow(t, "REWARD", "", "0xc", "Yes", 1, 3, baseTime.Add(7*time.Minute)),
	}

	markets, applied := MatchFIFO(rows)
	assert.Equal(t, 6, applied)
	require.Len(t, markets, 3)

	c := markets[0]
	assert.Equal(t, "0xc", c.ConditionID)
	assert.Equal(t, 30.0, c.BoughtShares)
	assert.Equal(t, 30.0, c.SoldShares)
	// sell 15 @0.8 = 12 against cost 8; redeem 15 @1 = 15 against cost 9
	assert.Equal(t, 10.0, c.RealizedPnL)
	assert.Zero(t, c.OpenShares)

	dd := markets[1]
	assert.Equal(t, 8.0, dd.OpenShares)
	assert.Equal(t, 2.0, dd.OpenCost)

	e := markets[2]
	assert.Equal(t, 4.0, e.UnmatchedShares)
	assert.Zero(t, e.RealizedPnL)
}
