package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{Name: "test", BaseURL: srv.URL + "/", Timeout: 2 * time.Second, RetryCount: 2})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestLeaderboardQueryAndDecode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/leaderboard", r.URL.Path)
		assert.Equal(t, "WEEK", r.URL.Query().Get("timePeriod"))
		assert.Equal(t, "PNL", r.URL.Query().Get("orderBy"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`[{"proxyWallet":"0xAbC","userName":"whale","vol":"1200.5","pnl":300}]`))
	}))

	rows, err := NewDataAPI(c).Leaderboard(context.Background(), "WEEK", "PNL", 50, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0xAbC", rows[0].ProxyWallet)
	assert.Equal(t, 1200.5, float64(rows[0].Volume))
	assert.Equal(t, 300.0, float64(rows[0].PnL))
}

func TestTradesNormalize(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0xtrader", r.URL.Query().Get("user"))
		writeJSON(w, []map[string]any{
			{"side": "BUY", "conditionId": "0xc1", "asset": "111", "size": 10, "price": "0.42", "timestamp": 1740830400, "outcome": "Yes", "transactionHash": "0xh1"},
			{"side": "SELL", "conditionId": "0xc1", "size": 5, "price": 0.5, "timestamp": 1740830400},
			{"side": "BUY", "conditionId": "", "size": 5, "price": 0.5, "timestamp": 1740830400},
		})
	}))

	rows, err := NewDataAPI(c).Trades(context.Background(), "0xtrader", 100, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].IsBuy())
	assert.False(t, rows[1].IsBuy())
	assert.False(t, rows[2].IsBuy())

	trade := NormalizeTrade("0xTRADER", rows[0])
	assert.Equal(t, "0xh1:111", trade.ID)
	assert.Equal(t, "0xtrader", trade.Trader)
	assert.Equal(t, 0.42, trade.Price)
	assert.Equal(t, time.Unix(1740830400, 0).UTC(), trade.Timestamp)
}

func TestActivityCursor(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activity", r.URL.Path)
		assert.Equal(t, "1700000000", r.URL.Query().Get("end"))
		assert.Equal(t, "3", r.URL.Query().Get("offset"))
		assert.Equal(t, "TRADE,REDEEM", r.URL.Query().Get("type"))
		writeJSON(w, []map[string]any{
			{"type": "TRADE", "side": "BUY", "conditionId": "0xc", "size": 10, "usdcSize": 5, "price": 0.5, "timestamp": 1699999999000},
		})
	}))

	rows, err := NewDataAPI(c).Activity(context.Background(), "0xt", ActivityQuery{
		Types: SettlementActivity, Limit: 500, End: 1700000000, Offset: 3,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsBuyFill())
	assert.Equal(t, 5.0, rows[0].USD())
	// millisecond timestamps are folded to seconds
	assert.Equal(t, int64(1699999999), rows[0].Timestamp.Time().Unix())
}

func TestGammaMarketShapes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.ElementsMatch(t, []string{"0xa", "0xb", "0xc"}, r.URL.Query()["condition_ids"])
		_, _ = w.Write([]byte(`[
			{"conditionId":"0xa","question":"Lakers vs Celtics","outcomes":"[\"Lakers\",\"Celtics\"]","outcomePrices":"[\"0.45\",\"0.55\"]","endDate":"2025-03-02T00:00:00Z","closed":false,"tags":[{"label":"NBA"}]},
			{"conditionId":"0xb","question":"BTC above 100k?","outcomes":["Yes","No"],"outcomePrices":[0.97,0.03],"closed":true,"category":"Crypto"},
			{"conditionId":"0xc","question":"Chiefs win?","outcomes":["Yes","No"],"outcomePrices":["0.95","0.05"],"closed":false,
			 "events":[{"endDate":"2025-03-03","startTime":"2025-03-01T18:00:00Z","tags":["NFL"]}]}
		]`))
	}))

	markets, err := NewGamma(c, func() time.Time { return fixedNow }).MarketsByConditionIDs(context.Background(), []string{"0xa", "0xb", "0xc"})
	require.NoError(t, err)
	require.Len(t, markets, 3)

	a := markets[0]
	assert.Equal(t, []string{"Lakers", "Celtics"}, []string(a.Outcomes))
	assert.Equal(t, []float64{0.45, 0.55}, []float64(a.OutcomePrices))
	assert.False(t, a.Resolved)
	assert.Contains(t, a.Tags, "NBA")
	require.NotNil(t, a.EndTime)
	assert.Equal(t, fixedNow, a.UpdatedAt)

	b := markets[1]
	assert.True(t, b.Resolved)
	assert.Equal(t, "Yes", b.WinningSide)
	assert.Contains(t, b.Tags, "Crypto")

	cm := markets[2]
	assert.True(t, cm.Resolved, "price above 0.9 marks resolved even when open")
	assert.Empty(t, cm.WinningSide, "winning side only when closed")
	require.NotNil(t, cm.GameStartTime)
	assert.Equal(t, time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), *cm.GameStartTime)
	require.NotNil(t, cm.EndTime)
	assert.Contains(t, cm.Tags, "NFL")
}

func TestGammaSlugFallsBackToEvents(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets":
			_, _ = w.Write([]byte(`[]`))
		case "/events":
			_, _ = w.Write([]byte(`[{"title":"Election","endDate":"2025-11-05","tags":[{"slug":"politics"}],
				"markets":[{"conditionId":"0xe","question":"Who wins?","outcomes":"Yes,No","outcomePrices":"[0.6,0.4]"}]}]`))
		}
	}))

	m, err := NewGamma(c, func() time.Time { return fixedNow }).MarketBySlug(context.Background(), "election")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "0xe", m.ConditionID)
	assert.Equal(t, []string{"Yes", "No"}, []string(m.Outcomes))
	assert.Contains(t, m.Tags, "politics")
	require.NotNil(t, m.EndTime)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	_, err := NewDataAPI(c).Trades(context.Background(), "0xt", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such user"}`))
	}))

	_, err := NewDataAPI(c).Trades(context.Background(), "0xt", 10, 0)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestScorer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req ScoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.TradeID == "empty" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"score":72}`))
	}))

	s := NewScorer(c)
	p, err := s.Score(context.Background(), ScoreRequest{TradeID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 72.0, p)

	_, err = s.Score(context.Background(), ScoreRequest{TradeID: "empty"})
	assert.ErrorIs(t, err, ErrNoScore)
}
