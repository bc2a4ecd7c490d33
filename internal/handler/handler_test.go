package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/apperrors"
	"github.com/polycopy/ftsync/internal/repository"
	"github.com/polycopy/ftsync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cronSecret = "cron-secret"

type fakeRunner struct {
	summary *model.RunSummary
	err     error
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context) (*model.RunSummary, error) {
	f.calls++
	return f.summary, f.err
}

type fakePnL struct{}

func (fakePnL) Compute(ctx context.Context, address string) (*service.TraderPnL, error) {
	if address == "bad" {
		return nil, apperrors.NewInvalidRequest("invalid trader address")
	}
	return &service.TraderPnL{Address: address, RealizedPnL: 4}, nil
}

type testServer struct {
	router *gin.Engine
	runner *fakeRunner
	lock   *service.MemoryRunLock
	store  *repository.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Auth: config.AuthConfig{AdminKey: "admin", CronSecret: cronSecret}}

	s := &testServer{
		runner: &fakeRunner{summary: &model.RunSummary{RunID: "run-1", Inserted: 3}},
		lock:   service.NewMemoryRunLock(nil),
		store:  repository.NewMemoryStore(),
	}
	runs := service.NewRunLog(s.store, 10, 0)
	runs.Record(context.Background(), &model.RunSummary{RunID: "old"})

	syncHandler := NewSyncHandler(s.runner, s.lock, time.Minute, runs)
	walletHandler := NewWalletHandler(service.NewWalletService(s.store, s.store, nil), fakePnL{})
	s.router = NewRouter(cfg, syncHandler, walletHandler)
	return s
}

func (s *testServer) do(method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

var cronAuth = map[string]string{"Authorization": "Bearer " + cronSecret}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestSyncRequiresCredentials(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/ft/sync", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, s.runner.calls)

	rec = s.do(http.MethodPost, "/api/ft/sync", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/ft/sync", map[string]string{"X-Admin-Key": "admin"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSyncReturnsSummary(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/ft/sync", cronAuth)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary model.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 3, summary.Inserted)

	// lock released afterwards
	_, ok, err := s.lock.Acquire(context.Background(), syncLockName, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncConflictWhileLocked(t *testing.T) {
	s := newTestServer(t)
	_, ok, err := s.lock.Acquire(context.Background(), syncLockName, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rec := s.do(http.MethodPost, "/api/ft/sync", cronAuth)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperrors.ErrSyncInProgress), errorCode(t, rec))
	assert.Equal(t, 0, s.runner.calls)
}

func TestSyncPoolEmpty(t *testing.T) {
	s := newTestServer(t)
	s.runner.err = apperrors.New(apperrors.ErrPoolEmpty, "trader pool is empty", nil)

	rec := s.do(http.MethodPost, "/api/ft/sync", cronAuth)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, string(apperrors.ErrPoolEmpty), errorCode(t, rec))
}

func TestSyncUnexpectedError(t *testing.T) {
	s := newTestServer(t)
	s.runner.err = errors.New("list wallets: connection refused")

	rec := s.do(http.MethodPost, "/api/ft/sync", cronAuth)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(apperrors.ErrInternal), errorCode(t, rec))
}

func TestRunsList(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/ft/runs?limit=5", cronAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []model.RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "old", body.Runs[0].RunID)

	rec = s.do(http.MethodGet, "/api/ft/runs?limit=abc", cronAuth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletsList(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.UpsertWallet(ctx, &model.WalletStrategy{ID: "FT_A", Active: true, StartingBalance: 500}))
	require.NoError(t, s.store.InsertOrder(ctx, &model.Order{WalletID: "FT_A", SourceTradeID: "t1", Size: 20, Status: model.OrderOpen}))

	rec := s.do(http.MethodGet, "/api/ft/wallets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Wallets []service.WalletView `json:"wallets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Wallets, 1)
	assert.Equal(t, 480.0, body.Wallets[0].Bankroll)
	assert.Equal(t, 1, body.Wallets[0].Unpriced)
}

func TestTraderPnL(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/ft/traders/0xabc/pnl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pnl service.TraderPnL
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pnl))
	assert.Equal(t, 4.0, pnl.RealizedPnL)

	rec = s.do(http.MethodGet, "/api/ft/traders/bad/pnl", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
