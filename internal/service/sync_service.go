package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/engine"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/logger"
	"github.com/polycopy/ftsync/internal/pkg/metrics"
)

// SyncDeps wires a SyncService. Scorer, Prices and Runs are optional.
type SyncDeps struct {
	Config *config.Config

	Leaderboard LeaderboardSource
	Trades      TradeSource
	Markets     MarketSource
	Scorer      ScoreSource

	MarketStore MarketStore
	WalletStore WalletStore
	OrderStore  OrderStore
	StatsStore  StatsStore
	Prices      PriceCache
	Runs        *RunLog

	Clock Clock
}

// SyncService runs one forward-test pass: pool, stats, trades, markets, then
// every active wallet in turn.
type SyncService struct {
	cfg     *config.Config
	deps    SyncDeps
	now     Clock
	pool    *PoolBuilder
	fetcher *TradeFetcher
	markets *MarketResolver
	writer  *OrderWriter
}

func NewSyncService(d SyncDeps) *SyncService {
	now := d.Clock
	if now == nil {
		now = SystemClock
	}
	return &SyncService{
		cfg:     d.Config,
		deps:    d,
		now:     now,
		pool:    NewPoolBuilder(d.Leaderboard, d.Config),
		fetcher: NewTradeFetcher(d.Trades, d.Config),
		markets: NewMarketResolver(d.MarketStore, d.Markets, d.Prices, d.Config, now),
		writer:  NewOrderWriter(d.OrderStore, d.WalletStore),
	}
}

// Run executes one pass. The only hard failure is an empty trader pool; every
// other problem is recorded in the summary and the pass carries on.
func (s *SyncService) Run(ctx context.Context) (summary *model.RunSummary, err error) {
	started := s.now()
	summary = &model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Wallets:   []model.WalletSummary{},
		Errors:    []string{},
	}
	log := logger.With("run_id", summary.RunID)
	log.Info("sync started")

	defer func() {
		summary.FinishedAt = s.now()
		summary.DurationMs = summary.FinishedAt.Sub(started).Milliseconds()
		status := "ok"
		switch {
		case err != nil:
			status = "failed"
		case summary.TimedOut:
			status = "partial"
		}
		metrics.SyncRuns.WithLabelValues(status).Inc()
		metrics.RunDuration.Observe(summary.FinishedAt.Sub(started).Seconds())
		if s.deps.Runs != nil {
			s.deps.Runs.Record(context.WithoutCancel(ctx), summary)
		}
		log.Info("sync finished",
			"status", status,
			"wallets_processed", summary.WalletsProcessed,
			"inserted", summary.Inserted,
			"duration_ms", summary.DurationMs)
	}()

	wallets, err := s.deps.WalletStore.ListWallets(ctx)
	if err != nil {
		return summary, fmt.Errorf("list wallets: %w", err)
	}
	active := ActiveWallets(wallets, started)
	summary.WalletsTotal = len(active)
	if len(active) == 0 {
		log.Info("no active wallets")
		return summary, nil
	}

	var targets []string
	withProfiles := false
	for i := range active {
		targets = append(targets, active[i].TargetTraders...)
		withProfiles = withProfiles || active[i].UseProfileStats
	}

	pool, softErrs, err := s.pool.Build(ctx, targets)
	summary.Errors = append(summary.Errors, softErrs...)
	if err != nil {
		return summary, err
	}
	summary.TradersInPool = len(pool)

	addrs := make([]string, len(pool))
	for i, t := range pool {
		addrs[i] = t.Address
	}
	stats, err := LoadStats(ctx, s.deps.StatsStore, addrs, withProfiles)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("load trader stats: %v", err))
	}

	horizon := Horizon(active, started, s.cfg.Sync.MaxLookback())
	fetched := s.fetcher.Fetch(ctx, pool, stats, horizon)
	summary.TradersFetched = fetched.TradersFetched
	summary.TradesFetched = len(fetched.Trades)
	summary.Errors = append(summary.Errors, fetched.Errors...)

	// trades stay in fetch order: pool order, then each trader's own listing
	trades := fetched.Trades

	ids := make([]string, len(trades))
	slugs := make(map[string]string)
	for i := range trades {
		ids[i] = trades[i].ConditionID
		if trades[i].Slug != "" {
			slugs[trades[i].ConditionID] = trades[i].Slug
		}
	}
	markets, softErrs := s.markets.Resolve(ctx, ids, slugs)
	summary.MarketsResolved = len(markets)
	summary.Errors = append(summary.Errors, softErrs...)

	shared := walletShared{
		params: engine.Params{
			Now:             started,
			Slippage:        s.cfg.Sync.Slippage,
			FixedMultiplier: s.cfg.Sync.FixedMultiplier,
		},
		trades:  trades,
		markets: markets,
		stats:   stats,
		ranks:   engine.NewValueRanks(trades),
	}
	if s.deps.Scorer != nil {
		shared.scorer = NewMLCache(s.deps.Scorer, s.cfg)
	}

	deadline := started.Add(s.cfg.Sync.RunBudget())
	for i := range active {
		w := &active[i]
		if s.cfg.Sync.RunBudgetSeconds > 0 && s.now().After(deadline) {
			summary.TimedOut = true
			summary.WalletsRemaining = len(active) - i
			log.Warn("run budget exhausted", "remaining_wallets", summary.WalletsRemaining)
			break
		}

		ws := s.processWallet(ctx, w, shared)
		if err := s.writer.AdvanceClock(ctx, w.ID, started); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("advance clock %s: %v", w.ID, err))
		}
		if ws.Error != "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("wallet %s: %s", w.ID, ws.Error))
		}
		summary.Wallets = append(summary.Wallets, ws)
		summary.Inserted += ws.Inserted
		summary.WalletsProcessed++
	}
	return summary, nil
}

type walletShared struct {
	params  engine.Params
	trades  []model.CandidateTrade
	markets map[string]*model.Market
	stats   *StatsResolver
	ranks   *engine.ValueRanks
	scorer  *MLCache
}

// processWallet evaluates every candidate trade for one wallet. Panics are
// recovered into the summary so the remaining wallets still run.
func (s *SyncService) processWallet(ctx context.Context, w *model.WalletStrategy, sh walletShared) (ws model.WalletSummary) {
	ws = model.WalletSummary{WalletID: w.ID, Reasons: map[string]int{}}
	log := logger.With("wallet_id", w.ID)
	defer func() {
		if r := recover(); r != nil {
			ws.Error = fmt.Sprintf("panic: %v", r)
			log.Error("wallet processing panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	existing, err := s.deps.OrderStore.SourceTradeIDs(ctx, w.ID)
	if err != nil {
		ws.Error = fmt.Sprintf("load existing orders: %v", err)
		return ws
	}
	exposure, err := s.deps.OrderStore.Exposure(ctx, w.ID)
	if err != nil {
		ws.Error = fmt.Sprintf("load exposure: %v", err)
		return ws
	}

	opts := engine.WalletRunOptions{
		ExistingIDs: existing,
		Exposure:    exposure,
		Watermark:   w.Watermark(),
		Ranks:       sh.ranks,
	}
	if w.UseProfileStats && sh.stats != nil {
		opts.Profiles = sh.stats
	}
	if w.UseModel && sh.scorer != nil {
		opts.Scorer = sh.scorer
	}
	run := engine.NewWalletRun(w, sh.params, opts)

	budget := s.cfg.Sync.WalletBudget()
	deadline := s.now().Add(budget)
	for i := range sh.trades {
		t := &sh.trades[i]
		ws.Evaluated++
		if budget > 0 && s.now().After(deadline) {
			ws.TimedOut = true
			s.skip(&ws, engine.ReasonPerWalletTimeout)
			continue
		}

		d := run.Evaluate(ctx, t, sh.markets[t.ConditionID])
		if !d.Accepted() {
			s.skip(&ws, d.Reason)
			continue
		}
		reason, err := s.writer.Write(ctx, run, d.Order)
		if err != nil {
			log.Warn("order insert failed", "source_trade_id", t.ID, "error", err)
			// first failure only; the rest are counted under insert_failed
			if ws.Error == "" {
				ws.Error = fmt.Sprintf("insert order for %s: %v", t.ID, err)
			}
		}
		if reason != engine.ReasonNone {
			s.skip(&ws, reason)
			continue
		}
		ws.Inserted++
	}

	log.Info("wallet processed",
		"evaluated", ws.Evaluated,
		"inserted", ws.Inserted,
		"skipped", ws.Skipped,
		"bankroll", run.Bankroll().StringFixed(2))
	return ws
}

func (s *SyncService) skip(ws *model.WalletSummary, reason engine.Reason) {
	ws.Skip(string(reason))
	metrics.Skips.WithLabelValues(string(reason)).Inc()
}

// ActiveWallets returns the wallets trading at now, stalest watermark first.
// Wallets that never synced come first.
func ActiveWallets(wallets []model.WalletStrategy, now time.Time) []model.WalletStrategy {
	out := make([]model.WalletStrategy, 0, len(wallets))
	for _, w := range wallets {
		if w.ActiveAt(now) {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastSyncTime, out[j].LastSyncTime
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		}
		return a.Before(*b)
	})
	return out
}

// Horizon is the oldest watermark across wallets, never further back than
// maxLookback from now. A wallet with no watermark pulls it to the lookback limit.
func Horizon(wallets []model.WalletStrategy, now time.Time, maxLookback time.Duration) time.Time {
	if maxLookback <= 0 {
		maxLookback = 24 * time.Hour
	}
	floor := now.Add(-maxLookback)
	var oldest time.Time
	for i := range wallets {
		mark := wallets[i].Watermark()
		if mark.IsZero() {
			return floor
		}
		if oldest.IsZero() || mark.Before(oldest) {
			oldest = mark
		}
	}
	if oldest.IsZero() || oldest.Before(floor) {
		return floor
	}
	return oldest
}
