// Package app assembles the sync service and its collaborators from config.
// Both binaries build through here so the server and the one-shot CLI run the
// same pass.
package app

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/handler"
	"github.com/polycopy/ftsync/internal/pkg/logger"
	"github.com/polycopy/ftsync/internal/repository"
	"github.com/polycopy/ftsync/internal/service"
	"github.com/polycopy/ftsync/internal/upstream"
)

type App struct {
	Config  *config.Config
	Sync    *service.SyncService
	Runs    *service.RunLog
	Lock    service.RunLocker
	Wallets *service.WalletService
	PnL     *service.TraderPnLService

	db    *sqlx.DB
	redis *repository.RedisClient
}

type stores struct {
	markets service.MarketStore
	wallets interface {
		service.WalletStore
		service.WalletReader
	}
	orders interface {
		service.OrderStore
		service.OrderReader
	}
	stats service.StatsStore
	runs  service.RunRepo
}

// New wires everything. Postgres and Redis are optional: without them the
// stores, run lock and price cache live in process.
func New(cfg *config.Config) *App {
	a := &App{Config: cfg}

	st := a.openStores()

	var prices service.PriceCache
	priceTTL := time.Duration(cfg.Redis.PriceTTLSeconds) * time.Second
	if cfg.Redis.Addr != "" {
		client, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
			a.redis = client
			a.Lock = repository.NewRedisRunLock(client)
			prices = repository.NewRedisPriceCache(client, priceTTL)
		} else {
			logger.Error("failed to connect to redis, falling back to memory", "error", err)
		}
	}
	if a.Lock == nil {
		a.Lock = service.NewMemoryRunLock(nil)
		prices = service.NewMemoryPriceCache(0, priceTTL)
	}

	up := cfg.Upstream
	data := upstream.NewDataAPI(upstream.NewClient(upstream.OptionsFrom("data", up.DataAPIURL, up)))
	gamma := upstream.NewGamma(upstream.NewClient(upstream.OptionsFrom("gamma", up.GammaAPIURL, up)), nil)

	retention := time.Duration(cfg.Database.RunRetentionDays) * 24 * time.Hour
	a.Runs = service.NewRunLog(st.runs, 100, retention)

	deps := service.SyncDeps{
		Config:      cfg,
		Leaderboard: data,
		Trades:      data,
		Markets:     gamma,
		MarketStore: st.markets,
		WalletStore: st.wallets,
		OrderStore:  st.orders,
		StatsStore:  st.stats,
		Prices:      prices,
		Runs:        a.Runs,
	}
	if up.ScorerURL != "" {
		deps.Scorer = upstream.NewScorer(upstream.NewClient(upstream.OptionsFrom("scorer", up.ScorerURL, up)))
	}
	a.Sync = service.NewSyncService(deps)
	a.Wallets = service.NewWalletService(st.wallets, st.orders, prices)
	a.PnL = service.NewTraderPnLService(data, prices, cfg)
	return a
}

func (a *App) openStores() stores {
	if a.Config.Database.DSN != "" {
		db, err := repository.NewDB(a.Config)
		if err == nil {
			logger.Info("connected to postgres")
			a.db = db
			return stores{
				markets: repository.NewPostgresMarketRepo(db),
				wallets: repository.NewPostgresWalletRepo(db),
				orders:  repository.NewPostgresOrderRepo(db),
				stats:   repository.NewPostgresStatsRepo(db),
				runs:    repository.NewPostgresRunRepo(db),
			}
		}
		logger.Error("failed to connect to postgres, falling back to memory", "error", err)
	}
	logger.Warn("using in-memory stores; wallets and orders are lost on exit")
	mem := repository.NewMemoryStore()
	return stores{markets: mem, wallets: mem, orders: mem, stats: mem, runs: mem}
}

// Handlers builds the HTTP handlers over this app.
func (a *App) Handlers() (*handler.SyncHandler, *handler.WalletHandler) {
	return handler.NewSyncHandler(a.Sync, a.Lock, a.Config.LockTTL(), a.Runs),
		handler.NewWalletHandler(a.Wallets, a.PnL)
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
