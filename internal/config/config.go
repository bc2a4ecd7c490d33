package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug / release / test
}

type AuthConfig struct {
	AdminKey   string `mapstructure:"admin_key"`
	CronSecret string `mapstructure:"cron_secret"`
}

type DatabaseConfig struct {
	DSN              string `mapstructure:"dsn"`
	MaxOpenConns     int    `mapstructure:"max_open_conns"`
	MaxIdleConns     int    `mapstructure:"max_idle_conns"`
	RunRetentionDays int    `mapstructure:"run_retention_days"`
}

type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	LockTTLSeconds  int    `mapstructure:"lock_ttl_seconds"`
	PriceTTLSeconds int    `mapstructure:"price_ttl_seconds"`
}

type UpstreamConfig struct {
	DataAPIURL          string  `mapstructure:"data_api_url"`
	GammaAPIURL         string  `mapstructure:"gamma_api_url"`
	ScorerURL           string  `mapstructure:"scorer_url"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	RetryCount          int     `mapstructure:"retry_count"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`
	Burst               int     `mapstructure:"burst"`
	LeaderboardPageSize int     `mapstructure:"leaderboard_page_size"`
	TradePageSize       int     `mapstructure:"trade_page_size"`
	ActivityPageSize    int     `mapstructure:"activity_page_size"`
	MarketBatchSize     int     `mapstructure:"market_batch_size"`
}

// LeaderboardView is one (time period, order by) slice of the leaderboard.
type LeaderboardView struct {
	TimePeriod string `mapstructure:"time_period"` // DAY / WEEK / MONTH / ALL
	OrderBy    string `mapstructure:"order_by"`    // PNL / VOL
}

type SyncConfig struct {
	RunBudgetSeconds    int               `mapstructure:"run_budget_seconds"`
	WalletBudgetSeconds int               `mapstructure:"wallet_budget_seconds"`
	FetchBatchSize      int               `mapstructure:"fetch_batch_size"`
	LeaderboardPages    int               `mapstructure:"leaderboard_pages"`
	LeaderboardViews    []LeaderboardView `mapstructure:"leaderboard_views"`
	ExcludedTraders     []string          `mapstructure:"excluded_traders"`
	MaxTradePages       int               `mapstructure:"max_trade_pages"`
	MaxActivityPages    int               `mapstructure:"max_activity_pages"`
	MinTraderTrades     int               `mapstructure:"min_trader_trades"`
	MaxLookbackHours    int               `mapstructure:"max_lookback_hours"`
	MarketStaleMinutes  int               `mapstructure:"market_stale_minutes"`
	Slippage            float64           `mapstructure:"slippage"`         // e.g. 0.04 (4%)
	FixedMultiplier     float64           `mapstructure:"fixed_multiplier"` // legacy FIXED sizing multiplier
	MLCacheSize         int               `mapstructure:"ml_cache_size"`
	MLCacheTTLMinutes   int               `mapstructure:"ml_cache_ttl_minutes"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty = stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func (s SyncConfig) RunBudget() time.Duration {
	return time.Duration(s.RunBudgetSeconds) * time.Second
}

func (s SyncConfig) WalletBudget() time.Duration {
	return time.Duration(s.WalletBudgetSeconds) * time.Second
}

func (s SyncConfig) MaxLookback() time.Duration {
	return time.Duration(s.MaxLookbackHours) * time.Hour
}

func (s SyncConfig) MarketStaleAfter() time.Duration {
	return time.Duration(s.MarketStaleMinutes) * time.Minute
}

// LockTTL is the run lock lease: the configured value, but never shorter than
// a full pass (run budget plus the last wallet's budget plus a minute for the
// fetch stages). The holder also renews it while the pass runs.
func (c *Config) LockTTL() time.Duration {
	ttl := time.Duration(c.Redis.LockTTLSeconds) * time.Second
	floor := c.Sync.RunBudget() + c.Sync.WalletBudget() + time.Minute
	return max(ttl, floor)
}

func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. FTSYNC_AUTH_CRON_SECRET
	v.SetEnvPrefix("ftsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers every default on v. AutomaticEnv only resolves keys viper
// already knows about, so each env-overridable key needs a default here.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("auth.cron_secret", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.run_retention_days", 30)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "ftsync:")
	v.SetDefault("redis.lock_ttl_seconds", 300)
	v.SetDefault("redis.price_ttl_seconds", 60)

	v.SetDefault("upstream.data_api_url", "https://data-api.polymarket.com")
	v.SetDefault("upstream.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("upstream.scorer_url", "")
	v.SetDefault("upstream.timeout_seconds", 15)
	v.SetDefault("upstream.retry_count", 2)
	v.SetDefault("upstream.requests_per_second", 20.0)
	v.SetDefault("upstream.burst", 10)
	v.SetDefault("upstream.leaderboard_page_size", 50)
	v.SetDefault("upstream.trade_page_size", 100)
	v.SetDefault("upstream.activity_page_size", 500)
	v.SetDefault("upstream.market_batch_size", 50)

	v.SetDefault("sync.run_budget_seconds", 240)
	v.SetDefault("sync.wallet_budget_seconds", 20)
	v.SetDefault("sync.fetch_batch_size", 10)
	v.SetDefault("sync.leaderboard_pages", 2)
	v.SetDefault("sync.leaderboard_views", []map[string]string{
		{"time_period": "DAY", "order_by": "PNL"},
		{"time_period": "WEEK", "order_by": "PNL"},
		{"time_period": "MONTH", "order_by": "PNL"},
		{"time_period": "MONTH", "order_by": "VOL"},
		{"time_period": "ALL", "order_by": "PNL"},
	})
	v.SetDefault("sync.excluded_traders", []string{})
	v.SetDefault("sync.max_trade_pages", 5)
	v.SetDefault("sync.max_activity_pages", 10)
	v.SetDefault("sync.min_trader_trades", 10)
	v.SetDefault("sync.max_lookback_hours", 24)
	v.SetDefault("sync.market_stale_minutes", 60)
	v.SetDefault("sync.slippage", 0.04)
	v.SetDefault("sync.fixed_multiplier", 1.0)
	v.SetDefault("sync.ml_cache_size", 10000)
	v.SetDefault("sync.ml_cache_ttl_minutes", 30)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
}
