package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts every route on a fresh engine.
func NewRouter(cfg *config.Config, sync *SyncHandler, wallets *WalletHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	if cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware())
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ft := r.Group("/api/ft")
	guarded := ft.Group("", middleware.CronOrAdmin(cfg))
	guarded.POST("/sync", sync.Sync)
	guarded.GET("/sync", sync.Sync)
	guarded.GET("/runs", sync.Runs)

	ft.GET("/wallets", wallets.List)
	ft.GET("/traders/:address/pnl", wallets.TraderPnL)
	return r
}
