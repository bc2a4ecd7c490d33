// Command ftsync runs a single sync pass and prints its summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/polycopy/ftsync/internal/app"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/pkg/logger"
	"github.com/polycopy/ftsync/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	skipLock := flag.Bool("no-lock", false, "run without taking the run lock")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	// stdout carries the summary only
	logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Stderr:     true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	defer a.Close()

	if !*skipLock {
		release, ok, err := service.HoldRunLock(ctx, a.Lock, "ft-sync", cfg.LockTTL())
		if err != nil {
			logger.Error("acquire run lock", "error", err)
			return 1
		}
		if !ok {
			logger.Warn("another sync pass is running")
			return 2
		}
		defer release()
	}

	summary, runErr := a.Sync.Run(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("encode summary", "error", err)
	}
	if runErr != nil {
		logger.Error("sync failed", "error", runErr)
		return 1
	}
	return 0
}
