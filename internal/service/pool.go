package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/apperrors"
	"github.com/polycopy/ftsync/internal/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const dayPeriod = "DAY"

// PoolBuilder assembles the candidate trader pool from leaderboard views.
type PoolBuilder struct {
	source      LeaderboardSource
	views       []config.LeaderboardView
	pages       int
	pageSize    int
	concurrency int
	excluded    map[string]struct{}
}

func NewPoolBuilder(source LeaderboardSource, cfg *config.Config) *PoolBuilder {
	excluded := make(map[string]struct{}, len(cfg.Sync.ExcludedTraders))
	for _, a := range cfg.Sync.ExcludedTraders {
		excluded[normalizeAddress(a)] = struct{}{}
	}
	pages := cfg.Sync.LeaderboardPages
	if pages <= 0 {
		pages = 1
	}
	pageSize := cfg.Upstream.LeaderboardPageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	concurrency := cfg.Sync.FetchBatchSize
	if concurrency <= 0 {
		concurrency = 10
	}
	return &PoolBuilder{
		source:      source,
		views:       cfg.Sync.LeaderboardViews,
		pages:       pages,
		pageSize:    pageSize,
		concurrency: concurrency,
		excluded:    excluded,
	}
}

type leaderboardPage struct {
	view    config.LeaderboardView
	entries []model.Trader
}

// Build fetches every (view, page) concurrently and merges the results. targets are
// added even when no leaderboard lists them. Page failures come back as soft errors;
// an empty pool is a hard error.
func (b *PoolBuilder) Build(ctx context.Context, targets []string) ([]model.Trader, []string, error) {
	results := make([]leaderboardPage, len(b.views)*b.pages)

	var (
		mu   sync.Mutex
		errs []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for vi, view := range b.views {
		for page := 0; page < b.pages; page++ {
			idx := vi*b.pages + page
			view, offset := view, page*b.pageSize
			g.Go(func() error {
				rows, err := b.source.Leaderboard(gctx, view.TimePeriod, view.OrderBy, b.pageSize, offset)
				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Sprintf("leaderboard %s/%s offset %d: %v", view.TimePeriod, view.OrderBy, offset, err))
					mu.Unlock()
					return nil
				}
				traders := make([]model.Trader, 0, len(rows))
				for _, r := range rows {
					traders = append(traders, model.Trader{
						Address:  r.ProxyWallet,
						Username: r.UserName,
						PnL:      float64(r.PnL),
						Volume:   float64(r.Volume),
					})
				}
				results[idx] = leaderboardPage{view: view, entries: traders}
				return nil
			})
		}
	}
	_ = g.Wait()

	pool := b.merge(results, targets)
	if len(pool) == 0 {
		return nil, errs, apperrors.New(apperrors.ErrPoolEmpty, "trader pool is empty", nil)
	}
	logger.Info("trader pool built", "size", len(pool), "page_errors", len(errs))
	return pool, errs, nil
}

// merge flattens pages in (view, page) order; the first sighting of an address wins.
func (b *PoolBuilder) merge(pages []leaderboardPage, targets []string) []model.Trader {
	index := make(map[string]int)
	var pool []model.Trader

	add := func(t model.Trader, viewLabel string, day bool) {
		addr := normalizeAddress(t.Address)
		if addr == "" {
			return
		}
		if _, skip := b.excluded[addr]; skip {
			return
		}
		if i, ok := index[addr]; ok {
			existing := &pool[i]
			if viewLabel != "" && !containsString(existing.Views, viewLabel) {
				existing.Views = append(existing.Views, viewLabel)
			}
			existing.DayActive = existing.DayActive || day
			return
		}
		t.Address = addr
		if viewLabel != "" {
			t.Views = []string{viewLabel}
		}
		t.DayActive = day
		index[addr] = len(pool)
		pool = append(pool, t)
	}

	for _, p := range pages {
		label := p.view.TimePeriod + "/" + p.view.OrderBy
		day := strings.EqualFold(p.view.TimePeriod, dayPeriod)
		for _, t := range p.entries {
			add(t, label, day)
		}
	}
	for _, target := range targets {
		addr := normalizeAddress(target)
		if addr == "" {
			continue
		}
		if _, skip := b.excluded[addr]; skip {
			continue
		}
		if i, ok := index[addr]; ok {
			pool[i].Target = true
			continue
		}
		index[addr] = len(pool)
		pool = append(pool, model.Trader{Address: addr, Target: true})
	}
	return pool
}

// normalizeAddress lower-cases a hex address, or returns "" when it is not one.
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(addr).Hex())
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
