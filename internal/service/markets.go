package service

import (
	"context"
	"fmt"
	"time"

	"github.com/polycopy/ftsync/internal/classify"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/logger"
)

// MarketResolver maps condition ids to canonical markets, preferring the store
// and refreshing stale or missing rows from upstream.
type MarketResolver struct {
	store      MarketStore
	source     MarketSource
	prices     PriceCache
	batchSize  int
	staleAfter time.Duration
	now        Clock
}

func NewMarketResolver(store MarketStore, source MarketSource, prices PriceCache, cfg *config.Config, now Clock) *MarketResolver {
	batch := cfg.Upstream.MarketBatchSize
	if batch <= 0 {
		batch = 50
	}
	if now == nil {
		now = SystemClock
	}
	return &MarketResolver{
		store:      store,
		source:     source,
		prices:     prices,
		batchSize:  batch,
		staleAfter: cfg.Sync.MarketStaleAfter(),
		now:        now,
	}
}

// Resolve returns every market it could find, plus soft errors. slugs maps
// condition ids to market slugs and is used for ids the batch lookup did not
// return. Ids missing from the result should be skipped as market_not_found.
func (r *MarketResolver) Resolve(ctx context.Context, ids []string, slugs map[string]string) (map[string]*model.Market, []string) {
	var errs []string
	ids = uniqueStrings(ids)

	markets, err := r.store.GetMarkets(ctx, ids)
	if err != nil {
		errs = append(errs, fmt.Sprintf("load markets: %v", err))
		markets = make(map[string]*model.Market)
	}

	now := r.now()
	var missing []string
	for _, id := range ids {
		m, ok := markets[id]
		if !ok || r.stale(m, now) {
			missing = append(missing, id)
		}
	}

	var fetched []model.Market
	var unreturned []string
	for start := 0; start < len(missing) && r.source != nil; start += r.batchSize {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Sprintf("market refresh stopped: %v", ctx.Err()))
			break
		}
		end := min(start+r.batchSize, len(missing))
		batch, err := r.source.MarketsByConditionIDs(ctx, missing[start:end])
		if err != nil {
			errs = append(errs, fmt.Sprintf("fetch markets %d-%d: %v", start, end, err))
			continue
		}
		returned := make(map[string]struct{}, len(batch))
		for i := range batch {
			returned[batch[i].ConditionID] = struct{}{}
		}
		for _, id := range missing[start:end] {
			if _, ok := returned[id]; !ok {
				unreturned = append(unreturned, id)
			}
		}
		fetched = append(fetched, batch...)
	}

	for _, id := range unreturned {
		slug := slugs[id]
		if slug == "" || ctx.Err() != nil {
			continue
		}
		m, err := r.source.MarketBySlug(ctx, slug)
		if err != nil {
			errs = append(errs, fmt.Sprintf("fetch market %s by slug: %v", slug, err))
			continue
		}
		if m == nil || m.ConditionID != id {
			continue
		}
		fetched = append(fetched, *m)
	}

	for i := range fetched {
		Classify(&fetched[i])
		m := fetched[i]
		markets[m.ConditionID] = &m
	}
	if len(fetched) > 0 {
		if err := r.store.UpsertMarkets(ctx, fetched); err != nil {
			logger.Warn("market upsert failed", "count", len(fetched), "error", err)
			errs = append(errs, fmt.Sprintf("upsert markets: %v", err))
		}
	}
	// only rows just read upstream carry prices fresh enough for the cache
	if r.prices != nil {
		for i := range fetched {
			r.prices.PutMarket(ctx, &fetched[i])
		}
	}

	logger.Info("markets resolved",
		"requested", len(ids), "refreshed", len(fetched), "found", len(markets))
	return markets, errs
}

func (r *MarketResolver) stale(m *model.Market, now time.Time) bool {
	if m.Resolved || r.staleAfter <= 0 {
		return false
	}
	return now.Sub(m.UpdatedAt) > r.staleAfter
}

// Classify fills market type, niche and structure when they are missing.
func Classify(m *model.Market) {
	if m.MarketType != "" && m.Niche != "" && m.Structure != "" {
		return
	}
	c := classify.Market(m.Title, m.Tags)
	if m.MarketType == "" {
		m.MarketType = c.MarketType
	}
	if m.Niche == "" {
		m.Niche = c.Niche
	}
	if m.Structure == "" {
		m.Structure = c.Structure
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
