package service

import (
	"context"
	"strings"

	"github.com/polycopy/ftsync/internal/model"
)

// StatsResolver answers trader statistics for one run. Global rows are always
// loaded; profile rows only when some wallet asks for them.
type StatsResolver struct {
	global   map[string]model.TraderStats
	profiles map[string][]model.ProfileStat
}

// LoadStats bulk-loads statistics for addrs.
func LoadStats(ctx context.Context, store StatsStore, addrs []string, withProfiles bool) (*StatsResolver, error) {
	r := &StatsResolver{
		global:   make(map[string]model.TraderStats, len(addrs)),
		profiles: make(map[string][]model.ProfileStat),
	}
	if len(addrs) == 0 {
		return r, nil
	}
	rows, err := store.GlobalStats(ctx, addrs)
	if err != nil {
		return r, err
	}
	for _, row := range rows {
		r.global[strings.ToLower(row.Address)] = row.Stats()
	}
	if !withProfiles {
		return r, nil
	}
	profiles, err := store.ProfileStats(ctx, addrs)
	if err != nil {
		return r, err
	}
	for _, p := range profiles {
		addr := strings.ToLower(p.Address)
		r.profiles[addr] = append(r.profiles[addr], p)
	}
	return r, nil
}

// Global returns the unified stats for addr. ok is false when nothing is known.
func (r *StatsResolver) Global(addr string) (model.TraderStats, bool) {
	if r == nil {
		return model.TraderStats{}, false
	}
	s, ok := r.global[strings.ToLower(addr)]
	return s, ok
}

// Resolve picks the most specific profile slice with any history:
// exact (niche, structure, bracket), then (niche, structure) across brackets,
// then every slice whose niche contains niche, then fallback.
func (r *StatsResolver) Resolve(trader, niche, structure, bracket string, fallback model.TraderStats) model.TraderStats {
	if r == nil {
		return fallback
	}
	rows := r.profiles[strings.ToLower(trader)]
	if len(rows) == 0 || niche == "" {
		return fallback
	}

	tiers := []func(model.ProfileStat) bool{
		func(p model.ProfileStat) bool {
			return strings.EqualFold(p.Niche, niche) && strings.EqualFold(p.Structure, structure) && strings.EqualFold(p.Bracket, bracket)
		},
		func(p model.ProfileStat) bool {
			return strings.EqualFold(p.Niche, niche) && strings.EqualFold(p.Structure, structure)
		},
		func(p model.ProfileStat) bool {
			return strings.Contains(strings.ToLower(p.Niche), strings.ToLower(niche))
		},
	}
	for _, match := range tiers {
		if agg, ok := aggregateProfiles(rows, match); ok {
			return agg
		}
	}
	return fallback
}

// aggregateProfiles count-weights win rate and average size over matching rows.
func aggregateProfiles(rows []model.ProfileStat, match func(model.ProfileStat) bool) (model.TraderStats, bool) {
	var count int
	var winSum, sizeSum float64
	for _, p := range rows {
		if !match(p) || p.TradeCount <= 0 {
			continue
		}
		count += p.TradeCount
		winSum += p.WinRate * float64(p.TradeCount)
		sizeSum += p.AvgTradeSize * float64(p.TradeCount)
	}
	if count == 0 {
		return model.TraderStats{}, false
	}
	return model.TraderStats{
		WinRate:      winSum / float64(count),
		TradeCount:   count,
		AvgTradeSize: sizeSum / float64(count),
	}, true
}
