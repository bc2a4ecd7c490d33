package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/polycopy/ftsync/internal/model"
)

// MemoryStore keeps markets, wallets, orders, trader stats and run history in
// process. It is used when no database is configured and by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	markets  map[string]model.Market
	wallets  map[string]model.WalletStrategy
	orders   map[string][]model.Order // by wallet id
	global   map[string]model.GlobalStatRow
	profiles map[string][]model.ProfileStat
	runs     []*model.RunSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:  make(map[string]model.Market),
		wallets:  make(map[string]model.WalletStrategy),
		orders:   make(map[string][]model.Order),
		global:   make(map[string]model.GlobalStatRow),
		profiles: make(map[string][]model.ProfileStat),
	}
}

func (s *MemoryStore) GetMarkets(ctx context.Context, ids []string) (map[string]*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*model.Market, len(ids))
	for _, id := range ids {
		if m, ok := s.markets[id]; ok {
			m := m
			out[id] = &m
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertMarkets(ctx context.Context, markets []model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range markets {
		if prev, ok := s.markets[m.ConditionID]; ok {
			if m.EndTime == nil {
				m.EndTime = prev.EndTime
			}
			if m.GameStartTime == nil {
				m.GameStartTime = prev.GameStartTime
			}
		}
		s.markets[m.ConditionID] = m
	}
	return nil
}

func (s *MemoryStore) ListWallets(ctx context.Context) ([]model.WalletStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.WalletStrategy, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastSyncTime, out[j].LastSyncTime
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return out[i].ID < out[j].ID
		}
		return a.Before(*b)
	})
	return out, nil
}

func (s *MemoryStore) GetWallet(ctx context.Context, id string) (*model.WalletStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (s *MemoryStore) AdvanceSyncTime(ctx context.Context, walletID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return ErrNotFound
	}
	if w.LastSyncTime == nil || t.After(*w.LastSyncTime) {
		t := t
		w.LastSyncTime = &t
		s.wallets[walletID] = w
	}
	return nil
}

func (s *MemoryStore) UpsertWallet(ctx context.Context, w *model.WalletStrategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *w
	if prev, ok := s.wallets[w.ID]; ok && prev.LastSyncTime != nil {
		next.LastSyncTime = prev.LastSyncTime
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}
	s.wallets[w.ID] = next
	return nil
}

func (s *MemoryStore) SourceTradeIDs(ctx context.Context, walletID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.orders[walletID]))
	for _, o := range s.orders[walletID] {
		out[o.SourceTradeID] = struct{}{}
	}
	return out, nil
}

func (s *MemoryStore) Exposure(ctx context.Context, walletID string) (model.Exposure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var e model.Exposure
	for _, o := range s.orders[walletID] {
		if o.Status == model.OrderOpen {
			e.OpenExposure += o.Size
			e.OpenOrders++
			continue
		}
		if o.PnL != nil {
			e.RealizedPnL += *o.PnL
		}
	}
	return e, nil
}

func (s *MemoryStore) InsertOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders[o.WalletID] {
		if existing.SourceTradeID == o.SourceTradeID {
			return ErrDuplicateKey
		}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	s.orders[o.WalletID] = append(s.orders[o.WalletID], *o)
	return nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, walletID string, limit int) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.orders[walletID]
	out := make([]model.Order, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TradeTime.After(out[j].TradeTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GlobalStats(ctx context.Context, addrs []string) ([]model.GlobalStatRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.GlobalStatRow
	for _, a := range addrs {
		if row, ok := s.global[strings.ToLower(a)]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryStore) ProfileStats(ctx context.Context, addrs []string) ([]model.ProfileStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ProfileStat
	for _, a := range addrs {
		out = append(out, s.profiles[strings.ToLower(a)]...)
	}
	return out, nil
}

func (s *MemoryStore) UpsertGlobalStat(ctx context.Context, row model.GlobalStatRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.Address = strings.ToLower(row.Address)
	s.global[row.Address] = row
	return nil
}

func (s *MemoryStore) AddProfileStat(ctx context.Context, row model.ProfileStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.Address = strings.ToLower(row.Address)
	s.profiles[row.Address] = append(s.profiles[row.Address], row)
	return nil
}

func (s *MemoryStore) InsertRun(ctx context.Context, run *model.RunSummary) error {
	if run == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]*model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]*model.RunSummary, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
