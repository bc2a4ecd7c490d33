package service

import (
	"context"

	"github.com/polycopy/ftsync/internal/model"
	"github.com/shopspring/decimal"
)

// WalletReader is what the wallet overview reads.
type WalletReader interface {
	ListWallets(ctx context.Context) ([]model.WalletStrategy, error)
}

type OrderReader interface {
	Exposure(ctx context.Context, walletID string) (model.Exposure, error)
	ListOrders(ctx context.Context, walletID string, limit int) ([]model.Order, error)
}

// WalletView is one wallet with its bankroll and marked-to-market open book.
type WalletView struct {
	model.WalletStrategy
	Exposure model.Exposure `json:"exposure"`
	Bankroll float64        `json:"bankroll"`
	// OpenMarkValue prices open shares at the cached outcome price; open orders
	// without a cached price are counted in Unpriced.
	OpenMarkValue float64 `json:"open_mark_value"`
	Unpriced      int     `json:"unpriced_open_orders"`
}

type WalletService struct {
	wallets WalletReader
	orders  OrderReader
	prices  PriceCache
}

func NewWalletService(wallets WalletReader, orders OrderReader, prices PriceCache) *WalletService {
	return &WalletService{wallets: wallets, orders: orders, prices: prices}
}

const overviewOrderLimit = 1000

func (s *WalletService) Overview(ctx context.Context) ([]WalletView, error) {
	wallets, err := s.wallets.ListWallets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WalletView, 0, len(wallets))
	for _, w := range wallets {
		exp, err := s.orders.Exposure(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		view := WalletView{
			WalletStrategy: w,
			Exposure:       exp,
			Bankroll: decimal.NewFromFloat(w.StartingBalance).
				Add(decimal.NewFromFloat(exp.RealizedPnL)).
				Sub(decimal.NewFromFloat(exp.OpenExposure)).
				Round(2).InexactFloat64(),
		}
		if exp.OpenOrders > 0 {
			s.mark(ctx, &view)
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *WalletService) mark(ctx context.Context, view *WalletView) {
	orders, err := s.orders.ListOrders(ctx, view.ID, overviewOrderLimit)
	if err != nil {
		view.Unpriced = view.Exposure.OpenOrders
		return
	}
	value := decimal.Zero
	for _, o := range orders {
		if o.Status != model.OrderOpen {
			continue
		}
		if s.prices == nil {
			view.Unpriced++
			continue
		}
		p, ok := s.prices.Price(ctx, o.ConditionID, o.Outcome)
		if !ok {
			view.Unpriced++
			continue
		}
		value = value.Add(decimal.NewFromFloat(o.Shares).Mul(decimal.NewFromFloat(p)))
	}
	view.OpenMarkValue = value.Round(2).InexactFloat64()
}
