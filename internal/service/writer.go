package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/polycopy/ftsync/internal/engine"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/logger"
	"github.com/polycopy/ftsync/internal/pkg/metrics"
	"github.com/polycopy/ftsync/internal/repository"
)

// OrderWriter persists accepted orders and advances wallet watermarks.
type OrderWriter struct {
	orders  OrderStore
	wallets WalletStore
}

func NewOrderWriter(orders OrderStore, wallets WalletStore) *OrderWriter {
	return &OrderWriter{orders: orders, wallets: wallets}
}

// Write inserts o and commits it to run. A unique violation means another run
// already copied the trade; it is reported as a duplicate skip, not an error.
func (w *OrderWriter) Write(ctx context.Context, run *engine.WalletRun, o *model.Order) (engine.Reason, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := w.orders.InsertOrder(ctx, o)
	switch {
	case errors.Is(err, repository.ErrDuplicateKey):
		run.MarkSeen(o.SourceTradeID)
		return engine.ReasonDuplicate, nil
	case err != nil:
		return engine.ReasonInsertFailed, err
	}
	run.Commit(o)
	metrics.OrdersTotal.WithLabelValues(string(o.Status), string(o.Allocation)).Inc()
	return engine.ReasonNone, nil
}

// AdvanceClock moves the wallet's watermark to t. The store keeps the later of
// the stored value and t.
func (w *OrderWriter) AdvanceClock(ctx context.Context, walletID string, t time.Time) error {
	if err := w.wallets.AdvanceSyncTime(ctx, walletID, t); err != nil {
		logger.Warn("advance wallet clock failed", "wallet_id", walletID, "error", err)
		return err
	}
	return nil
}
