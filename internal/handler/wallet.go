package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/polycopy/ftsync/internal/pkg/apperrors"
	"github.com/polycopy/ftsync/internal/service"
)

type WalletOverviewer interface {
	Overview(ctx context.Context) ([]service.WalletView, error)
}

type TraderPnLComputer interface {
	Compute(ctx context.Context, address string) (*service.TraderPnL, error)
}

type WalletHandler struct {
	wallets WalletOverviewer
	pnl     TraderPnLComputer
}

func NewWalletHandler(wallets WalletOverviewer, pnl TraderPnLComputer) *WalletHandler {
	return &WalletHandler{wallets: wallets, pnl: pnl}
}

func (h *WalletHandler) List(c *gin.Context) {
	views, err := h.wallets.Overview(c.Request.Context())
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": views})
}

func (h *WalletHandler) TraderPnL(c *gin.Context) {
	pnl, err := h.pnl.Compute(c.Request.Context(), c.Param("address"))
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, pnl)
}
