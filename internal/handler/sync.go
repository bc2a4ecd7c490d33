package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/apperrors"
	"github.com/polycopy/ftsync/internal/service"
)

const syncLockName = "ft-sync"

type SyncRunner interface {
	Run(ctx context.Context) (*model.RunSummary, error)
}

type RunLister interface {
	List(ctx context.Context, limit int) ([]*model.RunSummary, error)
}

type SyncHandler struct {
	runner  SyncRunner
	lock    service.RunLocker
	lockTTL time.Duration
	runs    RunLister
}

func NewSyncHandler(runner SyncRunner, lock service.RunLocker, lockTTL time.Duration, runs RunLister) *SyncHandler {
	return &SyncHandler{runner: runner, lock: lock, lockTTL: lockTTL, runs: runs}
}

// Sync runs one pass while holding and renewing the run lock. A pass keeps going when the
// caller disconnects; the summary is in the run history either way.
func (h *SyncHandler) Sync(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())

	release, ok, err := service.HoldRunLock(ctx, h.lock, syncLockName, h.lockTTL)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "acquire run lock", err))
		return
	}
	if !ok {
		c.Error(apperrors.New(apperrors.ErrSyncInProgress, "a sync pass is already running", nil))
		return
	}
	defer release()

	summary, err := h.runner.Run(ctx)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *SyncHandler) Runs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
