package service

import (
	"context"
	"sync"
	"time"

	"github.com/polycopy/ftsync/internal/model"
	"github.com/polycopy/ftsync/internal/pkg/logger"
)

type runCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// RunLog keeps run summaries: durably in repo when there is one, and always in
// a bounded in-memory ring for when the repo is unavailable.
type RunLog struct {
	repo      RunRepo
	buffer    *runBuffer
	retention time.Duration
}

func NewRunLog(repo RunRepo, bufferSize int, retention time.Duration) *RunLog {
	return &RunLog{
		repo:      repo,
		buffer:    newRunBuffer(bufferSize),
		retention: retention,
	}
}

func (l *RunLog) Record(ctx context.Context, run *model.RunSummary) {
	if run == nil {
		return
	}
	l.buffer.Add(run)
	if l.repo == nil {
		return
	}
	if err := l.repo.InsertRun(ctx, run); err != nil {
		logger.Error("failed to persist run summary", "run_id", run.RunID, "error", err)
		return
	}
	if c, ok := l.repo.(runCleaner); ok && l.retention > 0 {
		if err := c.Cleanup(ctx, l.retention); err != nil {
			logger.Warn("run history cleanup failed", "error", err)
		}
	}
}

// List returns the newest runs first.
func (l *RunLog) List(ctx context.Context, limit int) ([]*model.RunSummary, error) {
	if l.repo != nil {
		runs, err := l.repo.ListRuns(ctx, limit)
		if err == nil {
			return runs, nil
		}
		logger.Warn("run history read failed, serving buffer", "error", err)
	}
	return l.buffer.List(limit), nil
}

type runBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.RunSummary
	nextIndex int
}

func newRunBuffer(maxSize int) *runBuffer {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &runBuffer{
		maxSize: maxSize,
		records: make([]*model.RunSummary, 0, maxSize),
	}
}

func (b *runBuffer) Add(run *model.RunSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, run)
		return
	}
	b.records[b.nextIndex] = run
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *runBuffer) List(limit int) []*model.RunSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*model.RunSummary, 0, limit)
	// newest entry sits just before nextIndex once the ring has wrapped
	newest := n - 1
	if n == b.maxSize {
		newest = (b.nextIndex - 1 + n) % n
	}
	for i := 0; i < limit; i++ {
		out = append(out, b.records[(newest-i+n)%n])
	}
	return out
}
