package service

import (
	"context"
	"math"

	"github.com/polycopy/ftsync/internal/upstream"
)

// activityPager walks a user's activity backwards in time. Each page ends at the
// oldest second seen so far, with an offset past the rows of that second that
// were already returned, so fills sharing a timestamp are never skipped.
type activityPager struct {
	source   TradeSource
	types    []string
	pageSize int
	maxPages int
}

// each hands every page to visit until visit returns false, a short or empty
// page, or the page cap.
func (p activityPager) each(ctx context.Context, addr string, visit func([]upstream.ActivityRecord) bool) error {
	q := upstream.ActivityQuery{Types: p.types, Limit: p.pageSize}
	for page := 0; page < p.maxPages; page++ {
		rows, err := p.source.Activity(ctx, addr, q)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if !visit(rows) || len(rows) < p.pageSize {
			return nil
		}

		oldest := int64(math.MaxInt64)
		for _, r := range rows {
			oldest = min(oldest, r.Timestamp.Time().Unix())
		}
		atOldest := 0
		for _, r := range rows {
			if r.Timestamp.Time().Unix() == oldest {
				atOldest++
			}
		}
		if q.End > 0 && oldest == q.End {
			q.Offset += atOldest
		} else {
			q.End, q.Offset = oldest, atOldest
		}
	}
	return nil
}
