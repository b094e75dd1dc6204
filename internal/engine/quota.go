package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/store"
)

// QuotaGate enforces the daily email limit. The sent counter rolls over on
// the first read of a new UTC day and the reset is persisted, so a restart
// mid-day never grants a fresh quota.
type QuotaGate struct {
	store store.Store
	now   func() time.Time
}

// NewQuotaGate creates a quota gate.
func NewQuotaGate(s store.Store, now func() time.Time) *QuotaGate {
	if now == nil {
		now = time.Now
	}
	return &QuotaGate{store: s, now: now}
}

// EmailsRemaining returns how many emails may still be sent today.
func (q *QuotaGate) EmailsRemaining(ctx context.Context) (int, error) {
	settings, err := q.store.GetSettings(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "quota: load settings")
	}

	counters, err := q.store.GetCounters(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "quota: load counters")
	}

	today := q.now().UTC().Truncate(24 * time.Hour)
	if counters.LastEmailDate != nil && counters.LastEmailDate.UTC().Truncate(24*time.Hour).Before(today) {
		counters.EmailsSentToday = 0
		if err := q.store.UpdateCounters(ctx, counters); err != nil {
			return 0, eris.Wrap(err, "quota: rollover reset")
		}
	}

	remaining := settings.DailyEmailLimit - counters.EmailsSentToday
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
