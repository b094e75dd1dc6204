package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuota_FullWhenNothingSent(t *testing.T) {
	st := newMemStore()
	st.settings.DailyEmailLimit = 25

	gate := NewQuotaGate(st, nil)
	remaining, err := gate.EmailsRemaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, remaining)
}

func TestQuota_CountsTodaysSends(t *testing.T) {
	st := newMemStore()
	st.settings.DailyEmailLimit = 25
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	st.counters.EmailsSentToday = 10
	st.counters.LastEmailDate = &now

	gate := NewQuotaGate(st, func() time.Time { return now })
	remaining, err := gate.EmailsRemaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, remaining)
}

func TestQuota_NeverNegative(t *testing.T) {
	st := newMemStore()
	st.settings.DailyEmailLimit = 5
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	st.counters.EmailsSentToday = 9
	st.counters.LastEmailDate = &now

	gate := NewQuotaGate(st, func() time.Time { return now })
	remaining, err := gate.EmailsRemaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestQuota_DayRolloverResetsAndPersists(t *testing.T) {
	st := newMemStore()
	st.settings.DailyEmailLimit = 25
	yesterday := time.Date(2026, 3, 13, 23, 50, 0, 0, time.UTC)
	st.counters.EmailsSentToday = 25
	st.counters.LastEmailDate = &yesterday

	today := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	gate := NewQuotaGate(st, func() time.Time { return today })

	remaining, err := gate.EmailsRemaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, remaining)

	// The reset is durable, not just an in-memory view.
	assert.Equal(t, 0, st.counters.EmailsSentToday)
}

func TestQuota_SameDayDoesNotReset(t *testing.T) {
	st := newMemStore()
	st.settings.DailyEmailLimit = 25
	morning := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	st.counters.EmailsSentToday = 7
	st.counters.LastEmailDate = &morning

	evening := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
	gate := NewQuotaGate(st, func() time.Time { return evening })

	remaining, err := gate.EmailsRemaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18, remaining)
	assert.Equal(t, 7, st.counters.EmailsSentToday)
}
