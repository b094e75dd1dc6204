package engine

import (
	"context"
	"time"
)

// SleepFunc waits for d or until ctx is done. Tests inject a no-op so runs
// complete instantly.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RealSleep is the production SleepFunc.
func RealSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
