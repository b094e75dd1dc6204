// Package scheduler triggers the daily engine run at a fixed UTC hour.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Runner is the guarded engine entry point. The scheduler shares it with
// the manual API trigger, so an overlapping invocation is rejected there,
// not here.
type Runner interface {
	Run(ctx context.Context) *model.RunResult
}

// Scheduler owns one cron entry for the daily run.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	hour   int
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler firing daily at the given UTC hour.
func New(runner Runner, hour int) (*Scheduler, error) {
	if hour < 0 || hour > 23 {
		return nil, eris.Errorf("scheduler: hour %d out of range", hour)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		runner: runner,
		hour:   hour,
		ctx:    ctx,
		cancel: cancel,
	}

	spec := fmt.Sprintf("0 %d * * *", hour)
	if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
		cancel()
		return nil, eris.Wrapf(err, "scheduler: add entry %s", spec)
	}
	return s, nil
}

func (s *Scheduler) fire() {
	zap.L().Info("scheduled run triggered", zap.Int("hour_utc", s.hour))
	result := s.runner.Run(s.ctx)
	zap.L().Info("scheduled run finished",
		zap.Bool("success", result.Success),
		zap.String("message", result.Message),
	)
}

// Start begins dispatching. It returns immediately; entries fire on the
// cron goroutine.
func (s *Scheduler) Start() {
	zap.L().Info("scheduler starting", zap.Int("hour_utc", s.hour))
	s.cron.Start()
}

// Stop cancels the run context and waits for an in-flight entry to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	zap.L().Info("scheduler stopped")
}

// NextRun reports when the daily entry fires next.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
