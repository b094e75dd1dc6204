package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingRunner) Run(context.Context) *model.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return &model.RunResult{Success: true, Message: "run completed"}
}

func (r *recordingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestNew_RejectsBadHour(t *testing.T) {
	_, err := New(&recordingRunner{}, 24)
	require.Error(t, err)

	_, err = New(&recordingRunner{}, -1)
	require.Error(t, err)
}

func TestNextRun_FallsOnConfiguredHour(t *testing.T) {
	s, err := New(&recordingRunner{}, 8)
	require.NoError(t, err)
	defer s.Stop()
	s.Start()

	next := s.NextRun()
	require.False(t, next.IsZero())
	assert.Equal(t, 8, next.In(time.UTC).Hour())
	assert.Equal(t, 0, next.In(time.UTC).Minute())
	assert.True(t, next.After(time.Now().UTC()))
}

func TestFire_InvokesRunner(t *testing.T) {
	runner := &recordingRunner{}
	s, err := New(runner, 8)
	require.NoError(t, err)
	defer s.Stop()

	s.fire()
	assert.Equal(t, 1, runner.callCount())
}

func TestStop_IsIdempotentWithoutStart(t *testing.T) {
	s, err := New(&recordingRunner{}, 0)
	require.NoError(t, err)
	s.Stop()
}
