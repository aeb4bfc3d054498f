package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/infrastructure/scheduler/jobs"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestScheduler_RegisterAndRunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "a", err: errors.New("boom")}

	require.NoError(t, s.Register(job, Every(time.Hour)))
	assert.ErrorIs(t, s.Register(job, Every(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Hour)), ErrNilJob)

	result, err := s.RunNow(context.Background(), "a")
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Manual)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "@every 1h0m0s", infos[0].Schedule)
	assert.Equal(t, int64(1), infos[0].FailCount)
	assert.Len(t, s.History(0), 1)
}

func TestScheduler_RunsDueJobsWithoutOverlap(t *testing.T) {
	var failures atomic.Int32
	s := NewScheduler(SchedulerConfig{
		Tick:         5 * time.Millisecond,
		OnJobFailure: func(JobResult) { failures.Add(1) },
	})
	slow := &countingJob{name: "slow", block: make(chan struct{})}
	fast := &countingJob{name: "fast", err: errors.New("fail")}

	require.NoError(t, s.Register(slow, Every(time.Millisecond)))
	require.NoError(t, s.Register(fast, Every(time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return fast.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), slow.runs.Load())

	close(slow.block)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.GreaterOrEqual(t, failures.Load(), int32(3))
}

type fakeRedeliverer struct {
	delivered, failed int
	limits            []int
}

func (f *fakeRedeliverer) Redeliver(limit int) (int, int) {
	f.limits = append(f.limits, limit)
	return f.delivered, f.failed
}

func TestRedeliverDeadLettersJob(t *testing.T) {
	target := &fakeRedeliverer{}
	s := NewScheduler(SchedulerConfig{})
	job := jobs.NewRedeliverDeadLettersJob(target, 50, nil)
	require.NoError(t, s.Register(job, Every(time.Minute)))

	_, err := s.RunNow(context.Background(), "redeliver_dead_letters")
	require.NoError(t, err)

	target.delivered, target.failed = 2, 1
	_, err = s.RunNow(context.Background(), "redeliver_dead_letters")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 deliveries failed again")
	assert.Equal(t, []int{50, 50}, target.limits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
}
