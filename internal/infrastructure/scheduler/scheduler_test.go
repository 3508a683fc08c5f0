package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/pkg/logger"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
	ran  chan struct{}
}

func newCountingJob(name string) *countingJob {
	return &countingJob{name: name, ran: make(chan struct{}, 16)}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	j.ran <- struct{}{}
	return j.err
}

func newTestScheduler(runOnStart bool) *Scheduler {
	return New(Config{Tick: 10 * time.Millisecond, RunOnStart: runOnStart, Logger: logger.Discard()})
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(false)

	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(newCountingJob("a"), Every(0)), ErrInvalidSchedule)
	require.NoError(t, s.Register(newCountingJob("a"), Every(time.Minute)))
	assert.ErrorIs(t, s.Register(newCountingJob("a"), Every(time.Minute)), ErrJobAlreadyExists)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@every 1m0s", jobs[0].Schedule)
	assert.Nil(t, jobs[0].LastRun)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(false)
	job := newCountingJob("warm")
	job.err = errors.New("boom")
	require.NoError(t, s.Register(job, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "warm")
	assert.EqualError(t, err, "boom")
	assert.True(t, result.Manual)
	assert.False(t, result.Success())

	info := s.Jobs()[0]
	assert.EqualValues(t, 1, info.Runs)
	assert.EqualValues(t, 1, info.Failures)
	assert.Equal(t, "boom", info.LastError)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStartRunsOnStartAndStops(t *testing.T) {
	s := newTestScheduler(true)
	job := newCountingJob("warm")
	require.NoError(t, s.Register(job, Every(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	select {
	case <-job.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.EqualValues(t, 1, job.runs.Load())
}
