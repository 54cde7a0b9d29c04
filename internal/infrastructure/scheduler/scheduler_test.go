package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

type panickingJob struct{}

func (panickingJob) Name() string              { return "panics" }
func (panickingJob) Run(context.Context) error { panic("boom") }

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(Config{Tick: 10 * time.Millisecond})
	job := &countingJob{name: "count"}
	require.NoError(t, s.Register(job, Every(time.Hour), true))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	// Next run is an hour away.
	assert.Equal(t, int32(1), job.runs.Load())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_Register(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.Register(&countingJob{name: "a"}, Every(time.Minute), false))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, Every(time.Minute), false), ErrJobAlreadyRegistered)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(Config{})
	failing := &countingJob{name: "fails", err: errors.New("nope")}
	require.NoError(t, s.Register(failing, Every(time.Hour), false))
	require.NoError(t, s.Register(panickingJob{}, Every(time.Hour), false))

	res, err := s.RunNow(context.Background(), "fails")
	require.NoError(t, err)
	assert.False(t, res.Success())

	res, err = s.RunNow(context.Background(), "panics")
	require.NoError(t, err)
	assert.ErrorContains(t, res.Error, "panicked")

	runs, failures, ok := s.Stats("fails")
	require.True(t, ok)
	assert.Equal(t, int64(1), runs)
	assert.Equal(t, int64(1), failures)

	last, ok := s.LastRun("fails")
	require.True(t, ok)
	assert.Equal(t, "fails", last.JobName)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestIntervalSchedule(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched := Every(10 * time.Minute)
	assert.Equal(t, at.Add(10*time.Minute), sched.Next(at))
	assert.Equal(t, "@every 10m0s", sched.String())
}
