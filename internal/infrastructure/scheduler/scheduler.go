// Package scheduler runs periodic background jobs such as leaderboard cache
// rebuilds.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// Errors.
var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
	ErrSchedulerNotRunning     = errors.New("scheduler: not running")
	ErrJobAlreadyRegistered    = errors.New("scheduler: job already registered")
	ErrJobNotFound             = errors.New("scheduler: job not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// Schedule defines when a job should run.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every returns an IntervalSchedule.
func Every(interval time.Duration) IntervalSchedule {
	return IntervalSchedule{Interval: interval}
}

func (s IntervalSchedule) Next(t time.Time) time.Time { return t.Add(s.Interval) }

func (s IntervalSchedule) String() string { return "@every " + s.Interval.String() }

// JobResult is the outcome of one execution.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Error     error
}

// Success reports whether the run finished without error.
func (r JobResult) Success() bool { return r.Error == nil }

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler runs registered jobs on their schedules. A job never overlaps
// with itself.
type Scheduler struct {
	mu   sync.Mutex
	log  *logger.Logger
	tick time.Duration
	now  func() time.Time

	jobs    map[string]*scheduledJob
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	lastRuns map[string]JobResult
}

type scheduledJob struct {
	job      Job
	schedule Schedule
	nextRun  time.Time
	busy     bool
	runs     int64
	failures int64
}

// Config configures a Scheduler.
type Config struct {
	Logger *logger.Logger

	// Tick is how often due jobs are checked. Defaults to one second.
	Tick time.Duration
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	return &Scheduler{
		log:      cfg.Logger.With(logger.Component("scheduler")),
		tick:     cfg.Tick,
		now:      time.Now,
		jobs:     make(map[string]*scheduledJob),
		lastRuns: make(map[string]JobResult),
	}
}

// Register adds a job. With runNow the first run is due immediately.
func (s *Scheduler) Register(job Job, schedule Schedule, runNow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, job.Name())
	}
	next := schedule.Next(s.now())
	if runNow {
		next = s.now()
	}
	s.jobs[job.Name()] = &scheduledJob{job: job, schedule: schedule, nextRun: next}

	s.log.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("schedule", schedule.String()),
	)
	return nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.runDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*scheduledJob
	for _, sj := range s.jobs {
		if !sj.busy && !now.Before(sj.nextRun) {
			sj.busy = true
			sj.nextRun = sj.schedule.Next(now)
			due = append(due, sj)
		}
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj)
		}(sj)
	}
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) JobResult {
	name := sj.job.Name()
	start := time.Now()

	err := safeRun(ctx, sj.job)
	result := JobResult{JobName: name, StartedAt: start, Duration: time.Since(start), Error: err}

	s.mu.Lock()
	sj.busy = false
	sj.runs++
	if err != nil {
		sj.failures++
	}
	s.lastRuns[name] = result
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed", logger.String("job", name), logger.Latency(result.Duration), logger.Err(err))
	} else {
		s.log.Debug("job completed", logger.String("job", name), logger.Latency(result.Duration))
	}
	return result
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	if ok && sj.busy {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("scheduler: job %s is running", name)
	}
	if ok {
		sj.busy = true
	}
	s.mu.Unlock()

	if !ok {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, sj), nil
}

// LastRun returns the latest result of a job.
func (s *Scheduler) LastRun(name string) (JobResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lastRuns[name]
	return r, ok
}

// Stats returns run and failure counts of a job.
func (s *Scheduler) Stats(name string) (runs, failures int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj, ok := s.jobs[name]
	if !ok {
		return 0, 0, false
	}
	return sj.runs, sj.failures, true
}
