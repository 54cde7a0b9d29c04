// Package jobs contains the scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/learnpath/learnpath-lms/internal/domain/leaderboard"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Copies every board from the store into the cache. Increments are applied
// to the cache only while a board is cached, so a periodic rebuild repairs
// drift left by expired keys or failed cache writes.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardConfig configures the job.
type RebuildLeaderboardConfig struct {
	// Concurrency bounds boards rebuilt in parallel.
	Concurrency int

	// Timeout bounds one whole run.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		Concurrency: 4,
		Timeout:     5 * time.Minute,
	}
}

// RebuildStats describes the last run.
type RebuildStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Scopes    int
	Entries   int
	Failed    int
}

// RebuildLeaderboardJob rebuilds cached leaderboards from the store.
type RebuildLeaderboardJob struct {
	store  leaderboard.Store
	cache  leaderboard.Cache
	log    *logger.Logger
	config RebuildLeaderboardConfig

	last atomic.Pointer[RebuildStats]
}

// NewRebuildLeaderboardJob creates the job.
func NewRebuildLeaderboardJob(store leaderboard.Store, cache leaderboard.Cache, log *logger.Logger, config RebuildLeaderboardConfig) *RebuildLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultRebuildLeaderboardConfig().Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRebuildLeaderboardConfig().Timeout
	}
	return &RebuildLeaderboardJob{
		store:  store,
		cache:  cache,
		log:    log.With(logger.Component("rebuild_leaderboard")),
		config: config,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string { return "rebuild_leaderboard" }

// Run rebuilds every scope. A failed scope does not stop the others; the
// joined errors are returned.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &RebuildStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.last.Store(stats)
	}()

	scopes, err := j.store.Scopes(ctx)
	if err != nil {
		return fmt.Errorf("rebuild_leaderboard: list scopes: %w", err)
	}
	stats.Scopes = len(scopes)

	var (
		entries atomic.Int64
		failed  atomic.Int64
		errs    = make([]error, len(scopes))
		g       errgroup.Group
	)
	g.SetLimit(j.config.Concurrency)

	for i, scope := range scopes {
		g.Go(func() error {
			n, err := j.rebuild(ctx, scope)
			if err != nil {
				failed.Add(1)
				errs[i] = fmt.Errorf("%s: %w", scope.Key(), err)
				return nil
			}
			entries.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	stats.Entries = int(entries.Load())
	stats.Failed = int(failed.Load())

	j.log.Info("leaderboards rebuilt",
		logger.Int("scopes", stats.Scopes),
		logger.Int("entries", stats.Entries),
		logger.Int("failed", stats.Failed),
		logger.Latency(time.Since(stats.StartedAt)),
	)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("rebuild_leaderboard: %w", err)
	}
	return nil
}

func (j *RebuildLeaderboardJob) rebuild(ctx context.Context, scope leaderboard.Scope) (int, error) {
	all, err := j.store.All(ctx, scope)
	if err != nil {
		return 0, err
	}
	if err := j.cache.Replace(ctx, scope, all); err != nil {
		return 0, err
	}
	return len(all), nil
}

// LastStats returns the stats of the most recent run, nil before the first.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.last.Load()
}
