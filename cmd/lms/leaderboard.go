package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/learnpath/learnpath-lms/internal/infrastructure/persistence/postgres"
	"github.com/learnpath/learnpath-lms/internal/infrastructure/persistence/redis"
	"github.com/learnpath/learnpath-lms/internal/infrastructure/scheduler/jobs"
)

func newLeaderboardCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Leaderboard maintenance",
	}

	var concurrency int
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild every cached leaderboard from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Redis.Disabled {
				return errors.New("redis is disabled; there is no cache to rebuild")
			}

			db, err := openDatabase(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			cache, err := openCache(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer cache.Close()

			job := jobs.NewRebuildLeaderboardJob(
				postgres.NewLeaderboardRepository(db),
				redis.NewLeaderboardCache(cache),
				c.log,
				jobs.RebuildLeaderboardConfig{Concurrency: concurrency},
			)
			runErr := job.Run(cmd.Context())

			if stats := job.LastStats(); stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d scopes (%d entries, %d failed) in %s\n",
					stats.Scopes-stats.Failed, stats.Entries, stats.Failed, stats.Duration.Round(time.Millisecond))
			}
			return runErr
		},
	}
	rebuild.Flags().IntVar(&concurrency, "concurrency", jobs.DefaultRebuildLeaderboardConfig().Concurrency, "boards rebuilt in parallel")

	cmd.AddCommand(rebuild)
	return cmd
}
