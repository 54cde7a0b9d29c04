package main

import (
	"github.com/spf13/cobra"

	"github.com/learnpath/learnpath-lms/config"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// cli holds state shared by every subcommand once the root has run.
type cli struct {
	cfg *config.Config
	log *logger.Logger

	logLevel string
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "lms",
		Short: "LearnPath LMS server and maintenance commands",
		Long: `LearnPath LMS serves learner progress commands over HTTP and awards
achievements and leaderboard points after each committed progress change.`,
		PersistentPreRunE: c.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCommand(c),
		newMigrateCommand(c),
		newLeaderboardCommand(c),
	)
	return root
}

func (c *cli) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Observability.LogLevel = c.logLevel
	}

	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat

	c.cfg = cfg
	c.log = logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
	return nil
}
