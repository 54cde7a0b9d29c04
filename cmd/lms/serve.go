package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/learnpath/learnpath-lms/internal/infrastructure/persistence/postgres"
	"github.com/learnpath/learnpath-lms/internal/infrastructure/scheduler"
	httpapi "github.com/learnpath/learnpath-lms/internal/interface/http"
	"github.com/learnpath/learnpath-lms/internal/interface/http/handlers"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

type serveOptions struct {
	migrate         bool
	rebuildInterval time.Duration
}

func newServeCommand(c *cli) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  lms serve
  lms serve --migrate --rebuild-interval 5m`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().DurationVar(&opts.rebuildInterval, "rebuild-interval", 10*time.Minute, "how often cached leaderboards are rebuilt from the database (0 disables)")
	return cmd
}

func (c *cli) serve(ctx context.Context, opts serveOptions) error {
	c.log.Info("starting LearnPath LMS",
		logger.String("version", c.cfg.App.Version),
		logger.Bool("redis", !c.cfg.Redis.Disabled),
	)

	app, err := newContainer(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer app.Close()

	if opts.migrate {
		n, err := postgres.NewMigrator(app.db).Migrate(ctx)
		if err != nil {
			return err
		}
		c.log.Info("migrations applied", logger.Int("count", n))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Background jobs
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{Logger: c.log})
	if app.rebuild != nil && opts.rebuildInterval > 0 {
		if err := sched.Register(app.rebuild, scheduler.Every(opts.rebuildInterval), true); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = sched.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Addr:           c.cfg.HTTP.Addr,
		ReadTimeout:    c.cfg.HTTP.ReadTimeout,
		WriteTimeout:   c.cfg.HTTP.WriteTimeout,
		IdleTimeout:    httpapi.DefaultConfig().IdleTimeout,
		RequestTimeout: c.cfg.HTTP.RequestTimeout,
		AllowedOrigins: c.cfg.HTTP.AllowedOrigins,
		RateLimit: handlers.RateLimitConfig{
			RequestsPerMinute: c.cfg.HTTP.RateLimitPerMinute,
			Burst:             c.cfg.HTTP.RateLimitBurst,
		},
		Debug:          c.cfg.App.Debug,
	}, app.api)

	errCh := server.StartAsync()
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		c.log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		c.log.Error("http shutdown failed", logger.Err(err))
	}

	m := app.bus.Metrics()
	c.log.Info("stopped",
		logger.Int64("events_published", m.Published),
		logger.Int64("events_failed", m.Failed),
		logger.Int64("events_dropped", m.Dropped),
		logger.Int("dead_letters", app.deadLetters.Len()),
	)
	return nil
}
