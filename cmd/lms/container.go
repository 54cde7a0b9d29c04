package main

import (
	"context"
	"fmt"
	"time"

	"github.com/learnpath/learnpath-lms/config"
	"github.com/learnpath/learnpath-lms/internal/application/command"
	"github.com/learnpath/learnpath-lms/internal/application/eventhandler"
	appgamification "github.com/learnpath/learnpath-lms/internal/application/gamification"
	"github.com/learnpath/learnpath-lms/internal/application/query"
	"github.com/learnpath/learnpath-lms/internal/application/saga"
	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/internal/domain/leaderboard"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/internal/infrastructure/messaging"
	"github.com/learnpath/learnpath-lms/internal/infrastructure/persistence/postgres"
	"github.com/learnpath/learnpath-lms/internal/infrastructure/persistence/redis"
	"github.com/learnpath/learnpath-lms/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/learnpath/learnpath-lms/internal/interface/http"
	"github.com/learnpath/learnpath-lms/internal/interface/http/handlers"
	"github.com/learnpath/learnpath-lms/pkg/logger"
	"github.com/learnpath/learnpath-lms/pkg/retry"
)

// container owns every long-lived dependency of the process.
type container struct {
	cfg *config.Config
	log *logger.Logger

	db    *postgres.Connection
	cache *redis.Cache // nil when Redis is disabled
	bus   *messaging.InMemoryEventBus

	deadLetters *messaging.DeadLetterQueue
	reactions   *appgamification.Factory // nil when gamification is off

	leaderboardStore leaderboard.Store
	leaderboardCache leaderboard.Cache // nil when not cached

	api     httpapi.Dependencies
	rebuild *jobs.RebuildLeaderboardJob // nil without a cache
}

func openDatabase(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database is not configured: set DATABASE_URL or DB_HOST and DB_USER")
	}
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	db, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func openCache(ctx context.Context, cfg *config.Config) (*redis.Cache, error) {
	rc := cfg.Redis
	cache, err := redis.NewCache(ctx, redis.Config{
		URL:          rc.URL,
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   3,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		KeyPrefix:    rc.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return cache, nil
}

// newContainer wires the application. The caller must Close it.
func newContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*container, error) {
	c := &container{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. Storage
	// ─────────────────────────────────────────────────────────────────────────
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.db = db

	learningRepo := postgres.NewLearningRepository(db)
	achievementRepo := postgres.NewAchievementRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	c.leaderboardStore = postgres.NewLeaderboardRepository(db)

	var definitions gamification.AchievementRepository = achievementRepo

	if !cfg.Redis.Disabled {
		cache, err := openCache(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.cache = cache
		definitions = redis.NewCachedAchievementRepository(achievementRepo, cache, log)
		if cfg.Features.IsEnabled(config.FeatureLeaderboardCache) {
			lbCache := redis.NewLeaderboardCache(cache)
			c.leaderboardCache = lbCache
			c.rebuild = jobs.NewRebuildLeaderboardJob(c.leaderboardStore, lbCache, log, jobs.DefaultRebuildLeaderboardConfig())
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Events
	// ─────────────────────────────────────────────────────────────────────────
	c.bus = messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: cfg.Gamification.EventBusWorkers,
		Logger:         log,
	})

	onEarned := eventhandler.NewOnAchievementEarnedHandler(notificationRepo, log, eventhandler.AchievementEarnedConfig{
		Enabled: func(userID string) bool {
			return cfg.Features.IsEnabledFor(config.FeatureNotifyAchievement, userID)
		},
	})
	c.deadLetters = messaging.NewDeadLetterQueue(0)
	notify := messaging.Chain(onEarned.Handle,
		messaging.DeadLetter(c.deadLetters, "notify.achievement"),
		messaging.Retry(append(retry.StoreWrite(), retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying achievement notification", logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
		}))...),
		messaging.Timeout(cfg.Gamification.EventTimeout),
	)
	if err := c.bus.Subscribe(shared.EventAchievementEarned, notify); err != nil {
		return nil, fmt.Errorf("subscribe achievement notifications: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Gamification pipeline
	// ─────────────────────────────────────────────────────────────────────────
	awarder := saga.NewAchievementFlowSaga(definitions, achievementRepo, achievementRepo, c.bus, log, saga.AchievementFlowConfig{
		MaxAchievementsPerRun: cfg.Gamification.MaxAchievementsPerRun,
		EnableEvents:          true,
	})
	updater := command.NewUpdateLeaderboardHandler(c.leaderboardStore, c.leaderboardCache, c.bus, log)

	var interceptors []func() changeset.Interceptor
	if cfg.Features.IsEnabled(config.FeatureGamification) {
		c.reactions = appgamification.NewFactory(gamification.NewEvaluator(awarder, updater), log, appgamification.Config{
			EventTimeout: cfg.Gamification.EventTimeout,
			Capture: appgamification.CapturePolicy{
				AwardOnCompletedInsert: cfg.Gamification.AwardOnCompletedInsert,
			},
			MaxInFlight: cfg.Gamification.ReactorWorkers,
		})
		interceptors = append(interceptors, c.reactions.New)
	} else {
		log.Warn("gamification disabled by feature flag")
	}
	uows := changeset.NewUnitOfWorkFactory(postgres.NewStore(db), interceptors...)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. API
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.PingCheck(db))
	if c.cache != nil {
		health.AddCheck("cache", handlers.PingCheck(c.cache))
	}

	c.api = httpapi.Dependencies{
		CompleteLesson:     command.NewCompleteLessonHandler(learningRepo, uows, log),
		CompleteModule:     command.NewCompleteModuleHandler(learningRepo, uows, log),
		CompleteEnrollment: command.NewCompleteEnrollmentHandler(learningRepo, uows, log),
		RecordLessonTime:   command.NewRecordLessonTimeHandler(learningRepo, uows, log),
		Assessments:        command.NewAssessmentHandler(learningRepo, uows, log),
		Leaderboard:        query.NewGetLeaderboardHandler(c.leaderboardStore, c.leaderboardCache, log),
		UserAchievements:   query.NewGetUserAchievementsHandler(achievementRepo, definitions),
		Notifications:      notificationRepo,
		Health:             health,
		Logger:             log,
	}

	ok = true
	return c, nil
}

// Close releases resources in reverse order of creation. Pending
// gamification reactions finish first since they use all of them.
func (c *container) Close() {
	if c.reactions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.App.ShutdownTimeout)
		if err := c.reactions.Wait(ctx); err != nil {
			c.log.Warn("gamification reactions still running at shutdown", logger.Err(err))
		}
		cancel()
	}
	if c.bus != nil {
		if err := c.bus.Close(); err != nil {
			c.log.Warn("event bus close failed", logger.Err(err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			c.log.Warn("redis close failed", logger.Err(err))
		}
	}
	if c.db != nil {
		c.db.Close()
	}
}
