// Package http exposes the LMS progress commands and gamification reads as a
// JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/learnpath/learnpath-lms/internal/application/command"
	"github.com/learnpath/learnpath-lms/internal/application/query"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
	"github.com/learnpath/learnpath-lms/internal/domain/notification"
	"github.com/learnpath/learnpath-lms/internal/interface/http/handlers"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the context handed to commands and queries.
	RequestTimeout time.Duration

	MaxBodyBytes   int64
	AllowedOrigins []string

	// RateLimit applies per caller to /api/v1 routes.
	RateLimit handlers.RateLimitConfig

	// Debug switches gin out of release mode.
	Debug bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 10 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
		RateLimit:      handlers.DefaultRateLimitConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// LessonCompleter completes lesson progress.
type LessonCompleter interface {
	Handle(ctx context.Context, cmd command.CompleteLessonCommand) (*command.CompleteLessonResult, error)
}

// ModuleCompleter completes module progress.
type ModuleCompleter interface {
	Handle(ctx context.Context, cmd command.CompleteModuleCommand) (*command.CompleteModuleResult, error)
}

// EnrollmentCompleter completes an enrollment.
type EnrollmentCompleter interface {
	Handle(ctx context.Context, cmd command.CompleteEnrollmentCommand) (*learning.Enrollment, error)
}

// LessonTimeRecorder adds time spent on a lesson.
type LessonTimeRecorder interface {
	Handle(ctx context.Context, cmd command.RecordLessonTimeCommand) (int, error)
}

// AssessmentRunner starts and submits assessment attempts.
type AssessmentRunner interface {
	Start(ctx context.Context, cmd command.StartAssessmentCommand) (*learning.AssessmentAttempt, error)
	Submit(ctx context.Context, cmd command.SubmitAssessmentCommand) (*command.SubmitAssessmentResult, error)
}

// LeaderboardReader serves leaderboard pages.
type LeaderboardReader interface {
	Handle(ctx context.Context, q query.GetLeaderboardQuery) (*query.GetLeaderboardResult, error)
}

// AchievementsReader serves a user's earned achievements.
type AchievementsReader interface {
	Handle(ctx context.Context, q query.GetUserAchievementsQuery) (*query.GetUserAchievementsResult, error)
}

// Dependencies contains everything the routes call into. Nil entries leave
// their routes unregistered.
type Dependencies struct {
	CompleteLesson     LessonCompleter
	CompleteModule     ModuleCompleter
	CompleteEnrollment EnrollmentCompleter
	RecordLessonTime   LessonTimeRecorder
	Assessments        AssessmentRunner

	Leaderboard      LeaderboardReader
	UserAchievements AchievementsReader
	Notifications    notification.Repository

	Health *handlers.CompositeHealthChecker
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP API server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger
	now        func() time.Time

	mu      sync.Mutex
	running bool
}

// NewServer builds the router and the underlying http.Server.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Health == nil {
		deps.Health = handlers.NewCompositeHealthChecker("")
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger.With(logger.Component("http")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.engine = s.newEngine()
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) newEngine() *gin.Engine {
	r := gin.New()
	r.Use(
		otelgin.Middleware("learnpath-lms"),
		handlers.RequestID(),
		handlers.Logging(s.logger),
		handlers.Recovery(s.logger),
		s.cors(),
		handlers.SecurityHeaders(),
		handlers.BodyLimit(s.config.MaxBodyBytes),
		handlers.Timeout(s.config.RequestTimeout),
	)

	r.GET("/health", s.handleHealth)
	r.GET("/live", s.handleLive)

	v1 := r.Group("/api/v1", handlers.RateLimit(handlers.NewRateLimiter(s.config.RateLimit)))

	// ─────────────────────────────────────────────────────────────────────────
	// Progress commands
	// ─────────────────────────────────────────────────────────────────────────
	if s.deps.CompleteLesson != nil {
		v1.POST("/lesson-progress/:id/complete", s.handleCompleteLesson)
	}
	if s.deps.RecordLessonTime != nil {
		v1.POST("/lesson-progress/:id/time", s.handleRecordLessonTime)
	}
	if s.deps.CompleteModule != nil {
		v1.POST("/module-progress/:id/complete", s.handleCompleteModule)
	}
	if s.deps.CompleteEnrollment != nil {
		v1.POST("/enrollments/:id/complete", s.handleCompleteEnrollment)
	}
	if s.deps.Assessments != nil {
		v1.POST("/assessments/:id/attempts", s.handleStartAttempt)
		v1.POST("/attempts/:id/submit", s.handleSubmitAttempt)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Reads
	// ─────────────────────────────────────────────────────────────────────────
	if s.deps.Leaderboard != nil {
		v1.GET("/leaderboard", s.handleGetLeaderboard)
		v1.GET("/courses/:id/leaderboard", s.handleGetCourseLeaderboard)
	}
	if s.deps.UserAchievements != nil {
		v1.GET("/users/:id/achievements", s.handleGetUserAchievements)
	}
	if s.deps.Notifications != nil {
		v1.GET("/users/:id/notifications", s.handleListNotifications)
		v1.POST("/users/:id/notifications/:nid/read", s.handleMarkNotificationRead)
	}

	return r
}

func (s *Server) cors() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Content-Type", "Authorization", handlers.HeaderRequestID, handlers.HeaderUserID}
	cfg.ExposeHeaders = []string{handlers.HeaderRequestID}
	cfg.MaxAge = 24 * time.Hour

	origins := s.config.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine. The channel receives at most
// one error and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
