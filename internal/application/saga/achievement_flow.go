// Package saga contains multi-step business processes that orchestrate
// several repositories and publish domain events.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Flow: Load Stats → Load Definitions → Load Earned → Evaluate Criteria →
//
//	Grant (award-once) → Publish Events
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowStep is a step of the achievement flow.
type AchievementFlowStep string

const (
	StepValidate            AchievementFlowStep = "validate"
	StepLoadStats           AchievementFlowStep = "load_stats"
	StepLoadDefinitions     AchievementFlowStep = "load_definitions"
	StepLoadEarned          AchievementFlowStep = "load_earned"
	StepEvaluate            AchievementFlowStep = "evaluate"
	StepGrantAchievements   AchievementFlowStep = "grant_achievements"
	StepPublishAchievEvents AchievementFlowStep = "publish_events"
	StepAchievementComplete AchievementFlowStep = "complete"
)

// AchievementFlowState tracks one run of the saga.
type AchievementFlowState struct {
	CurrentStep  AchievementFlowStep
	Request      gamification.AwardRequest
	GlobalStats  gamification.UserStats
	CourseStats  *gamification.UserStats
	Definitions  []gamification.Achievement
	Earned       gamification.EarnedSet
	Qualified    []gamification.Achievement
	NewlyEarned  []gamification.EarnedAchievement
	TotalPoints  int
	EventsFailed int
	StartedAt    time.Time
	FailedStep   AchievementFlowStep
	Error        error
}

// AchievementFlowConfig configures the saga.
type AchievementFlowConfig struct {
	// MaxAchievementsPerRun caps awards per run. Zero means no cap.
	// Capped achievements are picked up by the next evaluation.
	MaxAchievementsPerRun int
	EnableEvents          bool
}

// DefaultAchievementFlowConfig returns default configuration.
func DefaultAchievementFlowConfig() AchievementFlowConfig {
	return AchievementFlowConfig{
		MaxAchievementsPerRun: 10,
		EnableEvents:          true,
	}
}

// AchievementFlowSaga evaluates and grants achievements. It implements
// gamification.AchievementAwarder.
type AchievementFlowSaga struct {
	achievementRepo gamification.AchievementRepository
	earnedRepo      gamification.EarnedRepository
	statsRepo       gamification.StatsRepository
	eventBus        shared.EventPublisher
	log             *logger.Logger
	tracer          trace.Tracer
	now             func() time.Time

	maxAchievementsPerRun int
	enableEvents          bool
}

var _ gamification.AchievementAwarder = (*AchievementFlowSaga)(nil)

// NewAchievementFlowSaga creates the saga.
func NewAchievementFlowSaga(
	achievementRepo gamification.AchievementRepository,
	earnedRepo gamification.EarnedRepository,
	statsRepo gamification.StatsRepository,
	eventBus shared.EventPublisher,
	log *logger.Logger,
	config AchievementFlowConfig,
) *AchievementFlowSaga {
	if log == nil {
		log = logger.Nop()
	}
	return &AchievementFlowSaga{
		achievementRepo:       achievementRepo,
		earnedRepo:            earnedRepo,
		statsRepo:             statsRepo,
		eventBus:              eventBus,
		log:                   log.With(logger.Component("achievement_flow")),
		tracer:                otel.Tracer("github.com/learnpath/learnpath-lms/internal/application/saga"),
		now:                   func() time.Time { return time.Now().UTC() },
		maxAchievementsPerRun: config.MaxAchievementsPerRun,
		enableEvents:          config.EnableEvents,
	}
}

// CheckAndAwardAchievements grants every achievement the user now qualifies
// for and has not earned yet.
func (s *AchievementFlowSaga) CheckAndAwardAchievements(ctx context.Context, req gamification.AwardRequest) (gamification.AwardResult, error) {
	ctx, span := s.tracer.Start(ctx, "saga.achievement_flow",
		trace.WithAttributes(attribute.String("user.id", req.UserID), attribute.String("course.id", req.CourseID)))
	defer span.End()

	state, err := s.Execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		return gamification.AwardResult{}, err
	}
	span.SetAttributes(attribute.Int("achievements.earned", len(state.NewlyEarned)))
	return gamification.AwardResult{Earned: state.NewlyEarned, Points: state.TotalPoints}, nil
}

// Execute runs all steps and returns the final state.
func (s *AchievementFlowSaga) Execute(ctx context.Context, req gamification.AwardRequest) (*AchievementFlowState, error) {
	state := &AchievementFlowState{
		CurrentStep: StepValidate,
		Request:     req,
		StartedAt:   s.now(),
	}

	if req.UserID == "" {
		state.FailedStep = StepValidate
		return nil, s.wrapError(state, shared.ErrUserRequired)
	}

	steps := []struct {
		step AchievementFlowStep
		run  func(context.Context, *AchievementFlowState) error
	}{
		{StepLoadStats, s.stepLoadStats},
		{StepLoadDefinitions, s.stepLoadDefinitions},
		{StepLoadEarned, s.stepLoadEarned},
		{StepEvaluate, s.stepEvaluate},
		{StepGrantAchievements, s.stepGrantAchievements},
	}
	for _, st := range steps {
		state.CurrentStep = st.step
		if err := st.run(ctx, state); err != nil {
			state.FailedStep = st.step
			state.Error = err
			return nil, s.wrapError(state, err)
		}
		if st.step == StepEvaluate && len(state.Qualified) == 0 {
			state.CurrentStep = StepAchievementComplete
			return state, nil
		}
	}

	// Events are best effort: awards are already stored.
	state.CurrentStep = StepPublishAchievEvents
	s.stepPublishEvents(state)

	state.CurrentStep = StepAchievementComplete
	s.log.Info("achievements granted",
		logger.UserID(req.UserID),
		logger.CourseID(req.CourseID),
		logger.Int("count", len(state.NewlyEarned)),
		logger.Points(state.TotalPoints),
	)
	return state, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

func (s *AchievementFlowSaga) stepLoadStats(ctx context.Context, state *AchievementFlowState) error {
	global, err := s.statsRepo.GetUserStats(ctx, state.Request.UserID, "")
	if err != nil {
		return fmt.Errorf("failed to load user stats: %w", err)
	}
	state.GlobalStats = global

	if state.Request.CourseID != "" {
		course, err := s.statsRepo.GetUserStats(ctx, state.Request.UserID, state.Request.CourseID)
		if err != nil {
			return fmt.Errorf("failed to load course stats: %w", err)
		}
		state.CourseStats = &course
	}
	return nil
}

func (s *AchievementFlowSaga) stepLoadDefinitions(ctx context.Context, state *AchievementFlowState) error {
	defs, err := s.achievementRepo.ListActive(ctx, state.Request.CourseID)
	if err != nil {
		return fmt.Errorf("failed to load achievement definitions: %w", err)
	}
	state.Definitions = defs
	return nil
}

func (s *AchievementFlowSaga) stepLoadEarned(ctx context.Context, state *AchievementFlowState) error {
	earned, err := s.earnedRepo.ListEarned(ctx, state.Request.UserID)
	if err != nil {
		return fmt.Errorf("failed to load earned achievements: %w", err)
	}
	state.Earned = gamification.NewEarnedSet(earned)
	return nil
}

func (s *AchievementFlowSaga) stepEvaluate(_ context.Context, state *AchievementFlowState) error {
	trigger := state.Request.Trigger()
	for _, def := range state.Definitions {
		if !def.AppliesTo(state.Request.CourseID) || state.Earned.Has(def.ID) {
			continue
		}
		stats := state.GlobalStats
		if !def.IsGlobal() {
			if state.CourseStats == nil {
				continue
			}
			stats = *state.CourseStats
		}
		if def.Criteria.IsSatisfied(stats, trigger) {
			state.Qualified = append(state.Qualified, def)
		}
	}

	if s.maxAchievementsPerRun > 0 && len(state.Qualified) > s.maxAchievementsPerRun {
		state.Qualified = state.Qualified[:s.maxAchievementsPerRun]
	}
	return nil
}

// stepGrantAchievements stores awards. A concurrent run may have granted
// the same achievement in between; Grant reports that and it is skipped.
func (s *AchievementFlowSaga) stepGrantAchievements(ctx context.Context, state *AchievementFlowState) error {
	at := s.now()
	for _, def := range state.Qualified {
		award := gamification.NewEarnedAchievement(state.Request.UserID, def, at)
		granted, err := s.earnedRepo.Grant(ctx, award)
		if err != nil {
			return fmt.Errorf("failed to grant achievement %s: %w", def.ID, err)
		}
		if !granted {
			continue
		}
		state.NewlyEarned = append(state.NewlyEarned, award)
		state.TotalPoints += award.Points
	}
	return nil
}

func (s *AchievementFlowSaga) stepPublishEvents(state *AchievementFlowState) {
	if !s.enableEvents || s.eventBus == nil {
		return
	}
	names := make(map[string]string, len(state.Qualified))
	for _, def := range state.Qualified {
		names[def.ID] = def.Name
	}
	for _, award := range state.NewlyEarned {
		ev := shared.NewAchievementEarnedEvent(award.UserID, award.AchievementID, names[award.AchievementID], award.Points, award.CourseID)
		if err := s.eventBus.Publish(ev); err != nil {
			state.EventsFailed++
			s.log.Warn("failed to publish achievement event",
				logger.UserID(award.UserID),
				logger.String("achievement_id", award.AchievementID),
				logger.Err(err),
			)
		}
	}
}

func (s *AchievementFlowSaga) wrapError(state *AchievementFlowState, err error) error {
	return &AchievementFlowError{
		Step:    state.FailedStep,
		UserID:  state.Request.UserID,
		Cause:   err,
		Message: fmt.Sprintf("achievement flow failed at step '%s': %v", state.FailedStep, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowError is an error of one saga step.
type AchievementFlowError struct {
	Step    AchievementFlowStep
	UserID  string
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *AchievementFlowError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AchievementFlowError) Unwrap() error {
	return e.Cause
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA BUILDER (Fluent API)
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowSagaBuilder provides a fluent API for building AchievementFlowSaga.
type AchievementFlowSagaBuilder struct {
	achievementRepo gamification.AchievementRepository
	earnedRepo      gamification.EarnedRepository
	statsRepo       gamification.StatsRepository
	eventBus        shared.EventPublisher
	log             *logger.Logger
	config          AchievementFlowConfig
}

// NewAchievementFlowSagaBuilder creates a new builder.
func NewAchievementFlowSagaBuilder() *AchievementFlowSagaBuilder {
	return &AchievementFlowSagaBuilder{config: DefaultAchievementFlowConfig()}
}

// WithAchievementRepo sets the definitions repository.
func (b *AchievementFlowSagaBuilder) WithAchievementRepo(repo gamification.AchievementRepository) *AchievementFlowSagaBuilder {
	b.achievementRepo = repo
	return b
}

// WithEarnedRepo sets the awards repository.
func (b *AchievementFlowSagaBuilder) WithEarnedRepo(repo gamification.EarnedRepository) *AchievementFlowSagaBuilder {
	b.earnedRepo = repo
	return b
}

// WithStatsRepo sets the stats repository.
func (b *AchievementFlowSagaBuilder) WithStatsRepo(repo gamification.StatsRepository) *AchievementFlowSagaBuilder {
	b.statsRepo = repo
	return b
}

// WithEventBus sets the event bus.
func (b *AchievementFlowSagaBuilder) WithEventBus(bus shared.EventPublisher) *AchievementFlowSagaBuilder {
	b.eventBus = bus
	return b
}

// WithLogger sets the logger.
func (b *AchievementFlowSagaBuilder) WithLogger(log *logger.Logger) *AchievementFlowSagaBuilder {
	b.log = log
	return b
}

// WithConfig sets the configuration.
func (b *AchievementFlowSagaBuilder) WithConfig(config AchievementFlowConfig) *AchievementFlowSagaBuilder {
	b.config = config
	return b
}

// Build creates the AchievementFlowSaga instance.
func (b *AchievementFlowSagaBuilder) Build() (*AchievementFlowSaga, error) {
	if b.achievementRepo == nil {
		return nil, errors.New("achievement repository is required")
	}
	if b.earnedRepo == nil {
		return nil, errors.New("earned achievement repository is required")
	}
	if b.statsRepo == nil {
		return nil, errors.New("stats repository is required")
	}
	return NewAchievementFlowSaga(b.achievementRepo, b.earnedRepo, b.statsRepo, b.eventBus, b.log, b.config), nil
}
