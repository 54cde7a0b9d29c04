package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT COMMANDS
// StartAssessment opens an attempt; SubmitAssessment scores and closes it.
// ══════════════════════════════════════════════════════════════════════════════

// StartAssessmentCommand opens a new attempt.
type StartAssessmentCommand struct {
	AssessmentID string
	UserID       string
	StartedAt    time.Time
}

// Validate validates the command.
func (c StartAssessmentCommand) Validate() error {
	if c.AssessmentID == "" {
		return errors.New("start_assessment: assessment_id is required")
	}
	if c.UserID == "" {
		return errors.New("start_assessment: user_id is required")
	}
	return nil
}

// SubmitAssessmentCommand submits a score for an open attempt.
type SubmitAssessmentCommand struct {
	AttemptID   string
	UserID      string
	Score       float64
	SubmittedAt time.Time
}

// Validate validates the command.
func (c SubmitAssessmentCommand) Validate() error {
	if c.AttemptID == "" {
		return errors.New("submit_assessment: attempt_id is required")
	}
	return nil
}

// SubmitAssessmentResult is the outcome of SubmitAssessmentCommand.
type SubmitAssessmentResult struct {
	AttemptID   string
	Score       float64
	IsPassed    bool
	CompletedAt time.Time
}

// AssessmentHandler handles both assessment commands.
type AssessmentHandler struct {
	repo learning.Repository
	uows *changeset.UnitOfWorkFactory
	log  *logger.Logger
}

// NewAssessmentHandler creates the handler.
func NewAssessmentHandler(repo learning.Repository, uows *changeset.UnitOfWorkFactory, log *logger.Logger) *AssessmentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AssessmentHandler{repo: repo, uows: uows, log: log.With(logger.Component("assessment"))}
}

// Start opens an attempt and returns it.
func (h *AssessmentHandler) Start(ctx context.Context, cmd StartAssessmentCommand) (*learning.AssessmentAttempt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("learning", "StartAssessment", shared.ErrInvalidInput, "validation failed", err)
	}
	asm, err := h.repo.GetAssessment(ctx, cmd.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("start_assessment: failed to load assessment: %w", err)
	}

	attempt := &learning.AssessmentAttempt{
		ID:           uuid.NewString(),
		AssessmentID: asm.ID,
		UserID:       cmd.UserID,
		StartedAt:    completionTime(cmd.StartedAt),
		Assessment:   asm,
	}

	uow := h.uows.Begin()
	uow.Add(attempt)
	if _, err := uow.Save(ctx); err != nil {
		return nil, fmt.Errorf("start_assessment: failed to save: %w", err)
	}
	return attempt, nil
}

// Submit scores an attempt.
func (h *AssessmentHandler) Submit(ctx context.Context, cmd SubmitAssessmentCommand) (*SubmitAssessmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("learning", "SubmitAssessment", shared.ErrInvalidInput, "validation failed", err)
	}
	at := completionTime(cmd.SubmittedAt)

	attempt, err := h.repo.GetAttempt(ctx, cmd.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("submit_assessment: failed to load attempt: %w", err)
	}
	if err := checkOwner(cmd.UserID, attempt.UserID); err != nil {
		return nil, err
	}

	uow := h.uows.Begin()
	uow.Track(attempt)
	if err := attempt.Submit(cmd.Score, at); err != nil {
		return nil, err
	}
	if _, err := uow.Save(ctx); err != nil {
		return nil, fmt.Errorf("submit_assessment: failed to save: %w", err)
	}

	h.log.Info("assessment submitted",
		logger.UserID(attempt.UserID),
		logger.String("attempt_id", attempt.ID),
		logger.Float64("score", attempt.Score),
		logger.Bool("passed", attempt.IsPassed),
	)
	return &SubmitAssessmentResult{
		AttemptID:   attempt.ID,
		Score:       attempt.Score,
		IsPassed:    attempt.IsPassed,
		CompletedAt: at,
	}, nil
}
