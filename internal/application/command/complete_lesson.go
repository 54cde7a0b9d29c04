package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// Marks a lesson as completed and rolls completion up to the module and the
// course when this was the last open lesson. Everything is saved in one unit
// of work, so one call may yield up to three completion events.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand completes one lesson progress record.
type CompleteLessonCommand struct {
	LessonProgressID string

	// UserID, when set, must own the record.
	UserID string

	// CompletedAt defaults to now.
	CompletedAt time.Time
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if c.LessonProgressID == "" {
		return errors.New("complete_lesson: lesson_progress_id is required")
	}
	return nil
}

// CompleteLessonResult is the outcome of CompleteLessonCommand.
type CompleteLessonResult struct {
	LessonProgressID string
	ModuleCompleted  bool
	CourseCompleted  bool
	CompletedAt      time.Time
}

// CompleteLessonHandler handles CompleteLessonCommand.
type CompleteLessonHandler struct {
	repo learning.Repository
	uows *changeset.UnitOfWorkFactory
	log  *logger.Logger
}

// NewCompleteLessonHandler creates the handler.
func NewCompleteLessonHandler(repo learning.Repository, uows *changeset.UnitOfWorkFactory, log *logger.Logger) *CompleteLessonHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CompleteLessonHandler{repo: repo, uows: uows, log: log.With(logger.Component("complete_lesson"))}
}

// Handle executes the command.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("learning", "CompleteLesson", shared.ErrInvalidInput, "validation failed", err)
	}
	at := completionTime(cmd.CompletedAt)

	lp, err := h.repo.GetLessonProgress(ctx, cmd.LessonProgressID)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: failed to load lesson progress: %w", err)
	}
	if enr, ok := lp.OwnerEnrollment(); ok {
		if err := checkOwner(cmd.UserID, enr.UserID); err != nil {
			return nil, err
		}
	}

	uow := h.uows.Begin()
	uow.Track(lp)
	if err := lp.Complete(at); err != nil {
		return nil, err
	}

	r := &rollup{repo: h.repo, uow: uow, at: at}
	if err := r.afterLesson(ctx, lp); err != nil {
		return nil, fmt.Errorf("complete_lesson: %w", err)
	}

	if _, err := uow.Save(ctx); err != nil {
		return nil, fmt.Errorf("complete_lesson: failed to save: %w", err)
	}

	h.log.Info("lesson completed",
		logger.String("lesson_progress_id", lp.ID),
		logger.Bool("module_completed", r.moduleCompleted),
		logger.Bool("course_completed", r.courseCompleted),
	)

	return &CompleteLessonResult{
		LessonProgressID: lp.ID,
		ModuleCompleted:  r.moduleCompleted,
		CourseCompleted:  r.courseCompleted,
		CompletedAt:      at,
	}, nil
}

func completionTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// checkOwner rejects a caller acting on someone else's record.
func checkOwner(caller, owner string) error {
	if caller == "" || caller == owner {
		return nil
	}
	return shared.NewDomainError("learning", "CheckOwner", shared.ErrInvalidState, "record belongs to another user")
}
