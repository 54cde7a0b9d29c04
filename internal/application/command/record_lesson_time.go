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

// RecordLessonTimeCommand adds study time to a lesson. It is accepted for
// completed lessons too and never counts as a completion.
type RecordLessonTimeCommand struct {
	LessonProgressID string
	UserID           string
	Seconds          int
	At               time.Time
}

// Validate validates the command.
func (c RecordLessonTimeCommand) Validate() error {
	if c.LessonProgressID == "" {
		return errors.New("record_lesson_time: lesson_progress_id is required")
	}
	if c.Seconds <= 0 {
		return errors.New("record_lesson_time: seconds must be positive")
	}
	return nil
}

// RecordLessonTimeHandler handles RecordLessonTimeCommand.
type RecordLessonTimeHandler struct {
	repo learning.Repository
	uows *changeset.UnitOfWorkFactory
	log  *logger.Logger
}

// NewRecordLessonTimeHandler creates the handler.
func NewRecordLessonTimeHandler(repo learning.Repository, uows *changeset.UnitOfWorkFactory, log *logger.Logger) *RecordLessonTimeHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordLessonTimeHandler{repo: repo, uows: uows, log: log}
}

// Handle executes the command and returns the new total time in seconds.
func (h *RecordLessonTimeHandler) Handle(ctx context.Context, cmd RecordLessonTimeCommand) (int, error) {
	if err := cmd.Validate(); err != nil {
		return 0, shared.WrapError("learning", "RecordLessonTime", shared.ErrInvalidInput, "validation failed", err)
	}

	lp, err := h.repo.GetLessonProgress(ctx, cmd.LessonProgressID)
	if err != nil {
		return 0, fmt.Errorf("record_lesson_time: failed to load lesson progress: %w", err)
	}
	if enr, ok := lp.OwnerEnrollment(); ok {
		if err := checkOwner(cmd.UserID, enr.UserID); err != nil {
			return 0, err
		}
	}

	uow := h.uows.Begin()
	uow.Track(lp)
	if err := lp.AddTimeSpent(cmd.Seconds, completionTime(cmd.At)); err != nil {
		return 0, err
	}
	if _, err := uow.Save(ctx); err != nil {
		return 0, fmt.Errorf("record_lesson_time: failed to save: %w", err)
	}
	return lp.TimeSpentSeconds, nil
}
