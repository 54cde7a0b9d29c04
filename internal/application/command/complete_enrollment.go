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

// CompleteEnrollmentCommand marks a course as completed for the enrolled user.
type CompleteEnrollmentCommand struct {
	EnrollmentID string
	UserID       string
	CompletedAt  time.Time
}

// Validate validates the command.
func (c CompleteEnrollmentCommand) Validate() error {
	if c.EnrollmentID == "" {
		return errors.New("complete_enrollment: enrollment_id is required")
	}
	return nil
}

// CompleteEnrollmentHandler handles CompleteEnrollmentCommand.
type CompleteEnrollmentHandler struct {
	repo learning.Repository
	uows *changeset.UnitOfWorkFactory
	log  *logger.Logger
}

// NewCompleteEnrollmentHandler creates the handler.
func NewCompleteEnrollmentHandler(repo learning.Repository, uows *changeset.UnitOfWorkFactory, log *logger.Logger) *CompleteEnrollmentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CompleteEnrollmentHandler{repo: repo, uows: uows, log: log.With(logger.Component("complete_enrollment"))}
}

// Handle executes the command.
func (h *CompleteEnrollmentHandler) Handle(ctx context.Context, cmd CompleteEnrollmentCommand) (*learning.Enrollment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("learning", "CompleteEnrollment", shared.ErrInvalidInput, "validation failed", err)
	}

	enr, err := h.repo.GetEnrollment(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("complete_enrollment: failed to load enrollment: %w", err)
	}
	if err := checkOwner(cmd.UserID, enr.UserID); err != nil {
		return nil, err
	}

	uow := h.uows.Begin()
	uow.Track(enr)
	if err := enr.Complete(completionTime(cmd.CompletedAt)); err != nil {
		return nil, err
	}
	if _, err := uow.Save(ctx); err != nil {
		return nil, fmt.Errorf("complete_enrollment: failed to save: %w", err)
	}

	h.log.Info("course completed", logger.UserID(enr.UserID), logger.CourseID(enr.CourseID))
	return enr, nil
}
