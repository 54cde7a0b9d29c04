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
// COMPLETE MODULE COMMAND
// Completes a module directly (e.g. by an instructor override) and rolls up
// to the course.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteModuleCommand completes one module progress record.
type CompleteModuleCommand struct {
	ModuleProgressID string
	UserID           string
	CompletedAt      time.Time
}

// Validate validates the command.
func (c CompleteModuleCommand) Validate() error {
	if c.ModuleProgressID == "" {
		return errors.New("complete_module: module_progress_id is required")
	}
	return nil
}

// CompleteModuleResult is the outcome of CompleteModuleCommand.
type CompleteModuleResult struct {
	ModuleProgressID string
	CourseCompleted  bool
	CompletedAt      time.Time
}

// CompleteModuleHandler handles CompleteModuleCommand.
type CompleteModuleHandler struct {
	repo learning.Repository
	uows *changeset.UnitOfWorkFactory
	log  *logger.Logger
}

// NewCompleteModuleHandler creates the handler.
func NewCompleteModuleHandler(repo learning.Repository, uows *changeset.UnitOfWorkFactory, log *logger.Logger) *CompleteModuleHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CompleteModuleHandler{repo: repo, uows: uows, log: log.With(logger.Component("complete_module"))}
}

// Handle executes the command.
func (h *CompleteModuleHandler) Handle(ctx context.Context, cmd CompleteModuleCommand) (*CompleteModuleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("learning", "CompleteModule", shared.ErrInvalidInput, "validation failed", err)
	}
	at := completionTime(cmd.CompletedAt)

	mod, err := h.repo.GetModuleProgress(ctx, cmd.ModuleProgressID)
	if err != nil {
		return nil, fmt.Errorf("complete_module: failed to load module progress: %w", err)
	}
	if enr, ok := mod.OwnerEnrollment(); ok {
		if err := checkOwner(cmd.UserID, enr.UserID); err != nil {
			return nil, err
		}
	}

	uow := h.uows.Begin()
	uow.Track(mod)
	if err := mod.Complete(at); err != nil {
		return nil, err
	}

	r := &rollup{repo: h.repo, uow: uow, at: at}
	if err := r.afterModule(ctx, mod); err != nil {
		return nil, fmt.Errorf("complete_module: %w", err)
	}

	if _, err := uow.Save(ctx); err != nil {
		return nil, fmt.Errorf("complete_module: failed to save: %w", err)
	}

	h.log.Info("module completed", logger.String("module_progress_id", mod.ID), logger.Bool("course_completed", r.courseCompleted))
	return &CompleteModuleResult{ModuleProgressID: mod.ID, CourseCompleted: r.courseCompleted, CompletedAt: at}, nil
}
