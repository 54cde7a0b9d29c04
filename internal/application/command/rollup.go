package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
)

// rollup completes owners whose children are all completed. Owners it
// touches are tracked on the same unit of work so their completion is
// saved, and observed, together with the child.
type rollup struct {
	repo learning.Repository
	uow  *changeset.UnitOfWork
	at   time.Time

	moduleCompleted bool
	courseCompleted bool
}

func (r *rollup) afterLesson(ctx context.Context, lp *learning.LessonProgress) error {
	mod, ok := lp.OwnerModule()
	if !ok || mod.IsCompleted() {
		return nil
	}
	remaining, err := r.repo.CountIncompleteLessons(ctx, mod.ID, lp.ID)
	if err != nil {
		return fmt.Errorf("count incomplete lessons: %w", err)
	}
	if remaining > 0 {
		return nil
	}
	r.uow.Track(mod)
	if err := mod.Complete(r.at); err != nil {
		return err
	}
	r.moduleCompleted = true
	return r.afterModule(ctx, mod)
}

func (r *rollup) afterModule(ctx context.Context, mod *learning.ModuleProgress) error {
	enr, ok := mod.OwnerEnrollment()
	if !ok || enr.IsCompleted() {
		return nil
	}
	remaining, err := r.repo.CountIncompleteModules(ctx, enr.ID, mod.ID)
	if err != nil {
		return fmt.Errorf("count incomplete modules: %w", err)
	}
	if remaining > 0 {
		return nil
	}
	r.uow.Track(enr)
	if err := enr.Complete(r.at); err != nil {
		return err
	}
	r.courseCompleted = true
	return nil
}
