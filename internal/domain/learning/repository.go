package learning

import (
	"context"
)

// Repository loads progress records together with their ownership chain.
// Implementations return shared.Err*NotFound errors for missing rows.
type Repository interface {
	// GetLessonProgress loads a lesson progress with its module progress and enrollment.
	GetLessonProgress(ctx context.Context, id string) (*LessonProgress, error)

	// GetModuleProgress loads a module progress with its enrollment.
	GetModuleProgress(ctx context.Context, id string) (*ModuleProgress, error)

	// GetEnrollment loads an enrollment.
	GetEnrollment(ctx context.Context, id string) (*Enrollment, error)

	// GetAttempt loads an assessment attempt with its assessment.
	GetAttempt(ctx context.Context, id string) (*AssessmentAttempt, error)

	// GetAssessment loads an assessment.
	GetAssessment(ctx context.Context, id string) (*Assessment, error)

	// CountIncompleteLessons counts lessons of a module progress that are not
	// completed, ignoring excludeID.
	CountIncompleteLessons(ctx context.Context, moduleProgressID, excludeID string) (int, error)

	// CountIncompleteModules counts modules of an enrollment that are not
	// completed, ignoring excludeID.
	CountIncompleteModules(ctx context.Context, enrollmentID, excludeID string) (int, error)
}
