package postgres

import (
	"context"
	"fmt"

	"github.com/learnpath/learnpath-lms/internal/domain/learning"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING REPOSITORY IMPLEMENTATION
// Progress rows are loaded with their ownership chain in one joined query.
// Module and lesson progress rows are created at enrollment time, so the
// incomplete counts cover the whole course structure.
// ══════════════════════════════════════════════════════════════════════════════

// LearningRepository implements learning.Repository for PostgreSQL.
type LearningRepository struct {
	db Querier
}

var _ learning.Repository = (*LearningRepository)(nil)

// NewLearningRepository creates a new LearningRepository.
func NewLearningRepository(db Querier) *LearningRepository {
	return &LearningRepository{db: db}
}

const enrollmentColumns = `e.id, e.user_id, e.course_id, e.enrolled_at, e.progress_percent, e.completed_at`

const moduleColumns = `m.id, m.enrollment_id, m.module_id, m.started_at, m.completed_at`

func enrollmentDest(e *learning.Enrollment) []any {
	return []any{&e.ID, &e.UserID, &e.CourseID, &e.EnrolledAt, &e.ProgressPercent, &e.CompletedAt}
}

func moduleDest(m *learning.ModuleProgress) []any {
	return []any{&m.ID, &m.EnrollmentID, &m.ModuleID, &m.StartedAt, &m.CompletedAt}
}

// GetLessonProgress loads a lesson progress with its module progress and enrollment.
func (r *LearningRepository) GetLessonProgress(ctx context.Context, id string) (*learning.LessonProgress, error) {
	lp := &learning.LessonProgress{ModuleProgress: &learning.ModuleProgress{Enrollment: &learning.Enrollment{}}}

	dest := []any{&lp.ID, &lp.ModuleProgressID, &lp.LessonID, &lp.TimeSpentSeconds, &lp.LastOpenedAt, &lp.CompletedAt}
	dest = append(dest, moduleDest(lp.ModuleProgress)...)
	dest = append(dest, enrollmentDest(lp.ModuleProgress.Enrollment)...)

	err := r.db.QueryRow(ctx, `
		SELECT l.id, l.module_progress_id, l.lesson_id, l.time_spent_seconds, l.last_opened_at, l.completed_at,
		       `+moduleColumns+`, `+enrollmentColumns+`
		FROM lesson_progress l
		JOIN module_progress m ON m.id = l.module_progress_id
		JOIN enrollments e ON e.id = m.enrollment_id
		WHERE l.id = $1
	`, id).Scan(dest...)
	if IsNoRows(err) {
		return nil, shared.ErrLessonProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	return lp, nil
}

// GetModuleProgress loads a module progress with its enrollment.
func (r *LearningRepository) GetModuleProgress(ctx context.Context, id string) (*learning.ModuleProgress, error) {
	m := &learning.ModuleProgress{Enrollment: &learning.Enrollment{}}
	dest := append(moduleDest(m), enrollmentDest(m.Enrollment)...)

	err := r.db.QueryRow(ctx, `
		SELECT `+moduleColumns+`, `+enrollmentColumns+`
		FROM module_progress m
		JOIN enrollments e ON e.id = m.enrollment_id
		WHERE m.id = $1
	`, id).Scan(dest...)
	if IsNoRows(err) {
		return nil, shared.ErrModuleProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module progress: %w", err)
	}
	return m, nil
}

// GetEnrollment loads an enrollment.
func (r *LearningRepository) GetEnrollment(ctx context.Context, id string) (*learning.Enrollment, error) {
	e := &learning.Enrollment{}
	err := r.db.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments e WHERE e.id = $1`, id).Scan(enrollmentDest(e)...)
	if IsNoRows(err) {
		return nil, shared.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

// GetAttempt loads an assessment attempt with its assessment.
func (r *LearningRepository) GetAttempt(ctx context.Context, id string) (*learning.AssessmentAttempt, error) {
	a := &learning.AssessmentAttempt{Assessment: &learning.Assessment{}}
	err := r.db.QueryRow(ctx, `
		SELECT t.id, t.assessment_id, t.user_id, t.score, t.is_passed, t.started_at, t.completed_at,
		       s.id, s.course_id, s.title, s.passing_score
		FROM assessment_attempts t
		JOIN assessments s ON s.id = t.assessment_id
		WHERE t.id = $1
	`, id).Scan(
		&a.ID, &a.AssessmentID, &a.UserID, &a.Score, &a.IsPassed, &a.StartedAt, &a.CompletedAt,
		&a.Assessment.ID, &a.Assessment.CourseID, &a.Assessment.Title, &a.Assessment.PassingScore,
	)
	if IsNoRows(err) {
		return nil, shared.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment attempt: %w", err)
	}
	return a, nil
}

// GetAssessment loads an assessment.
func (r *LearningRepository) GetAssessment(ctx context.Context, id string) (*learning.Assessment, error) {
	a := &learning.Assessment{}
	err := r.db.QueryRow(ctx, `
		SELECT id, course_id, title, passing_score FROM assessments WHERE id = $1
	`, id).Scan(&a.ID, &a.CourseID, &a.Title, &a.PassingScore)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("learning", "GetAssessment", shared.ErrNotFound, "assessment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return a, nil
}

// CountIncompleteLessons counts incomplete lessons of a module progress other than excludeID.
func (r *LearningRepository) CountIncompleteLessons(ctx context.Context, moduleProgressID, excludeID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM lesson_progress
		WHERE module_progress_id = $1 AND id <> $2 AND completed_at IS NULL
	`, moduleProgressID, excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count incomplete lessons: %w", err)
	}
	return n, nil
}

// CountIncompleteModules counts incomplete modules of an enrollment other than excludeID.
func (r *LearningRepository) CountIncompleteModules(ctx context.Context, enrollmentID, excludeID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM module_progress
		WHERE enrollment_id = $1 AND id <> $2 AND completed_at IS NULL
	`, enrollmentID, excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count incomplete modules: %w", err)
	}
	return n, nil
}
