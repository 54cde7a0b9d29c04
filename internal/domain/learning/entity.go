// Package learning holds the learner-progress model of LearnPath LMS:
// enrollments, module and lesson progress, and assessment attempts.
//
// Each progress record carries a nullable completion timestamp. Ownership
// navigation (lesson progress -> module progress -> enrollment) is explicit
// and optional: a nil pointer means "not loaded", and the lookup helpers
// report that with a boolean instead of loading anything.
package learning

import (
	"math"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
)

// ColumnCompletedAt is the completion-timestamp column shared by all progress records.
const ColumnCompletedAt = "completed_at"

// Table names.
const (
	TableCourses            = "courses"
	TableEnrollments        = "enrollments"
	TableModuleProgress     = "module_progress"
	TableLessonProgress     = "lesson_progress"
	TableAssessments        = "assessments"
	TableAssessmentAttempts = "assessment_attempts"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE
// ══════════════════════════════════════════════════════════════════════════════

// Course is a catalog entry. It is not a progress record.
type Course struct {
	ID          string
	Title       string
	Description string
	IsPublished bool
}

func (c *Course) TableName() string { return TableCourses }
func (c *Course) Key() string       { return c.ID }
func (c *Course) Columns() []changeset.Column {
	return []changeset.Column{
		{Name: "title", Value: c.Title},
		{Name: "description", Value: c.Description},
		{Name: "is_published", Value: c.IsPublished},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment links a learner to a course. CompletedAt marks course completion.
type Enrollment struct {
	ID              string
	UserID          string
	CourseID        string
	EnrolledAt      time.Time
	ProgressPercent float64
	CompletedAt     *time.Time
}

func (e *Enrollment) TableName() string { return TableEnrollments }
func (e *Enrollment) Key() string       { return e.ID }
func (e *Enrollment) Columns() []changeset.Column {
	return []changeset.Column{
		{Name: "user_id", Value: e.UserID},
		{Name: "course_id", Value: e.CourseID},
		{Name: "enrolled_at", Value: e.EnrolledAt},
		{Name: "progress_percent", Value: e.ProgressPercent},
		{Name: ColumnCompletedAt, Value: e.CompletedAt},
	}
}

// IsCompleted reports whether the course was completed.
func (e *Enrollment) IsCompleted() bool { return e.CompletedAt != nil }

// Complete marks the course as completed.
func (e *Enrollment) Complete(at time.Time) error {
	if e.IsCompleted() {
		return shared.ErrAlreadyCompleted
	}
	at = at.UTC()
	e.CompletedAt = &at
	e.ProgressPercent = 100
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MODULE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// ModuleProgress tracks one learner's progress through one course module.
type ModuleProgress struct {
	ID           string
	EnrollmentID string
	ModuleID     string
	StartedAt    *time.Time
	CompletedAt  *time.Time

	// Enrollment is the owning enrollment, nil when not loaded.
	Enrollment *Enrollment
}

func (m *ModuleProgress) TableName() string { return TableModuleProgress }
func (m *ModuleProgress) Key() string       { return m.ID }
func (m *ModuleProgress) Columns() []changeset.Column {
	return []changeset.Column{
		{Name: "enrollment_id", Value: m.EnrollmentID},
		{Name: "module_id", Value: m.ModuleID},
		{Name: "started_at", Value: m.StartedAt},
		{Name: ColumnCompletedAt, Value: m.CompletedAt},
	}
}

// IsCompleted reports whether the module was completed.
func (m *ModuleProgress) IsCompleted() bool { return m.CompletedAt != nil }

// Complete marks the module as completed.
func (m *ModuleProgress) Complete(at time.Time) error {
	if m.IsCompleted() {
		return shared.ErrAlreadyCompleted
	}
	at = at.UTC()
	m.CompletedAt = &at
	if m.StartedAt == nil {
		m.StartedAt = &at
	}
	return nil
}

// OwnerEnrollment returns the loaded owning enrollment.
func (m *ModuleProgress) OwnerEnrollment() (*Enrollment, bool) {
	if m == nil || m.Enrollment == nil {
		return nil, false
	}
	return m.Enrollment, true
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// LessonProgress tracks one learner's progress through one lesson.
type LessonProgress struct {
	ID               string
	ModuleProgressID string
	LessonID         string
	TimeSpentSeconds int
	LastOpenedAt     *time.Time
	CompletedAt      *time.Time

	// ModuleProgress is the owning module progress, nil when not loaded.
	ModuleProgress *ModuleProgress
}

func (l *LessonProgress) TableName() string { return TableLessonProgress }
func (l *LessonProgress) Key() string       { return l.ID }
func (l *LessonProgress) Columns() []changeset.Column {
	return []changeset.Column{
		{Name: "module_progress_id", Value: l.ModuleProgressID},
		{Name: "lesson_id", Value: l.LessonID},
		{Name: "time_spent_seconds", Value: l.TimeSpentSeconds},
		{Name: "last_opened_at", Value: l.LastOpenedAt},
		{Name: ColumnCompletedAt, Value: l.CompletedAt},
	}
}

// IsCompleted reports whether the lesson was completed.
func (l *LessonProgress) IsCompleted() bool { return l.CompletedAt != nil }

// Complete marks the lesson as completed.
func (l *LessonProgress) Complete(at time.Time) error {
	if l.IsCompleted() {
		return shared.ErrAlreadyCompleted
	}
	at = at.UTC()
	l.CompletedAt = &at
	l.LastOpenedAt = &at
	return nil
}

// AddTimeSpent records additional study time. Allowed after completion.
func (l *LessonProgress) AddTimeSpent(seconds int, at time.Time) error {
	if seconds < 0 {
		return shared.NewDomainError("learning", "AddTimeSpent", shared.ErrNegativeValue, "time spent cannot be negative")
	}
	at = at.UTC()
	l.TimeSpentSeconds += seconds
	l.LastOpenedAt = &at
	return nil
}

// OwnerModule returns the loaded owning module progress.
func (l *LessonProgress) OwnerModule() (*ModuleProgress, bool) {
	if l == nil || l.ModuleProgress == nil {
		return nil, false
	}
	return l.ModuleProgress, true
}

// OwnerEnrollment walks lesson -> module -> enrollment.
func (l *LessonProgress) OwnerEnrollment() (*Enrollment, bool) {
	m, ok := l.OwnerModule()
	if !ok {
		return nil, false
	}
	return m.OwnerEnrollment()
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Assessment is a quiz or exam within a course.
type Assessment struct {
	ID           string
	CourseID     string
	Title        string
	PassingScore float64
}

func (a *Assessment) TableName() string { return TableAssessments }
func (a *Assessment) Key() string       { return a.ID }
func (a *Assessment) Columns() []changeset.Column {
	return []changeset.Column{
		{Name: "course_id", Value: a.CourseID},
		{Name: "title", Value: a.Title},
		{Name: "passing_score", Value: a.PassingScore},
	}
}

// AssessmentAttempt is one learner's attempt at an assessment.
type AssessmentAttempt struct {
	ID           string
	AssessmentID string
	UserID       string
	Score        float64
	IsPassed     bool
	StartedAt    time.Time
	CompletedAt  *time.Time

	// Assessment is the attempted assessment, nil when not loaded.
	Assessment *Assessment
}

func (a *AssessmentAttempt) TableName() string { return TableAssessmentAttempts }
func (a *AssessmentAttempt) Key() string       { return a.ID }
func (a *AssessmentAttempt) Columns() []changeset.Column {
	return []changeset.Column{
		{Name: "assessment_id", Value: a.AssessmentID},
		{Name: "user_id", Value: a.UserID},
		{Name: "score", Value: a.Score},
		{Name: "is_passed", Value: a.IsPassed},
		{Name: "started_at", Value: a.StartedAt},
		{Name: ColumnCompletedAt, Value: a.CompletedAt},
	}
}

// IsCompleted reports whether the attempt was submitted.
func (a *AssessmentAttempt) IsCompleted() bool { return a.CompletedAt != nil }

// DefaultPassingScore applies when the attempted assessment is not loaded.
const DefaultPassingScore = 60.0

// Submit records the final score and derives the pass flag.
func (a *AssessmentAttempt) Submit(score float64, at time.Time) error {
	if a.IsCompleted() {
		return shared.ErrAlreadyCompleted
	}
	if math.IsNaN(score) || score < 0 || score > 100 {
		return shared.ErrInvalidScore
	}
	at = at.UTC()
	a.Score = score
	a.CompletedAt = &at
	passing := DefaultPassingScore
	if asm, ok := a.OwnerAssessment(); ok {
		passing = asm.PassingScore
	}
	a.IsPassed = score >= passing
	return nil
}

// OwnerAssessment returns the loaded assessment.
func (a *AssessmentAttempt) OwnerAssessment() (*Assessment, bool) {
	if a == nil || a.Assessment == nil {
		return nil, false
	}
	return a.Assessment, true
}
