package gamification

import (
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
)

// CapturePolicy tunes which changes count as completions.
type CapturePolicy struct {
	// AwardOnCompletedInsert also reports records inserted with a completion
	// timestamp already set. Off by default: only a Modified record whose
	// completed_at changed to a non-null value is a completion.
	AwardOnCompletedInsert bool
}

// candidate is a tracked change of one of the four progress kinds.
// The set of implementations is closed.
type candidate interface {
	detect(p CapturePolicy) (ProgressChangeEvent, bool)
}

type lessonCandidate struct {
	change changeset.Change
	lesson *learning.LessonProgress
}

type moduleCandidate struct {
	change changeset.Change
	module *learning.ModuleProgress
}

type assessmentCandidate struct {
	change  changeset.Change
	attempt *learning.AssessmentAttempt
}

type enrollmentCandidate struct {
	change     changeset.Change
	enrollment *learning.Enrollment
}

// classify maps a change onto a candidate. Other entities are skipped.
func classify(c changeset.Change) (candidate, bool) {
	switch e := c.Entity.(type) {
	case *learning.LessonProgress:
		if e != nil {
			return lessonCandidate{change: c, lesson: e}, true
		}
	case *learning.ModuleProgress:
		if e != nil {
			return moduleCandidate{change: c, module: e}, true
		}
	case *learning.AssessmentAttempt:
		if e != nil {
			return assessmentCandidate{change: c, attempt: e}, true
		}
	case *learning.Enrollment:
		if e != nil {
			return enrollmentCandidate{change: c, enrollment: e}, true
		}
	}
	return nil, false
}

// completedNow reports whether the change moved a record into the completed state.
func completedNow(c changeset.Change, completedAt *time.Time, p CapturePolicy) bool {
	if completedAt == nil {
		return false
	}
	switch c.State {
	case changeset.Modified:
		return c.IsModified(learning.ColumnCompletedAt)
	case changeset.Added:
		return p.AwardOnCompletedInsert
	default:
		return false
	}
}

func (c lessonCandidate) detect(p CapturePolicy) (ProgressChangeEvent, bool) {
	if !completedNow(c.change, c.lesson.CompletedAt, p) {
		return ProgressChangeEvent{}, false
	}
	ev := ProgressChangeEvent{
		Kind:     KindLessonCompleted,
		EntityID: c.lesson.ID,
		LessonID: c.lesson.LessonID,
	}
	if m, ok := c.lesson.OwnerModule(); ok {
		ev.ModuleID = m.ModuleID
	}
	if enr, ok := c.lesson.OwnerEnrollment(); ok {
		ev.UserID = enr.UserID
		ev.CourseID = enr.CourseID
	}
	return ev, true
}

func (c moduleCandidate) detect(p CapturePolicy) (ProgressChangeEvent, bool) {
	if !completedNow(c.change, c.module.CompletedAt, p) {
		return ProgressChangeEvent{}, false
	}
	ev := ProgressChangeEvent{
		Kind:     KindModuleCompleted,
		EntityID: c.module.ID,
		ModuleID: c.module.ModuleID,
	}
	if enr, ok := c.module.OwnerEnrollment(); ok {
		ev.UserID = enr.UserID
		ev.CourseID = enr.CourseID
	}
	return ev, true
}

func (c assessmentCandidate) detect(p CapturePolicy) (ProgressChangeEvent, bool) {
	if !completedNow(c.change, c.attempt.CompletedAt, p) {
		return ProgressChangeEvent{}, false
	}
	ev := ProgressChangeEvent{
		Kind:         KindAssessmentCompleted,
		EntityID:     c.attempt.ID,
		UserID:       c.attempt.UserID,
		AssessmentID: c.attempt.AssessmentID,
		Score:        c.attempt.Score,
		IsPassed:     c.attempt.IsPassed,
	}
	if a, ok := c.attempt.OwnerAssessment(); ok {
		ev.CourseID = a.CourseID
	}
	return ev, true
}

func (c enrollmentCandidate) detect(p CapturePolicy) (ProgressChangeEvent, bool) {
	if !completedNow(c.change, c.enrollment.CompletedAt, p) {
		return ProgressChangeEvent{}, false
	}
	return ProgressChangeEvent{
		Kind:     KindCourseCompleted,
		EntityID: c.enrollment.ID,
		UserID:   c.enrollment.UserID,
		CourseID: c.enrollment.CourseID,
	}, true
}

// Capture returns the completions among changes in the order they appear.
// It does no I/O and never fails: a change it cannot interpret is skipped.
func Capture(changes []changeset.Change, p CapturePolicy) []ProgressChangeEvent {
	var events []ProgressChangeEvent
	for _, c := range changes {
		cand, ok := classify(c)
		if !ok {
			continue
		}
		if ev, ok := cand.detect(p); ok {
			events = append(events, ev)
		}
	}
	return events
}
