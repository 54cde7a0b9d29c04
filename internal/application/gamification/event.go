// Package gamification turns committed progress changes into achievement
// awards and leaderboard updates.
//
// A save cycle runs in two phases. Right before commit the interceptor
// captures first-time completions from the tracked changes into its buffer.
// Only after the commit succeeds does the reactor drive the evaluation API
// with the buffered events, one isolated call chain per event.
package gamification

import (
	"fmt"
)

// Kind is the kind of completion an event reports.
type Kind int

const (
	KindLessonCompleted Kind = iota + 1
	KindModuleCompleted
	KindAssessmentCompleted
	KindCourseCompleted
)

// String returns the kind name used in logs and spans.
func (k Kind) String() string {
	switch k {
	case KindLessonCompleted:
		return "LessonCompleted"
	case KindModuleCompleted:
		return "ModuleCompleted"
	case KindAssessmentCompleted:
		return "AssessmentCompleted"
	case KindCourseCompleted:
		return "CourseCompleted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ProgressChangeEvent is a first-time completion detected in one save.
// UserID and CourseID may be empty when the ownership chain was not loaded.
type ProgressChangeEvent struct {
	Kind Kind

	// EntityID is the key of the progress record that completed.
	EntityID string

	UserID   string
	CourseID string

	ModuleID string
	LessonID string

	// Assessment fields, set for KindAssessmentCompleted only.
	AssessmentID string
	Score        float64
	IsPassed     bool
}

// String implements fmt.Stringer.
func (e ProgressChangeEvent) String() string {
	return fmt.Sprintf("%s{entity=%s user=%s course=%s}", e.Kind, e.EntityID, e.UserID, e.CourseID)
}
