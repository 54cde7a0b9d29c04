// Package gamification contains the achievement and leaderboard model of
// LearnPath LMS. Achievements are data: a definition row carries a criteria
// type, a threshold and the points it is worth. Evaluation is pure and
// lives on Criteria, persistence lives behind the repository interfaces.
package gamification

import (
	"fmt"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// CriteriaType identifies how an achievement is earned.
type CriteriaType string

const (
	// CriteriaLessonsCompleted - at least Threshold lessons completed.
	CriteriaLessonsCompleted CriteriaType = "lessons_completed"
	// CriteriaModulesCompleted - at least Threshold modules completed.
	CriteriaModulesCompleted CriteriaType = "modules_completed"
	// CriteriaCoursesCompleted - at least Threshold courses completed.
	CriteriaCoursesCompleted CriteriaType = "courses_completed"
	// CriteriaAssessmentsPassed - at least Threshold assessments passed.
	CriteriaAssessmentsPassed CriteriaType = "assessments_passed"
	// CriteriaAssessmentScore - the triggering assessment scored at least Threshold.
	CriteriaAssessmentScore CriteriaType = "assessment_score"
	// CriteriaPerfectScore - the triggering assessment scored 100.
	CriteriaPerfectScore CriteriaType = "perfect_score"
	// CriteriaStreakDays - learning activity on Threshold consecutive days.
	CriteriaStreakDays CriteriaType = "streak_days"
)

// IsValid reports whether the type is known.
func (t CriteriaType) IsValid() bool {
	switch t {
	case CriteriaLessonsCompleted, CriteriaModulesCompleted, CriteriaCoursesCompleted,
		CriteriaAssessmentsPassed, CriteriaAssessmentScore, CriteriaPerfectScore,
		CriteriaStreakDays:
		return true
	}
	return false
}

// NeedsAssessment reports whether the criteria only applies to assessment triggers.
func (t CriteriaType) NeedsAssessment() bool {
	return t == CriteriaAssessmentScore || t == CriteriaPerfectScore
}

// Criteria is the rule of an achievement definition.
type Criteria struct {
	Type      CriteriaType
	Threshold float64
}

// Validate checks the criteria is well formed.
func (c Criteria) Validate() error {
	if !c.Type.IsValid() {
		return shared.WrapError("gamification", "Validate", shared.ErrInvalidInput,
			"unknown criteria type", fmt.Errorf("%q", c.Type))
	}
	if c.Type == CriteriaPerfectScore {
		return nil
	}
	if c.Threshold <= 0 {
		return shared.ErrInvalidCriteria
	}
	if c.Type == CriteriaAssessmentScore && c.Threshold > 100 {
		return shared.ErrInvalidCriteria
	}
	return nil
}

// UserStats is the learner's aggregate progress, globally or within one course.
type UserStats struct {
	UserID            string
	CourseID          string
	LessonsCompleted  int
	ModulesCompleted  int
	CoursesCompleted  int
	AssessmentsPassed int
	StreakDays        int
}

// Trigger carries the data of the completion that started an evaluation.
type Trigger struct {
	AssessmentID string
	Score        *float64
}

// HasScore reports whether the trigger was a scored assessment.
func (t Trigger) HasScore() bool { return t.AssessmentID != "" && t.Score != nil }

// IsSatisfied evaluates the criteria against stats and the trigger.
func (c Criteria) IsSatisfied(stats UserStats, trigger Trigger) bool {
	switch c.Type {
	case CriteriaLessonsCompleted:
		return float64(stats.LessonsCompleted) >= c.Threshold
	case CriteriaModulesCompleted:
		return float64(stats.ModulesCompleted) >= c.Threshold
	case CriteriaCoursesCompleted:
		return float64(stats.CoursesCompleted) >= c.Threshold
	case CriteriaAssessmentsPassed:
		return float64(stats.AssessmentsPassed) >= c.Threshold
	case CriteriaAssessmentScore:
		return trigger.HasScore() && *trigger.Score >= c.Threshold
	case CriteriaPerfectScore:
		return trigger.HasScore() && *trigger.Score >= 100
	case CriteriaStreakDays:
		return float64(stats.StreakDays) >= c.Threshold
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Achievement is an achievement definition.
type Achievement struct {
	ID          string
	Code        string
	Name        string
	Description string
	Criteria    Criteria
	Points      int

	// CourseID scopes the achievement to one course. Empty means global.
	CourseID string

	IsActive bool
}

// IsGlobal reports whether the achievement is not bound to a course.
func (a Achievement) IsGlobal() bool { return a.CourseID == "" }

// AppliesTo reports whether the achievement can be earned for courseID.
func (a Achievement) AppliesTo(courseID string) bool {
	if !a.IsActive {
		return false
	}
	return a.IsGlobal() || a.CourseID == courseID
}

// Validate checks the definition.
func (a Achievement) Validate() error {
	if a.ID == "" || a.Name == "" {
		return shared.NewDomainError("gamification", "Validate", shared.ErrEmptyValue, "achievement id and name are required")
	}
	if a.Points < 0 {
		return shared.NewDomainError("gamification", "Validate", shared.ErrNegativeValue, "achievement points cannot be negative")
	}
	return a.Criteria.Validate()
}

// EarnedAchievement records that a user earned an achievement.
// A (UserID, AchievementID) pair exists at most once.
type EarnedAchievement struct {
	UserID        string
	AchievementID string
	CourseID      string
	Points        int
	EarnedAt      time.Time
}

// NewEarnedAchievement creates an award record for a definition.
func NewEarnedAchievement(userID string, a Achievement, at time.Time) EarnedAchievement {
	return EarnedAchievement{
		UserID:        userID,
		AchievementID: a.ID,
		CourseID:      a.CourseID,
		Points:        a.Points,
		EarnedAt:      at.UTC(),
	}
}

// EarnedSet indexes earned achievements by achievement id.
type EarnedSet map[string]struct{}

// NewEarnedSet builds a set from earned records.
func NewEarnedSet(earned []EarnedAchievement) EarnedSet {
	s := make(EarnedSet, len(earned))
	for _, e := range earned {
		s[e.AchievementID] = struct{}{}
	}
	return s
}

// Has reports whether the achievement was already earned.
func (s EarnedSet) Has(achievementID string) bool {
	_, ok := s[achievementID]
	return ok
}
