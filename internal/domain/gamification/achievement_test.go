package gamification

import (
	"testing"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func TestCriteria_IsSatisfied(t *testing.T) {
	stats := UserStats{
		LessonsCompleted:  10,
		ModulesCompleted:  2,
		CoursesCompleted:  1,
		AssessmentsPassed: 3,
		StreakDays:        6,
	}

	tests := []struct {
		name     string
		criteria Criteria
		trigger  Trigger
		want     bool
	}{
		{"lessons reached", Criteria{CriteriaLessonsCompleted, 10}, Trigger{}, true},
		{"lessons not reached", Criteria{CriteriaLessonsCompleted, 11}, Trigger{}, false},
		{"modules", Criteria{CriteriaModulesCompleted, 2}, Trigger{}, true},
		{"courses", Criteria{CriteriaCoursesCompleted, 2}, Trigger{}, false},
		{"assessments passed", Criteria{CriteriaAssessmentsPassed, 3}, Trigger{}, true},
		{"streak", Criteria{CriteriaStreakDays, 7}, Trigger{}, false},
		{"score without trigger", Criteria{CriteriaAssessmentScore, 80}, Trigger{}, false},
		{"score above threshold", Criteria{CriteriaAssessmentScore, 80}, Trigger{"a1", score(85)}, true},
		{"score below threshold", Criteria{CriteriaAssessmentScore, 80}, Trigger{"a1", score(79.5)}, false},
		{"perfect", Criteria{Type: CriteriaPerfectScore}, Trigger{"a1", score(100)}, true},
		{"not perfect", Criteria{Type: CriteriaPerfectScore}, Trigger{"a1", score(99)}, false},
		{"unknown type", Criteria{"bogus", 1}, Trigger{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.IsSatisfied(stats, tt.trigger))
		})
	}
}

func TestCriteria_Validate(t *testing.T) {
	assert.NoError(t, Criteria{Type: CriteriaPerfectScore}.Validate())
	assert.NoError(t, Criteria{CriteriaLessonsCompleted, 1}.Validate())

	assert.ErrorIs(t, Criteria{CriteriaLessonsCompleted, 0}.Validate(), shared.ErrInvalidCriteria)
	assert.ErrorIs(t, Criteria{CriteriaAssessmentScore, 120}.Validate(), shared.ErrInvalidCriteria)
	assert.True(t, shared.IsValidation(Criteria{"bogus", 1}.Validate()))
}

func TestAchievement_AppliesTo(t *testing.T) {
	global := Achievement{ID: "g", IsActive: true}
	scoped := Achievement{ID: "s", CourseID: "c1", IsActive: true}
	inactive := Achievement{ID: "i", IsActive: false}

	assert.True(t, global.AppliesTo(""))
	assert.True(t, global.AppliesTo("c2"))
	assert.True(t, scoped.AppliesTo("c1"))
	assert.False(t, scoped.AppliesTo("c2"))
	assert.False(t, scoped.AppliesTo(""))
	assert.False(t, inactive.AppliesTo(""))
}

func TestEarnedSet(t *testing.T) {
	a := Achievement{ID: "first-lesson", Points: 10}
	earned := NewEarnedAchievement("u1", a, time.Now())
	require.Equal(t, 10, earned.Points)

	set := NewEarnedSet([]EarnedAchievement{earned})
	assert.True(t, set.Has("first-lesson"))
	assert.False(t, set.Has("other"))
}
