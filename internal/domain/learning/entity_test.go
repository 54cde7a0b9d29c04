package learning

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonProgress_OwnerEnrollment(t *testing.T) {
	enr := &Enrollment{ID: "e1", UserID: "u1", CourseID: "c1"}
	lp := &LessonProgress{ID: "l1", ModuleProgress: &ModuleProgress{ID: "m1", Enrollment: enr}}

	got, ok := lp.OwnerEnrollment()
	require.True(t, ok)
	assert.Same(t, enr, got)

	lp.ModuleProgress.Enrollment = nil
	_, ok = lp.OwnerEnrollment()
	assert.False(t, ok)

	lp.ModuleProgress = nil
	_, ok = lp.OwnerEnrollment()
	assert.False(t, ok)
}

func TestLessonProgress_CompleteOnce(t *testing.T) {
	lp := &LessonProgress{ID: "l1"}
	now := time.Now()

	require.NoError(t, lp.Complete(now))
	assert.True(t, lp.IsCompleted())

	err := lp.Complete(now)
	assert.True(t, errors.Is(err, shared.ErrAlreadyProcessed))
}

func TestLessonProgress_AddTimeSpent(t *testing.T) {
	lp := &LessonProgress{ID: "l1", TimeSpentSeconds: 10}
	require.NoError(t, lp.AddTimeSpent(50, time.Now()))
	assert.Equal(t, 60, lp.TimeSpentSeconds)

	assert.True(t, shared.IsValidation(lp.AddTimeSpent(-1, time.Now())))
}

func TestAssessmentAttempt_Submit(t *testing.T) {
	t.Run("uses loaded passing score", func(t *testing.T) {
		a := &AssessmentAttempt{ID: "a1", Assessment: &Assessment{ID: "x", PassingScore: 80}}
		require.NoError(t, a.Submit(75, time.Now()))
		assert.False(t, a.IsPassed)
		assert.Equal(t, 75.0, a.Score)
	})

	t.Run("falls back to default passing score", func(t *testing.T) {
		a := &AssessmentAttempt{ID: "a1"}
		require.NoError(t, a.Submit(60, time.Now()))
		assert.True(t, a.IsPassed)
	})

	t.Run("rejects out of range score", func(t *testing.T) {
		a := &AssessmentAttempt{ID: "a1"}
		assert.ErrorIs(t, a.Submit(101, time.Now()), shared.ErrValueOutOfRange)
		assert.False(t, a.IsCompleted())
	})

	t.Run("rejects non-number score", func(t *testing.T) {
		a := &AssessmentAttempt{ID: "a1"}
		assert.ErrorIs(t, a.Submit(math.NaN(), time.Now()), shared.ErrValueOutOfRange)
		assert.False(t, a.IsCompleted())
		assert.False(t, a.IsPassed)
	})
}

func TestEnrollment_Complete(t *testing.T) {
	e := &Enrollment{ID: "e1", ProgressPercent: 40}
	require.NoError(t, e.Complete(time.Now()))
	assert.Equal(t, 100.0, e.ProgressPercent)
	assert.ErrorIs(t, e.Complete(time.Now()), shared.ErrAlreadyCompleted)
}
