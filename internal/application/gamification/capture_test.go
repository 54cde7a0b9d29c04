package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
)

// tracked records an entity snapshot and later produces the Change the unit
// of work would hand to interceptors.
type tracked struct {
	entity changeset.Entity
	snap   changeset.Snapshot
}

func track(e changeset.Entity) *tracked {
	return &tracked{entity: e, snap: changeset.Take(e)}
}

func (t *tracked) change() changeset.Change {
	diff := t.snap.Diff(t.entity)
	state := changeset.Unchanged
	if len(diff) > 0 {
		state = changeset.Modified
	}
	return changeset.Change{Entity: t.entity, State: state, Changed: diff}
}

func fixtureChain() (*learning.Enrollment, *learning.ModuleProgress, *learning.LessonProgress) {
	enr := &learning.Enrollment{ID: "enr-1", UserID: "U", CourseID: "C", EnrolledAt: time.Now()}
	mod := &learning.ModuleProgress{ID: "mp-1", EnrollmentID: enr.ID, ModuleID: "M", Enrollment: enr}
	les := &learning.LessonProgress{ID: "lp-1", ModuleProgressID: mod.ID, LessonID: "L", ModuleProgress: mod}
	return enr, mod, les
}

func TestCapture_LessonCompletedResolvesChain(t *testing.T) {
	_, _, les := fixtureChain()
	tr := track(les)

	require.NoError(t, les.Complete(time.Now()))

	events := Capture([]changeset.Change{tr.change()}, CapturePolicy{})
	require.Len(t, events, 1)
	assert.Equal(t, KindLessonCompleted, events[0].Kind)
	assert.Equal(t, "U", events[0].UserID)
	assert.Equal(t, "C", events[0].CourseID)
	assert.Equal(t, "M", events[0].ModuleID)
	assert.Equal(t, "L", events[0].LessonID)
}

func TestCapture_LessonWithoutChainStillEmitted(t *testing.T) {
	les := &learning.LessonProgress{ID: "lp-1", LessonID: "L"}
	tr := track(les)
	require.NoError(t, les.Complete(time.Now()))

	events := Capture([]changeset.Change{tr.change()}, CapturePolicy{})
	require.Len(t, events, 1)
	assert.Empty(t, events[0].UserID)
	assert.Empty(t, events[0].CourseID)
}

func TestCapture_EdgeTriggered(t *testing.T) {
	_, mod, _ := fixtureChain()

	first := track(mod)
	require.NoError(t, mod.Complete(time.Now()))
	assert.Len(t, Capture([]changeset.Change{first.change()}, CapturePolicy{}), 1)

	// A later save that touches other columns of the completed record.
	second := track(mod)
	mod.ModuleID = "M-renamed"
	c := second.change()
	require.Equal(t, changeset.Modified, c.State)
	assert.Empty(t, Capture([]changeset.Change{c}, CapturePolicy{}))
}

func TestCapture_LessonTimeSpentAfterCompletion(t *testing.T) {
	_, _, les := fixtureChain()
	require.NoError(t, les.Complete(time.Now()))

	tr := track(les)
	require.NoError(t, les.AddTimeSpent(120, time.Now().Add(time.Minute)))

	assert.Empty(t, Capture([]changeset.Change{tr.change()}, CapturePolicy{}))
}

func TestCapture_ClearingCompletionIsNotAnEvent(t *testing.T) {
	_, _, les := fixtureChain()
	require.NoError(t, les.Complete(time.Now()))

	tr := track(les)
	les.CompletedAt = nil

	c := tr.change()
	require.True(t, c.IsModified(learning.ColumnCompletedAt))
	assert.Empty(t, Capture([]changeset.Change{c}, CapturePolicy{}))
}

func TestCapture_KindIsolation(t *testing.T) {
	_, mod, les := fixtureChain()
	course := &learning.Course{ID: "C", Title: "Go"}

	trLes, trMod, trCourse := track(les), track(mod), track(course)
	now := time.Now()
	require.NoError(t, les.Complete(now))
	require.NoError(t, mod.Complete(now))
	course.Title = "Go, second edition"

	events := Capture([]changeset.Change{trLes.change(), trMod.change(), trCourse.change()}, CapturePolicy{})
	require.Len(t, events, 2)
	assert.Equal(t, KindLessonCompleted, events[0].Kind)
	assert.Equal(t, KindModuleCompleted, events[1].Kind)
}

func TestCapture_Assessment(t *testing.T) {
	attempt := &learning.AssessmentAttempt{
		ID:           "att-1",
		AssessmentID: "A",
		UserID:       "U",
		StartedAt:    time.Now(),
		Assessment:   &learning.Assessment{ID: "A", CourseID: "C", PassingScore: 70},
	}
	tr := track(attempt)
	require.NoError(t, attempt.Submit(82, time.Now()))

	events := Capture([]changeset.Change{tr.change()}, CapturePolicy{})
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, KindAssessmentCompleted, ev.Kind)
	assert.Equal(t, "U", ev.UserID)
	assert.Equal(t, "C", ev.CourseID)
	assert.Equal(t, "A", ev.AssessmentID)
	assert.Equal(t, 82.0, ev.Score)
	assert.True(t, ev.IsPassed)
}

func TestCapture_CourseCompleted(t *testing.T) {
	enr, _, _ := fixtureChain()
	tr := track(enr)
	require.NoError(t, enr.Complete(time.Now()))

	events := Capture([]changeset.Change{tr.change()}, CapturePolicy{})
	require.Len(t, events, 1)
	assert.Equal(t, KindCourseCompleted, events[0].Kind)
	assert.Equal(t, "U", events[0].UserID)
	assert.Equal(t, "C", events[0].CourseID)
}

func TestCapture_AddedCompletedRecordFollowsPolicy(t *testing.T) {
	_, _, les := fixtureChain()
	require.NoError(t, les.Complete(time.Now()))
	added := changeset.Change{Entity: les, State: changeset.Added}

	assert.Empty(t, Capture([]changeset.Change{added}, CapturePolicy{}))
	assert.Len(t, Capture([]changeset.Change{added}, CapturePolicy{AwardOnCompletedInsert: true}), 1)
}

func TestCapture_IgnoresDeletedAndNilEntities(t *testing.T) {
	_, _, les := fixtureChain()
	require.NoError(t, les.Complete(time.Now()))

	changes := []changeset.Change{
		{Entity: les, State: changeset.Deleted, Changed: map[string]bool{learning.ColumnCompletedAt: true}},
		{Entity: (*learning.LessonProgress)(nil), State: changeset.Modified},
		{Entity: nil, State: changeset.Modified},
	}
	assert.Empty(t, Capture(changes, CapturePolicy{}))
}
