package gamification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

type leaderboardCall struct {
	UserID   string
	CourseID string
	Delta    int
}

type fakeEvaluator struct {
	mu          sync.Mutex
	awards      []gamification.AwardRequest
	boards      []leaderboardCall
	failAwardOf map[string]error
	panicOf     map[string]bool
	block       bool
	points      int
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{failAwardOf: map[string]error{}, panicOf: map[string]bool{}}
}

func (f *fakeEvaluator) CheckAndAwardAchievements(ctx context.Context, req gamification.AwardRequest) (gamification.AwardResult, error) {
	f.mu.Lock()
	f.awards = append(f.awards, req)
	err := f.failAwardOf[req.UserID]
	shouldPanic := f.panicOf[req.UserID]
	block := f.block
	f.mu.Unlock()

	if shouldPanic {
		panic("evaluator exploded")
	}
	if block {
		<-ctx.Done()
		return gamification.AwardResult{}, ctx.Err()
	}
	if err != nil {
		return gamification.AwardResult{}, err
	}
	return gamification.AwardResult{Points: f.points}, nil
}

func (f *fakeEvaluator) UpdateLeaderboard(_ context.Context, userID, courseID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boards = append(f.boards, leaderboardCall{UserID: userID, CourseID: courseID, Delta: delta})
	return nil
}

func (f *fakeEvaluator) awardUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]string, 0, len(f.awards))
	for _, a := range f.awards {
		users = append(users, a.UserID)
	}
	return users
}

type waiter interface {
	Wait(ctx context.Context) error
}

// settle waits for background reactions before the evaluator is inspected.
func settle(t *testing.T, w waiter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))
}

func completedLessonChange(t *testing.T) changeset.Change {
	t.Helper()
	_, _, les := fixtureChain()
	tr := track(les)
	require.NoError(t, les.Complete(time.Now()))
	return tr.change()
}

func TestInterceptor_EndToEndLesson(t *testing.T) {
	ev := newFakeEvaluator()
	ic := NewInterceptor(ev, logger.Nop(), Config{})
	ctx := context.Background()

	require.NoError(t, ic.SavingChanges(ctx, []changeset.Change{completedLessonChange(t)}))
	assert.Len(t, ic.Pending(), 1)
	assert.Empty(t, ev.awards, "nothing is evaluated before commit")

	ic.SavedChanges(ctx, changeset.SaveResult{Updated: 1})
	settle(t, ic)

	require.Len(t, ev.awards, 1)
	assert.Equal(t, gamification.AwardRequest{UserID: "U", CourseID: "C"}, ev.awards[0])
	require.Len(t, ev.boards, 1)
	assert.Equal(t, leaderboardCall{UserID: "U", CourseID: "C", Delta: 0}, ev.boards[0])
	assert.Empty(t, ic.Pending())
}

func TestInterceptor_CommitGating(t *testing.T) {
	ev := newFakeEvaluator()
	ic := NewInterceptor(ev, logger.Nop(), Config{})
	ctx := context.Background()

	require.NoError(t, ic.SavingChanges(ctx, []changeset.Change{completedLessonChange(t)}))
	ic.SaveFailed(ctx, errors.New("commit failed"))

	assert.Empty(t, ev.awards)
	assert.Empty(t, ev.boards)
	assert.Empty(t, ic.Pending())

	// A later successful cycle on the same instance does not see the discarded events.
	ic.SavedChanges(ctx, changeset.SaveResult{})
	settle(t, ic)
	assert.Empty(t, ev.awards)
}

func TestInterceptor_PerEventIsolation(t *testing.T) {
	ev := newFakeEvaluator()
	ev.failAwardOf["U2"] = errors.New("evaluation store down")
	ic := NewInterceptor(ev, logger.Nop(), Config{})

	events := []ProgressChangeEvent{
		{Kind: KindCourseCompleted, UserID: "U1", CourseID: "C"},
		{Kind: KindCourseCompleted, UserID: "U2", CourseID: "C"},
		{Kind: KindCourseCompleted, UserID: "U3", CourseID: "C"},
	}
	ic.pending = events

	ic.SavedChanges(context.Background(), changeset.SaveResult{})
	settle(t, ic)

	assert.Equal(t, []string{"U1", "U2", "U3"}, ev.awardUsers())
	require.Len(t, ev.boards, 2)
	assert.Equal(t, "U1", ev.boards[0].UserID)
	assert.Equal(t, "U3", ev.boards[1].UserID)
}

func TestReactor_RecoversFromPanic(t *testing.T) {
	ev := newFakeEvaluator()
	ev.panicOf["U1"] = true
	r := NewReactor(ev, logger.Nop(), ReactorConfig{})

	var sum ReactSummary
	assert.NotPanics(t, func() {
		sum = r.React(context.Background(), []ProgressChangeEvent{
			{Kind: KindLessonCompleted, UserID: "U1"},
			{Kind: KindLessonCompleted, UserID: "U2"},
		})
	})
	assert.Equal(t, ReactSummary{Processed: 1, Failed: 1}, sum)
}

func TestReactor_EventTimeout(t *testing.T) {
	ev := newFakeEvaluator()
	ev.block = true
	r := NewReactor(ev, logger.Nop(), ReactorConfig{EventTimeout: 20 * time.Millisecond})

	start := time.Now()
	sum := r.React(context.Background(), []ProgressChangeEvent{{Kind: KindModuleCompleted, UserID: "U"}})

	assert.Equal(t, 1, sum.Failed)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, ev.boards)
}

func TestReactor_IgnoresCallerCancellation(t *testing.T) {
	ev := newFakeEvaluator()
	r := NewReactor(ev, logger.Nop(), ReactorConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := r.React(ctx, []ProgressChangeEvent{{Kind: KindCourseCompleted, UserID: "U"}})
	assert.Equal(t, 1, sum.Processed)
}

func TestReactor_AssessmentRequestCarriesScore(t *testing.T) {
	ev := newFakeEvaluator()
	ev.points = 25
	r := NewReactor(ev, logger.Nop(), ReactorConfig{})

	r.React(context.Background(), []ProgressChangeEvent{{
		Kind:         KindAssessmentCompleted,
		UserID:       "U",
		CourseID:     "C",
		AssessmentID: "A",
		Score:        91,
		IsPassed:     true,
	}})

	require.Len(t, ev.awards, 1)
	req := ev.awards[0]
	assert.Equal(t, "A", req.AssessmentID)
	require.NotNil(t, req.Score)
	assert.Equal(t, 91.0, *req.Score)
	require.Len(t, ev.boards, 1)
	assert.Equal(t, 25, ev.boards[0].Delta)
}

func TestFactory_NewReturnsIndependentInterceptors(t *testing.T) {
	f := NewFactory(newFakeEvaluator(), logger.Nop(), Config{})

	a := f.New().(*Interceptor)
	b := f.New().(*Interceptor)
	require.NoError(t, a.SavingChanges(context.Background(), []changeset.Change{completedLessonChange(t)}))

	assert.Len(t, a.Pending(), 1)
	assert.Empty(t, b.Pending())
}

func TestInterceptor_IgnoresUnrelatedChanges(t *testing.T) {
	ev := newFakeEvaluator()
	ic := NewInterceptor(ev, logger.Nop(), Config{})

	course := &learning.Course{ID: "C", Title: "Go"}
	tr := track(course)
	course.Title = "Rust"

	require.NoError(t, ic.SavingChanges(context.Background(), []changeset.Change{tr.change()}))
	ic.SavedChanges(context.Background(), changeset.SaveResult{Updated: 1})
	settle(t, ic)
	assert.Empty(t, ev.awards)
}

func TestInterceptor_SavedChangesDoesNotWaitForEvaluation(t *testing.T) {
	ev := newFakeEvaluator()
	ev.block = true
	ic := NewInterceptor(ev, logger.Nop(), Config{EventTimeout: 300 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, ic.SavingChanges(ctx, []changeset.Change{completedLessonChange(t)}))
	start := time.Now()
	ic.SavedChanges(ctx, changeset.SaveResult{Updated: 1})
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Empty(t, ic.Pending(), "the buffer is handed off")

	settle(t, ic)
	assert.Equal(t, []string{"U"}, ev.awardUsers())
	assert.Empty(t, ev.boards, "the timed out event stops before the leaderboard")
}

func TestFactory_WaitCoversEveryInterceptor(t *testing.T) {
	ev := newFakeEvaluator()
	ev.block = true
	f := NewFactory(ev, logger.Nop(), Config{EventTimeout: 100 * time.Millisecond, MaxInFlight: 1})
	ctx := context.Background()

	for range 3 {
		ic := f.New()
		require.NoError(t, ic.SavingChanges(ctx, []changeset.Change{completedLessonChange(t)}))
		ic.SavedChanges(ctx, changeset.SaveResult{Updated: 1})
	}

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Wait(short), context.DeadlineExceeded, "reactions run one at a time")

	settle(t, f)
	assert.Len(t, ev.awardUsers(), 3)
}
