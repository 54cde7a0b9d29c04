package gamification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// commitStore applies nothing and can fail the commit after the
// before-commit hook ran.
type commitStore struct {
	failCommit error
}

func (s *commitStore) Apply(ctx context.Context, changes []changeset.Change, beforeCommit func(context.Context) error) (changeset.SaveResult, error) {
	if err := beforeCommit(ctx); err != nil {
		return changeset.SaveResult{}, err
	}
	if s.failCommit != nil {
		return changeset.SaveResult{}, s.failCommit
	}
	return changeset.SaveResult{Updated: len(changes)}, nil
}

func newPipeline(store changeset.Store, ev *fakeEvaluator) (*changeset.UnitOfWorkFactory, *Factory) {
	f := NewFactory(ev, logger.Nop(), Config{EventTimeout: time.Second})
	return changeset.NewUnitOfWorkFactory(store, f.New), f
}

func TestPipeline_ModuleCompletionIsEdgeTriggered(t *testing.T) {
	ev := newFakeEvaluator()
	uows, reactions := newPipeline(&commitStore{}, ev)
	ctx := context.Background()
	_, mod, _ := fixtureChain()

	uow := uows.Begin()
	uow.Track(mod)
	require.NoError(t, mod.Complete(time.Now()))
	_, err := uow.Save(ctx)
	require.NoError(t, err)

	uow = uows.Begin()
	uow.Track(mod)
	later := time.Now().Add(time.Hour)
	mod.StartedAt = &later
	_, err = uow.Save(ctx)
	require.NoError(t, err)

	settle(t, reactions)
	require.Len(t, ev.awards, 1)
	require.Len(t, ev.boards, 1)
}

func TestPipeline_KindIsolation(t *testing.T) {
	ev := newFakeEvaluator()
	uows, reactions := newPipeline(&commitStore{}, ev)
	_, mod, les := fixtureChain()
	course := &learning.Course{ID: "C", Title: "Go"}

	uow := uows.Begin()
	uow.Track(les)
	uow.Track(mod)
	uow.Track(course)
	now := time.Now()
	require.NoError(t, les.Complete(now))
	require.NoError(t, mod.Complete(now))
	course.Title = "Go in practice"

	_, err := uow.Save(context.Background())
	require.NoError(t, err)
	settle(t, reactions)
	assert.Len(t, ev.awards, 2)
	assert.Len(t, ev.boards, 2)
}

func TestPipeline_CommitGating(t *testing.T) {
	ev := newFakeEvaluator()
	uows, reactions := newPipeline(&commitStore{failCommit: errors.New("serialization failure")}, ev)
	_, _, les := fixtureChain()

	uow := uows.Begin()
	uow.Track(les)
	require.NoError(t, les.Complete(time.Now()))

	_, err := uow.Save(context.Background())
	require.Error(t, err)
	settle(t, reactions)
	assert.Empty(t, ev.awards)
	assert.Empty(t, ev.boards)
}

func TestPipeline_EndToEndLessonScenario(t *testing.T) {
	ev := newFakeEvaluator()
	uows, reactions := newPipeline(&commitStore{}, ev)
	_, _, les := fixtureChain()

	uow := uows.Begin()
	uow.Track(les)
	require.NoError(t, les.Complete(time.Now()))
	_, err := uow.Save(context.Background())
	require.NoError(t, err)

	settle(t, reactions)
	require.Len(t, ev.awards, 1)
	assert.Equal(t, "U", ev.awards[0].UserID)
	assert.Equal(t, "C", ev.awards[0].CourseID)
	require.Len(t, ev.boards, 1)
	assert.Equal(t, "U", ev.boards[0].UserID)
	assert.Zero(t, ev.boards[0].Delta)
}
