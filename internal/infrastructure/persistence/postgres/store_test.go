package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
)

type execCall struct {
	sql  string
	args []any
}

type recordingTx struct {
	calls     []execCall
	tag       string
	execErr   error
	committed bool
}

func (r *recordingTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.calls = append(r.calls, execCall{sql: sql, args: args})
	if r.execErr != nil {
		return pgconn.CommandTag{}, r.execErr
	}
	return pgconn.NewCommandTag(r.tag), nil
}

func (r *recordingTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (r *recordingTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (r *recordingTx) InTx(ctx context.Context, fn func(q Querier) error) error {
	if err := fn(r); err != nil {
		return err
	}
	r.committed = true
	return nil
}

func TestStore_ModifiedWritesOnlyChangedColumns(t *testing.T) {
	tx := &recordingTx{tag: "UPDATE 1"}
	store := NewStore(tx)

	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	lp := &learning.LessonProgress{ID: "lp-1", ModuleProgressID: "mp-1", LessonID: "L", CompletedAt: &at}
	change := changeset.Change{Entity: lp, State: changeset.Modified, Changed: map[string]bool{"completed_at": true, "last_opened_at": true}}

	var hookRan bool
	res, err := store.Apply(context.Background(), []changeset.Change{change}, func(context.Context) error {
		hookRan = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, hookRan)
	assert.True(t, tx.committed)
	assert.Equal(t, 1, res.Updated)

	require.Len(t, tx.calls, 1)
	assert.Equal(t, `UPDATE "lesson_progress" SET "completed_at" = $1, "last_opened_at" = $2 WHERE id = $3`, tx.calls[0].sql)
	assert.Equal(t, "lp-1", tx.calls[0].args[2])
}

func TestStore_InsertAndDelete(t *testing.T) {
	tx := &recordingTx{tag: "INSERT 0 1"}
	store := NewStore(tx)

	attempt := &learning.AssessmentAttempt{ID: "at-1", AssessmentID: "A", UserID: "U"}
	course := &learning.Course{ID: "c-1", Title: "Go"}
	res, err := store.Apply(context.Background(), []changeset.Change{
		{Entity: attempt, State: changeset.Added},
		{Entity: course, State: changeset.Unchanged},
		{Entity: course, State: changeset.Deleted},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, changeset.SaveResult{Inserted: 1, Deleted: 1}, res)

	require.Len(t, tx.calls, 2)
	assert.Contains(t, tx.calls[0].sql, `INSERT INTO "assessment_attempts" (id, "assessment_id"`)
	assert.Len(t, tx.calls[0].args, len(attempt.Columns())+1)
	assert.Equal(t, `DELETE FROM "courses" WHERE id = $1`, tx.calls[1].sql)
}

func TestStore_HookErrorRollsBack(t *testing.T) {
	tx := &recordingTx{tag: "UPDATE 1"}
	store := NewStore(tx)
	boom := errors.New("boom")

	_, err := store.Apply(context.Background(), nil, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, tx.committed)
}

func TestStore_UpdateOfMissingRow(t *testing.T) {
	tx := &recordingTx{tag: "UPDATE 0"}
	store := NewStore(tx)

	e := &learning.Enrollment{ID: "e-1"}
	_, err := store.Apply(context.Background(), []changeset.Change{
		{Entity: e, State: changeset.Modified, Changed: map[string]bool{"progress_percent": true}},
	}, nil)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.False(t, tx.committed)
}

func TestStore_ExecError(t *testing.T) {
	tx := &recordingTx{execErr: errors.New("conn reset")}
	store := NewStore(tx)

	_, err := store.Apply(context.Background(), []changeset.Change{
		{Entity: &learning.Course{ID: "c"}, State: changeset.Added},
	}, nil)
	assert.ErrorIs(t, err, tx.execErr)
}
