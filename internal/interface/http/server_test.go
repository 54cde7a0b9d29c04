package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpath/learnpath-lms/internal/application/command"
	"github.com/learnpath/learnpath-lms/internal/application/query"
	"github.com/learnpath/learnpath-lms/internal/domain/learning"
	"github.com/learnpath/learnpath-lms/internal/domain/notification"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/internal/interface/http/handlers"
)

type fakeLessons struct {
	got command.CompleteLessonCommand
	err error
}

func (f *fakeLessons) Handle(_ context.Context, cmd command.CompleteLessonCommand) (*command.CompleteLessonResult, error) {
	f.got = cmd
	if f.err != nil {
		return nil, f.err
	}
	return &command.CompleteLessonResult{LessonProgressID: cmd.LessonProgressID, ModuleCompleted: true}, nil
}

type fakeAssessments struct {
	submitted command.SubmitAssessmentCommand
}

func (f *fakeAssessments) Start(_ context.Context, cmd command.StartAssessmentCommand) (*learning.AssessmentAttempt, error) {
	return &learning.AssessmentAttempt{ID: "att-1", AssessmentID: cmd.AssessmentID, UserID: cmd.UserID, StartedAt: cmd.StartedAt}, nil
}

func (f *fakeAssessments) Submit(_ context.Context, cmd command.SubmitAssessmentCommand) (*command.SubmitAssessmentResult, error) {
	f.submitted = cmd
	return &command.SubmitAssessmentResult{AttemptID: cmd.AttemptID, Score: cmd.Score, IsPassed: cmd.Score >= 70}, nil
}

type fakeLeaderboard struct {
	got query.GetLeaderboardQuery
	err error
}

func (f *fakeLeaderboard) Handle(_ context.Context, q query.GetLeaderboardQuery) (*query.GetLeaderboardResult, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return &query.GetLeaderboardResult{
		Scope:   q.Scope,
		Entries: []query.LeaderboardEntryDTO{{Rank: 1, UserID: "U", Points: 10}},
	}, nil
}

type fakeNotifications struct {
	list    []*notification.Notification
	readErr error
}

func (f *fakeNotifications) Save(context.Context, *notification.Notification) error { return nil }

func (f *fakeNotifications) ListByUser(context.Context, string, bool, int) ([]*notification.Notification, error) {
	return f.list, nil
}

func (f *fakeNotifications) MarkRead(context.Context, string, string, time.Time) error {
	return f.readErr
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCompleteLesson(t *testing.T) {
	lessons := &fakeLessons{}
	s := NewServer(DefaultConfig(), Dependencies{CompleteLesson: lessons})

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/lesson-progress/lp-1/complete",
		`{"completed_at":"2026-10-01T12:00:00Z"}`, map[string]string{handlers.HeaderUserID: "U"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lp-1", lessons.got.LessonProgressID)
	assert.Equal(t, "U", lessons.got.UserID)
	assert.Equal(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), lessons.got.CompletedAt.UTC())
	assert.Equal(t, true, decode(t, rec)["module_completed"])
	assert.NotEmpty(t, rec.Header().Get(handlers.HeaderRequestID))
}

func TestCompleteLesson_EmptyBody(t *testing.T) {
	lessons := &fakeLessons{}
	s := NewServer(DefaultConfig(), Dependencies{CompleteLesson: lessons})

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/lesson-progress/lp-1/complete", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, lessons.got.CompletedAt.IsZero())
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", shared.ErrLessonProgressNotFound, http.StatusNotFound, "not_found"},
		{"validation", shared.WrapError("learning", "CompleteLesson", shared.ErrInvalidInput, "validation failed", errors.New("x")), http.StatusBadRequest, "validation_error"},
		{"already completed", shared.ErrAlreadyCompleted, http.StatusConflict, "conflict"},
		{"unavailable", shared.NewDomainError("leaderboard", "Top", shared.ErrServiceUnavailable, "down"), http.StatusServiceUnavailable, "service_unavailable"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(DefaultConfig(), Dependencies{CompleteLesson: &fakeLessons{err: tt.err}})
			rec := do(t, s.Handler(), http.MethodPost, "/api/v1/lesson-progress/lp-1/complete", "", nil)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.code, body["error"].(map[string]any)["code"])
		})
	}
}

func TestSubmitAttempt(t *testing.T) {
	a := &fakeAssessments{}
	s := NewServer(DefaultConfig(), Dependencies{Assessments: a})

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/attempts/att-1/submit", `{"score":85}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 85.0, a.submitted.Score)
	assert.Equal(t, true, decode(t, rec)["is_passed"])

	rec = do(t, s.Handler(), http.MethodPost, "/api/v1/attempts/att-1/submit", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s.Handler(), http.MethodPost, "/api/v1/assessments/as-1/attempts", "", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "att-1", decode(t, rec)["attempt_id"])
}

func TestLeaderboardRoutes(t *testing.T) {
	lb := &fakeLeaderboard{}
	s := NewServer(DefaultConfig(), Dependencies{Leaderboard: lb})

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/leaderboard?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, lb.got.Limit)
	assert.Equal(t, "", lb.got.Scope)

	rec = do(t, s.Handler(), http.MethodGet, "/api/v1/courses/C1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "course:C1", lb.got.Scope)

	rec = do(t, s.Handler(), http.MethodGet, "/api/v1/leaderboard?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	lb.err = shared.ErrInvalidScope
	rec = do(t, s.Handler(), http.MethodGet, "/api/v1/leaderboard?scope=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifications(t *testing.T) {
	n, err := notification.New("U", notification.NotificationTypeAchievement, "First Steps", "+10 points", time.Now())
	require.NoError(t, err)
	repo := &fakeNotifications{list: []*notification.Notification{n}}
	s := NewServer(DefaultConfig(), Dependencies{Notifications: repo})

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/users/U/notifications?unread=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["notifications"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "First Steps", list[0].(map[string]any)["title"])

	rec = do(t, s.Handler(), http.MethodPost, "/api/v1/users/U/notifications/"+n.ID+"/read", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	repo.readErr = notification.ErrNotFound
	rec = do(t, s.Handler(), http.MethodPost, "/api/v1/users/U/notifications/x/read", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	hc := handlers.NewCompositeHealthChecker("test")
	hc.AddCheck("database", func(context.Context) error { return nil })
	s := NewServer(DefaultConfig(), Dependencies{Health: hc})

	rec := do(t, s.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	hc.AddCheck("cache", func(context.Context) error { return errors.New("refused") })
	rec = do(t, s.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Some checks failed: cache", decode(t, rec)["message"])
}

func TestRoutesOmittedWithoutDependencies(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/leaderboard", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecovery(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{CompleteLesson: panicking{}})
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/lesson-progress/lp-1/complete", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicking struct{}

func (panicking) Handle(context.Context, command.CompleteLessonCommand) (*command.CompleteLessonResult, error) {
	panic("boom")
}
