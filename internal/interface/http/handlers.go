package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnpath/learnpath-lms/internal/application/command"
	"github.com/learnpath/learnpath-lms/internal/application/query"
	"github.com/learnpath/learnpath-lms/internal/domain/leaderboard"
	"github.com/learnpath/learnpath-lms/internal/domain/notification"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/internal/interface/http/handlers"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// APIError is the body of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Code: code, Message: message}})
}

// respondDomainError maps error kinds to statuses. Internal failures keep
// their details in the log only.
func (s *Server) respondDomainError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case shared.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
	case shared.IsNotFound(err), errors.Is(err, notification.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err), shared.IsConflict(err), errors.Is(err, notification.ErrAlreadyRead):
		respondError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrServiceUnavailable):
		respondError(c, http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "timeout", "Request timeout exceeded")
	default:
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("path", c.FullPath()), logger.Err(err))
		respondError(c, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

// callerID is the acting user. Authentication happens upstream.
func callerID(c *gin.Context) string {
	return c.GetHeader(handlers.HeaderUserID)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (s *Server) handleLive(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

type completeRequest struct {
	CompletedAt *time.Time `json:"completed_at"`
}

func (r completeRequest) at() time.Time {
	if r.CompletedAt == nil {
		return time.Time{}
	}
	return *r.CompletedAt
}

func (s *Server) handleCompleteLesson(c *gin.Context) {
	var req completeRequest
	if !bindOptional(c, &req) {
		return
	}

	res, err := s.deps.CompleteLesson.Handle(c.Request.Context(), command.CompleteLessonCommand{
		LessonProgressID: c.Param("id"),
		UserID:           callerID(c),
		CompletedAt:      req.at(),
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lesson_progress_id": res.LessonProgressID,
		"module_completed":   res.ModuleCompleted,
		"course_completed":   res.CourseCompleted,
		"completed_at":       res.CompletedAt,
	})
}

func (s *Server) handleCompleteModule(c *gin.Context) {
	var req completeRequest
	if !bindOptional(c, &req) {
		return
	}

	res, err := s.deps.CompleteModule.Handle(c.Request.Context(), command.CompleteModuleCommand{
		ModuleProgressID: c.Param("id"),
		UserID:           callerID(c),
		CompletedAt:      req.at(),
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"module_progress_id": res.ModuleProgressID,
		"course_completed":   res.CourseCompleted,
		"completed_at":       res.CompletedAt,
	})
}

func (s *Server) handleCompleteEnrollment(c *gin.Context) {
	var req completeRequest
	if !bindOptional(c, &req) {
		return
	}

	enr, err := s.deps.CompleteEnrollment.Handle(c.Request.Context(), command.CompleteEnrollmentCommand{
		EnrollmentID: c.Param("id"),
		UserID:       callerID(c),
		CompletedAt:  req.at(),
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enrollment_id":    enr.ID,
		"course_id":        enr.CourseID,
		"progress_percent": enr.ProgressPercent,
		"completed_at":     enr.CompletedAt,
	})
}

type lessonTimeRequest struct {
	Seconds int `json:"seconds" binding:"required"`
}

func (s *Server) handleRecordLessonTime(c *gin.Context) {
	var req lessonTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	total, err := s.deps.RecordLessonTime.Handle(c.Request.Context(), command.RecordLessonTimeCommand{
		LessonProgressID: c.Param("id"),
		UserID:           callerID(c),
		Seconds:          req.Seconds,
		At:               s.now(),
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lesson_progress_id": c.Param("id"),
		"time_spent_seconds": total,
	})
}

func (s *Server) handleStartAttempt(c *gin.Context) {
	attempt, err := s.deps.Assessments.Start(c.Request.Context(), command.StartAssessmentCommand{
		AssessmentID: c.Param("id"),
		UserID:       callerID(c),
		StartedAt:    s.now(),
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"attempt_id":    attempt.ID,
		"assessment_id": attempt.AssessmentID,
		"started_at":    attempt.StartedAt,
	})
}

type submitRequest struct {
	Score *float64 `json:"score" binding:"required"`
}

func (s *Server) handleSubmitAttempt(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	res, err := s.deps.Assessments.Submit(c.Request.Context(), command.SubmitAssessmentCommand{
		AttemptID:   c.Param("id"),
		UserID:      callerID(c),
		Score:       *req.Score,
		SubmittedAt: s.now(),
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id":   res.AttemptID,
		"score":        res.Score,
		"is_passed":    res.IsPassed,
		"completed_at": res.CompletedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	s.leaderboard(c, c.Query("scope"))
}

func (s *Server) handleGetCourseLeaderboard(c *gin.Context) {
	s.leaderboard(c, leaderboard.CourseScope(c.Param("id")).Key())
}

func (s *Server) leaderboard(c *gin.Context, scope string) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	res, err := s.deps.Leaderboard.Handle(c.Request.Context(), query.GetLeaderboardQuery{Scope: scope, Limit: limit})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetUserAchievements(c *gin.Context) {
	res, err := s.deps.UserAchievements.Handle(c.Request.Context(), query.GetUserAchievementsQuery{UserID: c.Param("id")})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// NotificationDTO is the wire form of a notification.
type NotificationDTO struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

func (s *Server) handleListNotifications(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	unreadOnly := c.Query("unread") == "true"

	list, err := s.deps.Notifications.ListByUser(c.Request.Context(), c.Param("id"), unreadOnly, limit)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}

	out := make([]NotificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, NotificationDTO{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
			ReadAt:    n.ReadAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("id"), "notifications": out})
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	err := s.deps.Notifications.MarkRead(c.Request.Context(), c.Param("id"), c.Param("nid"), s.now())
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_query", key+" must be an integer")
		return 0, false
	}
	return v, true
}
