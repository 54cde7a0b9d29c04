package query

import (
	"context"
	"errors"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
)

// GetUserAchievementsQuery lists what a user has earned.
type GetUserAchievementsQuery struct {
	UserID string
}

// Validate validates the query.
func (q GetUserAchievementsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// EarnedAchievementDTO is one earned achievement.
type EarnedAchievementDTO struct {
	AchievementID string    `json:"achievement_id"`
	Code          string    `json:"code,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CourseID      string    `json:"course_id,omitempty"`
	Points        int       `json:"points"`
	EarnedAt      time.Time `json:"earned_at"`
}

// GetUserAchievementsResult is the query result.
type GetUserAchievementsResult struct {
	UserID       string                 `json:"user_id"`
	Achievements []EarnedAchievementDTO `json:"achievements"`
	TotalPoints  int                    `json:"total_points"`
}

// GetUserAchievementsHandler handles GetUserAchievementsQuery.
type GetUserAchievementsHandler struct {
	earned       gamification.EarnedRepository
	achievements gamification.AchievementRepository
}

// NewGetUserAchievementsHandler creates the handler.
func NewGetUserAchievementsHandler(earned gamification.EarnedRepository, achievements gamification.AchievementRepository) *GetUserAchievementsHandler {
	return &GetUserAchievementsHandler{earned: earned, achievements: achievements}
}

// Handle executes the query.
func (h *GetUserAchievementsHandler) Handle(ctx context.Context, q GetUserAchievementsQuery) (*GetUserAchievementsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetUserAchievements", shared.ErrValidation, err.Error(), err)
	}

	earned, err := h.earned.ListEarned(ctx, q.UserID)
	if err != nil {
		return nil, shared.WrapError("query", "GetUserAchievements", shared.ErrServiceUnavailable, "failed to list achievements", err)
	}

	res := &GetUserAchievementsResult{
		UserID:       q.UserID,
		Achievements: make([]EarnedAchievementDTO, 0, len(earned)),
	}
	defs := make(map[string]*gamification.Achievement)
	for _, e := range earned {
		dto := EarnedAchievementDTO{
			AchievementID: e.AchievementID,
			CourseID:      e.CourseID,
			Points:        e.Points,
			EarnedAt:      e.EarnedAt,
		}
		def, ok := defs[e.AchievementID]
		if !ok {
			// A definition deleted after the award still leaves the award listed.
			def, _ = h.achievements.GetByID(ctx, e.AchievementID)
			defs[e.AchievementID] = def
		}
		if def != nil {
			dto.Code = def.Code
			dto.Name = def.Name
			dto.Description = def.Description
		} else {
			dto.Name = e.AchievementID
		}
		res.Achievements = append(res.Achievements, dto)
		res.TotalPoints += e.Points
	}
	return res, nil
}
