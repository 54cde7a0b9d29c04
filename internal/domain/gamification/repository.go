package gamification

import (
	"context"
)

// AchievementRepository reads achievement definitions.
type AchievementRepository interface {
	// ListActive returns active global definitions plus, when courseID is
	// non-empty, active definitions scoped to that course.
	ListActive(ctx context.Context, courseID string) ([]Achievement, error)

	// GetByID returns one definition.
	GetByID(ctx context.Context, id string) (*Achievement, error)

	// Save creates or updates a definition.
	Save(ctx context.Context, a Achievement) error
}

// EarnedRepository stores awards.
type EarnedRepository interface {
	// ListEarned returns all awards of a user, newest first.
	ListEarned(ctx context.Context, userID string) ([]EarnedAchievement, error)

	// Grant stores an award. It reports false without error when the
	// (user, achievement) pair already exists, which makes concurrent
	// evaluations for the same user safe.
	Grant(ctx context.Context, e EarnedAchievement) (bool, error)
}

// StatsRepository computes aggregate progress.
type StatsRepository interface {
	// GetUserStats returns the user's stats. An empty courseID means all courses.
	GetUserStats(ctx context.Context, userID, courseID string) (UserStats, error)
}
