package gamification

import (
	"context"
)

// AwardRequest asks for every achievement the user now qualifies for.
// Empty CourseID and AssessmentID mean "not known".
type AwardRequest struct {
	UserID       string
	CourseID     string
	AssessmentID string
	Score        *float64
}

// Trigger returns the assessment part of the request.
func (r AwardRequest) Trigger() Trigger {
	return Trigger{AssessmentID: r.AssessmentID, Score: r.Score}
}

// AwardResult lists the achievements newly earned by one request.
type AwardResult struct {
	Earned []EarnedAchievement
	Points int
}

// HasNew reports whether anything was earned.
func (r AwardResult) HasNew() bool {
	return len(r.Earned) > 0
}

// AchievementAwarder awards achievements at most once per (user, achievement).
type AchievementAwarder interface {
	CheckAndAwardAchievements(ctx context.Context, req AwardRequest) (AwardResult, error)
}

// LeaderboardUpdater applies a point change to every board of the user.
// A zero delta still refreshes the user's standing.
type LeaderboardUpdater interface {
	UpdateLeaderboard(ctx context.Context, userID, courseID string, pointsDelta int) error
}

// Evaluator is the evaluation API driven after progress changes commit.
type Evaluator interface {
	AchievementAwarder
	LeaderboardUpdater
}

// NewEvaluator joins an awarder and an updater.
func NewEvaluator(a AchievementAwarder, u LeaderboardUpdater) Evaluator {
	return evaluator{AchievementAwarder: a, LeaderboardUpdater: u}
}

type evaluator struct {
	AchievementAwarder
	LeaderboardUpdater
}
