package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements gamification.AchievementRepository,
// gamification.EarnedRepository and gamification.StatsRepository.
type AchievementRepository struct {
	db  Querier
	now func() time.Time
}

var (
	_ gamification.AchievementRepository = (*AchievementRepository)(nil)
	_ gamification.EarnedRepository      = (*AchievementRepository)(nil)
	_ gamification.StatsRepository       = (*AchievementRepository)(nil)
)

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(db Querier) *AchievementRepository {
	return &AchievementRepository{db: db, now: timeutil.Now}
}

const achievementColumns = `id, code, name, description, criteria_type, threshold, points, COALESCE(course_id, ''), is_active`

func scanAchievement(row pgx.Row) (gamification.Achievement, error) {
	var a gamification.Achievement
	var criteriaType string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &criteriaType, &a.Criteria.Threshold, &a.Points, &a.CourseID, &a.IsActive)
	a.Criteria.Type = gamification.CriteriaType(criteriaType)
	return a, err
}

// ─────────────────────────────────────────────────────────────────────────────
// DEFINITIONS
// ─────────────────────────────────────────────────────────────────────────────

// ListActive returns active global definitions plus those of courseID.
func (r *AchievementRepository) ListActive(ctx context.Context, courseID string) ([]gamification.Achievement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+achievementColumns+`
		FROM achievements
		WHERE is_active AND (course_id IS NULL OR ($1 <> '' AND course_id = $1))
		ORDER BY points, code
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var result []gamification.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// GetByID returns one definition.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*gamification.Achievement, error) {
	a, err := scanAchievement(r.db.QueryRow(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, shared.ErrAchievementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	return &a, nil
}

// Save upserts a definition.
func (r *AchievementRepository) Save(ctx context.Context, a gamification.Achievement) error {
	if err := a.Validate(); err != nil {
		return err
	}
	var courseID *string
	if a.CourseID != "" {
		courseID = &a.CourseID
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO achievements (id, code, name, description, criteria_type, threshold, points, course_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			criteria_type = EXCLUDED.criteria_type,
			threshold = EXCLUDED.threshold,
			points = EXCLUDED.points,
			course_id = EXCLUDED.course_id,
			is_active = EXCLUDED.is_active
	`, a.ID, a.Code, a.Name, a.Description, string(a.Criteria.Type), a.Criteria.Threshold, a.Points, courseID, a.IsActive)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("gamification", "Save", shared.ErrAlreadyExists, "achievement code already used", err)
		}
		return fmt.Errorf("failed to save achievement: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// AWARDS
// ─────────────────────────────────────────────────────────────────────────────

// ListEarned returns all awards of a user, newest first.
func (r *AchievementRepository) ListEarned(ctx context.Context, userID string) ([]gamification.EarnedAchievement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, achievement_id, COALESCE(course_id, ''), points, earned_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY earned_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list earned achievements: %w", err)
	}
	defer rows.Close()

	var result []gamification.EarnedAchievement
	for rows.Next() {
		var e gamification.EarnedAchievement
		if err := rows.Scan(&e.UserID, &e.AchievementID, &e.CourseID, &e.Points, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned achievement: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Grant inserts an award. The unique (user_id, achievement_id) constraint
// makes a second grant a no-op reported as false.
func (r *AchievementRepository) Grant(ctx context.Context, e gamification.EarnedAchievement) (bool, error) {
	var courseID *string
	if e.CourseID != "" {
		courseID = &e.CourseID
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, course_id, points, earned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, e.UserID, e.AchievementID, courseID, e.Points, e.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("failed to grant achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// STATS
// ─────────────────────────────────────────────────────────────────────────────

// GetUserStats aggregates completed progress. An empty courseID means all courses.
func (r *AchievementRepository) GetUserStats(ctx context.Context, userID, courseID string) (gamification.UserStats, error) {
	stats := gamification.UserStats{UserID: userID, CourseID: courseID}

	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM lesson_progress l
				JOIN module_progress m ON m.id = l.module_progress_id
				JOIN enrollments e ON e.id = m.enrollment_id
				WHERE e.user_id = $1 AND ($2 = '' OR e.course_id = $2) AND l.completed_at IS NOT NULL),
			(SELECT count(*) FROM module_progress m
				JOIN enrollments e ON e.id = m.enrollment_id
				WHERE e.user_id = $1 AND ($2 = '' OR e.course_id = $2) AND m.completed_at IS NOT NULL),
			(SELECT count(*) FROM enrollments e
				WHERE e.user_id = $1 AND ($2 = '' OR e.course_id = $2) AND e.completed_at IS NOT NULL),
			(SELECT count(DISTINCT t.assessment_id) FROM assessment_attempts t
				JOIN assessments s ON s.id = t.assessment_id
				WHERE t.user_id = $1 AND ($2 = '' OR s.course_id = $2) AND t.is_passed)
	`, userID, courseID).Scan(&stats.LessonsCompleted, &stats.ModulesCompleted, &stats.CoursesCompleted, &stats.AssessmentsPassed)
	if err != nil {
		return stats, fmt.Errorf("failed to get user stats: %w", err)
	}

	days, err := r.activeDays(ctx, userID, courseID)
	if err != nil {
		return stats, err
	}
	stats.StreakDays = timeutil.CurrentStreak(days, r.now())
	return stats, nil
}

// activeDays returns the distinct UTC days with a lesson completion, newest first.
func (r *AchievementRepository) activeDays(ctx context.Context, userID, courseID string) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT date_trunc('day', l.completed_at AT TIME ZONE 'UTC') AS day
		FROM lesson_progress l
		JOIN module_progress m ON m.id = l.module_progress_id
		JOIN enrollments e ON e.id = m.enrollment_id
		WHERE e.user_id = $1 AND ($2 = '' OR e.course_id = $2) AND l.completed_at IS NOT NULL
		ORDER BY day DESC
		LIMIT 366
	`, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan activity day: %w", err)
		}
		days = append(days, d.UTC())
	}
	return days, rows.Err()
}
