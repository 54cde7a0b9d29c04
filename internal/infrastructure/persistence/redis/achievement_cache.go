package redis

import (
	"context"
	"errors"

	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// CachedAchievementRepository caches active definitions per course in front
// of another gamification.AchievementRepository. Cache failures fall
// through to the wrapped repository.
type CachedAchievementRepository struct {
	next  gamification.AchievementRepository
	cache *Cache
	log   *logger.Logger
}

var _ gamification.AchievementRepository = (*CachedAchievementRepository)(nil)

// NewCachedAchievementRepository wraps next.
func NewCachedAchievementRepository(next gamification.AchievementRepository, cache *Cache, log *logger.Logger) *CachedAchievementRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedAchievementRepository{next: next, cache: cache, log: log.With(logger.Component("achievement_cache"))}
}

func (r *CachedAchievementRepository) key(courseID string) string {
	if courseID == "" {
		courseID = "_global"
	}
	return r.cache.Key("achievements", courseID)
}

// ListActive returns cached definitions or loads and caches them.
func (r *CachedAchievementRepository) ListActive(ctx context.Context, courseID string) ([]gamification.Achievement, error) {
	var cached []gamification.Achievement
	err := r.cache.Get(ctx, r.key(courseID), &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.log.Warn("achievement cache read failed", logger.CourseID(courseID), logger.Err(err))
	}

	defs, err := r.next.ListActive(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, r.key(courseID), defs, TTLAchievements); err != nil {
		r.log.Warn("achievement cache write failed", logger.CourseID(courseID), logger.Err(err))
	}
	return defs, nil
}

// GetByID reads through to the wrapped repository.
func (r *CachedAchievementRepository) GetByID(ctx context.Context, id string) (*gamification.Achievement, error) {
	return r.next.GetByID(ctx, id)
}

// Save writes through and drops every cached definition list.
func (r *CachedAchievementRepository) Save(ctx context.Context, a gamification.Achievement) error {
	if err := r.next.Save(ctx, a); err != nil {
		return err
	}
	if err := r.cache.DeletePattern(ctx, r.cache.Key("achievements", "*")); err != nil {
		r.log.Warn("achievement cache invalidation failed", logger.Err(err))
	}
	return nil
}
