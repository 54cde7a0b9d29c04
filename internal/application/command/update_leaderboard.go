// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/internal/domain/leaderboard"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/logger"
	"github.com/learnpath/learnpath-lms/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE LEADERBOARD COMMAND
// Applies a point change to the global, course and weekly boards of a user.
// The store is the source of truth; the cache mirrors it for fast reads.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateLeaderboardHandler implements gamification.LeaderboardUpdater.
type UpdateLeaderboardHandler struct {
	store     leaderboard.Store
	cache     leaderboard.Cache
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
	retryOpts []retry.Option
}

var _ gamification.LeaderboardUpdater = (*UpdateLeaderboardHandler)(nil)

// NewUpdateLeaderboardHandler creates the handler. cache and publisher may be nil.
func NewUpdateLeaderboardHandler(
	store leaderboard.Store,
	cache leaderboard.Cache,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *UpdateLeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateLeaderboardHandler{
		store:     store,
		cache:     cache,
		publisher: publisher,
		log:       log.With(logger.Component("update_leaderboard")),
		now:       func() time.Time { return time.Now().UTC() },
		retryOpts: retry.StoreWrite(),
	}
}

// UpdateLeaderboard adds pointsDelta to every board of the user. The boards
// change together or not at all. A zero delta still places the user on
// each board.
func (h *UpdateLeaderboardHandler) UpdateLeaderboard(ctx context.Context, userID, courseID string, pointsDelta int) error {
	if userID == "" {
		return shared.ErrUserRequired
	}

	scopes := leaderboard.ScopesFor(courseID, h.now())
	delta := leaderboard.Points(pointsDelta)

	totals, err := h.store.AddPoints(ctx, scopes, userID, delta)
	if err != nil {
		return fmt.Errorf("update_leaderboard: %w", err)
	}

	// The cache only follows a committed store write.
	if h.cache != nil {
		var g errgroup.Group
		for _, scope := range scopes {
			g.Go(func() error {
				h.mirror(ctx, scope, userID, delta)
				return nil
			})
		}
		_ = g.Wait()
	}

	if h.publisher != nil {
		ev := shared.NewLeaderboardUpdatedEvent(userID, pointsDelta, int(totals[0]))
		if err := h.publisher.Publish(ev); err != nil {
			h.log.Warn("failed to publish leaderboard event", logger.UserID(userID), logger.Err(err))
		}
	}
	return nil
}

// mirror applies the delta to the cache. A cache that cannot be updated is
// invalidated so readers fall back to the store.
func (h *UpdateLeaderboardHandler) mirror(ctx context.Context, scope leaderboard.Scope, userID string, delta leaderboard.Points) {
	if h.cache == nil {
		return
	}
	err := retry.Do(ctx, func(ctx context.Context) error {
		_, _, err := h.cache.IncrBy(ctx, scope, userID, delta)
		return err
	}, h.retryOpts...)
	if err == nil {
		return
	}
	h.log.Warn("leaderboard cache update failed",
		logger.String("scope", scope.Key()),
		logger.UserID(userID),
		logger.Err(err),
	)
	if err := h.cache.Invalidate(ctx, scope); err != nil {
		h.log.Warn("leaderboard cache invalidation failed", logger.String("scope", scope.Key()), logger.Err(err))
	}
}
