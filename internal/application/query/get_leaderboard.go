// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/leaderboard"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Reads the top of one board. The cache answers when the board is cached;
// otherwise the store answers and the cache is warmed with the full board.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery holds the query parameters.
type GetLeaderboardQuery struct {
	// Scope is a scope key: "global", "course:<id>" or "weekly:<period>".
	// Empty means global.
	Scope string

	// Limit defaults to 20 and is capped at 100.
	Limit int
}

// Validate normalizes the query.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Scope == "" {
		q.Scope = leaderboard.GlobalScope().Key()
	}
	return nil
}

// LeaderboardEntryDTO is one row of the response.
type LeaderboardEntryDTO struct {
	Rank      int        `json:"rank"`
	UserID    string     `json:"user_id"`
	Points    int        `json:"points"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// GetLeaderboardResult is the query result.
type GetLeaderboardResult struct {
	Scope       string                `json:"scope"`
	Entries     []LeaderboardEntryDTO `json:"entries"`
	FromCache   bool                  `json:"from_cache"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	store leaderboard.Store
	cache leaderboard.Cache
	log   *logger.Logger
}

// NewGetLeaderboardHandler creates the handler. cache may be nil.
func NewGetLeaderboardHandler(store leaderboard.Store, cache leaderboard.Cache, log *logger.Logger) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetLeaderboardHandler{store: store, cache: cache, log: log.With(logger.Component("get_leaderboard"))}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}
	scope, err := leaderboard.ParseScope(query.Scope)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		cached, err := h.cache.Top(ctx, scope, query.Limit)
		if err != nil {
			h.log.Warn("leaderboard cache read failed", logger.String("scope", scope.Key()), logger.Err(err))
		} else if len(cached) > 0 {
			return buildLeaderboardResult(scope, cached, true), nil
		}
	}

	entries, err := h.store.Top(ctx, scope, query.Limit)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrServiceUnavailable, "failed to read leaderboard", err)
	}

	h.warm(ctx, scope)
	return buildLeaderboardResult(scope, entries, false), nil
}

// warm loads the full board into the cache. The version is read before the
// store so a board that took a write in between is left for the next miss.
func (h *GetLeaderboardHandler) warm(ctx context.Context, scope leaderboard.Scope) {
	if h.cache == nil {
		return
	}
	version, err := h.cache.Version(ctx, scope)
	if err != nil {
		h.log.Warn("leaderboard cache warm-up failed", logger.String("scope", scope.Key()), logger.Err(err))
		return
	}
	all, err := h.store.All(ctx, scope)
	if err != nil || len(all) == 0 {
		return
	}
	loaded, err := h.cache.Fill(ctx, scope, all, version)
	if err != nil {
		h.log.Warn("leaderboard cache warm-up failed", logger.String("scope", scope.Key()), logger.Err(err))
		return
	}
	if !loaded {
		h.log.Debug("leaderboard cache warm-up skipped", logger.String("scope", scope.Key()))
	}
}

func buildLeaderboardResult(scope leaderboard.Scope, entries []*leaderboard.Entry, fromCache bool) *GetLeaderboardResult {
	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LeaderboardEntryDTO{Rank: int(e.Rank), UserID: e.UserID, Points: int(e.Points)}
		if !e.UpdatedAt.IsZero() {
			at := e.UpdatedAt
			dtos[i].UpdatedAt = &at
		}
	}
	return &GetLeaderboardResult{
		Scope:       scope.Key(),
		Entries:     dtos,
		FromCache:   fromCache,
		GeneratedAt: time.Now().UTC(),
	}
}
