package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/learnpath/learnpath-lms/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// One row per (scope_key, user_id). Totals only move through AddPoints.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Store for PostgreSQL.
type LeaderboardRepository struct {
	db Querier
}

var _ leaderboard.Store = (*LeaderboardRepository)(nil)

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(db Querier) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// txRunner is implemented by *Connection. A repository built on a pgx.Tx
// is already inside a transaction and runs the upserts directly.
type txRunner interface {
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// AddPoints upserts the user's row of every scope in one transaction.
func (r *LeaderboardRepository) AddPoints(ctx context.Context, scopes []leaderboard.Scope, userID string, delta leaderboard.Points) ([]leaderboard.Points, error) {
	for _, scope := range scopes {
		if err := scope.Validate(); err != nil {
			return nil, err
		}
	}

	totals := make([]leaderboard.Points, len(scopes))
	apply := func(q Querier) error {
		for i, scope := range scopes {
			total, err := addPoints(ctx, q, scope, userID, delta)
			if err != nil {
				return fmt.Errorf("scope %s: %w", scope.Key(), err)
			}
			totals[i] = total
		}
		return nil
	}

	var err error
	if tx, ok := r.db.(txRunner); ok {
		err = tx.InTx(ctx, apply)
	} else {
		err = apply(r.db)
	}
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func addPoints(ctx context.Context, q Querier, scope leaderboard.Scope, userID string, delta leaderboard.Points) (leaderboard.Points, error) {
	var total int
	err := q.QueryRow(ctx, `
		INSERT INTO leaderboard_entries (scope_key, user_id, points, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (scope_key, user_id) DO UPDATE SET
			points = leaderboard_entries.points + EXCLUDED.points,
			updated_at = NOW()
		RETURNING points
	`, scope.Key(), userID, int(delta)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	return leaderboard.Points(total), nil
}

// Top returns the highest totals of a scope. Ranks are shared on ties.
func (r *LeaderboardRepository) Top(ctx context.Context, scope leaderboard.Scope, limit int) ([]*leaderboard.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT RANK() OVER (ORDER BY points DESC) AS rank, user_id, points, updated_at
		FROM leaderboard_entries
		WHERE scope_key = $1
		ORDER BY points DESC, user_id
		LIMIT $2
	`, scope.Key(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top entries: %w", err)
	}
	return collectEntries(rows)
}

// All returns every total of a scope.
func (r *LeaderboardRepository) All(ctx context.Context, scope leaderboard.Scope) ([]*leaderboard.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT 0, user_id, points, updated_at
		FROM leaderboard_entries
		WHERE scope_key = $1
	`, scope.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	return collectEntries(rows)
}

// Scopes lists the scopes that have at least one row.
func (r *LeaderboardRepository) Scopes(ctx context.Context) ([]leaderboard.Scope, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT scope_key FROM leaderboard_entries ORDER BY scope_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan scopes: %w", err)
	}

	scopes := make([]leaderboard.Scope, 0, len(keys))
	for _, k := range keys {
		s, err := leaderboard.ParseScope(k)
		if err != nil {
			continue
		}
		scopes = append(scopes, s)
	}
	return scopes, nil
}

func collectEntries(rows pgx.Rows) ([]*leaderboard.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*leaderboard.Entry, error) {
		var e leaderboard.Entry
		var rank int64
		var points int
		if err := row.Scan(&rank, &e.UserID, &points, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Rank = leaderboard.Rank(rank)
		e.Points = leaderboard.Points(points)
		return &e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}
	return entries, nil
}
