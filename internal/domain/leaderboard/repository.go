package leaderboard

import (
	"context"
)

// Store is the persistent source of truth for board totals.
type Store interface {
	// AddPoints adds delta to the user's total in every scope, creating rows
	// when missing, and returns the new totals in scope order. Either every
	// scope changes or none does. A zero delta still creates the rows so the
	// user appears on the boards.
	AddPoints(ctx context.Context, scopes []Scope, userID string, delta Points) ([]Points, error)

	// Top returns the highest totals of a scope, ranked.
	Top(ctx context.Context, scope Scope, limit int) ([]*Entry, error)

	// All returns every total of a scope, unordered.
	All(ctx context.Context, scope Scope) ([]*Entry, error)

	// Scopes lists the scopes that have at least one row.
	Scopes(ctx context.Context) ([]Scope, error)
}

// Cache mirrors boards for fast reads.
type Cache interface {
	// IncrBy adds delta to the user's score in scope and returns the new
	// score. It reports false and changes nothing when the board is not
	// cached, so a partial board is never built from increments alone.
	// Either way it bumps the scope's version.
	IncrBy(ctx context.Context, scope Scope, userID string, delta Points) (Points, bool, error)

	// Version returns the scope's write counter for a later Fill.
	Version(ctx context.Context, scope Scope) (int64, error)

	// Fill loads a board that is not cached yet, unless an IncrBy ran after
	// version was read. It reports whether the board was loaded.
	Fill(ctx context.Context, scope Scope, entries []*Entry, version int64) (bool, error)

	// Top returns the highest scores of a scope, ranked.
	// An empty result means the board is not cached.
	Top(ctx context.Context, scope Scope, limit int) ([]*Entry, error)

	// Replace overwrites a cached board.
	Replace(ctx context.Context, scope Scope, entries []*Entry) error

	// Invalidate drops a cached board.
	Invalidate(ctx context.Context, scope Scope) error
}
