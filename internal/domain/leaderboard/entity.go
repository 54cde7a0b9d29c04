// Package leaderboard contains the leaderboard model of LearnPath LMS.
// Points are accumulated per user in several scopes at once: a global board,
// one board per course and one board per ISO week.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank is a 1-based position on a board.
type Rank int

// IsValid reports whether the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 reports whether the rank is within the first ten places.
func (r Rank) IsTop10() bool {
	return r >= 1 && r <= 10
}

// String returns the rank as "#N".
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// Points are leaderboard points.
type Points int

// ScopeKind is the kind of board.
type ScopeKind string

const (
	// ScopeGlobal - all points of all courses.
	ScopeGlobal ScopeKind = "global"
	// ScopeCourse - points earned within one course.
	ScopeCourse ScopeKind = "course"
	// ScopeWeekly - points earned within one ISO week.
	ScopeWeekly ScopeKind = "weekly"
)

// Scope identifies one board.
type Scope struct {
	Kind ScopeKind

	// CourseID is set for ScopeCourse.
	CourseID string

	// Period is the ISO week key ("2026-W42") for ScopeWeekly.
	Period string
}

// GlobalScope returns the global board.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// CourseScope returns the board of a course.
func CourseScope(courseID string) Scope {
	return Scope{Kind: ScopeCourse, CourseID: courseID}
}

// WeeklyScope returns the board of the week containing at.
func WeeklyScope(at time.Time) Scope {
	return Scope{Kind: ScopeWeekly, Period: timeutil.WeekKey(at)}
}

// ScopesFor returns every board a point change of a user touches.
func ScopesFor(courseID string, at time.Time) []Scope {
	scopes := []Scope{GlobalScope(), WeeklyScope(at)}
	if courseID != "" {
		scopes = append(scopes, CourseScope(courseID))
	}
	return scopes
}

// Key returns the stable string form of the scope: "global",
// "course:<id>" or "weekly:<period>".
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeCourse:
		return string(ScopeCourse) + ":" + s.CourseID
	case ScopeWeekly:
		return string(ScopeWeekly) + ":" + s.Period
	default:
		return string(ScopeGlobal)
	}
}

// String implements fmt.Stringer.
func (s Scope) String() string {
	return s.Key()
}

// Validate checks the scope carries what its kind needs.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		return nil
	case ScopeCourse:
		if s.CourseID == "" {
			return ErrInvalidScope
		}
		return nil
	case ScopeWeekly:
		if s.Period == "" {
			return ErrInvalidScope
		}
		return nil
	default:
		return ErrInvalidScope
	}
}

// ParseScope parses the output of Scope.Key.
func ParseScope(key string) (Scope, error) {
	kind, rest, _ := strings.Cut(key, ":")
	var s Scope
	switch ScopeKind(kind) {
	case ScopeGlobal:
		if rest != "" {
			return Scope{}, ErrInvalidScope
		}
		s = GlobalScope()
	case ScopeCourse:
		s = CourseScope(rest)
	case ScopeWeekly:
		s = Scope{Kind: ScopeWeekly, Period: rest}
	default:
		return Scope{}, ErrInvalidScope
	}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one row of a board.
type Entry struct {
	Rank      Rank
	UserID    string
	Points    Points
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Ranking is an ordered board built from unordered point totals.
type Ranking struct {
	entries []*Entry
	byID    map[string]*Entry
}

// NewRanking creates an empty ranking.
func NewRanking() *Ranking {
	return &Ranking{
		entries: make([]*Entry, 0),
		byID:    make(map[string]*Entry),
	}
}

// Add appends an entry without sorting.
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return ErrNilEntry
	}
	if _, exists := r.byID[entry.UserID]; exists {
		return ErrDuplicateUser
	}
	r.entries = append(r.entries, entry)
	r.byID[entry.UserID] = entry
	return nil
}

// Sort orders by points descending and assigns ranks. Equal points share a
// rank and the next rank skips accordingly (1, 1, 3).
func (r *Ranking) Sort() {
	sort.Slice(r.entries, func(i, j int) bool {
		if r.entries[i].Points != r.entries[j].Points {
			return r.entries[i].Points > r.entries[j].Points
		}
		return r.entries[i].UserID < r.entries[j].UserID
	})

	for i, entry := range r.entries {
		if i > 0 && entry.Points == r.entries[i-1].Points {
			entry.Rank = r.entries[i-1].Rank
		} else {
			entry.Rank = Rank(i + 1)
		}
	}
}

// Get returns the entry of a user.
func (r *Ranking) Get(userID string) (*Entry, bool) {
	e, ok := r.byID[userID]
	return e, ok
}

// Top returns the first n entries.
func (r *Ranking) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	result := make([]*Entry, n)
	copy(result, r.entries[:n])
	return result
}

// Count returns the number of entries.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// All returns all entries in order.
func (r *Ranking) All() []*Entry {
	result := make([]*Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// Leaderboard errors.
var (
	ErrNilEntry      = errors.New("leaderboard: nil entry")
	ErrDuplicateUser = errors.New("leaderboard: duplicate user")
	ErrInvalidScope  = shared.ErrInvalidScope
)
