package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfWeek(t *testing.T) {
	// Thursday 2026-10-15
	thu := time.Date(2026, 10, 15, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), StartOfWeek(thu))

	sun := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), StartOfWeek(sun))
}

func TestWeekKey(t *testing.T) {
	assert.Equal(t, "2026-W42", WeekKey(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2027-W01", WeekKey(time.Date(2027, 1, 4, 0, 0, 0, 0, time.UTC)))
}

func TestCurrentStreak(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, -offset) }

	assert.Equal(t, 0, CurrentStreak(nil, now))
	assert.Equal(t, 3, CurrentStreak([]time.Time{day(0), day(1), day(2), day(4)}, now))
	// Streak still alive if the learner was active yesterday but not yet today.
	assert.Equal(t, 2, CurrentStreak([]time.Time{day(1), day(2), day(2)}, now))
	assert.Equal(t, 0, CurrentStreak([]time.Time{day(2), day(3)}, now))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 10, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 10, 3, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, 2, DaysBetween(b, a))
	assert.True(t, IsConsecutiveDay(a, time.Date(2026, 10, 2, 5, 0, 0, 0, time.UTC)))
}
