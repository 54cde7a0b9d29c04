// Package timeutil provides calendar helpers used for learning streaks
// and period leaderboards. All calculations are in UTC.
package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in UTC.
func StartOfWeek(t time.Time) time.Time {
	u := t.UTC()
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(u.AddDate(0, 0, -(weekday - 1)))
}

// WeekKey returns the ISO week identifier, e.g. "2026-W42".
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// IsSameDay checks if two times are on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	a1, a2 := t1.UTC(), t2.UTC()
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// IsConsecutiveDay checks if t2 is the day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return IsSameDay(t1.UTC().AddDate(0, 0, 1), t2)
}

// DaysBetween calculates the number of days between two times.
func DaysBetween(t1, t2 time.Time) int {
	days := int(StartOfDay(t2).Sub(StartOfDay(t1)).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// CurrentStreak counts consecutive active days ending today or yesterday.
// days may be unsorted and contain duplicates.
func CurrentStreak(days []time.Time, now time.Time) int {
	if len(days) == 0 {
		return 0
	}
	seen := make(map[time.Time]bool, len(days))
	for _, d := range days {
		seen[StartOfDay(d)] = true
	}

	cursor := StartOfDay(now)
	if !seen[cursor] {
		cursor = cursor.AddDate(0, 0, -1)
		if !seen[cursor] {
			return 0
		}
	}

	streak := 0
	for seen[cursor] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}
