package core

import (
	"time"

	"tila/pkg/models"
)

// calendarDay truncates t to midnight of its date in loc
func calendarDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// UpdateStreak applies one day of activity at now to stats, comparing calendar
// dates in loc. It reports whether the streak counters changed.
//
//   - same day as the last activity: counters untouched, timestamp refreshed
//   - the day after: current+1, longest raised to match
//   - anything else: current resets to 1
func UpdateStreak(stats *models.UserStats, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	today := calendarDay(now, loc)
	ts := now

	defer func() { stats.LastActivityDate = &ts }()

	if stats.LastActivityDate != nil {
		last := calendarDay(*stats.LastActivityDate, loc)
		switch {
		case last.Equal(today):
			return false
		case last.Equal(today.AddDate(0, 0, -1)):
			stats.CurrentStreak++
			if stats.CurrentStreak > stats.LongestStreak {
				stats.LongestStreak = stats.CurrentStreak
			}
			return true
		}
	}

	changed := stats.CurrentStreak != 1
	stats.CurrentStreak = 1
	if stats.LongestStreak < 1 {
		stats.LongestStreak = 1
		changed = true
	}
	return changed
}
