package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tila/pkg/models"
)

func at(day int, hour int) time.Time {
	return time.Date(2026, time.March, day, hour, 0, 0, 0, time.UTC)
}

func statsAt(last time.Time, current, longest int) *models.UserStats {
	s := models.NewUserStats("u")
	s.LastActivityDate = &last
	s.CurrentStreak = current
	s.LongestStreak = longest
	return s
}

func TestUpdateStreakFirstActivity(t *testing.T) {
	s := models.NewUserStats("u")

	changed := UpdateStreak(s, at(10, 9), time.UTC)

	assert.True(t, changed)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 1, s.LongestStreak)
	require.NotNil(t, s.LastActivityDate)
	assert.Equal(t, at(10, 9), *s.LastActivityDate)
}

func TestUpdateStreakContinuity(t *testing.T) {
	cases := []struct {
		name        string
		current     int
		longest     int
		wantCurrent int
		wantLongest int
	}{
		{"extends and raises longest", 3, 3, 4, 4},
		{"extends below longest", 2, 9, 3, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := statsAt(at(10, 23), tc.current, tc.longest)

			assert.True(t, UpdateStreak(s, at(11, 0), time.UTC))
			assert.Equal(t, tc.wantCurrent, s.CurrentStreak)
			assert.Equal(t, tc.wantLongest, s.LongestStreak)
			assert.Equal(t, at(11, 0), *s.LastActivityDate)
		})
	}
}

func TestUpdateStreakReset(t *testing.T) {
	for _, gap := range []int{2, 3, 30} {
		s := statsAt(at(1, 12), 6, 6)

		UpdateStreak(s, at(1+gap, 12), time.UTC)

		assert.Equal(t, 1, s.CurrentStreak, "gap %d", gap)
		assert.Equal(t, 6, s.LongestStreak, "gap %d", gap)
	}
}

func TestUpdateStreakSameDayIsIdempotent(t *testing.T) {
	s := statsAt(at(10, 1), 4, 5)

	assert.False(t, UpdateStreak(s, at(10, 8), time.UTC))
	assert.False(t, UpdateStreak(s, at(10, 22), time.UTC))

	assert.Equal(t, 4, s.CurrentStreak)
	assert.Equal(t, 5, s.LongestStreak)
	assert.Equal(t, at(10, 22), *s.LastActivityDate)
}

func TestUpdateStreakUsesLocationCalendar(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)

	// 20:00 UTC on the 10th is already the 11th in Tokyo
	s := statsAt(time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), 1, 1)
	UpdateStreak(s, time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC), tokyo)
	assert.Equal(t, 2, s.CurrentStreak)

	s = statsAt(time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), 1, 1)
	UpdateStreak(s, time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, 1, s.CurrentStreak)
}

func TestUpdateStreakNilLocationIsUTC(t *testing.T) {
	s := statsAt(at(10, 12), 1, 1)
	UpdateStreak(s, at(11, 12), nil)
	assert.Equal(t, 2, s.CurrentStreak)
}
