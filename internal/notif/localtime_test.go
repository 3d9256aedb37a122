package notif

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalTime_Valid(t *testing.T) {
	lt, err := ParseLocalTime("08:00")
	require.NoError(t, err)
	assert.Equal(t, 8, lt.Hour)
	assert.Equal(t, 0, lt.Minute)
	assert.Equal(t, "08:00", lt.String())

	lt, err = ParseLocalTime("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, lt.Hour)
	assert.Equal(t, 59, lt.Minute)
}

func TestParseLocalTime_Invalid(t *testing.T) {
	for _, raw := range []string{"", "8:00", "08:60", "24:00", "0800", "08-00", "ab:cd"} {
		_, err := ParseLocalTime(raw)
		assert.Error(t, err, "input %q", raw)
	}
}

func TestLocalTime_NextAfter_TodayStillAhead(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 1, 22, 7, 30, 0, 0, loc)

	next := LocalTime{Hour: 8}.NextAfter(now)
	assert.Equal(t, time.Date(2026, 1, 22, 8, 0, 0, 0, loc), next)
}

func TestLocalTime_NextAfter_TodayPassed(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 1, 22, 9, 30, 0, 0, loc)

	next := LocalTime{Hour: 8}.NextAfter(now)
	assert.Equal(t, time.Date(2026, 1, 23, 8, 0, 0, 0, loc), next)
}

func TestLocalTime_NextAfter_ExactlyNowGoesTomorrow(t *testing.T) {
	// "strictly after now": an occurrence at this very instant already
	// belongs to the platform, not to a fresh schedule.
	now := time.Date(2026, 1, 22, 8, 0, 0, 0, time.UTC)

	next := LocalTime{Hour: 8}.NextAfter(now)
	assert.Equal(t, time.Date(2026, 1, 23, 8, 0, 0, 0, time.UTC), next)
}

func TestLocalTime_PassedOn(t *testing.T) {
	now := time.Date(2026, 1, 22, 8, 5, 0, 0, time.UTC)
	assert.True(t, LocalTime{Hour: 8}.PassedOn(now))
	assert.False(t, LocalTime{Hour: 8, Minute: 6}.PassedOn(now))
	// Boundary counts as passed.
	assert.True(t, LocalTime{Hour: 8, Minute: 5}.PassedOn(now))
}

func TestDateKey_UsesInstantLocation(t *testing.T) {
	// 23:30 in UTC+9 is the 22nd locally but the 21st in UTC. The date
	// key must follow the local calendar.
	loc := time.FixedZone("UTC+9", 9*60*60)
	local := time.Date(2026, 1, 22, 0, 30, 0, 0, loc)

	assert.Equal(t, "2026-01-22", DateKey(local))
	assert.Equal(t, "2026-01-21", DateKey(local.UTC()))
}

func TestSameLocalDate(t *testing.T) {
	a := time.Date(2026, 1, 22, 0, 1, 0, 0, time.UTC)
	b := time.Date(2026, 1, 22, 23, 59, 0, 0, time.UTC)
	c := time.Date(2026, 1, 23, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameLocalDate(a, b))
	assert.False(t, SameLocalDate(b, c))
}
