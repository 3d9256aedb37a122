package notif

import (
	"fmt"
	"time"
)

// LocalTime is a wall-clock time of day ("HH:mm") interpreted in the
// device's current time zone at the moment of use. It is deliberately NOT
// an instant: a reminder configured for 08:00 stays at 08:00 across time
// zone changes.
type LocalTime struct {
	Hour   int
	Minute int
}

// ParseLocalTime parses a "HH:mm" wall-clock string.
func ParseLocalTime(s string) (LocalTime, error) {
	var lt LocalTime
	if len(s) != 5 || s[2] != ':' {
		return lt, fmt.Errorf("parse local time %q: want HH:mm", s)
	}
	if _, err := fmt.Sscanf(s, "%02d:%02d", &lt.Hour, &lt.Minute); err != nil {
		return lt, fmt.Errorf("parse local time %q: %w", s, err)
	}
	if lt.Hour < 0 || lt.Hour > 23 || lt.Minute < 0 || lt.Minute > 59 {
		return LocalTime{}, fmt.Errorf("parse local time %q: out of range", s)
	}
	return lt, nil
}

// String renders the canonical "HH:mm" form.
func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at which t occurs on day's calendar date, in
// day's location.
func (t LocalTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// NextAfter returns the next occurrence of t strictly after now: today if
// the time has not passed yet, otherwise tomorrow.
func (t LocalTime) NextAfter(now time.Time) time.Time {
	occ := t.On(now)
	if occ.After(now) {
		return occ
	}
	return t.On(now.AddDate(0, 0, 1))
}

// PassedOn reports whether t has already passed on now's calendar date.
func (t LocalTime) PassedOn(now time.Time) bool {
	return !t.On(now).After(now)
}

// DateKey returns the local calendar date key ("YYYY-MM-DD") for an
// instant, in the instant's location. Date keys drive daily-cap and
// estimated-firing bookkeeping.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SameLocalDate reports whether a and b fall on the same calendar date in
// their respective locations.
func SameLocalDate(a, b time.Time) bool {
	return DateKey(a) == DateKey(b)
}
