package ledger

import (
	"time"

	"github.com/strideapp/nudge/internal/notif"
)

// ReminderEntry is the ledger record for one activity's explicit reminder.
//
// Lifecycle: created when a reminder is (re)scheduled; CancelledAt set
// when the user clears the reminder or deletes the activity; FiredAt and
// FiredDetectedAt set by the reconciler; deleted after being marked fired
// so the ledger never grows without bound.
//
// At most one live (non-cancelled, non-fired) entry exists per activity.
type ReminderEntry struct {
	ActivityID     string    `json:"activity_id"`
	NotificationID string    `json:"notification_id"`
	ScheduledFor   time.Time `json:"scheduled_for"`

	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// FiredAt is the scheduled time, copied in once firing is confirmed.
	// FiredDetectedAt is when reconciliation actually noticed - the two
	// differ because firing is only ever detected after the fact.
	FiredAt         *time.Time `json:"fired_at,omitempty"`
	FiredDetectedAt *time.Time `json:"fired_detected_at,omitempty"`
}

// Live reports whether the entry still represents a pending notification.
func (e *ReminderEntry) Live() bool {
	return e.CancelledAt == nil && e.FiredAt == nil
}

// DailyLedger is the singleton record for one daily kind (show-up, focus,
// goal nudge, setup-next-step).
type DailyLedger struct {
	NotificationID string `json:"notification_id,omitempty"`

	// ScheduleTimeLocal is the configured "HH:mm" wall-clock time. It is
	// persisted as a local time string, never converted to UTC.
	ScheduleTimeLocal string `json:"schedule_time_local,omitempty"`

	// ScheduledFor is the instant of the currently-armed occurrence.
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`

	// LastFiredDateKey is the local calendar date ("YYYY-MM-DD") of the
	// last confirmed firing. It only advances forward; re-arming for
	// tomorrow must not touch it until tomorrow's firing is detected.
	LastFiredDateKey string `json:"last_fired_date_key,omitempty"`

	// GoalID is set for the goal nudge: the candidate the armed
	// occurrence is about.
	GoalID string `json:"goal_id,omitempty"`

	// Reason is set for setup-next-step: why the nudge exists.
	Reason string `json:"reason,omitempty"`
}

// Armed reports whether an occurrence is currently expected to fire.
func (l DailyLedger) Armed() bool {
	return l.NotificationID != "" && l.ScheduledFor != nil
}

// SentRecord is one nudge sent on a given local date, as recorded in the
// aggregate ledger.
type SentRecord struct {
	Kind           notif.Kind `json:"kind"`
	NotificationID string     `json:"notification_id"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	OpenedAt       *time.Time `json:"opened_at,omitempty"`
	ActedAt        *time.Time `json:"acted_at,omitempty"`
}

// AggregateLedger is the cross-kind record behind caps, backoff, and
// send-time personalization.
type AggregateLedger struct {
	// Days maps local date key to the nudges sent that day. Entries are
	// append/replace-by-kind-per-date: a (date, kind) pair is never
	// duplicated.
	Days map[string][]SentRecord `json:"days,omitempty"`

	LastSentAtByKind   map[notif.Kind]time.Time `json:"last_sent_at_by_kind,omitempty"`
	LastOpenedAtByKind map[notif.Kind]time.Time `json:"last_opened_at_by_kind,omitempty"`

	// ConsecutiveNoOpenByKind counts sends without a subsequent open,
	// reset to zero on open. The backoff rule in internal/policy consumes
	// it.
	ConsecutiveNoOpenByKind map[notif.Kind]int `json:"consecutive_no_open_by_kind,omitempty"`

	// SentCountByDate is the total nudges of any kind sent per local
	// date, the input to the global daily cap.
	SentCountByDate map[string]int `json:"sent_count_by_date,omitempty"`

	// OpenHourCountsByKind is a histogram of the local hour-of-day at
	// which opens occurred, per kind. Input to send-time personalization.
	OpenHourCountsByKind map[notif.Kind]map[int]int `json:"open_hour_counts_by_kind,omitempty"`
}

// ensure initializes nil maps after a fresh construction or a JSON decode
// of a record that omitted them.
func (a *AggregateLedger) ensure() {
	if a.Days == nil {
		a.Days = make(map[string][]SentRecord)
	}
	if a.LastSentAtByKind == nil {
		a.LastSentAtByKind = make(map[notif.Kind]time.Time)
	}
	if a.LastOpenedAtByKind == nil {
		a.LastOpenedAtByKind = make(map[notif.Kind]time.Time)
	}
	if a.ConsecutiveNoOpenByKind == nil {
		a.ConsecutiveNoOpenByKind = make(map[notif.Kind]int)
	}
	if a.SentCountByDate == nil {
		a.SentCountByDate = make(map[string]int)
	}
	if a.OpenHourCountsByKind == nil {
		a.OpenHourCountsByKind = make(map[notif.Kind]map[int]int)
	}
}

// SentOn returns how many nudges of the given kind were sent on the local
// date key.
func (a *AggregateLedger) SentOn(dateKey string, kind notif.Kind) int {
	n := 0
	for _, rec := range a.Days[dateKey] {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

// TotalSentOn returns the total nudge count of any kind for the local
// date key.
func (a *AggregateLedger) TotalSentOn(dateKey string) int {
	return a.SentCountByDate[dateKey]
}

// RecordSent records a nudge send in the aggregate. Any existing record
// for the same (date, kind) pair is replaced, preserving the
// no-duplicates invariant.
func (a *AggregateLedger) RecordSent(kind notif.Kind, notificationID string, scheduledFor, now time.Time) {
	a.ensure()

	dateKey := notif.DateKey(scheduledFor)
	rec := SentRecord{
		Kind:           kind,
		NotificationID: notificationID,
		ScheduledFor:   scheduledFor,
	}

	replaced := false
	day := a.Days[dateKey]
	for i := range day {
		if day[i].Kind == kind {
			day[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		day = append(day, rec)
		a.SentCountByDate[dateKey]++
	}
	a.Days[dateKey] = day

	a.LastSentAtByKind[kind] = now
	a.ConsecutiveNoOpenByKind[kind]++
}

// RecordOpened records a tap/open for a previously sent nudge: stamps the
// day record, resets the kind's no-open counter, and bumps the open-hour
// histogram.
func (a *AggregateLedger) RecordOpened(notificationID string, kind notif.Kind, openedAt time.Time) {
	a.ensure()

	for dateKey, day := range a.Days {
		for i := range day {
			if day[i].NotificationID == notificationID {
				at := openedAt
				day[i].OpenedAt = &at
				a.Days[dateKey] = day
			}
		}
	}

	a.LastOpenedAtByKind[kind] = openedAt
	a.ConsecutiveNoOpenByKind[kind] = 0

	hours := a.OpenHourCountsByKind[kind]
	if hours == nil {
		hours = make(map[int]int)
		a.OpenHourCountsByKind[kind] = hours
	}
	hours[openedAt.Hour()]++
}

// Prune drops day rollups older than retainDays relative to today's local
// date key, bounding ledger growth. Per-kind counters and histograms are
// kept: they are tiny and feed long-horizon heuristics.
func (a *AggregateLedger) Prune(todayKey string, retainDays int) {
	if retainDays <= 0 {
		return
	}
	today, err := time.Parse("2006-01-02", todayKey)
	if err != nil {
		return
	}
	cutoff := notif.DateKey(today.AddDate(0, 0, -retainDays))

	for dateKey := range a.Days {
		if dateKey < cutoff {
			delete(a.Days, dateKey)
		}
	}
	for dateKey := range a.SentCountByDate {
		if dateKey < cutoff {
			delete(a.SentCountByDate, dateKey)
		}
	}
}
