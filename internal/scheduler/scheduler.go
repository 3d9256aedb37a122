// Package scheduler arms notifications against the platform API and
// keeps the delivery ledger in step with what it armed.
//
// Every successful arm writes the kind ledger first and the aggregate
// cap ledger second. A crash between the two leaves the cap ledger
// under-counted, which fails toward allowing one extra send - never
// toward silently blocking all future sends.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/strideapp/nudge/internal/candidate"
	"github.com/strideapp/nudge/internal/config"
	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/notif"
)

// Scheduler computes next fire times, calls the platform, and records
// the results. It holds no mutable state of its own; all state lives in
// the ledger store.
type Scheduler struct {
	ledger    *ledger.Store
	notifier  notif.Notifier
	analytics notif.Analytics
	clock     notif.Clock
	cfg       config.Config
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock substitutes the wall clock. Used by tests and the CLI's
// offline reconcile.
func WithClock(c notif.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithAnalytics substitutes the analytics sink.
func WithAnalytics(a notif.Analytics) Option {
	return func(s *Scheduler) { s.analytics = a }
}

// WithConfig substitutes the engine config.
func WithConfig(cfg config.Config) Option {
	return func(s *Scheduler) { s.cfg = cfg }
}

// New creates a Scheduler with the system clock, a no-op analytics sink,
// and default config unless options override them.
func New(l *ledger.Store, n notif.Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		ledger:    l,
		notifier:  n,
		analytics: notif.NopAnalytics{},
		clock:     notif.SystemClock{},
		cfg:       config.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the scheduler's effective config.
func (s *Scheduler) Config() config.Config { return s.cfg }

// emit sends an analytics event. The sink is fire-and-forget by
// contract; a panicking sink must not take scheduling down with it.
func (s *Scheduler) emit(name string, attrs map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("analytics sink panicked", "event", name, "panic", r)
		}
	}()
	s.analytics.Event(name, attrs)
}

// ArmActivityReminder schedules a one-shot reminder for an activity and
// records the ledger entry. Re-arming an activity that already has a
// live reminder cancels the old platform schedule first, so at most one
// live entry exists per activity.
func (s *Scheduler) ArmActivityReminder(ctx context.Context, activityID string, fireAt time.Time) (string, error) {
	if activityID == "" {
		return "", fmt.Errorf("arm reminder: empty activity ID")
	}

	if prev, ok := s.ledger.Reminder(ctx, activityID); ok && prev.Live() {
		if err := s.notifier.Cancel(ctx, prev.NotificationID); err != nil {
			return "", fmt.Errorf("arm reminder for activity %s: cancel previous: %w", activityID, err)
		}
	}

	content := notif.NewContent(notif.KindActivityReminder, "Reminder", "You planned an activity for now.").
		WithPayload("activity_id", activityID)
	id, err := s.notifier.ScheduleOneShot(ctx, content, fireAt)
	if err != nil {
		return "", fmt.Errorf("arm reminder for activity %s: %w", activityID, err)
	}

	entry := ledger.ReminderEntry{
		ActivityID:     activityID,
		NotificationID: id,
		ScheduledFor:   fireAt,
	}
	if err := s.ledger.UpsertReminder(ctx, entry); err != nil {
		return "", err
	}

	slog.Info("activity reminder armed",
		"activity_id", activityID,
		"notification_id", id,
		"scheduled_for", fireAt,
	)
	s.emit(notif.EventScheduled, map[string]string{
		"kind":            string(notif.KindActivityReminder),
		"notification_id": id,
	})
	return id, nil
}

// CancelActivityReminder cancels the platform schedule and marks the
// ledger entry cancelled. Cancelling an activity with no live reminder
// is a no-op.
func (s *Scheduler) CancelActivityReminder(ctx context.Context, activityID string) error {
	entry, ok := s.ledger.Reminder(ctx, activityID)
	if !ok || !entry.Live() {
		return nil
	}

	if err := s.notifier.Cancel(ctx, entry.NotificationID); err != nil {
		return fmt.Errorf("cancel reminder for activity %s: %w", activityID, err)
	}
	if err := s.ledger.MarkReminderCancelled(ctx, activityID, s.clock.Now()); err != nil {
		return err
	}

	slog.Info("activity reminder cancelled",
		"activity_id", activityID,
		"notification_id", entry.NotificationID,
	)
	return nil
}

// ArmDailyShowUp ensures the recurring daily check-in is scheduled at
// the given local time. Re-arming with an unchanged time and a live
// handle is a no-op; a changed time replaces the recurrence.
func (s *Scheduler) ArmDailyShowUp(ctx context.Context, at notif.LocalTime) (string, error) {
	l := s.ledger.Daily(ctx, notif.KindDailyShowUp)

	if l.NotificationID != "" && l.ScheduleTimeLocal == at.String() {
		return l.NotificationID, nil
	}

	if l.NotificationID != "" {
		if err := s.notifier.Cancel(ctx, l.NotificationID); err != nil {
			return "", fmt.Errorf("arm daily show-up: cancel previous: %w", err)
		}
	}

	content := notif.NewContent(notif.KindDailyShowUp, "Show up", "A small step today keeps the streak alive.")
	id, err := s.notifier.ScheduleRecurring(ctx, content, at)
	if err != nil {
		return "", fmt.Errorf("arm daily show-up: %w", err)
	}

	next := at.NextAfter(s.clock.Now())
	l.NotificationID = id
	l.ScheduleTimeLocal = at.String()
	l.ScheduledFor = &next
	// LastFiredDateKey is untouched: re-arming is not a firing.
	if err := s.ledger.SaveDaily(ctx, notif.KindDailyShowUp, l); err != nil {
		return "", err
	}

	slog.Info("daily show-up armed", "notification_id", id, "at", at.String())
	s.emit(notif.EventScheduled, map[string]string{
		"kind":            string(notif.KindDailyShowUp),
		"notification_id": id,
	})
	return id, nil
}

// EnsureDailyFocus keeps exactly one future focus occurrence armed.
//
// When the day's target action is already complete, any occurrence still
// pending today is cancelled and tomorrow's is armed instead - a "do
// this" nudge must never fire for something already done. Otherwise the
// next occurrence is armed only if nothing is currently pending.
func (s *Scheduler) EnsureDailyFocus(ctx context.Context, at notif.LocalTime, completedToday bool) (string, error) {
	now := s.clock.Now()
	l := s.ledger.Daily(ctx, notif.KindDailyFocus)

	if completedToday {
		pendingToday := l.Armed() && notif.SameLocalDate(*l.ScheduledFor, now)
		if pendingToday {
			if err := s.notifier.Cancel(ctx, l.NotificationID); err != nil {
				return "", fmt.Errorf("ensure daily focus: cancel today: %w", err)
			}
			l.NotificationID = ""
			l.ScheduledFor = nil
		}
		if l.Armed() {
			// Already pointed at a future day.
			return l.NotificationID, nil
		}
		return s.armFocusAt(ctx, l, at, at.On(now.AddDate(0, 0, 1)))
	}

	if l.Armed() && l.ScheduledFor.After(now) {
		return l.NotificationID, nil
	}
	return s.armFocusAt(ctx, l, at, at.NextAfter(now))
}

func (s *Scheduler) armFocusAt(ctx context.Context, l ledger.DailyLedger, at notif.LocalTime, fireAt time.Time) (string, error) {
	content := notif.NewContent(notif.KindDailyFocus, "Today's focus", "Give your focus activity a few minutes.")
	id, err := s.notifier.ScheduleOneShot(ctx, content, fireAt)
	if err != nil {
		return "", fmt.Errorf("ensure daily focus: %w", err)
	}

	l.NotificationID = id
	l.ScheduleTimeLocal = at.String()
	l.ScheduledFor = &fireAt
	if err := s.ledger.SaveDaily(ctx, notif.KindDailyFocus, l); err != nil {
		return "", err
	}

	slog.Info("daily focus armed", "notification_id", id, "scheduled_for", fireAt)
	s.emit(notif.EventScheduled, map[string]string{
		"kind":            string(notif.KindDailyFocus),
		"notification_id": id,
	})
	return id, nil
}

// DisarmDaily cancels the platform schedule for a daily kind and clears
// its ledger. This is the "disable this notification kind" path and runs
// synchronously with the user's toggle.
func (s *Scheduler) DisarmDaily(ctx context.Context, kind notif.Kind) error {
	l := s.ledger.Daily(ctx, kind)
	if l.NotificationID != "" {
		if err := s.notifier.Cancel(ctx, l.NotificationID); err != nil {
			return fmt.Errorf("disarm %s: %w", kind, err)
		}
	}
	if err := s.ledger.ClearDaily(ctx, kind); err != nil {
		return err
	}
	slog.Info("daily kind disarmed", "kind", kind)
	return nil
}

// ArmGoalNudge schedules a one-shot goal nudge about the candidate at
// the next occurrence of the given local time. The caller is responsible
// for having applied the caps policy; this method just arms and records.
//
// Write order matters: kind ledger, then aggregate cap ledger.
func (s *Scheduler) ArmGoalNudge(ctx context.Context, cand candidate.Candidate, at notif.LocalTime) (string, error) {
	now := s.clock.Now()
	fireAt := at.NextAfter(now)

	content := notif.NewContent(notif.KindGoalNudge, cand.GoalTitle, fmt.Sprintf("Keep %s moving.", cand.ArcName)).
		WithPayload("goal_id", cand.GoalID)
	id, err := s.notifier.ScheduleOneShot(ctx, content, fireAt)
	if err != nil {
		return "", fmt.Errorf("arm goal nudge: %w", err)
	}

	l := s.ledger.Daily(ctx, notif.KindGoalNudge)
	l.NotificationID = id
	l.ScheduleTimeLocal = at.String()
	l.ScheduledFor = &fireAt
	l.GoalID = cand.GoalID
	if err := s.ledger.SaveDaily(ctx, notif.KindGoalNudge, l); err != nil {
		return "", err
	}

	agg := s.ledger.Aggregate(ctx)
	agg.RecordSent(notif.KindGoalNudge, id, fireAt, now)
	if err := s.ledger.SaveAggregate(ctx, agg); err != nil {
		return "", err
	}

	slog.Info("goal nudge armed",
		"notification_id", id,
		"goal_id", cand.GoalID,
		"scheduled_for", fireAt,
	)
	s.emit(notif.EventScheduled, map[string]string{
		"kind":            string(notif.KindGoalNudge),
		"notification_id": id,
		"goal_id":         cand.GoalID,
	})
	return id, nil
}

// ArmSetupNextStep schedules a one-shot setup nudge. Same contract as
// ArmGoalNudge: policy first at the caller, kind ledger before aggregate.
func (s *Scheduler) ArmSetupNextStep(ctx context.Context, reason string, at notif.LocalTime) (string, error) {
	now := s.clock.Now()
	fireAt := at.NextAfter(now)

	content := notif.NewContent(notif.KindSetupNextStep, "Finish setting up", reason)
	id, err := s.notifier.ScheduleOneShot(ctx, content, fireAt)
	if err != nil {
		return "", fmt.Errorf("arm setup next step: %w", err)
	}

	l := s.ledger.Daily(ctx, notif.KindSetupNextStep)
	l.NotificationID = id
	l.ScheduleTimeLocal = at.String()
	l.ScheduledFor = &fireAt
	l.Reason = reason
	if err := s.ledger.SaveDaily(ctx, notif.KindSetupNextStep, l); err != nil {
		return "", err
	}

	agg := s.ledger.Aggregate(ctx)
	agg.RecordSent(notif.KindSetupNextStep, id, fireAt, now)
	if err := s.ledger.SaveAggregate(ctx, agg); err != nil {
		return "", err
	}

	slog.Info("setup next step armed",
		"notification_id", id,
		"reason", reason,
		"scheduled_for", fireAt,
	)
	s.emit(notif.EventScheduled, map[string]string{
		"kind":            string(notif.KindSetupNextStep),
		"notification_id": id,
	})
	return id, nil
}
