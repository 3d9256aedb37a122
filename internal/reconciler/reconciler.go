// Package reconciler repairs drift between the delivery ledger and the
// platform's opaque scheduled set.
//
// The platform gives no delivery receipt, so "fired" is always an
// estimate built from two observable facts: an entry was scheduled, and
// it is no longer scheduled after its fire time. Every reconciliation
// pass re-derives what should be armed and corrects what is not.
//
// Each step is independently best-effort. A platform failure (permission
// revoked, transient OS error) is logged and skipped for that kind only;
// it never aborts the pass for the remaining kinds.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strideapp/nudge/internal/candidate"
	"github.com/strideapp/nudge/internal/config"
	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/notif"
	"github.com/strideapp/nudge/internal/policy"
	"github.com/strideapp/nudge/internal/scheduler"
)

// Trigger identifies what invoked a reconciliation pass.
type Trigger string

const (
	// TriggerLaunch is the one-time call at app launch.
	TriggerLaunch Trigger = "launch"

	// TriggerBackground is the periodic platform background wake. The
	// interval is a request, not a guarantee: the OS may coalesce,
	// delay, or skip invocations entirely.
	TriggerBackground Trigger = "background"
)

// Host is the read-only window into the app the reconciler needs: domain
// state for candidate selection, the user's preferences, and the two
// kind-specific questions it cannot answer from the ledger alone.
type Host interface {
	// Snapshot returns the current arcs/goals/activities.
	Snapshot(ctx context.Context) (candidate.Snapshot, error)

	// Preferences returns the user's current notification preferences.
	Preferences(ctx context.Context) (config.Preferences, error)

	// FocusCompletedToday reports whether the day's focus target action
	// is already done.
	FocusCompletedToday(ctx context.Context, day time.Time) (bool, error)

	// SetupNextStep returns why a setup nudge should exist, or "" when
	// setup is complete.
	SetupNextStep(ctx context.Context) (string, error)
}

// Reconciler compares the ledger's expectation of what should be
// scheduled against the platform's actual set and the wall clock, and
// corrects the difference.
type Reconciler struct {
	ledger    *ledger.Store
	notifier  notif.Notifier
	analytics notif.Analytics
	clock     notif.Clock
	sched     *scheduler.Scheduler
	host      Host
	cfg       config.Config
}

// New creates a Reconciler sharing the scheduler's clock, analytics, and
// config so both halves of the engine agree on time and limits.
func New(l *ledger.Store, n notif.Notifier, sched *scheduler.Scheduler, host Host, clock notif.Clock, analytics notif.Analytics) *Reconciler {
	return &Reconciler{
		ledger:    l,
		notifier:  n,
		analytics: analytics,
		clock:     clock,
		sched:     sched,
		host:      host,
		cfg:       sched.Config(),
	}
}

// Run executes one reconciliation pass. Kinds are processed
// independently; order between kinds carries no meaning, but within a
// kind the ledger read, platform check, and ledger write stay in
// sequence so no step acts on stale data.
//
// Run only returns an error when the context is cancelled. Per-kind
// failures are logged under the pass token and retried on the next
// trigger.
func (r *Reconciler) Run(ctx context.Context, trigger Trigger) error {
	pass := uuid.Must(uuid.NewV7()).String()
	now := r.clock.Now()
	log := slog.With("pass", pass, "trigger", string(trigger))
	log.Info("reconciliation pass starting")

	// One platform snapshot per pass. If the list call fails, absence
	// detection is impossible this pass - estimating firings from a
	// list we could not read would fabricate deliveries.
	live, haveList := r.listScheduled(ctx, log)

	prefs, err := r.host.Preferences(ctx)
	if err != nil {
		// Without preferences nothing can be armed, but past-due
		// bookkeeping on what was already scheduled still proceeds.
		log.Error("preferences unavailable, arming skipped this pass", "error", err)
		prefs = config.Preferences{}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if haveList {
		r.reconcileReminders(ctx, log, live, now)
		r.reconcileOneShotDaily(ctx, log, notif.KindGoalNudge, live, now)
		r.reconcileOneShotDaily(ctx, log, notif.KindSetupNextStep, live, now)
	}
	r.reconcileShowUp(ctx, log, prefs, live, haveList, now)
	r.reconcileFocus(ctx, log, prefs, live, haveList, now)
	r.rearmGoalNudge(ctx, log, prefs, now)
	r.rearmSetupNextStep(ctx, log, prefs, now)
	r.pruneAggregate(ctx, log, now)

	log.Info("reconciliation pass finished")
	return ctx.Err()
}

// listScheduled fetches the platform's live set as an ID lookup.
func (r *Reconciler) listScheduled(ctx context.Context, log *slog.Logger) (map[string]bool, bool) {
	scheduled, err := r.notifier.ListScheduled(ctx)
	if err != nil {
		log.Error("platform list failed, absence detection skipped", "error", err)
		return nil, false
	}
	live := make(map[string]bool, len(scheduled))
	for _, s := range scheduled {
		live[s.ID] = true
	}
	return live, true
}

// pastGrace reports whether an armed occurrence is overdue enough to
// judge. The grace window absorbs the platform's own firing latency so a
// notification mid-delivery is not misread as missing.
func (r *Reconciler) pastGrace(scheduledFor, now time.Time) bool {
	grace := time.Duration(r.cfg.GraceWindowSeconds) * time.Second
	return now.After(scheduledFor.Add(grace))
}

// reconcileReminders applies absence detection to activity reminders:
// an armed entry past its grace window whose handle is gone from the
// platform set has fired. The entry is marked, reported, and deleted.
func (r *Reconciler) reconcileReminders(ctx context.Context, log *slog.Logger, live map[string]bool, now time.Time) {
	entries, err := r.ledger.Reminders(ctx)
	if err != nil {
		log.Error("reminder scan failed", "error", err)
		return
	}

	for _, entry := range entries {
		if !entry.Live() || !r.pastGrace(entry.ScheduledFor, now) || live[entry.NotificationID] {
			continue
		}

		if err := r.ledger.MarkReminderFired(ctx, entry.ActivityID, now); err != nil {
			log.Error("mark reminder fired failed", "activity_id", entry.ActivityID, "error", err)
			continue
		}
		r.emitFired(notif.KindActivityReminder, entry.NotificationID)
		log.Info("reminder fired (estimated)",
			"activity_id", entry.ActivityID,
			"notification_id", entry.NotificationID,
			"scheduled_for", entry.ScheduledFor,
		)
		if err := r.ledger.DeleteReminder(ctx, entry.ActivityID); err != nil {
			log.Error("delete fired reminder failed", "activity_id", entry.ActivityID, "error", err)
		}
	}
}

// reconcileOneShotDaily applies absence detection to a one-shot daily
// kind (goal nudge, setup next step): clear the armed occurrence and
// advance LastFiredDateKey. Re-arming happens in the kind's own re-arm
// step so policy applies.
func (r *Reconciler) reconcileOneShotDaily(ctx context.Context, log *slog.Logger, kind notif.Kind, live map[string]bool, now time.Time) {
	l := r.ledger.Daily(ctx, kind)
	if !l.Armed() || !r.pastGrace(*l.ScheduledFor, now) || live[l.NotificationID] {
		return
	}

	id := l.NotificationID
	firedKey := notif.DateKey(l.ScheduledFor.In(now.Location()))
	l.NotificationID = ""
	l.ScheduledFor = nil
	l.GoalID = ""
	if firedKey > l.LastFiredDateKey {
		l.LastFiredDateKey = firedKey
	}
	if err := r.ledger.SaveDaily(ctx, kind, l); err != nil {
		log.Error("save fired daily ledger failed", "kind", kind, "error", err)
		return
	}

	r.emitFired(kind, id)
	log.Info("daily one-shot fired (estimated)", "kind", kind, "notification_id", id, "date", firedKey)
}

// reconcileShowUp handles the repeating kind. A recurring platform
// schedule never disappears when it fires, so firing is estimated purely
// from time: once per local date, after the configured time has passed.
// The estimate can never be cancelled retroactively - it is a heuristic,
// not a certainty.
func (r *Reconciler) reconcileShowUp(ctx context.Context, log *slog.Logger, prefs config.Preferences, live map[string]bool, haveList bool, now time.Time) {
	at, enabled := prefs.ShowUpTime()
	if !enabled {
		return
	}

	l := r.ledger.Daily(ctx, notif.KindDailyShowUp)

	// The OS can silently drop a recurrence across restarts. A handle
	// missing from the live set means the recurrence is gone, not fired.
	if haveList && l.NotificationID != "" && !live[l.NotificationID] {
		log.Info("daily show-up recurrence lost, re-arming", "notification_id", l.NotificationID)
		l.NotificationID = ""
		if err := r.ledger.SaveDaily(ctx, notif.KindDailyShowUp, l); err != nil {
			log.Error("save show-up ledger failed", "error", err)
			return
		}
	}

	if l.NotificationID == "" {
		// Nothing is armed. Estimation below assumes a live recurrence,
		// so an arm failure means skipping the kind for this pass, not
		// charging the cap for a firing that never could have happened.
		if _, err := r.sched.ArmDailyShowUp(ctx, at); err != nil {
			log.Error("re-arm daily show-up failed, skipping kind this pass", "error", err)
			return
		}
		l = r.ledger.Daily(ctx, notif.KindDailyShowUp)
		if l.NotificationID == "" {
			return
		}
	}

	today := notif.DateKey(now)
	if l.LastFiredDateKey == today || !at.PassedOn(now) {
		return
	}

	l.LastFiredDateKey = today
	if err := r.ledger.SaveDaily(ctx, notif.KindDailyShowUp, l); err != nil {
		log.Error("save show-up ledger failed", "error", err)
		return
	}

	agg := r.ledger.Aggregate(ctx)
	agg.RecordSent(notif.KindDailyShowUp, l.NotificationID, at.On(now), now)
	if err := r.ledger.SaveAggregate(ctx, agg); err != nil {
		log.Error("save aggregate failed", "kind", notif.KindDailyShowUp, "error", err)
	}

	r.emitFired(notif.KindDailyShowUp, l.NotificationID)
	log.Info("daily show-up fired (estimated)", "date", today)
}

// reconcileFocus self-heals the daily focus kind: estimate any past
// firing first, then make the armed state match whether today's target
// is already complete.
func (r *Reconciler) reconcileFocus(ctx context.Context, log *slog.Logger, prefs config.Preferences, live map[string]bool, haveList bool, now time.Time) {
	at, enabled := prefs.FocusTime()
	if !enabled {
		return
	}

	l := r.ledger.Daily(ctx, notif.KindDailyFocus)

	// Absence detection: focus is a one-shot under the hood.
	if haveList && l.Armed() && r.pastGrace(*l.ScheduledFor, now) && !live[l.NotificationID] {
		id := l.NotificationID
		firedKey := notif.DateKey(l.ScheduledFor.In(now.Location()))
		fired := *l.ScheduledFor
		l.NotificationID = ""
		l.ScheduledFor = nil
		if firedKey > l.LastFiredDateKey {
			l.LastFiredDateKey = firedKey
		}
		if err := r.ledger.SaveDaily(ctx, notif.KindDailyFocus, l); err != nil {
			log.Error("save focus ledger failed", "error", err)
			return
		}

		agg := r.ledger.Aggregate(ctx)
		agg.RecordSent(notif.KindDailyFocus, id, fired, now)
		if err := r.ledger.SaveAggregate(ctx, agg); err != nil {
			log.Error("save aggregate failed", "kind", notif.KindDailyFocus, "error", err)
		}

		r.emitFired(notif.KindDailyFocus, id)
		log.Info("daily focus fired (estimated)", "notification_id", id, "date", firedKey)
	}

	completed, err := r.host.FocusCompletedToday(ctx, now)
	if err != nil {
		log.Error("focus completion check failed", "error", err)
		return
	}

	if _, err := r.sched.EnsureDailyFocus(ctx, at, completed); err != nil {
		log.Error("ensure daily focus failed", "error", err)
	}
}

// rearmGoalNudge arms the next goal nudge when none is pending: pick a
// candidate, apply the caps policy, and schedule. No candidate or a
// policy denial means no notification - never a contentless one.
func (r *Reconciler) rearmGoalNudge(ctx context.Context, log *slog.Logger, prefs config.Preferences, now time.Time) {
	if !prefs.GoalNudge {
		return
	}
	if l := r.ledger.Daily(ctx, notif.KindGoalNudge); l.Armed() {
		return
	}

	snapshot, err := r.host.Snapshot(ctx)
	if err != nil {
		log.Error("domain snapshot failed", "error", err)
		return
	}
	cand := candidate.PickGoalNudge(snapshot, now)
	if cand == nil {
		log.Debug("no goal nudge candidate")
		return
	}

	agg := r.ledger.Aggregate(ctx)
	if denial := policy.CanSend(notif.KindGoalNudge, agg, now, r.cfg.Caps()); denial != nil {
		log.Debug("goal nudge suppressed", "rule", string(denial.Rule), "count", denial.Count, "limit", denial.Limit)
		return
	}

	at := r.sendTime(notif.KindGoalNudge, prefs, agg)
	if _, err := r.sched.ArmGoalNudge(ctx, *cand, at); err != nil {
		log.Error("arm goal nudge failed", "goal_id", cand.GoalID, "error", err)
	}
}

// rearmSetupNextStep arms the next setup nudge when the host reports an
// incomplete setup and policy allows another send today.
func (r *Reconciler) rearmSetupNextStep(ctx context.Context, log *slog.Logger, prefs config.Preferences, now time.Time) {
	if !prefs.SetupNextStep {
		return
	}
	if l := r.ledger.Daily(ctx, notif.KindSetupNextStep); l.Armed() {
		return
	}

	reason, err := r.host.SetupNextStep(ctx)
	if err != nil {
		log.Error("setup next step check failed", "error", err)
		return
	}
	if reason == "" {
		return
	}

	agg := r.ledger.Aggregate(ctx)
	if denial := policy.CanSend(notif.KindSetupNextStep, agg, now, r.cfg.Caps()); denial != nil {
		log.Debug("setup next step suppressed", "rule", string(denial.Rule), "count", denial.Count, "limit", denial.Limit)
		return
	}

	at, ok := r.cfg.DefaultTime(notif.KindSetupNextStep)
	if !ok {
		at = notif.LocalTime{Hour: 19}
	}
	if _, err := r.sched.ArmSetupNextStep(ctx, reason, at); err != nil {
		log.Error("arm setup next step failed", "error", err)
	}
}

// sendTime picks the local send time for a system nudge: the user's
// pinned time, then the kind's historically best open hour, then the
// config default.
func (r *Reconciler) sendTime(kind notif.Kind, prefs config.Preferences, agg *ledger.AggregateLedger) notif.LocalTime {
	if at, ok := prefs.NudgeTime(); ok {
		return at
	}
	if hour, ok := policy.PreferredHour(kind, agg); ok {
		return notif.LocalTime{Hour: hour}
	}
	if at, ok := r.cfg.DefaultTime(kind); ok {
		return at
	}
	return notif.LocalTime{Hour: 18}
}

// pruneAggregate bounds the aggregate ledger's day rollups.
func (r *Reconciler) pruneAggregate(ctx context.Context, log *slog.Logger, now time.Time) {
	agg := r.ledger.Aggregate(ctx)
	before := len(agg.Days)
	agg.Prune(notif.DateKey(now), r.cfg.RetainDays)
	if len(agg.Days) == before {
		return
	}
	if err := r.ledger.SaveAggregate(ctx, agg); err != nil {
		log.Error("save pruned aggregate failed", "error", err)
		return
	}
	log.Info("aggregate pruned", "dropped_days", before-len(agg.Days))
}

// emitFired reports an estimated firing. The sink is fire-and-forget; a
// panic must not abort the pass.
func (r *Reconciler) emitFired(kind notif.Kind, notificationID string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("analytics sink panicked", "event", notif.EventFiredEstimated, "panic", rec)
		}
	}()
	r.analytics.Event(notif.EventFiredEstimated, map[string]string{
		"kind":            string(kind),
		"notification_id": notificationID,
	})
}
