package notif

import (
	"context"
	"errors"
	"time"
)

// ErrPermissionDenied is returned by a Notifier when the user has revoked
// the notification permission. The engine treats it as a per-kind skip,
// never a fatal condition.
var ErrPermissionDenied = errors.New("notification permission denied")

// Scheduled is one entry in the platform's live scheduled-notification set.
type Scheduled struct {
	ID     string
	FireAt time.Time
	Kind   Kind
}

// Notifier is the platform notification API.
//
// All calls are best-effort: the platform may silently drop scheduled
// entries across OS restarts or updates, and gives no delivery receipt.
// The reconciler treats "present in ListScheduled" and "absent after its
// fire time" as the only two observable facts.
type Notifier interface {
	// ScheduleOneShot schedules exactly one future fire and returns the
	// platform-assigned handle.
	ScheduleOneShot(ctx context.Context, content Content, fireAt time.Time) (string, error)

	// ScheduleRecurring schedules a repeating daily fire at the given
	// local wall-clock time. The platform keeps the recurrence alive.
	ScheduleRecurring(ctx context.Context, content Content, at LocalTime) (string, error)

	// Cancel removes a scheduled notification. Cancelling an unknown
	// handle is a no-op.
	Cancel(ctx context.Context, id string) error

	// ListScheduled returns the platform's current scheduled set.
	ListScheduled(ctx context.Context) ([]Scheduled, error)
}

// Analytics is a fire-and-forget event sink. Implementations must never
// block or panic into the engine's call path; failures are swallowed.
type Analytics interface {
	Event(name string, attrs map[string]string)
}

// Analytics event names emitted by the engine.
const (
	EventScheduled      = "notification_scheduled"
	EventFiredEstimated = "notification_fired_estimated"
	EventOpened         = "notification_opened"
)

// NopAnalytics discards all events.
type NopAnalytics struct{}

// Event implements Analytics.
func (NopAnalytics) Event(string, map[string]string) {}

// Clock abstracts wall-clock time so scheduling and reconciliation are
// testable at fixed instants.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
