package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/strideapp/nudge/internal/config"
	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/notif"
	"github.com/strideapp/nudge/internal/reconciler"
	"github.com/strideapp/nudge/internal/scheduler"
)

// ErrStopped is returned for calls made after the engine shut down.
var ErrStopped = errors.New("engine stopped")

// Engine is the host-facing facade over the scheduler and reconciler.
//
// Every public call is serialized through a single-writer job queue
// drained by Run: foreground mutations, the launch hook, and background
// wakes can overlap in time, yet their ledger read-modify-write
// sequences never interleave. Callers still get synchronous results -
// each call blocks until its job has run.
type Engine struct {
	queue     *jobQueue
	ledger    *ledger.Store
	sched     *scheduler.Scheduler
	rec       *reconciler.Reconciler
	analytics notif.Analytics
	clock     notif.Clock
	cfg       config.Config
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	clock     notif.Clock
	analytics notif.Analytics
	cfg       config.Config
}

// WithClock substitutes the wall clock.
func WithClock(c notif.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithAnalytics substitutes the analytics sink.
func WithAnalytics(a notif.Analytics) Option {
	return func(o *options) { o.analytics = a }
}

// WithConfig substitutes the engine config.
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// New wires an Engine over a key/value store, the platform notifier, and
// the host's read-only interface.
func New(kv ledger.KV, notifier notif.Notifier, host reconciler.Host, opts ...Option) *Engine {
	o := options{
		clock:     notif.SystemClock{},
		analytics: notif.NopAnalytics{},
		cfg:       config.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	l := ledger.New(kv)
	sched := scheduler.New(l, notifier,
		scheduler.WithClock(o.clock),
		scheduler.WithAnalytics(o.analytics),
		scheduler.WithConfig(o.cfg),
	)

	return &Engine{
		queue:     newJobQueue(),
		ledger:    l,
		sched:     sched,
		rec:       reconciler.New(l, notifier, sched, host, o.clock, o.analytics),
		analytics: o.analytics,
		clock:     o.clock,
		cfg:       o.cfg,
	}
}

// Run drains the job queue until the context is cancelled or Stop is
// called. Must be called from exactly one goroutine: the single-writer
// guarantee is the engine's whole concurrency model.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("notification engine starting")

	for {
		j, ok := e.queue.TryDequeue()
		if ok {
			j.done <- j.fn(ctx)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("notification engine stopping: context cancelled")
			e.queue.Close()
			e.queue.drain(ctx.Err())
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Len() == 0 {
				slog.Info("notification engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine. Queued jobs finish; new calls
// fail with ErrStopped.
func (e *Engine) Stop() {
	e.queue.Close()
}

// do runs fn on the single-writer loop and waits for its result.
func (e *Engine) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	j := job{name: name, fn: fn, done: make(chan error, 1)}
	if !e.queue.Enqueue(j) {
		return fmt.Errorf("%s: %w", name, ErrStopped)
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		// The job may still run; its ledger writes stay consistent
		// because the loop owns them. Only the caller stops waiting.
		return ctx.Err()
	}
}

// ArmReminder schedules an explicit activity reminder. User-driven,
// never subject to caps.
func (e *Engine) ArmReminder(ctx context.Context, activityID string, fireAt time.Time) error {
	return e.do(ctx, "arm reminder", func(ctx context.Context) error {
		_, err := e.sched.ArmActivityReminder(ctx, activityID, fireAt)
		return err
	})
}

// CancelReminder clears an activity's reminder: platform schedule
// cancelled synchronously, ledger entry marked.
func (e *Engine) CancelReminder(ctx context.Context, activityID string) error {
	return e.do(ctx, "cancel reminder", func(ctx context.Context) error {
		return e.sched.CancelActivityReminder(ctx, activityID)
	})
}

// ApplyPreferences re-derives which daily kinds are armed. Disabled
// kinds are disarmed synchronously (platform cancel plus ledger clear);
// enabling a system-initiated kind takes effect on the next reconcile so
// arming always goes through candidate selection and the caps policy.
func (e *Engine) ApplyPreferences(ctx context.Context, prefs config.Preferences) error {
	return e.do(ctx, "apply preferences", func(ctx context.Context) error {
		if err := prefs.Validate(); err != nil {
			return fmt.Errorf("apply preferences: %w", err)
		}

		var errs []error

		if at, ok := prefs.ShowUpTime(); ok {
			if _, err := e.sched.ArmDailyShowUp(ctx, at); err != nil {
				errs = append(errs, err)
			}
		} else if err := e.sched.DisarmDaily(ctx, notif.KindDailyShowUp); err != nil {
			errs = append(errs, err)
		}

		if _, ok := prefs.FocusTime(); !ok {
			if err := e.sched.DisarmDaily(ctx, notif.KindDailyFocus); err != nil {
				errs = append(errs, err)
			}
		}
		// An enabled focus kind is (re)armed by the reconciler, which
		// also knows whether today's target is already complete.

		if !prefs.GoalNudge {
			if err := e.sched.DisarmDaily(ctx, notif.KindGoalNudge); err != nil {
				errs = append(errs, err)
			}
		}
		if !prefs.SetupNextStep {
			if err := e.sched.DisarmDaily(ctx, notif.KindSetupNextStep); err != nil {
				errs = append(errs, err)
			}
		}

		return errors.Join(errs...)
	})
}

// Reconcile runs one reconciliation pass. The host wires this to its
// launch hook and its background-task handler.
func (e *Engine) Reconcile(ctx context.Context, trigger reconciler.Trigger) error {
	return e.do(ctx, "reconcile", func(ctx context.Context) error {
		return e.rec.Run(ctx, trigger)
	})
}

// RecordOpened records a notification tap: stamps the aggregate ledger,
// resets the kind's no-open backoff counter, and updates the open-hour
// histogram.
func (e *Engine) RecordOpened(ctx context.Context, notificationID string, kind notif.Kind, openedAt time.Time) error {
	return e.do(ctx, "record opened", func(ctx context.Context) error {
		if !kind.Valid() {
			return fmt.Errorf("record opened: unknown kind %q", kind)
		}

		agg := e.ledger.Aggregate(ctx)
		agg.RecordOpened(notificationID, kind, openedAt)
		if err := e.ledger.SaveAggregate(ctx, agg); err != nil {
			return err
		}

		e.analytics.Event(notif.EventOpened, map[string]string{
			"kind":            string(kind),
			"notification_id": notificationID,
		})
		slog.Info("notification opened", "kind", kind, "notification_id", notificationID)
		return nil
	})
}
