package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideapp/nudge/internal/candidate"
	"github.com/strideapp/nudge/internal/config"
	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/notif"
	"github.com/strideapp/nudge/internal/reconciler"
	"github.com/strideapp/nudge/internal/testutil"
)

// noHost is a Host with nothing enabled and nothing to nudge about.
type noHost struct{}

func (noHost) Snapshot(context.Context) (candidate.Snapshot, error) {
	return candidate.Snapshot{}, nil
}
func (noHost) Preferences(context.Context) (config.Preferences, error) {
	return config.Preferences{}, nil
}
func (noHost) FocusCompletedToday(context.Context, time.Time) (bool, error) {
	return false, nil
}
func (noHost) SetupNextStep(context.Context) (string, error) {
	return "", nil
}

var engNow = time.Date(2026, 1, 22, 8, 0, 0, 0, time.UTC)

// startEngine wires an Engine over fakes and runs its loop until the
// test ends.
func startEngine(t *testing.T, host reconciler.Host) (*Engine, *testutil.KV, *testutil.Notifier, *testutil.Analytics) {
	t.Helper()
	kv := testutil.NewKV()
	n := testutil.NewNotifier()
	an := testutil.NewAnalytics()
	e := New(kv, n, host,
		WithClock(testutil.NewClockAt(engNow)),
		WithAnalytics(an),
	)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	t.Cleanup(func() {
		e.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return e, kv, n, an
}

func TestEngine_ArmAndCancelReminder(t *testing.T) {
	e, kv, n, _ := startEngine(t, noHost{})
	ctx := context.Background()

	require.NoError(t, e.ArmReminder(ctx, "act-1", engNow.Add(time.Hour)))
	assert.Equal(t, 1, n.ScheduledCount())

	entry, ok := ledger.New(kv).Reminder(ctx, "act-1")
	require.True(t, ok)
	assert.True(t, entry.Live())

	require.NoError(t, e.CancelReminder(ctx, "act-1"))
	assert.Equal(t, 0, n.ScheduledCount())
}

func TestEngine_ConcurrentCallsAreSerialized(t *testing.T) {
	e, kv, _, _ := startEngine(t, noHost{})
	ctx := context.Background()

	// Hammer the facade from many goroutines; the single-writer loop
	// must leave one consistent entry per activity.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("act-%02d", i)
			assert.NoError(t, e.ArmReminder(ctx, id, engNow.Add(time.Hour)))
		}(i)
	}
	wg.Wait()

	entries, err := ledger.New(kv).Reminders(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestEngine_StoppedCallsFail(t *testing.T) {
	kv := testutil.NewKV()
	e := New(kv, testutil.NewNotifier(), noHost{}, WithClock(testutil.NewClockAt(engNow)))
	e.Stop()

	err := e.ArmReminder(context.Background(), "act-1", engNow.Add(time.Hour))
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEngine_ApplyPreferences(t *testing.T) {
	e, kv, n, _ := startEngine(t, noHost{})
	ctx := context.Background()
	l := ledger.New(kv)

	require.NoError(t, e.ApplyPreferences(ctx, config.Preferences{DailyShowUpTime: "08:30"}))
	daily := l.Daily(ctx, notif.KindDailyShowUp)
	assert.True(t, daily.Armed())
	assert.Equal(t, "08:30", daily.ScheduleTimeLocal)

	// Disabling clears both the platform schedule and the ledger.
	require.NoError(t, e.ApplyPreferences(ctx, config.Preferences{}))
	assert.Equal(t, ledger.DailyLedger{}, l.Daily(ctx, notif.KindDailyShowUp))
	assert.Equal(t, 0, n.ScheduledCount())
}

func TestEngine_ApplyPreferences_RejectsBadTime(t *testing.T) {
	e, _, _, _ := startEngine(t, noHost{})

	err := e.ApplyPreferences(context.Background(), config.Preferences{DailyShowUpTime: "25:99"})
	assert.Error(t, err)
}

func TestEngine_ApplyPreferences_DisablingGoalNudgeDisarms(t *testing.T) {
	e, kv, n, _ := startEngine(t, noHost{})
	ctx := context.Background()
	l := ledger.New(kv)

	// Seed an armed goal nudge the way a previous reconcile would have.
	id, err := e.sched.ArmGoalNudge(ctx, candidate.Candidate{GoalID: "g1", GoalTitle: "Run"}, notif.LocalTime{Hour: 18})
	require.NoError(t, err)
	require.True(t, n.Has(id))

	require.NoError(t, e.ApplyPreferences(ctx, config.Preferences{}))
	assert.False(t, n.Has(id))
	assert.Equal(t, ledger.DailyLedger{}, l.Daily(ctx, notif.KindGoalNudge))
}

func TestEngine_Reconcile(t *testing.T) {
	e, _, n, _ := startEngine(t, noHost{})

	require.NoError(t, e.Reconcile(context.Background(), reconciler.TriggerLaunch))
	// Nothing enabled, nothing armed.
	assert.Equal(t, 0, n.ScheduledCount())
}

func TestEngine_RecordOpened(t *testing.T) {
	e, kv, _, an := startEngine(t, noHost{})
	ctx := context.Background()
	l := ledger.New(kv)

	agg := l.Aggregate(ctx)
	agg.RecordSent(notif.KindGoalNudge, "n1", engNow, engNow)
	require.NoError(t, l.SaveAggregate(ctx, agg))

	openedAt := engNow.Add(time.Hour)
	require.NoError(t, e.RecordOpened(ctx, "n1", notif.KindGoalNudge, openedAt))

	agg = l.Aggregate(ctx)
	assert.Equal(t, 0, agg.ConsecutiveNoOpenByKind[notif.KindGoalNudge])
	assert.Equal(t, 1, agg.OpenHourCountsByKind[notif.KindGoalNudge][9])
	assert.Equal(t, 1, an.Count(notif.EventOpened))
}

func TestEngine_RecordOpened_RejectsUnknownKind(t *testing.T) {
	e, _, _, an := startEngine(t, noHost{})

	err := e.RecordOpened(context.Background(), "n1", notif.Kind("mystery"), engNow)
	assert.Error(t, err)
	assert.Equal(t, 0, an.Count(notif.EventOpened))
}

func TestEngine_RunReturnsContextError(t *testing.T) {
	e := New(testutil.NewKV(), testutil.NewNotifier(), noHost{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
}
