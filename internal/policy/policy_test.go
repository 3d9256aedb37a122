package policy

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/notif"
)

var testNow = time.Date(2026, 1, 22, 8, 0, 0, 0, time.UTC)

func sentAgg(entries ...notif.Kind) *ledger.AggregateLedger {
	agg := &ledger.AggregateLedger{}
	for i, kind := range entries {
		agg.RecordSent(kind, fmt.Sprintf("n%d", i), testNow, testNow)
	}
	return agg
}

func TestCanSend_AllowsFreshDay(t *testing.T) {
	denial := CanSend(notif.KindGoalNudge, sentAgg(), testNow, DefaultCaps())
	assert.Nil(t, denial)
}

func TestCanSend_ExplicitKindsAreExempt(t *testing.T) {
	// Saturate everything, then check that user-initiated kinds sail
	// through regardless.
	agg := sentAgg(notif.KindGoalNudge, notif.KindSetupNextStep)
	agg.ConsecutiveNoOpenByKind[notif.KindDailyShowUp] = 99

	for _, kind := range []notif.Kind{
		notif.KindActivityReminder,
		notif.KindDailyShowUp,
		notif.KindDailyFocus,
	} {
		assert.Nil(t, CanSend(kind, agg, testNow, DefaultCaps()), "kind %s", kind)
	}
}

func TestCanSend_PerKindCap(t *testing.T) {
	agg := sentAgg(notif.KindGoalNudge)

	denial := CanSend(notif.KindGoalNudge, agg, testNow, DefaultCaps())
	require.NotNil(t, denial)
	assert.Equal(t, RulePerKindCap, denial.Rule)
	assert.Equal(t, notif.KindGoalNudge, denial.Kind)
	assert.Equal(t, 1, denial.Count)
	assert.Equal(t, 1, denial.Limit)

	// The other system kind still has headroom.
	assert.Nil(t, CanSend(notif.KindSetupNextStep, agg, testNow, DefaultCaps()))
}

func TestCanSend_GlobalCapCountsAllKinds(t *testing.T) {
	// Two user-driven sends already today consume the global budget even
	// though neither system kind has sent.
	agg := sentAgg(notif.KindDailyShowUp, notif.KindDailyFocus)

	denial := CanSend(notif.KindGoalNudge, agg, testNow, DefaultCaps())
	require.NotNil(t, denial)
	assert.Equal(t, RuleGlobalCap, denial.Rule)
	assert.Equal(t, 2, denial.Count)
	assert.Equal(t, 2, denial.Limit)
}

func TestCanSend_PerKindCapWinsOverGlobal(t *testing.T) {
	agg := sentAgg(notif.KindGoalNudge, notif.KindSetupNextStep)

	denial := CanSend(notif.KindGoalNudge, agg, testNow, DefaultCaps())
	require.NotNil(t, denial)
	assert.Equal(t, RulePerKindCap, denial.Rule)
}

func TestCanSend_Backoff(t *testing.T) {
	agg := &ledger.AggregateLedger{
		ConsecutiveNoOpenByKind: map[notif.Kind]int{notif.KindGoalNudge: 5},
	}

	denial := CanSend(notif.KindGoalNudge, agg, testNow, DefaultCaps())
	require.NotNil(t, denial)
	assert.Equal(t, RuleBackoff, denial.Rule)
	assert.Equal(t, 5, denial.Count)

	// An open resets the counter and lifts the suppression.
	agg.RecordOpened("n1", notif.KindGoalNudge, testNow)
	assert.Nil(t, CanSend(notif.KindGoalNudge, agg, testNow, DefaultCaps()))
}

func TestCanSend_ZeroLimitsDisableRules(t *testing.T) {
	agg := sentAgg(notif.KindDailyShowUp, notif.KindDailyFocus, notif.KindGoalNudge)
	agg.ConsecutiveNoOpenByKind[notif.KindGoalNudge] = 100

	caps := Caps{PerKind: nil, Global: 0, NoOpenLimit: 0}
	assert.Nil(t, CanSend(notif.KindGoalNudge, agg, testNow, caps))
}

func TestCanSend_YesterdayDoesNotCount(t *testing.T) {
	agg := sentAgg(notif.KindGoalNudge, notif.KindSetupNextStep)

	tomorrow := testNow.AddDate(0, 0, 1)
	assert.Nil(t, CanSend(notif.KindGoalNudge, agg, tomorrow, DefaultCaps()))
}

func TestDenial_ErrorsAs(t *testing.T) {
	denial := &Denial{Kind: notif.KindGoalNudge, Rule: RuleGlobalCap, Count: 2, Limit: 2}
	wrapped := fmt.Errorf("reconcile: %w", denial)

	assert.True(t, IsDenial(wrapped))
	assert.False(t, IsDenial(errors.New("plain")))
	assert.Contains(t, denial.Error(), "GLOBAL_CAP")
}

func TestPreferredHour(t *testing.T) {
	agg := &ledger.AggregateLedger{}

	_, ok := PreferredHour(notif.KindGoalNudge, agg)
	assert.False(t, ok)

	open := func(hour int) {
		agg.RecordSent(notif.KindGoalNudge, "n", testNow, testNow)
		agg.RecordOpened("n", notif.KindGoalNudge, time.Date(2026, 1, 22, hour, 30, 0, 0, time.UTC))
	}
	open(19)
	open(19)
	open(8)

	hour, ok := PreferredHour(notif.KindGoalNudge, agg)
	require.True(t, ok)
	assert.Equal(t, 19, hour)

	// Other kinds are unaffected.
	_, ok = PreferredHour(notif.KindSetupNextStep, agg)
	assert.False(t, ok)
}

func TestPreferredHour_TieBreaksEarlier(t *testing.T) {
	agg := &ledger.AggregateLedger{}
	agg.RecordSent(notif.KindGoalNudge, "n", testNow, testNow)
	agg.RecordOpened("n", notif.KindGoalNudge, time.Date(2026, 1, 22, 21, 0, 0, 0, time.UTC))
	agg.RecordOpened("n", notif.KindGoalNudge, time.Date(2026, 1, 23, 7, 0, 0, 0, time.UTC))

	hour, ok := PreferredHour(notif.KindGoalNudge, agg)
	require.True(t, ok)
	assert.Equal(t, 7, hour)
}
