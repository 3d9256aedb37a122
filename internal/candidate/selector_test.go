package candidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var selNow = time.Date(2026, 1, 22, 8, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func baseSnapshot() Snapshot {
	return Snapshot{
		Arcs: []Arc{
			{ID: "arc-1", Name: "Health", Active: true},
			{ID: "arc-2", Name: "Career", Active: true},
		},
		Goals: []Goal{
			{ID: "g1", ArcID: "arc-1", Title: "Run a 10k", Active: true},
			{ID: "g2", ArcID: "arc-2", Title: "Ship the demo", Active: true},
		},
		Activities: []Activity{
			{ID: "a1", GoalID: "g1"},
			{ID: "a2", GoalID: "g2"},
			{ID: "a3", GoalID: "g2"},
		},
	}
}

func TestPickGoalNudge_NothingEligible(t *testing.T) {
	assert.Nil(t, PickGoalNudge(Snapshot{}, selNow))

	// Arcs exist but none active.
	s := baseSnapshot()
	for i := range s.Arcs {
		s.Arcs[i].Active = false
	}
	assert.Nil(t, PickGoalNudge(s, selNow))

	// Active arcs, but every goal inactive.
	s = baseSnapshot()
	for i := range s.Goals {
		s.Goals[i].Active = false
	}
	assert.Nil(t, PickGoalNudge(s, selNow))

	// Active goals, but all activities done.
	s = baseSnapshot()
	for i := range s.Activities {
		s.Activities[i].Completed = true
	}
	assert.Nil(t, PickGoalNudge(s, selNow))
}

func TestPickGoalNudge_GoalUnderInactiveArcIsSkipped(t *testing.T) {
	s := baseSnapshot()
	s.Arcs[1].Active = false

	c := PickGoalNudge(s, selNow)
	require.NotNil(t, c)
	// g2 has more incomplete work but its arc is inactive.
	assert.Equal(t, "g1", c.GoalID)
	assert.Equal(t, "Health", c.ArcName)
}

func TestPickGoalNudge_TodayScheduledWins(t *testing.T) {
	s := baseSnapshot()
	// g1 has work planned for today; g2 has more incomplete activities.
	s.Activities[0].ScheduledAt = ptr(time.Date(2026, 1, 22, 15, 0, 0, 0, time.UTC))

	c := PickGoalNudge(s, selNow)
	require.NotNil(t, c)
	assert.Equal(t, "g1", c.GoalID)
	assert.Equal(t, "Run a 10k", c.GoalTitle)
}

func TestPickGoalNudge_TomorrowScheduledDoesNotCountAsToday(t *testing.T) {
	s := baseSnapshot()
	s.Activities[0].ScheduledAt = ptr(time.Date(2026, 1, 23, 9, 0, 0, 0, time.UTC))

	c := PickGoalNudge(s, selNow)
	require.NotNil(t, c)
	assert.Equal(t, "g2", c.GoalID)
}

func TestPickGoalNudge_CompletedTodayActivityIgnored(t *testing.T) {
	s := baseSnapshot()
	s.Activities[0].ScheduledAt = ptr(time.Date(2026, 1, 22, 15, 0, 0, 0, time.UTC))
	s.Activities[0].Completed = true

	c := PickGoalNudge(s, selNow)
	require.NotNil(t, c)
	assert.Equal(t, "g2", c.GoalID)
}

func TestPickGoalNudge_MostIncompleteWins(t *testing.T) {
	c := PickGoalNudge(baseSnapshot(), selNow)
	require.NotNil(t, c)
	assert.Equal(t, "g2", c.GoalID)
	assert.Equal(t, "Career", c.ArcName)
}

func TestPickGoalNudge_TiesBreakByInputOrder(t *testing.T) {
	s := baseSnapshot()
	s.Activities = append(s.Activities, Activity{ID: "a4", GoalID: "g1"})

	c := PickGoalNudge(s, selNow)
	require.NotNil(t, c)
	assert.Equal(t, "g1", c.GoalID)
}

func TestPickGoalNudge_LocalDateBoundary(t *testing.T) {
	// 2026-01-22T23:30Z is already the 23rd in UTC+9; an activity
	// scheduled at 2026-01-23T08:00+09 is "today" for that clock.
	tokyo := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2026, 1, 22, 23, 30, 0, 0, time.UTC).In(tokyo)

	s := baseSnapshot()
	s.Activities[0].ScheduledAt = ptr(time.Date(2026, 1, 23, 8, 0, 0, 0, tokyo))

	c := PickGoalNudge(s, now)
	require.NotNil(t, c)
	assert.Equal(t, "g1", c.GoalID)
}

func TestPickGoalNudge_TitlesNormalized(t *testing.T) {
	s := baseSnapshot()
	s.Goals[1].Title = "Café shifts" // decomposed é

	c := PickGoalNudge(s, selNow)
	require.NotNil(t, c)
	assert.Equal(t, "Café shifts", c.GoalTitle)
}
