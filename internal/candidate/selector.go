// Package candidate picks what a content-free nudge should be about, from
// the domain snapshot the host app supplies. Selection is read-only and
// deterministic: the same snapshot and clock always pick the same goal,
// which is what makes the policy layer testable.
package candidate

import (
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/strideapp/nudge/internal/notif"
)

// Arc is the host app's top-level grouping of goals. Only the fields
// needed for selection are consumed; the engine never mutates domain
// objects.
type Arc struct {
	ID     string
	Name   string
	Active bool
}

// Goal belongs to an arc.
type Goal struct {
	ID     string
	ArcID  string
	Title  string
	Active bool
}

// Activity belongs to a goal. ScheduledAt is the instant the user planned
// to work on it, if any.
type Activity struct {
	ID          string
	GoalID      string
	Completed   bool
	ScheduledAt *time.Time
}

// Snapshot is a read-only view of the host's domain state at selection
// time. Slice order is meaningful: ties break by input order.
type Snapshot struct {
	Arcs       []Arc
	Goals      []Goal
	Activities []Activity
}

// Candidate is the goal a nudge will be about.
type Candidate struct {
	GoalID    string
	GoalTitle string
	ArcName   string
}

// PickGoalNudge selects the goal a goal nudge should target, or nil when
// nothing is eligible. No notification is better than a contentless one,
// so callers must skip scheduling entirely on nil.
//
// Eligibility: at least one active arc, with at least one active goal
// under it that has at least one incomplete activity.
//
// Tie-break order: a goal with an incomplete activity scheduled for
// today's local date wins; otherwise the goal with the most incomplete
// activities; remaining ties go to the first match in input order.
func PickGoalNudge(s Snapshot, now time.Time) *Candidate {
	activeArcs := make(map[string]Arc, len(s.Arcs))
	for _, arc := range s.Arcs {
		if arc.Active {
			activeArcs[arc.ID] = arc
		}
	}
	if len(activeArcs) == 0 {
		return nil
	}

	incompleteByGoal := make(map[string]int, len(s.Goals))
	scheduledToday := make(map[string]bool)
	today := notif.DateKey(now)
	for _, act := range s.Activities {
		if act.Completed {
			continue
		}
		incompleteByGoal[act.GoalID]++
		if act.ScheduledAt != nil && notif.DateKey(act.ScheduledAt.In(now.Location())) == today {
			scheduledToday[act.GoalID] = true
		}
	}

	// First pass: a goal with work planned for today, in input order.
	for _, goal := range s.Goals {
		arc, ok := activeArcs[goal.ArcID]
		if !ok || !goal.Active || incompleteByGoal[goal.ID] == 0 {
			continue
		}
		if scheduledToday[goal.ID] {
			return newCandidate(goal, arc)
		}
	}

	// Second pass: the goal with the most incomplete activities, first
	// match winning ties.
	var best *Candidate
	bestCount := 0
	for _, goal := range s.Goals {
		arc, ok := activeArcs[goal.ArcID]
		if !ok || !goal.Active {
			continue
		}
		if count := incompleteByGoal[goal.ID]; count > bestCount {
			best = newCandidate(goal, arc)
			bestCount = count
		}
	}
	return best
}

func newCandidate(goal Goal, arc Arc) *Candidate {
	return &Candidate{
		GoalID:    goal.ID,
		GoalTitle: norm.NFC.String(goal.Title),
		ArcName:   norm.NFC.String(arc.Name),
	}
}
