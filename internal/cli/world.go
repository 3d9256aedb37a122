package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strideapp/nudge/internal/candidate"
	"github.com/strideapp/nudge/internal/config"
	"github.com/strideapp/nudge/internal/notif"
)

// worldFile is a recorded snapshot of everything outside the engine: the
// platform's scheduled set and the host app's domain state. Captured
// from a support report, it lets a reconciliation pass be replayed on a
// dev machine against the exact state a device was in.
type worldFile struct {
	FocusCompletedToday bool             `yaml:"focus_completed_today"`
	SetupReason         string           `yaml:"setup_reason,omitempty"`
	Scheduled           []scheduledEntry `yaml:"scheduled,omitempty"`
	Arcs                []arcEntry       `yaml:"arcs,omitempty"`
	Goals               []goalEntry      `yaml:"goals,omitempty"`
	Activities          []activityEntry  `yaml:"activities,omitempty"`
}

type scheduledEntry struct {
	ID     string    `yaml:"id"`
	FireAt time.Time `yaml:"fire_at"`
	Kind   string    `yaml:"kind"`
}

type arcEntry struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Active bool   `yaml:"active"`
}

type goalEntry struct {
	ID     string `yaml:"id"`
	ArcID  string `yaml:"arc_id"`
	Title  string `yaml:"title"`
	Active bool   `yaml:"active"`
}

type activityEntry struct {
	ID          string     `yaml:"id"`
	GoalID      string     `yaml:"goal_id"`
	Completed   bool       `yaml:"completed"`
	ScheduledAt *time.Time `yaml:"scheduled_at,omitempty"`
}

// loadWorld reads and parses a world snapshot file. Unknown fields are
// rejected the same way preference files reject them.
func loadWorld(path string) (*worldFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world snapshot %s: %w", path, err)
	}

	var w worldFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&w); err != nil {
		return nil, fmt.Errorf("parse world snapshot %s: %w", path, err)
	}

	for i, s := range w.Scheduled {
		if s.ID == "" {
			return nil, fmt.Errorf("world snapshot %s: scheduled[%d]: id is required", path, i)
		}
		if s.Kind != "" && !notif.Kind(s.Kind).Valid() {
			return nil, fmt.Errorf("world snapshot %s: scheduled[%d]: unknown kind %q", path, i, s.Kind)
		}
	}

	return &w, nil
}

func (w *worldFile) snapshot() candidate.Snapshot {
	s := candidate.Snapshot{}
	for _, a := range w.Arcs {
		s.Arcs = append(s.Arcs, candidate.Arc{ID: a.ID, Name: a.Name, Active: a.Active})
	}
	for _, g := range w.Goals {
		s.Goals = append(s.Goals, candidate.Goal{ID: g.ID, ArcID: g.ArcID, Title: g.Title, Active: g.Active})
	}
	for _, act := range w.Activities {
		s.Activities = append(s.Activities, candidate.Activity{
			ID: act.ID, GoalID: act.GoalID, Completed: act.Completed, ScheduledAt: act.ScheduledAt,
		})
	}
	return s
}

// fileHost serves the reconciler's host interface from a world snapshot
// and a preferences file.
type fileHost struct {
	world *worldFile
	prefs config.Preferences
}

func (h *fileHost) Snapshot(context.Context) (candidate.Snapshot, error) {
	return h.world.snapshot(), nil
}

func (h *fileHost) Preferences(context.Context) (config.Preferences, error) {
	return h.prefs, nil
}

func (h *fileHost) FocusCompletedToday(context.Context, time.Time) (bool, error) {
	return h.world.FocusCompletedToday, nil
}

func (h *fileHost) SetupNextStep(context.Context) (string, error) {
	return h.world.SetupReason, nil
}

// replayNotifier is a platform stand-in seeded from a world snapshot.
// Handles are sequential ("sim-001", ...) so replay output is
// deterministic, and every platform call is logged for the report.
type replayNotifier struct {
	mu        sync.Mutex
	scheduled map[string]notif.Scheduled
	actions   []string
	nextID    int
}

func newReplayNotifier(w *worldFile) *replayNotifier {
	n := &replayNotifier{scheduled: make(map[string]notif.Scheduled)}
	for _, s := range w.Scheduled {
		n.scheduled[s.ID] = notif.Scheduled{ID: s.ID, FireAt: s.FireAt, Kind: notif.Kind(s.Kind)}
	}
	return n
}

func (n *replayNotifier) ScheduleOneShot(_ context.Context, content notif.Content, fireAt time.Time) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := fmt.Sprintf("sim-%03d", n.nextID)
	n.scheduled[id] = notif.Scheduled{ID: id, FireAt: fireAt, Kind: content.Kind}
	n.actions = append(n.actions, fmt.Sprintf("schedule_one_shot %s %s %s", content.Kind, id, fireAt.Format(time.RFC3339)))
	return id, nil
}

func (n *replayNotifier) ScheduleRecurring(_ context.Context, content notif.Content, at notif.LocalTime) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := fmt.Sprintf("sim-%03d", n.nextID)
	n.scheduled[id] = notif.Scheduled{ID: id, Kind: content.Kind}
	n.actions = append(n.actions, fmt.Sprintf("schedule_recurring %s %s %s", content.Kind, id, at))
	return id, nil
}

func (n *replayNotifier) Cancel(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.scheduled, id)
	n.actions = append(n.actions, fmt.Sprintf("cancel %s", id))
	return nil
}

func (n *replayNotifier) ListScheduled(context.Context) ([]notif.Scheduled, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notif.Scheduled, 0, len(n.scheduled))
	for _, s := range n.scheduled {
		out = append(out, s)
	}
	return out, nil
}

func (n *replayNotifier) Actions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.actions))
	copy(out, n.actions)
	return out
}
