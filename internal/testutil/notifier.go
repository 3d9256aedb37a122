package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strideapp/nudge/internal/notif"
)

// Notifier is an in-memory platform notification API for tests.
//
// It keeps a live scheduled set the way the real platform does, counts
// every call for idempotence assertions, and can simulate the two
// failure modes that matter: permission revocation and silent drops
// (Fire removes an entry without telling anyone, exactly like a
// delivered notification disappearing from the scheduled list).
//
// Handles come from a fixed list when one is provided (deterministic
// golden tests), otherwise UUIDv7 so they sort by creation time.
type Notifier struct {
	mu        sync.Mutex
	scheduled map[string]notif.Scheduled
	calls     map[string]int
	fixedIDs  []string
	nextFixed int
	failWith  error
}

// NewNotifier creates an empty fake platform.
func NewNotifier() *Notifier {
	return &Notifier{
		scheduled: make(map[string]notif.Scheduled),
		calls:     make(map[string]int),
	}
}

// NewNotifierWithIDs creates a fake platform that hands out the given
// notification IDs in order, panicking when they run out. Fail-fast: a
// test asking for more handles than it declared is misconfigured.
func NewNotifierWithIDs(ids ...string) *Notifier {
	n := NewNotifier()
	n.fixedIDs = ids
	return n
}

// FailWith makes every subsequent platform call return err. Pass nil to
// heal.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failWith = err
}

func (n *Notifier) nextID() string {
	if n.fixedIDs != nil {
		if n.nextFixed >= len(n.fixedIDs) {
			panic("testutil.Notifier: fixed IDs exhausted")
		}
		id := n.fixedIDs[n.nextFixed]
		n.nextFixed++
		return id
	}
	return uuid.Must(uuid.NewV7()).String()
}

// ScheduleOneShot implements notif.Notifier.
func (n *Notifier) ScheduleOneShot(_ context.Context, content notif.Content, fireAt time.Time) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["schedule_one_shot"]++
	if n.failWith != nil {
		return "", n.failWith
	}
	id := n.nextID()
	n.scheduled[id] = notif.Scheduled{ID: id, FireAt: fireAt, Kind: content.Kind}
	return id, nil
}

// ScheduleRecurring implements notif.Notifier. The recurrence is modeled
// as a single entry whose FireAt is the next occurrence; the real
// platform keeps it alive indefinitely and so does this fake.
func (n *Notifier) ScheduleRecurring(_ context.Context, content notif.Content, at notif.LocalTime) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["schedule_recurring"]++
	if n.failWith != nil {
		return "", n.failWith
	}
	id := n.nextID()
	n.scheduled[id] = notif.Scheduled{ID: id, FireAt: at.NextAfter(time.Now()), Kind: content.Kind}
	return id, nil
}

// Cancel implements notif.Notifier.
func (n *Notifier) Cancel(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["cancel"]++
	if n.failWith != nil {
		return n.failWith
	}
	delete(n.scheduled, id)
	return nil
}

// ListScheduled implements notif.Notifier.
func (n *Notifier) ListScheduled(context.Context) ([]notif.Scheduled, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["list_scheduled"]++
	if n.failWith != nil {
		return nil, n.failWith
	}
	out := make([]notif.Scheduled, 0, len(n.scheduled))
	for _, s := range n.scheduled {
		out = append(out, s)
	}
	return out, nil
}

// Fire simulates the platform delivering a one-shot: the entry vanishes
// from the scheduled set with no callback, which is all the engine ever
// observes.
func (n *Notifier) Fire(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.scheduled[id]; !ok {
		return fmt.Errorf("fire %q: not scheduled", id)
	}
	delete(n.scheduled, id)
	return nil
}

// Has reports whether id is in the live scheduled set.
func (n *Notifier) Has(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.scheduled[id]
	return ok
}

// ScheduledCount returns the size of the live scheduled set.
func (n *Notifier) ScheduledCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.scheduled)
}

// Calls returns how many times the named platform operation ran. Names:
// schedule_one_shot, schedule_recurring, cancel, list_scheduled.
func (n *Notifier) Calls(op string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[op]
}

// TotalMutations returns schedule + cancel call counts, the number the
// idempotence tests care about (list_scheduled is a read).
func (n *Notifier) TotalMutations() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls["schedule_one_shot"] + n.calls["schedule_recurring"] + n.calls["cancel"]
}
