package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/strideapp/nudge/internal/notif"
)

// KV is the persistent key/value store the ledgers live in. Implemented
// by internal/store (SQLite) in production and by an in-memory map in
// tests.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Store provides typed, fail-soft access to the delivery ledgers. Pure
// data access: caps, selection, and scheduling policy live elsewhere.
//
// Loads never fail: an empty, unreadable, or malformed record decodes to
// the typed zero value, so a corrupted ledger can degrade bookkeeping but
// never crash scheduling. Saves do return errors - losing a write matters.
//
// Mutation helpers are read-modify-write with no locking of their own;
// the engine's single-writer queue is what keeps concurrent triggers from
// interleaving.
type Store struct {
	kv KV
}

// New creates a ledger store over the given key/value backend.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// load decodes the record at key into out, substituting the zero value on
// any failure. Corrupt records are logged and overwritten by the next
// save; they are never surfaced as errors.
func (s *Store) load(ctx context.Context, key string, out any) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		slog.Warn("ledger read failed, using empty record", "key", key, "error", err)
		return
	}
	if !ok || raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		slog.Warn("ledger record malformed, using empty record", "key", key, "error", err)
	}
}

// save encodes v as JSON and writes it at key.
func (s *Store) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal ledger record %q: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save ledger record %q: %w", key, err)
	}
	return nil
}

// Reminder returns the reminder entry for an activity. The second return
// is false when no record exists.
func (s *Store) Reminder(ctx context.Context, activityID string) (ReminderEntry, bool) {
	key := reminderKey(activityID)
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok || raw == "" {
		if err != nil {
			slog.Warn("ledger read failed, using empty record", "key", key, "error", err)
		}
		return ReminderEntry{}, false
	}
	var entry ReminderEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		slog.Warn("ledger record malformed, using empty record", "key", key, "error", err)
		return ReminderEntry{}, false
	}
	return entry, true
}

// Reminders returns all reminder entries, ordered by activity ID.
func (s *Store) Reminders(ctx context.Context) ([]ReminderEntry, error) {
	keys, err := s.kv.Keys(ctx, reminderPrefix)
	if err != nil {
		return nil, fmt.Errorf("list reminder keys: %w", err)
	}

	entries := make([]ReminderEntry, 0, len(keys))
	for _, key := range keys {
		activityID := strings.TrimPrefix(key, reminderPrefix)
		if entry, ok := s.Reminder(ctx, activityID); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// UpsertReminder writes the entry for its activity, replacing any
// previous record. This is what keeps at most one entry per activity: the
// key is the activity ID.
func (s *Store) UpsertReminder(ctx context.Context, entry ReminderEntry) error {
	if entry.ActivityID == "" {
		return fmt.Errorf("upsert reminder: empty activity ID")
	}
	return s.save(ctx, reminderKey(entry.ActivityID), entry)
}

// MarkReminderCancelled stamps CancelledAt on the activity's entry.
// A missing entry is a no-op: cancelling twice is fine.
func (s *Store) MarkReminderCancelled(ctx context.Context, activityID string, at time.Time) error {
	entry, ok := s.Reminder(ctx, activityID)
	if !ok || entry.CancelledAt != nil {
		return nil
	}
	entry.CancelledAt = &at
	return s.save(ctx, reminderKey(activityID), entry)
}

// MarkReminderFired records an estimated firing: FiredAt takes the
// scheduled time, FiredDetectedAt the wall-clock time reconciliation
// noticed.
func (s *Store) MarkReminderFired(ctx context.Context, activityID string, detectedAt time.Time) error {
	entry, ok := s.Reminder(ctx, activityID)
	if !ok {
		return fmt.Errorf("mark reminder fired: no entry for activity %q", activityID)
	}
	fired := entry.ScheduledFor
	entry.FiredAt = &fired
	entry.FiredDetectedAt = &detectedAt
	return s.save(ctx, reminderKey(activityID), entry)
}

// DeleteReminder removes the activity's entry.
func (s *Store) DeleteReminder(ctx context.Context, activityID string) error {
	if err := s.kv.Delete(ctx, reminderKey(activityID)); err != nil {
		return fmt.Errorf("delete reminder for activity %q: %w", activityID, err)
	}
	return nil
}

// Daily returns the singleton ledger for a daily kind. Fail-soft: always
// returns a usable record.
func (s *Store) Daily(ctx context.Context, kind notif.Kind) DailyLedger {
	var l DailyLedger
	s.load(ctx, dailyKey(kind), &l)
	return l
}

// SaveDaily persists the singleton ledger for a daily kind.
func (s *Store) SaveDaily(ctx context.Context, kind notif.Kind, l DailyLedger) error {
	return s.save(ctx, dailyKey(kind), l)
}

// ClearDaily removes the singleton ledger for a daily kind. Used when the
// user disables the kind.
func (s *Store) ClearDaily(ctx context.Context, kind notif.Kind) error {
	if err := s.kv.Delete(ctx, dailyKey(kind)); err != nil {
		return fmt.Errorf("clear daily ledger for %s: %w", kind, err)
	}
	return nil
}

// Aggregate returns the cross-kind ledger with all maps initialized.
// Fail-soft: always returns a usable record.
func (s *Store) Aggregate(ctx context.Context) *AggregateLedger {
	var a AggregateLedger
	s.load(ctx, aggregateKey, &a)
	a.ensure()
	return &a
}

// SaveAggregate persists the cross-kind ledger.
func (s *Store) SaveAggregate(ctx context.Context, a *AggregateLedger) error {
	return s.save(ctx, aggregateKey, a)
}
