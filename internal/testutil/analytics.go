package testutil

import "sync"

// AnalyticsEvent is one captured event.
type AnalyticsEvent struct {
	Name  string
	Attrs map[string]string
}

// Analytics captures events for assertions. Implements notif.Analytics.
type Analytics struct {
	mu     sync.Mutex
	events []AnalyticsEvent
}

// NewAnalytics creates an empty capturing sink.
func NewAnalytics() *Analytics {
	return &Analytics{}
}

// Event implements notif.Analytics.
func (a *Analytics) Event(name string, attrs map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	a.events = append(a.events, AnalyticsEvent{Name: name, Attrs: copied})
}

// Events returns a copy of everything captured so far.
func (a *Analytics) Events() []AnalyticsEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AnalyticsEvent, len(a.events))
	copy(out, a.events)
	return out
}

// Count returns how many events with the given name were captured.
func (a *Analytics) Count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e.Name == name {
			n++
		}
	}
	return n
}
