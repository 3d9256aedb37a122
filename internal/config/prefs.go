package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/strideapp/nudge/internal/notif"
)

// Preferences are the user's choices about which notification kinds run
// and when. The host app owns the canonical copy; the engine receives a
// value through ApplyPreferences and the host's snapshot interface.
//
// An empty time string means the kind is disabled (show-up, focus) or
// falls back to the engine's heuristics (goal nudge).
type Preferences struct {
	// DailyShowUpTime is the "HH:mm" local time for the recurring
	// check-in, empty when disabled.
	DailyShowUpTime string `yaml:"daily_show_up_time,omitempty"`

	// DailyFocusTime is the "HH:mm" local time for the focus nudge,
	// empty when disabled.
	DailyFocusTime string `yaml:"daily_focus_time,omitempty"`

	// GoalNudge enables the system-initiated goal nudge.
	GoalNudge bool `yaml:"goal_nudge"`

	// GoalNudgeTime optionally pins the goal nudge to a "HH:mm" local
	// time. Empty defers to the open-hour heuristic, then the config
	// default.
	GoalNudgeTime string `yaml:"goal_nudge_time,omitempty"`

	// SetupNextStep enables the setup-next-step nudge.
	SetupNextStep bool `yaml:"setup_next_step"`
}

// LoadPreferences reads and parses a preferences YAML file. Unknown
// fields are rejected so typos fail loudly instead of silently disabling
// a kind.
func LoadPreferences(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences %s: %w", path, err)
	}

	var prefs Preferences
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&prefs); err != nil {
		return Preferences{}, fmt.Errorf("parse preferences %s: %w", path, err)
	}

	if err := prefs.Validate(); err != nil {
		return Preferences{}, fmt.Errorf("invalid preferences %s: %w", path, err)
	}

	return prefs, nil
}

// Validate checks that every configured time parses as "HH:mm".
func (p Preferences) Validate() error {
	for field, raw := range map[string]string{
		"daily_show_up_time": p.DailyShowUpTime,
		"daily_focus_time":   p.DailyFocusTime,
		"goal_nudge_time":    p.GoalNudgeTime,
	} {
		if raw == "" {
			continue
		}
		if _, err := notif.ParseLocalTime(raw); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

// ShowUpTime returns the parsed show-up time; false when disabled.
func (p Preferences) ShowUpTime() (notif.LocalTime, bool) {
	return parseOptional(p.DailyShowUpTime)
}

// FocusTime returns the parsed focus time; false when disabled.
func (p Preferences) FocusTime() (notif.LocalTime, bool) {
	return parseOptional(p.DailyFocusTime)
}

// NudgeTime returns the user-pinned goal nudge time; false when the user
// left it to the engine.
func (p Preferences) NudgeTime() (notif.LocalTime, bool) {
	return parseOptional(p.GoalNudgeTime)
}

func parseOptional(raw string) (notif.LocalTime, bool) {
	if raw == "" {
		return notif.LocalTime{}, false
	}
	lt, err := notif.ParseLocalTime(raw)
	if err != nil {
		return notif.LocalTime{}, false
	}
	return lt, true
}
