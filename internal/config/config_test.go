package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideapp/nudge/internal/notif"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
per_kind_caps: {
	goal_nudge:      1
	setup_next_step: 2
}
global_daily_cap:     3
grace_window_seconds: 120
no_open_limit:        0
retain_days:          14
default_times: {
	goal_nudge:      "17:30"
	setup_next_step: "19:00"
}
`

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 2, cfg.GlobalDailyCap)
	assert.Equal(t, 60, cfg.GraceWindowSeconds)
	assert.Equal(t, 5, cfg.NoOpenLimit)
	assert.Equal(t, 30, cfg.RetainDays)
	assert.Equal(t, 1, cfg.PerKindCaps[string(notif.KindGoalNudge)])

	at, ok := cfg.DefaultTime(notif.KindGoalNudge)
	require.True(t, ok)
	assert.Equal(t, "18:00", at.String())

	_, ok = cfg.DefaultTime(notif.KindDailyShowUp)
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeFile(t, "nudge.cue", validConfig))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.GlobalDailyCap)
	assert.Equal(t, 120, cfg.GraceWindowSeconds)
	assert.Equal(t, 0, cfg.NoOpenLimit)
	assert.Equal(t, 14, cfg.RetainDays)
	assert.Equal(t, 2, cfg.PerKindCaps[string(notif.KindSetupNextStep)])

	at, ok := cfg.DefaultTime(notif.KindGoalNudge)
	require.True(t, ok)
	assert.Equal(t, "17:30", at.String())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"zero global cap": `
per_kind_caps: {}
global_daily_cap:     0
grace_window_seconds: 60
no_open_limit:        5
retain_days:          30
default_times: {}
`,
		"retention below floor": `
per_kind_caps: {}
global_daily_cap:     2
grace_window_seconds: 60
no_open_limit:        5
retain_days:          3
default_times: {}
`,
		"malformed time": `
per_kind_caps: {}
global_daily_cap:     2
grace_window_seconds: 60
no_open_limit:        5
retain_days:          30
default_times: {goal_nudge: "25:00"}
`,
		"unknown kind": `
per_kind_caps: {mystery: 1}
global_daily_cap:     2
grace_window_seconds: 60
no_open_limit:        5
retain_days:          30
default_times: {}
`,
		"missing field": `
per_kind_caps: {}
global_daily_cap: 2
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "nudge.cue", content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	assert.Error(t, err)
}

func TestCaps(t *testing.T) {
	caps := Default().Caps()
	assert.Equal(t, 1, caps.PerKind[notif.KindGoalNudge])
	assert.Equal(t, 2, caps.Global)
	assert.Equal(t, 5, caps.NoOpenLimit)
}

func TestLoadPreferences(t *testing.T) {
	path := writeFile(t, "prefs.yaml", `
daily_show_up_time: "08:00"
goal_nudge: true
goal_nudge_time: "18:30"
setup_next_step: false
`)

	prefs, err := LoadPreferences(path)
	require.NoError(t, err)

	at, ok := prefs.ShowUpTime()
	require.True(t, ok)
	assert.Equal(t, "08:00", at.String())

	_, ok = prefs.FocusTime()
	assert.False(t, ok)

	at, ok = prefs.NudgeTime()
	require.True(t, ok)
	assert.Equal(t, "18:30", at.String())

	assert.True(t, prefs.GoalNudge)
	assert.False(t, prefs.SetupNextStep)
}

func TestLoadPreferences_UnknownFieldRejected(t *testing.T) {
	path := writeFile(t, "prefs.yaml", `
daily_showup_time: "08:00"
`)
	_, err := LoadPreferences(path)
	assert.Error(t, err)
}

func TestLoadPreferences_BadTimeRejected(t *testing.T) {
	path := writeFile(t, "prefs.yaml", `
daily_focus_time: "9am"
`)
	_, err := LoadPreferences(path)
	assert.Error(t, err)
}
