package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/strideapp/nudge/internal/notif"
	"github.com/strideapp/nudge/internal/policy"
)

//go:embed schema.cue
var schemaCUE string

// Config is the engine's tuning: caps, grace window, backoff threshold,
// retention, and fallback send times. It is operator-facing, not
// user-facing; user choices live in Preferences.
type Config struct {
	PerKindCaps        map[string]int    `json:"per_kind_caps"`
	GlobalDailyCap     int               `json:"global_daily_cap"`
	GraceWindowSeconds int               `json:"grace_window_seconds"`
	NoOpenLimit        int               `json:"no_open_limit"`
	RetainDays         int               `json:"retain_days"`
	DefaultTimes       map[string]string `json:"default_times"`
}

// Default returns the compiled-in config used when no file is given.
func Default() Config {
	return Config{
		PerKindCaps: map[string]int{
			string(notif.KindGoalNudge):     1,
			string(notif.KindSetupNextStep): 1,
		},
		GlobalDailyCap:     2,
		GraceWindowSeconds: 60,
		NoOpenLimit:        5,
		RetainDays:         30,
		DefaultTimes: map[string]string{
			string(notif.KindGoalNudge):     "18:00",
			string(notif.KindSetupNextStep): "19:00",
		},
	}
}

// Load reads a CUE config file, unifies it with the embedded schema, and
// decodes it. Every field must be concrete; unknown kind names in the
// per-kind maps are rejected after decode.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(path))
	if err := file.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config %s: %w", path, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.validateKinds(); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}

	return cfg, nil
}

// validateKinds rejects kind names the engine does not know. The CUE
// schema constrains shapes; kind vocabulary is Go's to enforce.
func (c Config) validateKinds() error {
	for name := range c.PerKindCaps {
		if !notif.Kind(name).Valid() {
			return fmt.Errorf("per_kind_caps: unknown kind %q", name)
		}
	}
	for name, raw := range c.DefaultTimes {
		if !notif.Kind(name).Valid() {
			return fmt.Errorf("default_times: unknown kind %q", name)
		}
		if _, err := notif.ParseLocalTime(raw); err != nil {
			return fmt.Errorf("default_times[%s]: %w", name, err)
		}
	}
	return nil
}

// Caps converts the config into the policy layer's cap set.
func (c Config) Caps() policy.Caps {
	perKind := make(map[notif.Kind]int, len(c.PerKindCaps))
	for name, limit := range c.PerKindCaps {
		perKind[notif.Kind(name)] = limit
	}
	return policy.Caps{
		PerKind:     perKind,
		Global:      c.GlobalDailyCap,
		NoOpenLimit: c.NoOpenLimit,
	}
}

// DefaultTime returns the fallback local send time for a kind, if one is
// configured.
func (c Config) DefaultTime(kind notif.Kind) (notif.LocalTime, bool) {
	raw, ok := c.DefaultTimes[string(kind)]
	if !ok {
		return notif.LocalTime{}, false
	}
	lt, err := notif.ParseLocalTime(raw)
	if err != nil {
		return notif.LocalTime{}, false
	}
	return lt, true
}
