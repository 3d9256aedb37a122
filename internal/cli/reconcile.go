package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strideapp/nudge/internal/config"
	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/reconciler"
	"github.com/strideapp/nudge/internal/scheduler"
	"github.com/strideapp/nudge/internal/store"
	"github.com/strideapp/nudge/internal/testutil"
)

// fixedClock pins the replayed pass to the instant the snapshot was
// captured.
type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

// reconcileReport is what a replayed pass prints: the platform calls the
// engine made and the analytics events it emitted.
type reconcileReport struct {
	Trigger string   `json:"trigger"`
	At      string   `json:"at"`
	Actions []string `json:"actions"`
	Events  []string `json:"events"`
}

// NewReconcileCommand creates the reconcile command: replays one
// reconciliation pass against a ledger database and a recorded world
// snapshot, with the clock pinned to --at. The database IS mutated, the
// same as the pass would have mutated it on device; point it at a copy.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	var (
		dbPath     string
		configPath string
		prefsPath  string
		worldPath  string
		atRaw      string
		trigger    string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay a reconciliation pass against a world snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if trigger != string(reconciler.TriggerLaunch) && trigger != string(reconciler.TriggerBackground) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid trigger %q: want launch or background", trigger))
			}

			at := time.Now()
			if atRaw != "" {
				parsed, err := time.Parse(time.RFC3339, atRaw)
				if err != nil {
					return WrapExitError(ExitCommandError, "parse --at", err)
				}
				at = parsed
			}

			world, err := loadWorld(worldPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "load world snapshot", err)
			}

			prefs := config.Preferences{}
			if prefsPath != "" {
				prefs, err = config.LoadPreferences(prefsPath)
				if err != nil {
					return WrapExitError(ExitCommandError, "load preferences", err)
				}
			}

			// Replaying a support case needs the device's tuning, not the
			// compiled-in defaults: caps and grace change what a pass does.
			cfg := config.Default()
			if configPath != "" {
				cfg, err = config.Load(configPath)
				if err != nil {
					return WrapExitError(ExitCommandError, "load config", err)
				}
			}

			s, err := store.Open(dbPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			clock := fixedClock{at: at}
			notifier := newReplayNotifier(world)
			analytics := testutil.NewAnalytics()
			l := ledger.New(s)
			sched := scheduler.New(l, notifier,
				scheduler.WithClock(clock),
				scheduler.WithAnalytics(analytics),
				scheduler.WithConfig(cfg),
			)
			host := &fileHost{world: world, prefs: prefs}
			rec := reconciler.New(l, notifier, sched, host, clock, analytics)

			if err := rec.Run(cmd.Context(), reconciler.Trigger(trigger)); err != nil {
				return WrapExitError(ExitFailure, "reconciliation pass", err)
			}

			report := reconcileReport{
				Trigger: trigger,
				At:      at.Format(time.RFC3339),
				Actions: notifier.Actions(),
				Events:  eventLines(analytics.Events()),
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled trigger=%s at=%s\n", report.Trigger, report.At)
			fmt.Fprintln(cmd.OutOrStdout(), "platform calls:")
			for _, a := range report.Actions {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", a)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "events:")
			for _, e := range report.Events {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the ledger database (mutated)")
	cmd.Flags().StringVar(&configPath, "config", "", "engine config file (CUE; default: compiled-in)")
	cmd.Flags().StringVar(&prefsPath, "prefs", "", "preferences file (YAML)")
	cmd.Flags().StringVar(&worldPath, "world", "", "world snapshot file (YAML)")
	cmd.Flags().StringVar(&atRaw, "at", "", "pin the clock to an RFC3339 instant (default: now)")
	cmd.Flags().StringVar(&trigger, "trigger", string(reconciler.TriggerLaunch), "pass trigger (launch|background)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("world")

	return cmd
}

func eventLines(events []testutil.AnalyticsEvent) []string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		line := e.Name
		if kind := e.Attrs["kind"]; kind != "" {
			line += " kind=" + kind
		}
		if id := e.Attrs["notification_id"]; id != "" {
			line += " id=" + id
		}
		lines = append(lines, line)
	}
	return lines
}
