package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/notif"
	"github.com/strideapp/nudge/internal/store"
)

// statusReport is the full ledger dump rendered by the status command.
type statusReport struct {
	Reminders []ledger.ReminderEntry        `json:"reminders"`
	Daily     map[string]ledger.DailyLedger `json:"daily"`
	Aggregate *ledger.AggregateLedger       `json:"aggregate"`
}

// NewStatusCommand creates the status command: dumps every delivery
// ledger record from a store database.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Dump delivery ledger state",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(dbPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			report, err := buildStatusReport(cmd.Context(), ledger.New(s))
			if err != nil {
				return WrapExitError(ExitCommandError, "read ledgers", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			renderStatusText(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the ledger database")
	cmd.MarkFlagRequired("db")

	return cmd
}

func buildStatusReport(ctx context.Context, l *ledger.Store) (*statusReport, error) {
	reminders, err := l.Reminders(ctx)
	if err != nil {
		return nil, err
	}

	daily := make(map[string]ledger.DailyLedger)
	for _, kind := range notif.AllKinds() {
		if kind == notif.KindActivityReminder {
			continue
		}
		daily[string(kind)] = l.Daily(ctx, kind)
	}

	return &statusReport{
		Reminders: reminders,
		Daily:     daily,
		Aggregate: l.Aggregate(ctx),
	}, nil
}

// renderStatusText writes the report in a stable order: reminders by
// activity ID, daily kinds in declaration order, dates ascending.
func renderStatusText(w io.Writer, r *statusReport) {
	fmt.Fprintf(w, "reminders: %d\n", len(r.Reminders))
	for _, e := range r.Reminders {
		state := "armed"
		if e.CancelledAt != nil {
			state = "cancelled"
		} else if e.FiredAt != nil {
			state = "fired"
		}
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			e.ActivityID, state, e.NotificationID, e.ScheduledFor.Format("2006-01-02T15:04:05Z07:00"))
	}

	fmt.Fprintln(w, "daily:")
	for _, kind := range notif.AllKinds() {
		if kind == notif.KindActivityReminder {
			continue
		}
		l := r.Daily[string(kind)]
		armed := "-"
		if l.Armed() {
			armed = l.ScheduledFor.Format("2006-01-02T15:04:05Z07:00")
		}
		fmt.Fprintf(w, "  %-16s time=%-5s armed=%-25s last_fired=%s\n",
			kind, orDash(l.ScheduleTimeLocal), armed, orDash(l.LastFiredDateKey))
	}

	dates := make([]string, 0, len(r.Aggregate.SentCountByDate))
	for d := range r.Aggregate.SentCountByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	fmt.Fprintln(w, "sent by date:")
	for _, d := range dates {
		fmt.Fprintf(w, "  %s  %d\n", d, r.Aggregate.SentCountByDate[d])
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
