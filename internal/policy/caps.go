package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/notif"
)

// Caps configures the send limits for system-initiated nudges.
//
// Explicit, user-set reminders (activity reminders, and daily show-up or
// focus when the user enabled them) are never routed through this policy;
// caps exist so the app's own heuristics cannot spam, not to second-guess
// the user.
type Caps struct {
	// PerKind is the daily cap per system-initiated kind.
	PerKind map[notif.Kind]int

	// Global is the cross-kind daily cap. It bounds the total so adding
	// new nudge kinds later cannot silently blow past a sane ceiling.
	Global int

	// NoOpenLimit suppresses a kind after this many consecutive sends
	// without an open. Zero disables the backoff rule.
	NoOpenLimit int
}

// DefaultCaps returns the shipped limits: one per kind per day, two total
// per day, backoff after five consecutive un-opened sends.
func DefaultCaps() Caps {
	return Caps{
		PerKind: map[notif.Kind]int{
			notif.KindGoalNudge:     1,
			notif.KindSetupNextStep: 1,
		},
		Global:      2,
		NoOpenLimit: 5,
	}
}

// Rule identifies which policy rule suppressed a send.
type Rule string

const (
	// RulePerKindCap: the kind already hit its own daily cap.
	RulePerKindCap Rule = "PER_KIND_CAP"

	// RuleGlobalCap: the cross-kind daily total is exhausted.
	RuleGlobalCap Rule = "GLOBAL_CAP"

	// RuleBackoff: too many consecutive sends without an open.
	RuleBackoff Rule = "BACKOFF"
)

// Denial explains why a send was suppressed.
type Denial struct {
	Kind  notif.Kind
	Rule  Rule
	Count int // observed value that tripped the rule
	Limit int // configured limit
}

// Error implements the error interface.
func (d *Denial) Error() string {
	return fmt.Sprintf("%s: %s suppressed (%d >= %d)", d.Rule, d.Kind, d.Count, d.Limit)
}

// IsDenial returns true if the error is a policy denial.
// Uses errors.As to handle wrapped errors.
func IsDenial(err error) bool {
	var d *Denial
	return errors.As(err, &d)
}

// CanSend decides whether a system-initiated nudge of the given kind may
// fire today. Returns nil when allowed, or a Denial naming the rule that
// suppressed it. Pure: reads the aggregate ledger and the clock value,
// mutates nothing.
//
// Rules are evaluated in order: per-kind cap, global cap, backoff.
func CanSend(kind notif.Kind, agg *ledger.AggregateLedger, now time.Time, caps Caps) *Denial {
	if !kind.SystemInitiated() {
		// Explicit reminders are exempt by contract.
		return nil
	}

	today := notif.DateKey(now)

	if limit, ok := caps.PerKind[kind]; ok {
		if sent := agg.SentOn(today, kind); sent >= limit {
			return &Denial{Kind: kind, Rule: RulePerKindCap, Count: sent, Limit: limit}
		}
	}

	if caps.Global > 0 {
		if total := agg.TotalSentOn(today); total >= caps.Global {
			return &Denial{Kind: kind, Rule: RuleGlobalCap, Count: total, Limit: caps.Global}
		}
	}

	if caps.NoOpenLimit > 0 {
		if unopened := agg.ConsecutiveNoOpenByKind[kind]; unopened >= caps.NoOpenLimit {
			return &Denial{Kind: kind, Rule: RuleBackoff, Count: unopened, Limit: caps.NoOpenLimit}
		}
	}

	return nil
}
