package notif

// Kind identifies a notification category. Each kind has its own ledger
// shape and scheduling rule.
type Kind string

const (
	// KindActivityReminder is an explicit, user-set reminder for a single
	// activity. One-shot, never subject to caps.
	KindActivityReminder Kind = "activity_reminder"

	// KindDailyShowUp is the recurring daily check-in prompt. The platform
	// keeps the recurrence alive; the ledger only tracks estimated firings.
	KindDailyShowUp Kind = "daily_show_up"

	// KindDailyFocus is a self-rescheduling one-shot: recreated every day,
	// and skipped for days where the target action is already done.
	KindDailyFocus Kind = "daily_focus"

	// KindGoalNudge is a system-initiated one-shot about a selected goal.
	KindGoalNudge Kind = "goal_nudge"

	// KindSetupNextStep is a system-initiated one-shot prompting the user
	// to finish setting something up.
	KindSetupNextStep Kind = "setup_next_step"
)

// AllKinds returns every kind in a stable order.
func AllKinds() []Kind {
	return []Kind{
		KindActivityReminder,
		KindDailyShowUp,
		KindDailyFocus,
		KindGoalNudge,
		KindSetupNextStep,
	}
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindActivityReminder, KindDailyShowUp, KindDailyFocus,
		KindGoalNudge, KindSetupNextStep:
		return true
	}
	return false
}

// SystemInitiated reports whether k is initiated by the app's own
// heuristics rather than an explicit user setting. Only system-initiated
// kinds are subject to daily caps and backoff.
func (k Kind) SystemInitiated() bool {
	return k == KindGoalNudge || k == KindSetupNextStep
}
