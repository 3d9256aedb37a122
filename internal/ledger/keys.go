package ledger

import "github.com/strideapp/nudge/internal/notif"

// Key layout in the backing key/value store:
//
//	reminder:<activityID>  one ReminderEntry per activity
//	daily:<kind>           one DailyLedger singleton per daily kind
//	aggregate              the cross-kind AggregateLedger
const (
	reminderPrefix = "reminder:"
	dailyPrefix    = "daily:"
	aggregateKey   = "aggregate"
)

func reminderKey(activityID string) string {
	return reminderPrefix + activityID
}

func dailyKey(kind notif.Kind) string {
	return dailyPrefix + string(kind)
}
