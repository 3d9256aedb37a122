package policy

import (
	"github.com/strideapp/nudge/internal/ledger"
	"github.com/strideapp/nudge/internal/notif"
)

// PreferredHour returns the local hour-of-day at which the user has most
// often opened nudges of the given kind, from the aggregate ledger's open
// histogram. The second return is false when no opens are recorded.
//
// Ties break toward the earlier hour so the pick is deterministic.
func PreferredHour(kind notif.Kind, agg *ledger.AggregateLedger) (int, bool) {
	hours := agg.OpenHourCountsByKind[kind]
	if len(hours) == 0 {
		return 0, false
	}

	bestHour, bestCount := -1, 0
	for hour := 0; hour < 24; hour++ {
		if count := hours[hour]; count > bestCount {
			bestHour, bestCount = hour, count
		}
	}
	if bestHour < 0 {
		return 0, false
	}
	return bestHour, true
}
