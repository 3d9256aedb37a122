// Package ledger implements the delivery ledger: the engine's local copy
// of "what should fire" kept alongside the platform's opaque scheduled
// set.
//
// Three record families share one key/value store:
//
//   - ReminderEntry, one per activity with an explicit reminder
//   - DailyLedger, one singleton per daily kind
//   - AggregateLedger, the cross-kind rollup behind caps and backoff
//
// Reads are fail-soft by contract: missing or corrupted data decodes to a
// typed empty record, never an error. The source of truth for what will
// actually fire is the platform; a lost ledger record costs at worst one
// duplicate or one missed bookkeeping entry, which reconciliation absorbs.
package ledger
