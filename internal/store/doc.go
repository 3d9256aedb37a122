// Package store provides the SQLite-backed persistent key/value store
// behind the notification ledgers.
//
// The contract is deliberately minimal: get/set/delete by string key,
// string-serialized values, no transactions, no TTL. Typed access,
// fail-soft decoding, and all read-modify-write policy live one layer up
// in internal/ledger; serialization of concurrent mutators lives in
// internal/engine's single-writer queue.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - single-connection pool: SQLite has one writer at a time
package store
