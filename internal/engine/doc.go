// Package engine is the host-facing notification engine facade.
//
// ARCHITECTURE:
//
// Single-Writer Job Loop:
// The engine is invoked from three independent, overlapping triggers -
// synchronous foreground calls, the one-time launch hook, and the
// periodic background wake. The ledger store beneath it is plain
// read-modify-write with no locking, so every public call becomes a job
// on one FIFO queue drained by a single goroutine. Two calls can race to
// enqueue; their ledger mutations cannot interleave.
//
// Call Flow:
//  1. Host calls ArmReminder / CancelReminder / ApplyPreferences /
//     Reconcile / RecordOpened from any goroutine
//  2. The call is enqueued and blocks on its result channel
//  3. Run() dequeues jobs one at a time and executes them
//  4. Scheduler/reconciler read the ledger, talk to the platform, and
//     write the ledger with no concurrent writer
//
// The engine is designed for correctness, not throughput: the workload
// is a handful of notifications per day.
package engine
