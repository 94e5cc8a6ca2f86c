// Package store records probe runs in SQLite so they can be compared later.
//
// Two tables hold the history:
//   - runs: one row per scenario run (id, scenario, base URL, start time)
//   - outcomes: one row per step, keyed by (run_id, step_index)
//
// # Ordering
//
// Runs carry a logical sequence number assigned at insert time. Every list
// query orders by seq ASC, id ASC COLLATE BINARY so output is identical
// regardless of wall-clock skew between machines.
//
// # Secrets
//
// Bearer tokens are never written. Request headers are not recorded at all
// and response bodies pass through harness.Result.Redact before insert.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
