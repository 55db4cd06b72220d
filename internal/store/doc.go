// Package store provides SQLite-backed storage for advection results.
//
// A run is written once, after every rank has reached global completion:
//   - runs: one row per run, keyed by its UUIDv7 id, with the config
//     fingerprint and canonical config JSON
//   - curves: every terminated curve with its final state and reason
//   - rank_stats: the per-rank engine statistics
//
// # Ordering
//
// Reads are deterministic: runs by id (UUIDv7 ids sort by creation),
// curves by rank then curve id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
