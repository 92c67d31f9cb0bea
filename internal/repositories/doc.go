// Package repositories implements SQLite persistence for signx history.
//
// Each repository handles create, read and soft delete with atomic sequence generation for human-readable ordering.
// Deleted records are excluded from queries by default.
//
// Key Implementations:
//   - [RunRepository] : completed submissions with their expected and detected labels
//
// Sequence numbers provide stable ordering (run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
