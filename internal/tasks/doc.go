// Package tasks runs the long-lived background work of the signx workflow with real-time progress reporting.
//
// # Progress Simulation
//
// The processing service does not report progress, so [Simulator] produces a believable estimate:
//   - every tick interval the value grows by a random increment, capped at [DefaultCeiling]
//   - at a fixed deadline, independent of the ticks, the value becomes exactly 100 and ticking stops
//
// Each started [Run] owns two timer handles (tick and deadline) which [Run.Cancel] stops together.
// Timers come from a [shared.Clock] so tests can drive them with a manual clock.
//
// # Bulk Downloads
//
// [BulkDownload] saves many processed artifacts concurrently using a worker pool behind a rate limiter,
// optionally writes a label comparison report for each and finishes with a JSON manifest.
// Failures are recorded per artifact and never abort the rest of the batch.
//
// # Progress Reporting
//
// Both use [ProgressUpdate] values. Bulk downloads send them on a channel with select/default so a
// slow consumer never blocks the workers.
package tasks
