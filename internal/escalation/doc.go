// Package escalation promotes overdue tickets up the responsibility chain
// (room incharge, sub admin, central admin).
//
// Engine decides and applies a single-step transition for one ticket.
// Resolver picks the directory entry that owns a ticket at a level.
// Runner sweeps every overdue ticket through the Engine and isolates
// per-ticket failures. Scheduler calls the Runner on a fixed interval; the
// HTTP trigger and the CLI call the same Runner.
//
// Concurrent sweeps are tolerated: the ticket write is guarded by the level
// that was read, so a ticket already moved by another sweep is reported as a
// no-op with reason concurrent_update rather than escalated twice.
package escalation
