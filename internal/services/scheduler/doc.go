// Package scheduler owns the set of active timers and the goroutine that
// drives each one.
//
// # Overview
//
// Service is the timer store: every mutation (create, cancel, snooze,
// reschedule, retire) updates the in-memory map and then rewrites the full
// snapshot to storage. Each registered timer has exactly one task goroutine,
// spawned under a supervisor and named "timer:<id>".
//
// # Task cycle
//
// For every occurrence a task:
//
//  1. sleeps until the warning instant (target minus the largest configured
//     warning lead), if that instant is not already behind the cycle start;
//  2. asks the prompt service for a decision and reacts to it (run now,
//     snooze ten minutes, skip this occurrence, or keep the schedule);
//  3. sleeps until the target, closes any open prompt and runs the action;
//  4. computes the next occurrence, or retires the timer.
//
// Every wait races the task context. Cancel removes the entry first and then
// cancels the context, so a cancelled task never writes to the store again.
// Stop cancels all task contexts but leaves the store intact for the next
// Restore.
//
// # Persistence
//
// Writes are serialized and the snapshot is taken inside the write lock, so
// the file on disk always converges to the latest in-memory state. A failed
// write marks the store dirty; a cron flush job retries until it succeeds.
package scheduler
