// Package cron runs the periodic maintenance sweeps: failing orphaned
// queued jobs, purging expired agent memory and enqueueing calendar syncs.
//
// A [Task] pairs a name with a robfig/cron schedule ("@every 5m",
// "@hourly" or a standard 5-field expression) and a Run function that
// reports how many rows it changed. The [Scheduler] never overlaps two runs
// of the same task and fires ext.SweepCompleted after each run.
//
// Sweeps are safe to run from several processes at once: each one moves a
// row only through a compare-and-set on its current status.
package cron
