// Package queue gates job starts per broker queue and per workspace.
//
// Queues are polled in priority order (high, default, low). Each queue may
// carry a token-bucket rate limit (golang.org/x/time/rate) and a cap on
// in-flight jobs. On top of that every workspace gets its own concurrency
// cap per queue, so one busy workspace cannot monopolize the pool.
//
//	m := queue.FromConfig(cfg.Queues, queue.WorkspaceLimit{MaxConcurrency: 5})
//	if m.Acquire(env.Queue, workspaceID) {
//	    defer m.Release(env.Queue, workspaceID)
//	    // run the job
//	}
//
// Queues without a [Config] have no limits beyond the pool-wide
// concurrency.
package queue
