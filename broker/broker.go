// Package broker defines the delivery contract between the job service and
// the workers: named queues, delayed scheduling, cancellation and
// per-queue introspection.
//
// The broker only moves envelopes. Job status lives in the relational
// store; the counts returned by Stats come from the broker alone and can
// disagree with the Job table when a store write fails after a successful
// submission.
package broker

import (
	"context"
	"time"
)

// Envelope is the unit of delivery. It references a persisted job by ID
// and carries just enough to route and time it.
type Envelope struct {
	JobID       string        `json:"job_id" msgpack:"job_id"`
	WorkspaceID string        `json:"workspace_id" msgpack:"workspace_id"`
	Function    string        `json:"function" msgpack:"function"`
	Queue       string        `json:"queue" msgpack:"queue"`
	Timeout     time.Duration `json:"timeout" msgpack:"timeout"`
	EnqueuedAt  time.Time     `json:"enqueued_at" msgpack:"enqueued_at"`
}

// Counts summarizes one queue.
type Counts struct {
	Queued    int64 `json:"queued"`
	Scheduled int64 `json:"scheduled"`
	Started   int64 `json:"started"`
	Failed    int64 `json:"failed"`
	Finished  int64 `json:"finished"`
}

// Broker is the queue contract. Implementations must be safe for
// concurrent use.
type Broker interface {
	// Submit makes env immediately available on env.Queue.
	Submit(ctx context.Context, env Envelope) error

	// Schedule makes env available on env.Queue once at has passed.
	Schedule(ctx context.Context, env Envelope, at time.Time) error

	// Dequeue claims up to n envelopes, draining queues in the given
	// order. Due scheduled envelopes are promoted first.
	Dequeue(ctx context.Context, queues []string, n int) ([]Envelope, error)

	// Has reports whether the broker still tracks jobID in any state
	// other than finished or failed.
	Has(ctx context.Context, jobID string) (bool, error)

	// Pending reports whether jobID is waiting on a queue or schedule,
	// that is, whether a worker will still receive it. A claimed envelope
	// is tracked but not pending.
	Pending(ctx context.Context, jobID string) (bool, error)

	// Cancel removes jobID from whichever queue or schedule holds it. It
	// returns false when the job was not waiting (already claimed or
	// unknown).
	Cancel(ctx context.Context, jobID string) (bool, error)

	// MarkStarted records env as claimed by a worker.
	MarkStarted(ctx context.Context, env Envelope) error

	// MarkFinished records a successful execution and forgets env.
	MarkFinished(ctx context.Context, env Envelope) error

	// MarkFailed records a failed execution and forgets env.
	MarkFailed(ctx context.Context, env Envelope) error

	// Stats returns counts for each known queue.
	Stats(ctx context.Context) (map[string]Counts, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the broker.
	Close() error
}
