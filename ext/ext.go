package ext

import (
	"context"
	"time"

	"github.com/simd-personal/Inno-Supps/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a new job row is persisted and handed to
// the broker.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobDeduplicated is called when an enqueue resolves to an active job that
// already holds the same dedupe key.
type JobDeduplicated interface {
	OnJobDeduplicated(ctx context.Context, existing *job.Job) error
}

// JobStarted is called when a worker moves a job to running.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobSucceeded is called after a job reaches succeeded.
type JobSucceeded interface {
	OnJobSucceeded(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job fails terminally.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetrying is called when a failed execution is re-queued with backoff.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, retry int, nextRunAt time.Time) error
}

// JobCancelled is called when a cancel request is accepted. The job is
// either failed already (it was queued) or cancelling (it was running).
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, j *job.Job) error
}

// JobOrphaned is called when a queued job is failed because the broker no
// longer tracks it.
type JobOrphaned interface {
	OnJobOrphaned(ctx context.Context, j *job.Job) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// SweepCompleted is called after a scheduled maintenance task runs.
// affected is the number of rows the task changed.
type SweepCompleted interface {
	OnSweepCompleted(ctx context.Context, name string, affected int, elapsed time.Duration) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
