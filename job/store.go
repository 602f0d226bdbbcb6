package job

import (
	"context"
	"time"

	"github.com/simd-personal/Inno-Supps/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// WorkspaceID filters by workspace. Empty means all workspaces.
	WorkspaceID string
	// Queue filters by queue name. Empty means all queues.
	Queue string
	// State filters by job state. Empty means all states.
	State State
}

// Store defines the persistence contract for jobs. The Job table is the
// source of truth for status; delivery belongs to the broker.
type Store interface {
	// InsertJob persists a new job. When another active job in the same
	// workspace already holds the dedupe key it returns an error wrapping
	// innosupps.ErrDuplicateJob and writes nothing.
	InsertJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// FindActiveJob returns the active job holding dedupeKey in the
	// workspace, or ErrJobNotFound.
	FindActiveJob(ctx context.Context, workspaceID, dedupeKey string) (*Job, error)

	// UpdateJob persists changes to an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// UpdateJobFrom persists j only if the stored status is still from.
	// Otherwise it writes nothing and returns an error wrapping
	// innosupps.ErrInvalidState. It guards transitions that race with a
	// worker, such as cancel and the orphan sweep.
	UpdateJobFrom(ctx context.Context, j *Job, from State) error

	// DeleteJob removes a job by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListJobsByWorkspace returns the workspace's jobs, newest first.
	ListJobsByWorkspace(ctx context.Context, workspaceID string, opts ListOpts) ([]*Job, error)

	// ListJobsByState returns jobs in the given state, oldest first.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// HeartbeatJob stamps a running job as alive.
	HeartbeatJob(ctx context.Context, jobID id.JobID) error

	// ReapStaleJobs returns running jobs whose last heartbeat is older
	// than threshold.
	ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*Job, error)

	// CountJobs returns the number of jobs matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
