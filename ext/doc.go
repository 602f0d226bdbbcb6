// Package ext defines the extension system for the job service.
//
// Extensions are notified of job lifecycle events and can react to them
// by recording metrics or pushing events to subscribers. Each hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type auditExt struct{ log *slog.Logger }
//
//	func (e *auditExt) Name() string { return "audit" }
//
//	func (e *auditExt) OnJobCancelled(ctx context.Context, j *job.Job) error {
//	    e.log.Info("job cancelled", slog.String("job_id", j.ID.String()))
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued]: a new job was persisted and submitted
//   - [JobDeduplicated]: an enqueue returned an existing active job
//   - [JobStarted]: a worker began executing the job
//   - [JobSucceeded]: the job finished successfully
//   - [JobFailed]: the job failed with no retries remaining
//   - [JobRetrying]: the job failed and was re-queued
//   - [JobCancelled]: a cancel request was accepted
//   - [JobOrphaned]: the job was failed because the broker lost it
//
// # Other Hooks
//
//   - [SweepCompleted]: a scheduled maintenance task finished
//   - [Shutdown]: the process is shutting down
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never returned to the caller.
package ext
