package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobEnqueued     = "job.enqueued"
	ActionJobDeduplicated = "job.deduplicated"
	ActionJobStarted      = "job.started"
	ActionJobSucceeded    = "job.succeeded"
	ActionJobFailed       = "job.failed"
	ActionJobRetrying     = "job.retrying"
	ActionJobCancelled    = "job.cancelled"
	ActionJobOrphaned     = "job.orphaned"
	ActionSweepCompleted  = "sweep.completed"
)

// Audit event categories group related actions.
const (
	CategoryJob   = "innosupps.job"
	CategorySweep = "innosupps.sweep"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob   = "job"
	ResourceSweep = "sweep"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobEnqueued,
		ActionJobDeduplicated,
		ActionJobStarted,
		ActionJobSucceeded,
		ActionJobFailed,
		ActionJobRetrying,
		ActionJobCancelled,
		ActionJobOrphaned,
		ActionSweepCompleted,
	}
}
