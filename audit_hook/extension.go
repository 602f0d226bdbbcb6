package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/redact"
)

var (
	_ ext.Extension       = (*Extension)(nil)
	_ ext.JobEnqueued     = (*Extension)(nil)
	_ ext.JobDeduplicated = (*Extension)(nil)
	_ ext.JobStarted      = (*Extension)(nil)
	_ ext.JobSucceeded    = (*Extension)(nil)
	_ ext.JobFailed       = (*Extension)(nil)
	_ ext.JobRetrying     = (*Extension)(nil)
	_ ext.JobCancelled    = (*Extension)(nil)
	_ ext.JobOrphaned     = (*Extension)(nil)
	_ ext.SweepCompleted  = (*Extension)(nil)
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	ResourceID  string         `json:"resource_id,omitempty"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Outcome     string         `json:"outcome"`
	Severity    string         `json:"severity"`
	Reason      string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges lifecycle hooks to a Recorder.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnJobEnqueued implements ext.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess, j, "",
		"run_at", j.RunAt.UTC().Format(time.RFC3339),
	)
}

// OnJobDeduplicated implements ext.JobDeduplicated.
func (e *Extension) OnJobDeduplicated(ctx context.Context, existing *job.Job) error {
	return e.recordJob(ctx, ActionJobDeduplicated, SeverityInfo, OutcomeSuccess, existing, "",
		"status", string(existing.State),
	)
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess, j, "",
		"attempts", j.Attempts,
	)
}

// OnJobSucceeded implements ext.JobSucceeded.
func (e *Extension) OnJobSucceeded(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.recordJob(ctx, ActionJobSucceeded, SeverityInfo, OutcomeSuccess, j, "",
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	reason := j.LastError
	if jobErr != nil {
		reason = jobErr.Error()
	}
	return e.recordJob(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure, j, reason,
		"attempts", j.Attempts,
		"max_retries", j.MaxRetries,
	)
}

// OnJobRetrying implements ext.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, j *job.Job, retry int, nextRunAt time.Time) error {
	return e.recordJob(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure, j, j.LastError,
		"retry", retry,
		"next_run_at", nextRunAt.UTC().Format(time.RFC3339),
	)
}

// OnJobCancelled implements ext.JobCancelled.
func (e *Extension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobCancelled, SeverityWarning, OutcomeSuccess, j, j.LastError,
		"status", string(j.State),
	)
}

// OnJobOrphaned implements ext.JobOrphaned.
func (e *Extension) OnJobOrphaned(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobOrphaned, SeverityCritical, OutcomeFailure, j, j.LastError)
}

// OnSweepCompleted implements ext.SweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, name string, affected int, elapsed time.Duration) error {
	return e.record(ctx, &AuditEvent{
		Action:     ActionSweepCompleted,
		Resource:   ResourceSweep,
		Category:   CategorySweep,
		ResourceID: name,
		Outcome:    OutcomeSuccess,
		Severity:   SeverityInfo,
	}, "affected", affected, "elapsed_ms", elapsed.Milliseconds())
}

func (e *Extension) recordJob(
	ctx context.Context,
	action, severity, outcome string,
	j *job.Job,
	reason string,
	kvPairs ...any,
) error {
	kvPairs = append(kvPairs,
		"job_type", j.Type,
		"function", j.Payload.Function,
		"queue", j.Queue,
	)
	return e.record(ctx, &AuditEvent{
		Action:      action,
		Resource:    ResourceJob,
		Category:    CategoryJob,
		ResourceID:  j.ID.String(),
		WorkspaceID: j.WorkspaceID,
		Outcome:     outcome,
		Severity:    severity,
		Reason:      redact.Text(reason),
	}, kvPairs...)
}

// record fills Metadata from kvPairs and sends evt if its action is
// enabled. Recorder failures are logged, never returned.
func (e *Extension) record(ctx context.Context, evt *AuditEvent, kvPairs ...any) error {
	if e.enabled != nil && !e.enabled[evt.Action] {
		return nil
	}

	evt.Metadata = make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		evt.Metadata[key] = kvPairs[i+1]
	}

	if err := e.recorder.Record(ctx, evt); err != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", evt.Action),
			slog.String("resource_id", evt.ResourceID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
