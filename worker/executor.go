// Package worker runs jobs: an Executor drives one job through the
// middleware chain and its state transitions, and a Pool claims envelopes
// from the broker and feeds them to the Executor concurrently.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/backoff"
	"github.com/simd-personal/Inno-Supps/broker"
	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/middleware"
)

// OrphanedMessage is recorded on a queued job the broker no longer tracks.
const OrphanedMessage = "orphaned: no broker entry"

// BrokerFailurePrefix starts last_error when a job could not be handed to
// the broker.
const BrokerFailurePrefix = "broker submission failed: "

// Envelope builds the broker envelope for j.
func Envelope(j *job.Job) broker.Envelope {
	return broker.Envelope{
		JobID:       j.ID.String(),
		WorkspaceID: j.WorkspaceID,
		Function:    j.Payload.Function,
		Queue:       j.Queue,
		Timeout:     j.Timeout,
		EnqueuedAt:  j.UpdatedAt,
	}
}

// Executor runs a single job through middleware and its registered
// handler, then records the outcome: succeeded, failed, or re-queued with
// backoff while retries remain.
type Executor struct {
	registry   *job.Registry
	extensions *ext.Registry
	store      job.Store
	broker     broker.Broker
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
	now        func() time.Time
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	extensions *ext.Registry,
	store job.Store,
	b broker.Broker,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		extensions: extensions,
		store:      store,
		broker:     b,
		backoff:    bo,
		mw:         middleware.Chain(mws...),
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (e *Executor) SetClock(now func() time.Time) { e.now = now }

// Execute runs the job and returns the state it was left in. A job that is
// not queued is skipped and its current state returned with a nil error,
// which makes duplicate deliveries harmless. Every state write is a
// compare-and-set against the state the executor last saw, so a cancel or
// sweep that lands concurrently is never overwritten.
//
// The returned error is the handler's error (wrapped) when the execution
// failed, whether or not a retry was scheduled.
func (e *Executor) Execute(ctx context.Context, jobID id.JobID) (job.State, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if j.State != job.StateQueued {
		e.logger.Warn("skipping delivery of job that is not queued",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(j.State)),
		)
		return j.State, nil
	}

	// Store writes after this point must land even when ctx is cancelled.
	wctx := context.WithoutCancel(ctx)

	entry, ok := e.registry.Get(j.Payload.Function)
	if !ok {
		err := fmt.Errorf("%w: %q", innosupps.ErrUnknownFunction, j.Payload.Function)
		return e.fail(wctx, j, err)
	}
	payload, err := j.Payload.Bind(entry.Params)
	if err != nil {
		return e.fail(wctx, j, fmt.Errorf("%w: %v", innosupps.ErrInvalidArguments, err))
	}

	if err := j.Transition(job.StateRunning, e.now()); err != nil {
		return j.State, err
	}
	j.Attempts++
	if err := e.store.UpdateJobFrom(wctx, j, job.StateQueued); err != nil {
		if errors.Is(err, innosupps.ErrInvalidState) {
			// Cancelled, swept or claimed by another delivery since the read.
			return e.skip(wctx, j.ID)
		}
		return j.State, fmt.Errorf("mark job %s running: %w", j.ID, err)
	}
	e.extensions.EmitJobStarted(wctx, j)

	start := e.now()
	var result any
	runErr := e.mw(ctx, j, func(ctx context.Context) error {
		var herr error
		result, herr = entry.Handler(ctx, payload)
		return herr
	})
	elapsed := e.now().Sub(start)

	// A cancel request flips the row to cancelling while we run.
	if cur, err := e.store.GetJob(wctx, j.ID); err == nil && cur.State == job.StateCancelling {
		j.State = job.StateCancelling
		if runErr != nil {
			return e.fail(wctx, j, innosupps.ErrJobCancelled)
		}
	}

	if runErr != nil {
		return e.handleFailure(wctx, j, runErr)
	}
	return e.handleSuccess(wctx, j, result, elapsed)
}

// handleSuccess records the result and marks the job succeeded.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, result any, elapsed time.Duration) (job.State, error) {
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			e.logger.Warn("job result is not serializable; dropping it",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		} else {
			j.Result = raw
		}
	}

	from := j.State
	if err := j.Transition(job.StateSucceeded, e.now()); err != nil {
		return j.State, err
	}
	j.Attempts++
	j.LastError = ""
	if err := e.store.UpdateJobFrom(ctx, j, from); err != nil {
		if errors.Is(err, innosupps.ErrInvalidState) {
			return e.superseded(ctx, j, nil, elapsed)
		}
		e.logger.Error("failed to update job after success",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("error", err.Error()),
		)
		return j.State, err
	}

	e.extensions.EmitJobSucceeded(ctx, j, elapsed)
	return job.StateSucceeded, nil
}

// handleFailure re-queues the job while retries remain. Validation errors
// are never retried: the same arguments would fail the same way.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, runErr error) (job.State, error) {
	if j.Retries >= j.MaxRetries || errors.Is(runErr, innosupps.ErrValidation) {
		return e.fail(ctx, j, runErr)
	}
	return e.scheduleRetry(ctx, j, runErr)
}

// scheduleRetry moves the job back to queued and schedules its envelope
// after the backoff delay.
func (e *Executor) scheduleRetry(ctx context.Context, j *job.Job, runErr error) (job.State, error) {
	now := e.now()
	j.Retries++
	delay := e.backoff.Delay(j.Retries)
	nextRunAt := now.Add(delay).UTC()

	if err := j.Transition(job.StateQueued, now); err != nil {
		return j.State, err
	}
	j.Attempts++
	j.LastError = runErr.Error()
	j.RunAt = nextRunAt
	if err := e.store.UpdateJobFrom(ctx, j, job.StateRunning); err != nil {
		if errors.Is(err, innosupps.ErrInvalidState) {
			return e.superseded(ctx, j, runErr, 0)
		}
		e.logger.Error("failed to update job for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return j.State, err
	}

	if err := e.broker.Schedule(ctx, Envelope(j), nextRunAt); err != nil {
		return e.failQueued(ctx, j, BrokerFailurePrefix+err.Error(), runErr)
	}

	e.extensions.EmitJobRetrying(ctx, j, j.Retries, nextRunAt)
	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.Int("retry", j.Retries),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)
	return job.StateQueued, fmt.Errorf("%w: %s retry %d/%d: %w",
		innosupps.ErrJobExecution, j.Type, j.Retries, j.MaxRetries, runErr)
}

// fail marks a queued, running or cancelling job as terminally failed.
// A cancelled job records the user-facing cancel message.
func (e *Executor) fail(ctx context.Context, j *job.Job, cause error) (job.State, error) {
	from := j.State
	if err := j.Transition(job.StateFailed, e.now()); err != nil {
		return j.State, err
	}
	if errors.Is(cause, innosupps.ErrJobCancelled) {
		j.LastError = job.CancelledMessage
	} else {
		j.LastError = cause.Error()
	}
	j.Attempts++
	if err := e.store.UpdateJobFrom(ctx, j, from); err != nil {
		if errors.Is(err, innosupps.ErrInvalidState) {
			return e.superseded(ctx, j, cause, 0)
		}
		e.logger.Error("failed to update job as failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return j.State, err
	}

	e.extensions.EmitJobFailed(ctx, j, cause)
	if errors.Is(cause, innosupps.ErrJobCancelled) {
		return job.StateFailed, cause
	}
	return job.StateFailed, fmt.Errorf("%w: %s: %w", innosupps.ErrJobExecution, j.Type, cause)
}

// failQueued fails a job that is queued but has no broker entry.
func (e *Executor) failQueued(ctx context.Context, j *job.Job, message string, cause error) (job.State, error) {
	if err := j.Transition(job.StateFailed, e.now()); err != nil {
		return j.State, err
	}
	j.LastError = message
	if err := e.store.UpdateJobFrom(ctx, j, job.StateQueued); err != nil {
		if errors.Is(err, innosupps.ErrInvalidState) {
			return e.skip(ctx, j.ID)
		}
		return j.State, err
	}
	e.extensions.EmitJobOrphaned(ctx, j)
	return job.StateFailed, fmt.Errorf("%w: %s: %s: %w", innosupps.ErrJobExecution, j.Type, message, cause)
}

// skip reports the current state of a job another writer moved first.
func (e *Executor) skip(ctx context.Context, jobID id.JobID) (job.State, error) {
	cur, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	e.logger.Warn("job changed state concurrently; leaving it",
		slog.String("job_id", jobID.String()),
		slog.String("status", string(cur.State)),
	)
	return cur.State, nil
}

// superseded resolves a write that lost the compare-and-set after the
// handler ran. A cancel that landed meanwhile is honoured: the job ends
// failed with the cancel message, or succeeded when the handler already
// committed success (cause == nil). Any other writer wins outright.
func (e *Executor) superseded(ctx context.Context, j *job.Job, cause error, elapsed time.Duration) (job.State, error) {
	cur, err := e.store.GetJob(ctx, j.ID)
	if err != nil {
		return j.State, err
	}
	if cur.State != job.StateCancelling {
		return e.skip(ctx, j.ID)
	}
	if cause == nil {
		cur.Result = j.Result
		return e.handleSuccess(ctx, cur, nil, elapsed)
	}
	return e.fail(ctx, cur, innosupps.ErrJobCancelled)
}
