package job

import (
	"encoding/json"
	"fmt"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StateQueued means the job is persisted and waiting in a broker queue.
	StateQueued State = "queued"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateCancelling means cancel was requested while the job was running.
	// The executor finalizes it at its next checkpoint.
	StateCancelling State = "cancelling"
	// StateSucceeded means the handler returned without error.
	StateSucceeded State = "succeeded"
	// StateFailed means the job failed, was cancelled, or was orphaned.
	StateFailed State = "failed"
)

// transitions lists the allowed moves out of each state. Terminal states
// have no entry.
var transitions = map[State][]State{
	StateQueued:     {StateRunning, StateFailed},
	StateRunning:    {StateSucceeded, StateFailed, StateQueued, StateCancelling},
	StateCancelling: {StateFailed, StateSucceeded},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// IsActive reports whether the state participates in deduplication.
func (s State) IsActive() bool {
	return s == StateQueued || s == StateRunning || s == StateCancelling
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveStates are the states covered by the dedupe uniqueness rule.
var ActiveStates = []State{StateQueued, StateRunning, StateCancelling}

// CancelledMessage is recorded in LastError when a user cancels a job.
const CancelledMessage = "Cancelled by user"

// Call is the serialized invocation stored with a job: the registered
// function name, its arguments, and the dedupe key derived from them.
type Call struct {
	Function  string          `json:"function"`
	Args      []any           `json:"args"`
	Kwargs    json.RawMessage `json:"kwargs"`
	DedupeKey string          `json:"dedupe_key"`
}

// Job is one persisted background invocation.
type Job struct {
	innosupps.Entity

	ID          id.JobID        `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Type        string          `json:"type"`
	Queue       string          `json:"queue"`
	Payload     Call            `json:"payload"`
	State       State           `json:"status"`
	Attempts    int             `json:"attempts"`
	Retries     int             `json:"retries"`
	MaxRetries  int             `json:"max_retries"`
	Timeout     time.Duration   `json:"timeout,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	RunAt       time.Time       `json:"run_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	HeartbeatAt *time.Time      `json:"heartbeat_at,omitempty"`
}

// Transition moves the job to next, stamping the matching timestamps. It
// rejects any move the state machine does not allow, so a terminal job
// can never change state again.
func (j *Job) Transition(next State, now time.Time) error {
	if !j.State.CanTransition(next) {
		return fmt.Errorf("%w: job %s %s -> %s", innosupps.ErrInvalidState, j.ID, j.State, next)
	}
	now = now.UTC()
	j.State = next
	j.Touch(now)
	switch next {
	case StateRunning:
		j.StartedAt = &now
		j.HeartbeatAt = &now
	case StateQueued:
		j.StartedAt = nil
		j.HeartbeatAt = nil
	case StateSucceeded, StateFailed:
		j.FinishedAt = &now
	}
	return nil
}

// Status is the read-only projection returned to pollers.
type Status struct {
	ID          string          `json:"job_id"`
	WorkspaceID string          `json:"workspace_id"`
	Type        string          `json:"type"`
	Queue       string          `json:"queue"`
	Status      State           `json:"status"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Status projects the job into a Status.
func (j *Job) Status() *Status {
	return &Status{
		ID:          j.ID.String(),
		WorkspaceID: j.WorkspaceID,
		Type:        j.Type,
		Queue:       j.Queue,
		Status:      j.State,
		Attempts:    j.Attempts,
		LastError:   j.LastError,
		Result:      j.Result,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}
