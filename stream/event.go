// Package stream fans job lifecycle events out to live subscribers. Hub is
// an ext.Extension: the engine calls its hooks and it publishes an Event
// on the job's workspace, queue and job topics. ServeWS streams a
// workspace's events over a websocket.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	EventJobEnqueued  EventType = "job.enqueued"
	EventJobStarted   EventType = "job.started"
	EventJobSucceeded EventType = "job.succeeded"
	EventJobFailed    EventType = "job.failed"
	EventJobRetrying  EventType = "job.retrying"
	EventJobCancelled EventType = "job.cancelled"
	EventJobOrphaned  EventType = "job.orphaned"

	EventSweepCompleted EventType = "sweep.completed"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"ts"`

	// Topic is the most specific topic the event was published on.
	Topic string `json:"topic"`

	// WorkspaceID is empty for process-wide events such as sweeps.
	WorkspaceID string `json:"workspace_id,omitempty"`
	Queue       string `json:"queue,omitempty"`

	Data json.RawMessage `json:"data"`
}

// JobEventData is the payload of job events. Error text is redacted.
type JobEventData struct {
	JobID     string `json:"job_id"`
	Type      string `json:"job_type"`
	Function  string `json:"function"`
	Queue     string `json:"queue"`
	State     string `json:"status"`
	Attempts  int    `json:"attempts"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
	Error     string `json:"error,omitempty"`
	Retry     int    `json:"retry,omitempty"`
	NextRunAt string `json:"next_run_at,omitempty"`
}

// SweepEventData is the payload of sweep events.
type SweepEventData struct {
	Name      string `json:"name"`
	Affected  int    `json:"affected"`
	ElapsedMs int64  `json:"elapsed_ms"`
}
