package job

import "time"

// Options configures where and how a job runs. A Definition carries
// defaults; options passed at enqueue time override them.
type Options struct {
	// Type is the job type tag recorded on the row. Defaults to the
	// function name.
	Type string

	// Queue is the broker queue name (high, default or low).
	Queue string

	// Timeout is the maximum duration a single execution may run.
	Timeout time.Duration

	// MaxRetries is how many times a failed execution is re-queued before
	// the job is marked failed.
	MaxRetries int

	// WorkspaceID scopes the job and its deduplication. Empty means the
	// system workspace.
	WorkspaceID string

	// RunAt schedules the job for future execution. Zero means immediate.
	RunAt time.Time

	// Delay schedules the job relative to enqueue time. RunAt wins when
	// both are set.
	Delay time.Duration
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Queue:      "default",
		Timeout:    5 * time.Minute,
		MaxRetries: 3,
	}
}

// Option is a functional option for configuring a job.
type Option func(*Options)

// WithType sets the job type tag.
func WithType(t string) Option {
	return func(o *Options) { o.Type = t }
}

// WithQueue sets the queue name for the job.
func WithQueue(q string) Option {
	return func(o *Options) { o.Queue = q }
}

// WithTimeout sets the maximum execution duration for the job.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

// WithWorkspace scopes the job to a workspace.
func WithWorkspace(workspaceID string) Option {
	return func(o *Options) { o.WorkspaceID = workspaceID }
}

// WithRunAt schedules the job for execution at a specific time.
func WithRunAt(t time.Time) Option {
	return func(o *Options) { o.RunAt = t }
}

// WithDelay schedules the job to run after d.
func WithDelay(d time.Duration) Option {
	return func(o *Options) { o.Delay = d }
}
