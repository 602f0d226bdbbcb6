package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/agentmem"
	"github.com/simd-personal/Inno-Supps/backoff"
	"github.com/simd-personal/Inno-Supps/broker"
	"github.com/simd-personal/Inno-Supps/cron"
	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	mw "github.com/simd-personal/Inno-Supps/middleware"
	"github.com/simd-personal/Inno-Supps/observability"
	"github.com/simd-personal/Inno-Supps/queue"
	"github.com/simd-personal/Inno-Supps/scope"
	"github.com/simd-personal/Inno-Supps/worker"
)

// DefaultListLimit is the page size of ListForWorkspace when none is given.
const DefaultListLimit = 100

// Sweep task names.
const (
	SweepOrphans = "orphans"
	SweepMemory  = "memory"
)

// cancelAttempts bounds how often Cancel re-reads a job that changed state
// under it.
const cancelAttempts = 3

// Engine wraps a Dispatcher with typed subsystem access.
// Use Build() to create one from a Dispatcher.
type Engine struct {
	d          *innosupps.Dispatcher
	config     innosupps.Config
	extensions *ext.Registry
	registry   *job.Registry
	jobStore   job.Store
	memStore   agentmem.Store
	broker     broker.Broker
	bo         backoff.Strategy
	executor   *worker.Executor
	pool       *worker.Pool
	queues     *queue.Manager
	scheduler  *cron.Scheduler
	mws        []mw.Middleware
	sweeps     []cron.Task
	logger     *slog.Logger
	now        func() time.Time

	// Optional providers; nil means the global or default one.
	tracerProvider trace.TracerProvider
	registerer     prometheus.Registerer
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain, inside the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy for the engine.
// If not set, the strategy named in Config.Worker.Backoff is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithRegisterer sets the Prometheus registerer for the metrics middleware
// and the observability extension. If not set,
// prometheus.DefaultRegisterer is used.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(eng *Engine) {
		eng.registerer = reg
	}
}

// WithSweep adds a maintenance task to the cron scheduler. A task named
// like a built-in sweep replaces it.
func WithSweep(t cron.Task) Option {
	return func(eng *Engine) {
		eng.sweeps = append(eng.sweeps, t)
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(eng *Engine) {
		eng.now = now
	}
}

// Build creates an Engine from an existing Dispatcher.
// The Dispatcher's store must implement job.Store and its broker
// broker.Broker. A store that also implements agentmem.Store gets the
// expired-memory sweep.
func Build(d *innosupps.Dispatcher, opts ...Option) (*Engine, error) {
	logger := d.Logger()
	store := d.Store()
	if store == nil {
		return nil, innosupps.ErrNoStore
	}

	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("innosupps: store does not implement job.Store")
	}
	b, ok := d.Broker().(broker.Broker)
	if !ok {
		return nil, fmt.Errorf("innosupps: broker does not implement broker.Broker")
	}
	ms, _ := store.(agentmem.Store)

	cfg := d.Config()
	eng := &Engine{
		d:          d,
		config:     cfg,
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		jobStore:   js,
		memStore:   ms,
		broker:     b,
		logger:     logger,
		now:        time.Now,
		registerer: prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		bo, err := backoff.Named(cfg.Worker.Backoff, cfg.Worker.BackoffInitial, cfg.Worker.BackoffMax)
		if err != nil {
			return nil, err
		}
		eng.bo = bo
	}

	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/simd-personal/Inno-Supps"))
	} else {
		tracingMw = mw.Tracing()
	}

	eng.extensions.Register(observability.NewMetricsExtensionWithRegisterer(eng.registerer))

	// Default middleware stack: recover → tracing → metrics → logging → scope → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		mw.MetricsWithRegisterer(eng.registerer),
		mw.Logging(logger),
		mw.Scope(),
		mw.Timeout(logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	eng.executor = worker.NewExecutor(eng.registry, eng.extensions, js, b, eng.bo, logger, allMws...)
	eng.executor.SetClock(eng.now)

	eng.queues = queue.FromConfig(cfg.Queues, queue.WorkspaceLimit{
		MaxConcurrency: cfg.Worker.WorkspaceConcurrency,
	})

	eng.pool = worker.NewPool(b, js, eng.executor, eng.extensions, logger,
		worker.WithPoolConcurrency(cfg.Worker.Concurrency),
		worker.WithPoolQueues(eng.queues.Names()),
		worker.WithPollInterval(cfg.Worker.PollInterval),
		worker.WithHeartbeatInterval(cfg.Worker.HeartbeatInterval),
		worker.WithStaleJobThreshold(cfg.Worker.StaleJobThreshold),
		worker.WithQueueManager(eng.queues),
	)

	// Wire back into the Dispatcher.
	d.SetPool(eng.pool)
	d.SetExtensions(eng.extensions)

	eng.scheduler = cron.NewScheduler(eng.extensions, logger)
	if err := eng.addSweeps(); err != nil {
		return nil, err
	}

	return eng, nil
}

func (eng *Engine) addSweeps() error {
	tasks := []cron.Task{{
		Name:     SweepOrphans,
		Schedule: eng.config.Sweep.OrphanSchedule,
		Run: func(ctx context.Context) (int, error) {
			return eng.ReconcileOrphans(ctx, eng.config.Sweep.OrphanAfter)
		},
	}}
	if eng.memStore != nil {
		tasks = append(tasks, cron.Task{
			Name:     SweepMemory,
			Schedule: eng.config.Sweep.MemorySchedule,
			Run: func(ctx context.Context) (int, error) {
				n, err := eng.memStore.PurgeExpiredMemory(ctx, "", eng.now().UTC())
				return int(n), err
			},
		})
	}
	tasks = append(tasks, eng.sweeps...)

	for _, t := range tasks {
		if t.Schedule == "" {
			continue
		}
		if err := eng.scheduler.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Registration
// ──────────────────────────────────────────────────

// Register registers a typed job definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// AddSweep registers a maintenance task. Tasks added before Start replace
// a built-in sweep of the same name.
func (eng *Engine) AddSweep(t cron.Task) error {
	return eng.scheduler.Add(t)
}

// ──────────────────────────────────────────────────
// Enqueue
// ──────────────────────────────────────────────────

// Enqueue persists a job for the typed definition and hands it to the
// broker. payload becomes the job's keyword arguments.
func Enqueue[T any](ctx context.Context, eng *Engine, def *job.Definition[T], payload T, opts ...job.Option) (id.JobID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return id.JobID{}, fmt.Errorf("%w: marshal payload for job %q: %v", innosupps.ErrInvalidArguments, def.Name, err)
	}
	return eng.Enqueue(ctx, def.Name, nil, data, opts...)
}

// Enqueue persists a job that calls function with args and kwargs and
// hands it to the broker.
//
// When a workspace is given (explicitly or through ctx) and an active job
// in it already holds the dedupe key derived from the call, its ID is
// returned and nothing is written. Calls without a workspace run in
// SystemWorkspace and are never deduplicated. When
// the broker refuses the envelope, the job is marked failed and its ID is
// returned together with an upstream error.
func (eng *Engine) Enqueue(ctx context.Context, function string, args []any, kwargs json.RawMessage, opts ...job.Option) (id.JobID, error) {
	entry, ok := eng.registry.Get(function)
	if !ok {
		return id.JobID{}, fmt.Errorf("%w: %q", innosupps.ErrUnknownFunction, function)
	}

	o := entry.Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Type == "" {
		o.Type = function
	}
	if o.Timeout <= 0 {
		o.Timeout = eng.config.Worker.DefaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}

	key, err := job.DedupeKey(function, args, kwargs)
	if err != nil {
		return id.JobID{}, fmt.Errorf("%w: %v", innosupps.ErrInvalidArguments, err)
	}
	if len(kwargs) == 0 {
		kwargs = json.RawMessage("{}")
	}

	// Only calls made on behalf of a workspace are deduplicated. System
	// jobs carry an empty key, which the active index ignores.
	workspaceID := scope.Resolve(ctx, o.WorkspaceID)
	dedupe := o.WorkspaceID != "" || scope.Capture(ctx) != ""
	if !dedupe {
		key = ""
	} else if existing, found, err := eng.findActive(ctx, workspaceID, key); err != nil {
		return id.JobID{}, err
	} else if found {
		return existing, nil
	}

	now := eng.now().UTC()
	runAt := now
	switch {
	case !o.RunAt.IsZero():
		runAt = o.RunAt.UTC()
	case o.Delay > 0:
		runAt = now.Add(o.Delay)
	}

	j := &job.Job{
		Entity:      innosupps.Entity{CreatedAt: now, UpdatedAt: now},
		ID:          id.NewJobID(),
		WorkspaceID: workspaceID,
		Type:        o.Type,
		Queue:       eng.queues.Normalize(o.Queue),
		Payload: job.Call{
			Function:  function,
			Args:      args,
			Kwargs:    kwargs,
			DedupeKey: key,
		},
		State:      job.StateQueued,
		MaxRetries: o.MaxRetries,
		Timeout:    o.Timeout,
		RunAt:      runAt,
	}

	if err := eng.jobStore.InsertJob(ctx, j); err != nil {
		if dedupe && errors.Is(err, innosupps.ErrDuplicateJob) {
			// Lost a race with a concurrent enqueue of the same call.
			if existing, found, ferr := eng.findActive(ctx, workspaceID, key); ferr == nil && found {
				return existing, nil
			}
		}
		return id.JobID{}, fmt.Errorf("insert job %s: %w", function, err)
	}

	env := worker.Envelope(j)
	if runAt.After(now) {
		err = eng.broker.Schedule(ctx, env, runAt)
	} else {
		err = eng.broker.Submit(ctx, env)
	}
	if err != nil {
		eng.failSubmission(ctx, j, err)
		return j.ID, innosupps.Upstream("broker", err)
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	return j.ID, nil
}

// findActive returns the active job holding key in the workspace.
func (eng *Engine) findActive(ctx context.Context, workspaceID, key string) (id.JobID, bool, error) {
	existing, err := eng.jobStore.FindActiveJob(ctx, workspaceID, key)
	if errors.Is(err, innosupps.ErrJobNotFound) {
		return id.JobID{}, false, nil
	}
	if err != nil {
		return id.JobID{}, false, fmt.Errorf("find active job: %w", err)
	}
	eng.extensions.EmitJobDeduplicated(ctx, existing)
	eng.logger.Debug("enqueue deduplicated",
		slog.String("job_id", existing.ID.String()),
		slog.String("workspace_id", workspaceID),
		slog.String("dedupe_key", key),
	)
	return existing.ID, true, nil
}

// failSubmission marks a freshly inserted job failed because the broker
// never received it.
func (eng *Engine) failSubmission(ctx context.Context, j *job.Job, cause error) {
	wctx := context.WithoutCancel(ctx)
	if err := j.Transition(job.StateFailed, eng.now()); err != nil {
		return
	}
	j.LastError = worker.BrokerFailurePrefix + cause.Error()
	if err := eng.jobStore.UpdateJobFrom(wctx, j, job.StateQueued); err != nil {
		eng.logger.Error("failed to record broker submission failure",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	eng.extensions.EmitJobOrphaned(wctx, j)
	eng.logger.Error("broker submission failed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.String("queue", j.Queue),
		slog.String("error", cause.Error()),
	)
}

// ──────────────────────────────────────────────────
// Execution and queries
// ──────────────────────────────────────────────────

// Execute runs one queued job in the calling goroutine. Workers call the
// same executor; this entry point serves tests and the CLI.
func (eng *Engine) Execute(ctx context.Context, jobID id.JobID) (job.State, error) {
	return eng.executor.Execute(ctx, jobID)
}

// GetStatus returns the status projection of a job.
func (eng *Engine) GetStatus(ctx context.Context, jobID id.JobID) (*job.Status, error) {
	j, err := eng.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return j.Status(), nil
}

// ListForWorkspace returns the workspace's jobs newest first. A limit of
// zero or less means DefaultListLimit.
func (eng *Engine) ListForWorkspace(ctx context.Context, workspaceID string, limit int) ([]*job.Status, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	jobs, err := eng.jobStore.ListJobsByWorkspace(ctx, workspaceID, job.ListOpts{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]*job.Status, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Status())
	}
	return out, nil
}

// QueueStats returns the broker's per-queue counts.
func (eng *Engine) QueueStats(ctx context.Context) (map[string]broker.Counts, error) {
	stats, err := eng.broker.Stats(ctx)
	if err != nil {
		return nil, innosupps.Upstream("broker", err)
	}
	return stats, nil
}

// ──────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────

// Cancel stops a job. A queued job is failed with job.CancelledMessage
// and its envelope removed from the broker. A running job is flagged
// cancelling and its context cancelled when it runs in this process;
// workers in other processes notice the flag on their next heartbeat. It
// returns false when the job already finished.
func (eng *Engine) Cancel(ctx context.Context, jobID id.JobID) (bool, error) {
	wctx := context.WithoutCancel(ctx)

	for range cancelAttempts {
		j, err := eng.jobStore.GetJob(ctx, jobID)
		if err != nil {
			return false, err
		}

		switch j.State {
		case job.StateQueued:
			if _, err := eng.broker.Cancel(ctx, jobID.String()); err != nil {
				eng.logger.Warn("broker cancel failed",
					slog.String("job_id", jobID.String()),
					slog.String("error", err.Error()),
				)
			}
			if err := j.Transition(job.StateFailed, eng.now()); err != nil {
				return false, err
			}
			j.LastError = job.CancelledMessage

		case job.StateRunning:
			if err := j.Transition(job.StateCancelling, eng.now()); err != nil {
				return false, err
			}

		case job.StateCancelling:
			return true, nil

		default:
			return false, nil
		}

		from := job.StateQueued
		if j.State == job.StateCancelling {
			from = job.StateRunning
		}
		if err := eng.jobStore.UpdateJobFrom(wctx, j, from); err != nil {
			if errors.Is(err, innosupps.ErrInvalidState) {
				// A worker moved the job meanwhile; look again.
				continue
			}
			return false, err
		}

		if j.State == job.StateCancelling {
			eng.pool.CancelJob(jobID.String())
		}
		eng.extensions.EmitJobCancelled(wctx, j)
		eng.logger.Info("job cancelled",
			slog.String("job_id", jobID.String()),
			slog.String("job_type", j.Type),
			slog.String("status", string(j.State)),
		)
		return true, nil
	}
	return false, fmt.Errorf("%w: job %s kept changing state during cancel", innosupps.ErrInvalidState, jobID)
}

// ──────────────────────────────────────────────────
// Sweeps
// ──────────────────────────────────────────────────

// ReconcileOrphans looks at queued jobs that have not changed for
// olderThan. A job whose envelope was claimed but never marked running
// lost its worker before the first write and is submitted again; a
// duplicate delivery is skipped by the executor. A job the broker no
// longer tracks at all is failed. It returns how many it failed.
func (eng *Engine) ReconcileOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	queued, err := eng.jobStore.ListJobsByState(ctx, job.StateQueued, job.ListOpts{})
	if err != nil {
		return 0, err
	}

	cutoff := eng.now().UTC().Add(-olderThan)
	orphaned := 0
	for _, j := range queued {
		if !j.UpdatedAt.Before(cutoff) {
			continue
		}
		pending, err := eng.broker.Pending(ctx, j.ID.String())
		if err != nil {
			return orphaned, innosupps.Upstream("broker", err)
		}
		if pending {
			continue
		}
		tracked, err := eng.broker.Has(ctx, j.ID.String())
		if err != nil {
			return orphaned, innosupps.Upstream("broker", err)
		}
		if tracked {
			if err := eng.broker.Submit(ctx, worker.Envelope(j)); err != nil {
				return orphaned, innosupps.Upstream("broker", err)
			}
			eng.logger.Warn("redelivered claimed job that never started",
				slog.String("job_id", j.ID.String()),
				slog.String("job_type", j.Type),
				slog.String("workspace_id", j.WorkspaceID),
			)
			continue
		}

		if err := j.Transition(job.StateFailed, eng.now()); err != nil {
			continue
		}
		j.LastError = worker.OrphanedMessage
		if err := eng.jobStore.UpdateJobFrom(ctx, j, job.StateQueued); err != nil {
			if errors.Is(err, innosupps.ErrInvalidState) {
				continue
			}
			return orphaned, err
		}
		eng.extensions.EmitJobOrphaned(ctx, j)
		eng.logger.Warn("failed orphaned job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("workspace_id", j.WorkspaceID),
		)
		orphaned++
	}
	return orphaned, nil
}

// RunSweep runs the named maintenance task immediately.
func (eng *Engine) RunSweep(ctx context.Context, name string) (int, error) {
	return eng.scheduler.RunNow(ctx, name)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start begins job processing and the maintenance sweeps.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}
	return eng.d.Start(ctx)
}

// Stop stops the sweeps, then gracefully shuts down the dispatcher.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Warn("cron scheduler stop error", slog.String("error", err.Error()))
	}
	return eng.d.Stop(ctx)
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Dispatcher returns the underlying Dispatcher.
func (eng *Engine) Dispatcher() *innosupps.Dispatcher { return eng.d }

// Config returns the configuration the engine was built with.
func (eng *Engine) Config() innosupps.Config { return eng.config }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// JobStore returns the job store.
func (eng *Engine) JobStore() job.Store { return eng.jobStore }

// Broker returns the queue broker.
func (eng *Engine) Broker() broker.Broker { return eng.broker }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// Queues returns the queue manager.
func (eng *Engine) Queues() *queue.Manager { return eng.queues }

// Scheduler returns the maintenance sweep scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// Logger returns the engine's logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }
