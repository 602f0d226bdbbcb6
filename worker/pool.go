package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/simd-personal/Inno-Supps/broker"
	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
)

// LostWorkerMessage is recorded when a stale job has no retries left.
const LostWorkerMessage = "worker lost: heartbeat expired"

// QueueManager gates job starts per queue and workspace. The pool calls
// Acquire before executing a claimed envelope and Release afterwards.
type QueueManager interface {
	Acquire(queue, workspaceID string) bool
	Release(queue, workspaceID string)
}

// Pool runs worker goroutines that claim envelopes from the broker in
// queue priority order and execute them.
//
// Besides the workers it runs a heartbeat loop, which also notices
// cancel requests made through another process, and a reaper that
// re-queues running jobs whose heartbeat went stale.
type Pool struct {
	broker       broker.Broker
	store        job.Store
	executor     *Executor
	extensions   *ext.Registry
	concurrency  int
	queues       []string
	pollInterval time.Duration
	workerID     id.ID
	logger       *slog.Logger

	heartbeatInterval time.Duration
	staleJobThreshold time.Duration

	queueManager QueueManager

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolQueues sets the queues to poll, highest priority first.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) { p.queues = queues }
}

// WithPollInterval sets how long an idle worker waits before polling again.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets how often active jobs are stamped alive. Zero
// disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithStaleJobThreshold sets how long a running job may go without a
// heartbeat before the reaper re-queues it. Zero disables the reaper.
func WithStaleJobThreshold(d time.Duration) PoolOption {
	return func(p *Pool) { p.staleJobThreshold = d }
}

// WithQueueManager sets the queue and workspace gate.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.queueManager = m }
}

// NewPool creates a worker pool.
func NewPool(
	b broker.Broker,
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		broker:       b,
		store:        store,
		executor:     executor,
		extensions:   extensions,
		concurrency:  10,
		queues:       []string{"high", "default", "low"},
		pollInterval: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       logger,
		stopCh:       make(chan struct{}),
		activeJobs:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's identity.
func (p *Pool) WorkerID() id.ID { return p.workerID }

// Start launches the worker goroutines and returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.queues),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop()
	}
	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop()
	}
	if p.staleJobThreshold > 0 {
		p.wg.Add(1)
		go p.reaperLoop()
	}
	return nil
}

// Stop signals the workers and waits for in-flight jobs. When ctx expires
// first, active job contexts are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		<-done
	}
	return nil
}

// CancelJob cancels the context of a job running in this pool. It
// reports whether the job was found.
func (p *Pool) CancelJob(jobID string) bool {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	cancel, ok := p.activeJobs[jobID]
	if ok {
		cancel()
	}
	return ok
}

// ActiveJobs returns the number of jobs executing in this pool.
func (p *Pool) ActiveJobs() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return len(p.activeJobs)
}

func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		envs, err := p.broker.Dequeue(context.Background(), p.queues, 1)
		if err != nil {
			p.logger.Error("dequeue error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}
		if len(envs) == 0 {
			p.sleep()
			continue
		}
		env := envs[0]

		if p.queueManager != nil && !p.queueManager.Acquire(env.Queue, env.WorkspaceID) {
			// Hand the envelope back and let another poll pick it up.
			at := time.Now().Add(p.pollInterval)
			if err := p.broker.Schedule(context.Background(), env, at); err != nil {
				p.logger.Error("failed to return throttled job to broker",
					slog.String("job_id", env.JobID),
					slog.String("error", err.Error()),
				)
			}
			p.sleep()
			continue
		}

		p.process(env)

		if p.queueManager != nil {
			p.queueManager.Release(env.Queue, env.WorkspaceID)
		}
	}
}

// process executes one claimed envelope and settles it with the broker.
func (p *Pool) process(env broker.Envelope) {
	bg := context.Background()

	jobID, err := id.ParseJobID(env.JobID)
	if err != nil {
		p.logger.Error("dropping envelope with invalid job id",
			slog.String("job_id", env.JobID),
			slog.String("error", err.Error()),
		)
		p.settle(env, job.StateFailed)
		return
	}

	if err := p.broker.MarkStarted(bg, env); err != nil {
		p.logger.Warn("mark started failed",
			slog.String("job_id", env.JobID),
			slog.String("error", err.Error()),
		)
	}

	ctx, cancel := context.WithCancel(bg)
	p.trackJob(env.JobID, cancel)
	state, execErr := p.executor.Execute(ctx, jobID)
	p.untrackJob(env.JobID)
	cancel()

	if execErr != nil {
		p.logger.Debug("job execution returned error",
			slog.String("job_id", env.JobID),
			slog.String("function", env.Function),
			slog.String("status", string(state)),
			slog.String("error", execErr.Error()),
		)
	}
	if state == "" {
		state = job.StateFailed
	}
	p.settle(env, state)
}

// settle records the outcome with the broker. A re-queued job keeps its
// broker entry; a job another worker is running is left alone.
func (p *Pool) settle(env broker.Envelope, state job.State) {
	var err error
	switch state {
	case job.StateSucceeded:
		err = p.broker.MarkFinished(context.Background(), env)
	case job.StateFailed:
		err = p.broker.MarkFailed(context.Background(), env)
	default:
		return
	}
	if err != nil {
		p.logger.Warn("broker settle failed",
			slog.String("job_id", env.JobID),
			slog.String("status", string(state)),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sendHeartbeats(context.Background())
		}
	}
}

// sendHeartbeats stamps every active job and cancels those whose row was
// flipped to cancelling by another process.
func (p *Pool) sendHeartbeats(ctx context.Context) {
	p.activeMu.Lock()
	jobIDs := make([]string, 0, len(p.activeJobs))
	for jobID := range p.activeJobs {
		jobIDs = append(jobIDs, jobID)
	}
	p.activeMu.Unlock()

	for _, raw := range jobIDs {
		jobID, err := id.ParseJobID(raw)
		if err != nil {
			continue
		}
		if err := p.store.HeartbeatJob(ctx, jobID); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("job_id", raw),
				slog.String("error", err.Error()),
			)
		}
		if j, err := p.store.GetJob(ctx, jobID); err == nil && j.State == job.StateCancelling {
			p.CancelJob(raw)
		}
	}
}

func (p *Pool) reaperLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.staleJobThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if _, err := p.ReapStaleJobs(context.Background()); err != nil {
				p.logger.Error("reap stale jobs error", slog.String("error", err.Error()))
			}
		}
	}
}

// ReapStaleJobs re-queues running jobs whose heartbeat is older than the
// stale threshold, counting it as a re-delivery. A job with no retries
// left is failed instead. It returns the number of jobs touched.
func (p *Pool) ReapStaleJobs(ctx context.Context) (int, error) {
	stale, err := p.store.ReapStaleJobs(ctx, p.staleJobThreshold)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, j := range stale {
		if p.activeHere(j.ID.String()) {
			continue
		}
		if err := p.reap(ctx, j); err != nil {
			p.logger.Error("reap: failed to reset stale job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		reaped++
	}
	return reaped, nil
}

func (p *Pool) reap(ctx context.Context, j *job.Job) error {
	now := time.Now().UTC()

	if j.Retries >= j.MaxRetries {
		if err := j.Transition(job.StateFailed, now); err != nil {
			return err
		}
		j.LastError = LostWorkerMessage
		if err := p.store.UpdateJobFrom(ctx, j, job.StateRunning); err != nil {
			return err
		}
		if err := p.broker.MarkFailed(ctx, Envelope(j)); err != nil {
			p.logger.Warn("reap: broker settle failed", slog.String("job_id", j.ID.String()))
		}
		p.extensions.EmitJobFailed(ctx, j, fmt.Errorf("%s", LostWorkerMessage))
		return nil
	}

	if err := j.Transition(job.StateQueued, now); err != nil {
		return err
	}
	j.Retries++
	j.RunAt = now
	if err := p.store.UpdateJobFrom(ctx, j, job.StateRunning); err != nil {
		return err
	}
	if err := p.broker.Submit(ctx, Envelope(j)); err != nil {
		return fmt.Errorf("resubmit %s: %w", j.ID, err)
	}

	p.extensions.EmitJobRetrying(ctx, j, j.Retries, now)
	p.logger.Info("reaped stale job",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.Int("retry", j.Retries),
	)
	return nil
}

func (p *Pool) activeHere(jobID string) bool {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	_, ok := p.activeJobs[jobID]
	return ok
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
