package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	innosupps "github.com/simd-personal/Inno-Supps"
)

// Emitter emits sweep lifecycle events.
// ext.Registry satisfies this interface via EmitSweepCompleted.
type Emitter interface {
	EmitSweepCompleted(ctx context.Context, name string, affected int, elapsed time.Duration)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLocation sets the time zone schedules are evaluated in. Default UTC.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) { s.location = loc }
}

// WithRunTimeout bounds a single sweep run. Zero means no bound.
func WithRunTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.runTimeout = d }
}

// Scheduler runs registered tasks on their schedules.
type Scheduler struct {
	emitter    Emitter
	logger     *slog.Logger
	location   *time.Location
	runTimeout time.Duration

	mu      sync.Mutex
	tasks   map[string]Task
	order   []string
	cron    *cronlib.Cron
	started bool
}

// NewScheduler creates a Scheduler. A nil emitter disables the
// ext.SweepCompleted hook.
func NewScheduler(emitter Emitter, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		emitter:    emitter,
		logger:     logger,
		location:   time.UTC,
		runTimeout: 5 * time.Minute,
		tasks:      make(map[string]Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a task. Adding a name twice before Start replaces the
// earlier task, so callers can override the built-in sweeps. A new task
// added after Start is scheduled immediately.
func (s *Scheduler) Add(t Task) error {
	if err := t.validate(); err != nil {
		return fmt.Errorf("%w: %v", innosupps.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.tasks[t.Name]
	if s.started && exists {
		return fmt.Errorf("%w: cron task %q is already running", innosupps.ErrInvalidState, t.Name)
	}
	if !exists {
		s.order = append(s.order, t.Name)
	}
	s.tasks[t.Name] = t
	if s.started {
		return s.schedule(t)
	}
	return nil
}

// Tasks returns the registered task names in registration order.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start schedules every registered task.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.cron = cronlib.New(
		cronlib.WithParser(cronParser),
		cronlib.WithLocation(s.location),
		cronlib.WithLogger(slogAdapter{s.logger}),
		cronlib.WithChain(
			cronlib.Recover(slogAdapter{s.logger}),
			cronlib.SkipIfStillRunning(slogAdapter{s.logger}),
		),
	)
	for _, name := range s.order {
		if err := s.schedule(s.tasks[name]); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.started = true

	s.logger.Info("cron scheduler started", slog.Any("tasks", s.order))
	return nil
}

// Stop stops scheduling and waits for running tasks, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.started = false
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		s.logger.Info("cron scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the named task synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: cron task %q", innosupps.ErrNotFound, name)
	}
	return s.run(ctx, t)
}

// schedule must be called with s.mu held.
func (s *Scheduler) schedule(t Task) error {
	_, err := s.cron.AddFunc(t.Schedule, func() {
		_, _ = s.run(context.Background(), t) //nolint:errcheck // logged in run
	})
	if err != nil {
		return fmt.Errorf("cron: schedule %q: %w", t.Name, err)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, t Task) (int, error) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	start := time.Now()
	affected, err := t.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error("cron task failed",
			slog.String("task", t.Name),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return affected, err
	}

	s.logger.Debug("cron task completed",
		slog.String("task", t.Name),
		slog.Int("affected", affected),
		slog.Duration("elapsed", elapsed),
	)
	if s.emitter != nil {
		s.emitter.EmitSweepCompleted(ctx, t.Name, affected, elapsed)
	}
	return affected, nil
}

// slogAdapter satisfies cronlib.Logger.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Info(msg string, keysAndValues ...any) {
	a.l.Debug("cron: "+msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.l.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
