package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/job"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) record(name string) error {
	e.calls = append(e.calls, name)
	return nil
}

func (e *allHooksExt) OnJobEnqueued(context.Context, *job.Job) error {
	return e.record("OnJobEnqueued")
}

func (e *allHooksExt) OnJobDeduplicated(context.Context, *job.Job) error {
	return e.record("OnJobDeduplicated")
}

func (e *allHooksExt) OnJobStarted(context.Context, *job.Job) error {
	return e.record("OnJobStarted")
}

func (e *allHooksExt) OnJobSucceeded(context.Context, *job.Job, time.Duration) error {
	return e.record("OnJobSucceeded")
}

func (e *allHooksExt) OnJobFailed(context.Context, *job.Job, error) error {
	return e.record("OnJobFailed")
}

func (e *allHooksExt) OnJobRetrying(context.Context, *job.Job, int, time.Time) error {
	return e.record("OnJobRetrying")
}

func (e *allHooksExt) OnJobCancelled(context.Context, *job.Job) error {
	return e.record("OnJobCancelled")
}

func (e *allHooksExt) OnJobOrphaned(context.Context, *job.Job) error {
	return e.record("OnJobOrphaned")
}

func (e *allHooksExt) OnSweepCompleted(context.Context, string, int, time.Duration) error {
	return e.record("OnSweepCompleted")
}

func (e *allHooksExt) OnShutdown(context.Context) error {
	return e.record("OnShutdown")
}

// enqueueOnlyExt implements a single hook.
type enqueueOnlyExt struct {
	calls int
}

func (e *enqueueOnlyExt) Name() string { return "enqueue-only" }

func (e *enqueueOnlyExt) OnJobEnqueued(context.Context, *job.Job) error {
	e.calls++
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (failingExt) Name() string { return "failing" }

func (failingExt) OnJobEnqueued(context.Context, *job.Job) error {
	return errors.New("boom")
}

func (failingExt) OnShutdown(context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	require.Len(t, r.Extensions(), 1)
	assert.Equal(t, "all-hooks", r.Extensions()[0].Name())
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	t.Parallel()

	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	one := &enqueueOnlyExt{}
	r.Register(all)
	r.Register(one)

	ctx := context.Background()
	j := &job.Job{Type: "ingest_email"}

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)

	assert.Equal(t, []string{"OnJobEnqueued", "OnJobStarted"}, all.calls)
	assert.Equal(t, 1, one.calls)
}

func TestRegistry_AllHooksFire(t *testing.T) {
	t.Parallel()

	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Type: "send_email"}

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobDeduplicated(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobSucceeded(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobCancelled(ctx, j)
	r.EmitJobOrphaned(ctx, j)
	r.EmitSweepCompleted(ctx, "orphans", 3, time.Millisecond)
	r.EmitShutdown(ctx)

	assert.Equal(t, []string{
		"OnJobEnqueued", "OnJobDeduplicated", "OnJobStarted", "OnJobSucceeded",
		"OnJobFailed", "OnJobRetrying", "OnJobCancelled", "OnJobOrphaned",
		"OnSweepCompleted", "OnShutdown",
	}, all.calls)
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	t.Parallel()

	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitJobEnqueued(ctx, &job.Job{})
	r.EmitShutdown(ctx)

	assert.Equal(t, []string{"OnJobEnqueued", "OnShutdown"}, all.calls)
}

func TestRegistry_EmptyRegistryNoOp(t *testing.T) {
	t.Parallel()

	r := ext.NewRegistry(nil)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		r.EmitJobEnqueued(ctx, &job.Job{})
		r.EmitJobSucceeded(ctx, &job.Job{}, time.Second)
		r.EmitJobFailed(ctx, &job.Job{}, errors.New("x"))
		r.EmitJobRetrying(ctx, &job.Job{}, 1, time.Now())
		r.EmitSweepCompleted(ctx, "memory", 0, 0)
		r.EmitShutdown(ctx)
	})
}

func TestRegistry_OrderPreserved(t *testing.T) {
	t.Parallel()

	var order []string
	r := ext.NewRegistry(slog.Default())
	r.Register(orderExt{name: "first", order: &order})
	r.Register(orderExt{name: "second", order: &order})

	r.EmitJobCancelled(context.Background(), &job.Job{})
	assert.Equal(t, []string{"first", "second"}, order)
}

type orderExt struct {
	name  string
	order *[]string
}

func (e orderExt) Name() string { return e.name }

func (e orderExt) OnJobCancelled(context.Context, *job.Job) error {
	*e.order = append(*e.order, e.name)
	return nil
}
