package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/middleware"
	"github.com/simd-personal/Inno-Supps/scope"
)

func newTestJob() *job.Job {
	return &job.Job{
		ID:          id.NewJobID(),
		WorkspaceID: "ws_123",
		Type:        "send_email",
		Queue:       "low",
		Attempts:    1,
		Retries:     2,
		Timeout:     time.Minute,
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	t.Parallel()

	var order []string
	trace := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
			order = append(order, name+"-before")
			err := next(ctx)
			order = append(order, name+"-after")
			return err
		}
	}

	chain := middleware.Chain(trace("mw1"), trace("mw2"))
	err := chain(context.Background(), newTestJob(), func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}, order)
}

func TestChain_Empty(t *testing.T) {
	t.Parallel()

	called := false
	err := middleware.Chain()(context.Background(), newTestJob(), func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestChain_PropagatesError(t *testing.T) {
	t.Parallel()

	want := errors.New("handler error")
	pass := func(ctx context.Context, _ *job.Job, next middleware.Handler) error { return next(ctx) }

	err := middleware.Chain(pass)(context.Background(), newTestJob(), func(context.Context) error {
		return want
	})
	assert.ErrorIs(t, err, want)
}

func TestRecover_CatchesPanic(t *testing.T) {
	t.Parallel()

	mw := middleware.Recover(slog.Default())
	err := mw(context.Background(), newTestJob(), func(context.Context) error {
		panic("test panic")
	})
	require.Error(t, err)
	assert.Equal(t, "panic in job send_email: test panic", err.Error())
}

func TestRecover_PassesThrough(t *testing.T) {
	t.Parallel()

	mw := middleware.Recover(slog.Default())
	called := false
	err := mw(context.Background(), newTestJob(), func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestLogging_ReturnsHandlerResult(t *testing.T) {
	t.Parallel()

	mw := middleware.Logging(slog.Default())
	require.NoError(t, mw(context.Background(), newTestJob(), func(context.Context) error { return nil }))

	want := errors.New("fail")
	assert.ErrorIs(t, mw(context.Background(), newTestJob(), func(context.Context) error { return want }), want)
}

func TestTimeout_SetsDeadline(t *testing.T) {
	t.Parallel()

	mw := middleware.Timeout(slog.Default())
	j := newTestJob()

	err := mw(context.Background(), j, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(j.Timeout), deadline, time.Second)
		return nil
	})
	require.NoError(t, err)
}

func TestTimeout_ZeroMeansNoDeadline(t *testing.T) {
	t.Parallel()

	mw := middleware.Timeout(slog.Default())
	j := newTestJob()
	j.Timeout = 0

	err := mw(context.Background(), j, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestScope_RestoresWorkspace(t *testing.T) {
	t.Parallel()

	mw := middleware.Scope()
	j := newTestJob()

	err := mw(context.Background(), j, func(ctx context.Context) error {
		s, ok := scope.From(ctx)
		require.True(t, ok)
		assert.Equal(t, "ws_123", s.WorkspaceID)
		assert.Equal(t, j.ID.String(), s.JobID)
		return nil
	})
	require.NoError(t, err)
}

func TestScope_NoOpWithoutWorkspace(t *testing.T) {
	t.Parallel()

	mw := middleware.Scope()
	j := newTestJob()
	j.WorkspaceID = ""

	err := mw(context.Background(), j, func(ctx context.Context) error {
		_, ok := scope.From(ctx)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}
