package audithook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ah "github.com/simd-personal/Inno-Supps/audit_hook"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
)

type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
	err    error
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return m.err
}

func (m *mockRecorder) all() []*ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ah.AuditEvent(nil), m.events...)
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:          id.NewJobID(),
		WorkspaceID: "ws_1",
		Type:        "send_email",
		Queue:       "low",
		Payload:     job.Call{Function: "send_email_task"},
		State:       job.StateRunning,
		Attempts:    2,
		MaxRetries:  3,
	}
}

func TestExtension_JobHooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j := newTestJob()

	tests := []struct {
		name     string
		fire     func(e *ah.Extension) error
		action   string
		severity string
		outcome  string
	}{
		{"enqueued", func(e *ah.Extension) error { return e.OnJobEnqueued(ctx, j) },
			ah.ActionJobEnqueued, ah.SeverityInfo, ah.OutcomeSuccess},
		{"deduplicated", func(e *ah.Extension) error { return e.OnJobDeduplicated(ctx, j) },
			ah.ActionJobDeduplicated, ah.SeverityInfo, ah.OutcomeSuccess},
		{"started", func(e *ah.Extension) error { return e.OnJobStarted(ctx, j) },
			ah.ActionJobStarted, ah.SeverityInfo, ah.OutcomeSuccess},
		{"succeeded", func(e *ah.Extension) error { return e.OnJobSucceeded(ctx, j, time.Second) },
			ah.ActionJobSucceeded, ah.SeverityInfo, ah.OutcomeSuccess},
		{"failed", func(e *ah.Extension) error { return e.OnJobFailed(ctx, j, errors.New("boom")) },
			ah.ActionJobFailed, ah.SeverityCritical, ah.OutcomeFailure},
		{"retrying", func(e *ah.Extension) error { return e.OnJobRetrying(ctx, j, 1, time.Now()) },
			ah.ActionJobRetrying, ah.SeverityWarning, ah.OutcomeFailure},
		{"cancelled", func(e *ah.Extension) error { return e.OnJobCancelled(ctx, j) },
			ah.ActionJobCancelled, ah.SeverityWarning, ah.OutcomeSuccess},
		{"orphaned", func(e *ah.Extension) error { return e.OnJobOrphaned(ctx, j) },
			ah.ActionJobOrphaned, ah.SeverityCritical, ah.OutcomeFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := &mockRecorder{}
			require.NoError(t, tc.fire(ah.New(rec)))

			events := rec.all()
			require.Len(t, events, 1)
			evt := events[0]
			assert.Equal(t, tc.action, evt.Action)
			assert.Equal(t, tc.severity, evt.Severity)
			assert.Equal(t, tc.outcome, evt.Outcome)
			assert.Equal(t, ah.ResourceJob, evt.Resource)
			assert.Equal(t, ah.CategoryJob, evt.Category)
			assert.Equal(t, j.ID.String(), evt.ResourceID)
			assert.Equal(t, "ws_1", evt.WorkspaceID)
			assert.Equal(t, "send_email", evt.Metadata["job_type"])
			assert.Equal(t, "send_email_task", evt.Metadata["function"])
			assert.Equal(t, "low", evt.Metadata["queue"])
		})
	}
}

func TestExtension_RedactsReason(t *testing.T) {
	t.Parallel()
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	require.NoError(t, e.OnJobFailed(context.Background(), j, errors.New("bounce from alice@example.com")))

	evt := rec.all()[0]
	assert.Equal(t, "bounce from a***e@example.com", evt.Reason)
}

func TestExtension_SweepCompleted(t *testing.T) {
	t.Parallel()
	rec := &mockRecorder{}
	e := ah.New(rec)

	require.NoError(t, e.OnSweepCompleted(context.Background(), "orphan_sweep", 3, 20*time.Millisecond))

	evt := rec.all()[0]
	assert.Equal(t, ah.ActionSweepCompleted, evt.Action)
	assert.Equal(t, ah.ResourceSweep, evt.Resource)
	assert.Equal(t, "orphan_sweep", evt.ResourceID)
	assert.Equal(t, 3, evt.Metadata["affected"])
	assert.Equal(t, int64(20), evt.Metadata["elapsed_ms"])
}

func TestExtension_WithActions(t *testing.T) {
	t.Parallel()
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionJobFailed))
	ctx := context.Background()
	j := newTestJob()

	require.NoError(t, e.OnJobEnqueued(ctx, j))
	require.NoError(t, e.OnJobStarted(ctx, j))
	require.NoError(t, e.OnJobFailed(ctx, j, errors.New("x")))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, ah.ActionJobFailed, events[0].Action)
}

func TestExtension_RecorderErrorSwallowed(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	rec := &mockRecorder{err: errors.New("disk full")}
	e := ah.New(rec, ah.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	assert.NoError(t, e.OnJobStarted(context.Background(), newTestJob()))
	assert.Contains(t, buf.String(), "disk full")
}

func TestAllActions(t *testing.T) {
	t.Parallel()
	actions := ah.AllActions()
	assert.Len(t, actions, 9)
	seen := map[string]bool{}
	for _, a := range actions {
		assert.False(t, seen[a], "duplicate action %s", a)
		seen[a] = true
	}
}

func TestSlogRecorder(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	rec := ah.NewSlogRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))
	e := ah.New(rec)

	require.NoError(t, e.OnJobOrphaned(context.Background(), newTestJob()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["msg"])
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, ah.ActionJobOrphaned, line["action"])
	assert.Equal(t, "ws_1", line["workspace_id"])
	meta, ok := line["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "low", meta["queue"])
}
