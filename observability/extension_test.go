package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/observability"
)

func newTestExtension() *observability.MetricsExtension {
	return observability.NewMetricsExtensionWithRegisterer(prometheus.NewRegistry())
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:    id.NewJobID(),
		Type:  "ingest_email",
		Queue: "default",
	}
}

func TestMetricsExtension_Name(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "observability-metrics", newTestExtension().Name())
}

func TestMetricsExtension_JobHooks(t *testing.T) {
	t.Parallel()

	e := newTestExtension()
	ctx := context.Background()
	j := newTestJob()

	require.NoError(t, e.OnJobEnqueued(ctx, j))
	require.NoError(t, e.OnJobEnqueued(ctx, j))
	require.NoError(t, e.OnJobDeduplicated(ctx, j))
	require.NoError(t, e.OnJobSucceeded(ctx, j, 100*time.Millisecond))
	require.NoError(t, e.OnJobFailed(ctx, j, errors.New("boom")))
	require.NoError(t, e.OnJobRetrying(ctx, j, 1, time.Now()))
	require.NoError(t, e.OnJobCancelled(ctx, j))
	require.NoError(t, e.OnJobOrphaned(ctx, j))

	tests := []struct {
		name string
		vec  *prometheus.CounterVec
		want float64
	}{
		{"enqueued", e.JobEnqueued, 2},
		{"deduplicated", e.JobDeduplicated, 1},
		{"succeeded", e.JobSucceeded, 1},
		{"failed", e.JobFailed, 1},
		{"retried", e.JobRetried, 1},
		{"cancelled", e.JobCancelled, 1},
		{"orphaned", e.JobOrphaned, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, testutil.ToFloat64(tt.vec.WithLabelValues("ingest_email", "default")), tt.name)
	}
}

func TestMetricsExtension_SweepCompleted(t *testing.T) {
	t.Parallel()

	e := newTestExtension()
	require.NoError(t, e.OnSweepCompleted(context.Background(), "orphans", 3, time.Second))
	require.NoError(t, e.OnSweepCompleted(context.Background(), "orphans", 2, time.Second))

	assert.Equal(t, 5.0, testutil.ToFloat64(e.SweepAffected.WithLabelValues("orphans")))
	assert.Equal(t, 1, testutil.CollectAndCount(e.SweepDuration))
}

func TestMetricsExtension_SharedRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := observability.NewMetricsExtensionWithRegisterer(reg)
	b := observability.NewMetricsExtensionWithRegisterer(reg)

	require.NoError(t, a.OnJobEnqueued(context.Background(), newTestJob()))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.JobEnqueued.WithLabelValues("ingest_email", "default")))
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	t.Parallel()

	e := newTestExtension()
	r := ext.NewRegistry(slog.Default())
	r.Register(e)

	ctx := context.Background()
	j := newTestJob()
	r.EmitJobEnqueued(ctx, j)
	r.EmitJobSucceeded(ctx, j, time.Millisecond)
	r.EmitJobStarted(ctx, j)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.JobEnqueued.WithLabelValues("ingest_email", "default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.JobSucceeded.WithLabelValues("ingest_email", "default")))
}
