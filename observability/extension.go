package observability

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*MetricsExtension)(nil)
	_ ext.JobEnqueued     = (*MetricsExtension)(nil)
	_ ext.JobDeduplicated = (*MetricsExtension)(nil)
	_ ext.JobSucceeded    = (*MetricsExtension)(nil)
	_ ext.JobFailed       = (*MetricsExtension)(nil)
	_ ext.JobRetrying     = (*MetricsExtension)(nil)
	_ ext.JobCancelled    = (*MetricsExtension)(nil)
	_ ext.JobOrphaned     = (*MetricsExtension)(nil)
	_ ext.SweepCompleted  = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle counters labelled by job type and
// queue, plus per-sweep counters and durations.
type MetricsExtension struct {
	JobEnqueued     *prometheus.CounterVec
	JobDeduplicated *prometheus.CounterVec
	JobSucceeded    *prometheus.CounterVec
	JobFailed       *prometheus.CounterVec
	JobRetried      *prometheus.CounterVec
	JobCancelled    *prometheus.CounterVec
	JobOrphaned     *prometheus.CounterVec
	SweepAffected   *prometheus.CounterVec
	SweepDuration   *prometheus.HistogramVec
}

// NewMetricsExtension creates a MetricsExtension on the default
// Prometheus registerer.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsExtensionWithRegisterer creates a MetricsExtension whose
// collectors are registered on reg. A second call on the same reg shares
// the first call's collectors.
func NewMetricsExtensionWithRegisterer(reg prometheus.Registerer) *MetricsExtension {
	jobCounter := func(name, help string) *prometheus.CounterVec {
		return register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "innosupps",
			Subsystem: "job",
			Name:      name,
			Help:      help,
		}, []string{"type", "queue"}))
	}

	return &MetricsExtension{
		JobEnqueued:     jobCounter("enqueued_total", "Jobs persisted and handed to the broker."),
		JobDeduplicated: jobCounter("deduplicated_total", "Enqueues resolved to an existing active job."),
		JobSucceeded:    jobCounter("succeeded_total", "Jobs that reached succeeded."),
		JobFailed:       jobCounter("failed_total", "Jobs that failed terminally."),
		JobRetried:      jobCounter("retried_total", "Failed executions re-queued with backoff."),
		JobCancelled:    jobCounter("cancelled_total", "Accepted cancel requests."),
		JobOrphaned:     jobCounter("orphaned_total", "Queued jobs failed for lack of a broker entry."),
		SweepAffected: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "innosupps",
			Subsystem: "sweep",
			Name:      "affected_total",
			Help:      "Rows changed by maintenance sweeps.",
		}, []string{"sweep"})),
		SweepDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "innosupps",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of maintenance sweeps in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sweep"})),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(_ context.Context, j *job.Job) error {
	m.JobEnqueued.WithLabelValues(j.Type, j.Queue).Inc()
	return nil
}

// OnJobDeduplicated implements ext.JobDeduplicated.
func (m *MetricsExtension) OnJobDeduplicated(_ context.Context, j *job.Job) error {
	m.JobDeduplicated.WithLabelValues(j.Type, j.Queue).Inc()
	return nil
}

// OnJobSucceeded implements ext.JobSucceeded.
func (m *MetricsExtension) OnJobSucceeded(_ context.Context, j *job.Job, _ time.Duration) error {
	m.JobSucceeded.WithLabelValues(j.Type, j.Queue).Inc()
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(_ context.Context, j *job.Job, _ error) error {
	m.JobFailed.WithLabelValues(j.Type, j.Queue).Inc()
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(_ context.Context, j *job.Job, _ int, _ time.Time) error {
	m.JobRetried.WithLabelValues(j.Type, j.Queue).Inc()
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(_ context.Context, j *job.Job) error {
	m.JobCancelled.WithLabelValues(j.Type, j.Queue).Inc()
	return nil
}

// OnJobOrphaned implements ext.JobOrphaned.
func (m *MetricsExtension) OnJobOrphaned(_ context.Context, j *job.Job) error {
	m.JobOrphaned.WithLabelValues(j.Type, j.Queue).Inc()
	return nil
}

// ── Sweep hooks ─────────────────────────────────────

// OnSweepCompleted implements ext.SweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, name string, affected int, elapsed time.Duration) error {
	m.SweepAffected.WithLabelValues(name).Add(float64(affected))
	m.SweepDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	return nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
