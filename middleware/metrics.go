package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/simd-personal/Inno-Supps/job"
)

// Metrics returns middleware that records per-execution metrics on the
// default Prometheus registerer.
//
// Collectors, labelled by type, queue and status ("ok" or "error"):
//   - innosupps_job_duration_seconds (histogram)
//   - innosupps_job_executions_total (counter)
func Metrics() Middleware {
	return MetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// MetricsWithRegisterer returns metrics middleware registering its
// collectors on reg. Registering twice on the same reg reuses the
// collectors from the first call.
func MetricsWithRegisterer(reg prometheus.Registerer) Middleware {
	labels := []string{"type", "queue", "status"}

	duration := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "innosupps",
		Subsystem: "job",
		Name:      "duration_seconds",
		Help:      "Duration of job handler execution in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15),
	}, labels))

	executions := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "innosupps",
		Subsystem: "job",
		Name:      "executions_total",
		Help:      "Total number of job handler executions.",
	}, labels))

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		duration.WithLabelValues(j.Type, j.Queue, status).Observe(time.Since(start).Seconds())
		executions.WithLabelValues(j.Type, j.Queue, status).Inc()
		return err
	}
}

// register registers c on reg, returning the already-registered collector
// when an identical one exists.
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
