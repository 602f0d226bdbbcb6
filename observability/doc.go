// Package observability records system-wide job lifecycle metrics with
// Prometheus. The MetricsExtension implements the ext lifecycle hooks and
// counts enqueues, dedupe hits, successes, failures, retries, cancels,
// orphans and maintenance sweeps.
//
// For per-execution duration and outcome metrics, see the middleware
// package: middleware.Metrics(). The api package serves both on /metrics.
package observability
