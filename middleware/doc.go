// Package middleware provides composable middleware for job execution.
//
// A [Middleware] wraps a job handler. Middleware are composed with [Chain]
// and applied around each execution. The first middleware in the slice is
// the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs job type, queue, duration and outcome
//   - [Recover]: converts handler panics into errors
//   - [Timeout]: cancels the job context after the job's timeout
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records duration and outcome in Prometheus collectors
//   - [Scope]: restores the job's workspace into the context
//
// Middleware must call next to continue the chain unless deliberately
// short-circuiting.
package middleware
