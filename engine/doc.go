// Package engine is the job service and the primary application-level API
// for registering and enqueuing work.
//
// # Building an Engine
//
//	d, err := innosupps.New(
//	    innosupps.WithConfig(cfg),
//	    innosupps.WithStore(pgStore),
//	    innosupps.WithBroker(redisBroker),
//	)
//
//	eng, err := engine.Build(d,
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(myMiddleware),
//	    engine.WithBackoff(backoff.Exponential(time.Second, time.Minute)),
//	)
//
// # Registering Work
//
//	engine.Register(eng, IngestEmail)
//
// # Enqueuing Jobs
//
//	jobID, err := engine.Enqueue(ctx, eng, IngestEmail, IngestInput{Body: "..."},
//	    job.WithWorkspace(workspaceID))
//
//	// Untyped, with positional and keyword arguments
//	jobID, err := eng.Enqueue(ctx, "send_email", []any{"ws_1", "a@b.co"}, nil,
//	    job.WithDelay(time.Minute))
//
// Enqueue is idempotent per workspace: while a job with the same function
// and arguments is queued, running or cancelling, enqueuing it again
// returns the existing job's ID.
//
// # Job States
//
// queued → running → succeeded | failed. A failed execution with retries
// left goes back to queued with backoff. Cancel moves a queued job to
// failed and a running job to cancelling, which the worker finalizes.
//
// # Options
//
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] adds a middleware to the execution chain
//   - [WithBackoff] sets the retry backoff strategy
//   - [WithTracerProvider] sets the OpenTelemetry tracer provider
//   - [WithRegisterer] sets the Prometheus registerer
//   - [WithSweep] adds a maintenance task
package engine
