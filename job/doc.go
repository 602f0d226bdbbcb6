// Package job defines the job entity, its state machine, dedupe keys,
// typed definitions and the store interface.
//
// # Job Entity
//
// A [Job] is one persisted invocation of a registered function. Its
// payload is a [Call]: the function name, positional args, keyword args
// and the dedupe key derived from them. Jobs move through:
//
//	queued → running → succeeded
//	queued → running → failed
//	queued → running → queued (retry) → running → ...
//	queued → failed                       (cancelled or orphaned)
//	running → cancelling → failed         (cancelled mid-flight)
//
// succeeded and failed are terminal: [Job.Transition] refuses to leave them.
//
// # Deduplication
//
// [DedupeKey] hashes the canonical sorted-key JSON of the function and its
// arguments. Within a workspace at most one active (queued, running or
// cancelling) job may hold a given key; stores enforce this with a unique
// index so concurrent enqueues cannot both insert.
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The keyword payload is decoded
// into T before the handler runs:
//
//	var SendEmail = job.NewDefinition("send_email",
//	    func(ctx context.Context, in SendEmailArgs) (any, error) {
//	        return mailer.Send(ctx, in.To, in.Subject, in.Body)
//	    },
//	    job.WithQueue("low"),
//	).WithParams("workspace_id", "to", "subject", "body")
//
// Register definitions at startup via [RegisterDefinition]. The engine
// package provides engine.Register and engine.Enqueue wrappers.
package job
