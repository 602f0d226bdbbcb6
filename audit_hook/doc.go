// Package audithook is an extension that turns job lifecycle events into an
// audit trail.
//
// Every hook emits a structured [AuditEvent] through the [Recorder]
// interface. Severity is info for normal operations, warning for retries
// and cancellations, and critical for terminal failures. Error text is
// redacted before it is recorded.
//
// # Logging the trail
//
//	eng, _ := engine.Build(d,
//	    engine.WithExtension(audithook.New(audithook.NewSlogRecorder(logger))),
//	)
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobOrphaned,
//	    ),
//	)
package audithook
