// Package jobs defines the background jobs of the sales pipeline: inbound
// email ingestion and reply drafting, meeting booking, outbound email,
// calendar sync, call transcription, niche research, growth planning and
// prospect enrichment.
//
// Register binds every definition to an engine:
//
//	js, err := jobs.Register(eng, jobs.Deps{
//	    Kit:   kit,
//	    CRM:   store,
//	    Email: emailLimiter,
//	})
//	id, err := engine.Enqueue(ctx, eng, js.IngestEmail, jobs.IngestEmailArgs{
//	    EmailData: jobs.EmailData{Subject: "Hi", Body: "Let's talk pricing"},
//	}, job.WithWorkspace("ws_1"))
//
// Handlers read the workspace from the job's scope, so payloads never
// carry it. Follow-up jobs (sdr_reply after a positive inbound email,
// auto_book_meeting after a reply that asks for a meeting,
// transcribe_and_analyze_call after a recording webhook) are enqueued into
// the same workspace.
//
// A referenced record that does not exist fails the job without retries.
// Provider failures are returned as upstream errors and retried.
package jobs
