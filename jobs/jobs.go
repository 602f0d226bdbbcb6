package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/cron"
	"github.com/simd-personal/Inno-Supps/engine"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/ratelimit"
	"github.com/simd-personal/Inno-Supps/scope"
	"github.com/simd-personal/Inno-Supps/toolkit"
)

// Function names.
const (
	FnIngestEmail     = "ingest_email"
	FnSDRReply        = "sdr_reply"
	FnAutoBookMeeting = "auto_book_meeting"
	FnSendEmail       = "send_email"
	FnSyncCalendar    = "sync_calendar_events"
	FnTranscribeCall  = "transcribe_and_analyze_call"
	FnZoomWebhook     = "process_zoom_webhook"
	FnNicheResearch   = "run_niche_research"
	FnGrowthPlan      = "create_growth_plan"
	FnEnrichProspect  = "enrich_prospect_data"
)

// SweepCalendar is the name of the periodic calendar sync task.
const SweepCalendar = "calendar"

// DefaultIntegration is the integration id the calendar sweep syncs.
const DefaultIntegration = "default"

// Result statuses.
const (
	StatusSuccess       = "success"
	StatusRateLimited   = "rate_limited"
	StatusNoSlots       = "no_slots"
	StatusBookingFailed = "booking_failed"
	StatusDuplicate     = "duplicate"
)

// Deps are the collaborators the job bodies call.
type Deps struct {
	// Kit provides the agent tools and, through Providers, the calendar,
	// transcription and mail integrations.
	Kit *toolkit.Kit

	// CRM persists threads, messages, prospects, meetings, calls and
	// research output.
	CRM crm.Store

	// Email gates send_email. Nil disables the check.
	Email *ratelimit.EmailLimiter

	// CalendarWorkspaces lists the workspaces the calendar sweep syncs.
	// Empty means the system workspace only.
	CalendarWorkspaces []string

	Logger *slog.Logger
	Now    func() time.Time
}

// Jobs holds the registered definitions. Use them with engine.Enqueue.
type Jobs struct {
	eng  *engine.Engine
	deps Deps

	IngestEmail     *job.Definition[IngestEmailArgs]
	SDRReply        *job.Definition[SDRReplyArgs]
	AutoBookMeeting *job.Definition[AutoBookArgs]
	SendEmail       *job.Definition[SendEmailArgs]
	SyncCalendar    *job.Definition[SyncCalendarArgs]
	TranscribeCall  *job.Definition[TranscribeArgs]
	ZoomWebhook     *job.Definition[ZoomWebhookArgs]
	NicheResearch   *job.Definition[NicheResearchArgs]
	GrowthPlan      *job.Definition[GrowthPlanArgs]
	EnrichProspect  *job.Definition[EnrichArgs]
}

// Register builds every job definition, registers it with eng and adds the
// calendar sweep when its schedule is configured.
func Register(eng *engine.Engine, deps Deps) (*Jobs, error) {
	if deps.Kit == nil {
		return nil, errors.New("jobs: Deps.Kit is required")
	}
	if deps.CRM == nil {
		return nil, errors.New("jobs: Deps.CRM is required")
	}
	if deps.Logger == nil {
		deps.Logger = eng.Logger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	js := &Jobs{eng: eng, deps: deps}

	js.IngestEmail = job.NewDefinition(FnIngestEmail, js.ingestEmail,
		job.WithQueue(innosupps.QueueDefault), job.WithTimeout(300*time.Second)).
		WithParams("email_data")
	js.SDRReply = job.NewDefinition(FnSDRReply, js.sdrReply,
		job.WithQueue(innosupps.QueueHigh), job.WithTimeout(600*time.Second)).
		WithParams("thread_id", "intent_data")
	js.AutoBookMeeting = job.NewDefinition(FnAutoBookMeeting, js.autoBookMeeting,
		job.WithQueue(innosupps.QueueDefault), job.WithTimeout(300*time.Second)).
		WithParams("prospect_email")
	js.SendEmail = job.NewDefinition(FnSendEmail, js.sendEmail,
		job.WithQueue(innosupps.QueueLow), job.WithTimeout(180*time.Second)).
		WithParams("prospect_email", "email_data")
	js.SyncCalendar = job.NewDefinition(FnSyncCalendar, js.syncCalendar,
		job.WithQueue(innosupps.QueueLow), job.WithTimeout(180*time.Second)).
		WithParams("integration_id")
	js.TranscribeCall = job.NewDefinition(FnTranscribeCall, js.transcribeCall,
		job.WithQueue(innosupps.QueueHigh), job.WithTimeout(1800*time.Second)).
		WithParams("recording_url", "prospect_id")
	js.ZoomWebhook = job.NewDefinition(FnZoomWebhook, js.zoomWebhook,
		job.WithQueue(innosupps.QueueDefault), job.WithTimeout(300*time.Second)).
		WithParams("webhook_data")
	js.NicheResearch = job.NewDefinition(FnNicheResearch, js.nicheResearch,
		job.WithQueue(innosupps.QueueLow), job.WithTimeout(1800*time.Second)).
		WithParams("research_inputs")
	js.GrowthPlan = job.NewDefinition(FnGrowthPlan, js.growthPlan,
		job.WithQueue(innosupps.QueueLow), job.WithTimeout(1200*time.Second)).
		WithParams("plan_inputs")
	js.EnrichProspect = job.NewDefinition(FnEnrichProspect, js.enrichProspect,
		job.WithQueue(innosupps.QueueDefault), job.WithTimeout(600*time.Second)).
		WithParams("prospect_id")

	engine.Register(eng, js.IngestEmail)
	engine.Register(eng, js.SDRReply)
	engine.Register(eng, js.AutoBookMeeting)
	engine.Register(eng, js.SendEmail)
	engine.Register(eng, js.SyncCalendar)
	engine.Register(eng, js.TranscribeCall)
	engine.Register(eng, js.ZoomWebhook)
	engine.Register(eng, js.NicheResearch)
	engine.Register(eng, js.GrowthPlan)
	engine.Register(eng, js.EnrichProspect)

	if sched := eng.Config().Sweep.CalendarSchedule; sched != "" {
		if err := eng.AddSweep(cron.Task{
			Name:     SweepCalendar,
			Schedule: sched,
			Run:      js.CalendarSweep,
		}); err != nil {
			return nil, fmt.Errorf("jobs: add calendar sweep: %w", err)
		}
	}
	return js, nil
}

// CalendarSweep enqueues sync_calendar_events for each configured
// workspace and returns how many jobs were enqueued or already active.
func (js *Jobs) CalendarSweep(ctx context.Context) (int, error) {
	workspaces := js.deps.CalendarWorkspaces
	if len(workspaces) == 0 {
		workspaces = []string{scope.SystemWorkspace}
	}
	n := 0
	var errs []error
	for _, ws := range workspaces {
		_, err := engine.Enqueue(ctx, js.eng, js.SyncCalendar,
			SyncCalendarArgs{IntegrationID: DefaultIntegration}, job.WithWorkspace(ws))
		if err != nil {
			errs = append(errs, fmt.Errorf("workspace %s: %w", ws, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// workspace returns the workspace the running job belongs to.
func workspace(ctx context.Context) string { return scope.Resolve(ctx, "") }

// permanent marks a missing record as a validation failure so the
// executor does not retry it.
func permanent(err error) error {
	if errors.Is(err, innosupps.ErrNotFound) {
		return fmt.Errorf("%w: %w", innosupps.ErrValidation, err)
	}
	return err
}
