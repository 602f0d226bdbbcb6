package jobs_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
	brokermem "github.com/simd-personal/Inno-Supps/broker/memory"
	cachemem "github.com/simd-personal/Inno-Supps/cache/memory"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/engine"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/jobs"
	"github.com/simd-personal/Inno-Supps/llm"
	"github.com/simd-personal/Inno-Supps/provider"
	"github.com/simd-personal/Inno-Supps/ratelimit"
	"github.com/simd-personal/Inno-Supps/scope"
	"github.com/simd-personal/Inno-Supps/store/memory"
	"github.com/simd-personal/Inno-Supps/toolkit"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	eng   *engine.Engine
	store *memory.Store
	jobs  *jobs.Jobs
	mail  *provider.MockMailer
}

// newFixture wires the jobs over in-memory backends. A nil completion
// provider selects mock mode.
func newFixture(t *testing.T, p llm.Provider) *fixture {
	t.Helper()

	s := memory.New()
	d, err := innosupps.New(
		innosupps.WithConfig(innosupps.DefaultConfig()),
		innosupps.WithStore(s),
		innosupps.WithBroker(brokermem.New()),
	)
	require.NoError(t, err)
	eng, err := engine.Build(d, engine.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	providers := provider.NewMockSet(clock)
	kit := toolkit.New(p, providers, toolkit.WithMockMode(p == nil), toolkit.WithClock(clock))
	limiter := ratelimit.NewEmailLimiter(ratelimit.New(cachemem.New()), ratelimit.EmailConfig{
		Limit:    100,
		Window:   24 * time.Hour,
		Cooldown: 48 * time.Hour,
	})

	js, err := jobs.Register(eng, jobs.Deps{
		Kit:   kit,
		CRM:   s,
		Email: limiter,
		Now:   clock,
	})
	require.NoError(t, err)

	return &fixture{eng: eng, store: s, jobs: js, mail: providers.Mailer.(*provider.MockMailer)}
}

// run executes a queued job inline and returns its final row.
func (f *fixture) run(t *testing.T, jobID id.JobID) (*job.Job, error) {
	t.Helper()
	_, err := f.eng.Execute(context.Background(), jobID)
	j, gerr := f.store.GetJob(context.Background(), jobID)
	require.NoError(t, gerr)
	return j, err
}

// queued returns the workspace's queued jobs of the given function.
func (f *fixture) queued(t *testing.T, ws, function string) []*job.Job {
	t.Helper()
	all, err := f.store.ListJobsByWorkspace(context.Background(), ws, job.ListOpts{})
	require.NoError(t, err)
	var out []*job.Job
	for _, j := range all {
		if j.Payload.Function == function && j.State == job.StateQueued {
			out = append(out, j)
		}
	}
	return out
}

func decode[T any](t *testing.T, j *job.Job) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(j.Result, &v))
	return v
}

func TestRegister_QueuesAndTimeouts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	tests := []struct {
		name    string
		queue   string
		timeout time.Duration
	}{
		{jobs.FnIngestEmail, innosupps.QueueDefault, 300 * time.Second},
		{jobs.FnSDRReply, innosupps.QueueHigh, 600 * time.Second},
		{jobs.FnAutoBookMeeting, innosupps.QueueDefault, 300 * time.Second},
		{jobs.FnSendEmail, innosupps.QueueLow, 180 * time.Second},
		{jobs.FnSyncCalendar, innosupps.QueueLow, 180 * time.Second},
		{jobs.FnTranscribeCall, innosupps.QueueHigh, 1800 * time.Second},
		{jobs.FnZoomWebhook, innosupps.QueueDefault, 300 * time.Second},
		{jobs.FnNicheResearch, innosupps.QueueLow, 1800 * time.Second},
		{jobs.FnGrowthPlan, innosupps.QueueLow, 1200 * time.Second},
		{jobs.FnEnrichProspect, innosupps.QueueDefault, 600 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entry, ok := f.eng.Registry().Get(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.queue, entry.Opts.Queue)
			assert.Equal(t, tt.timeout, entry.Opts.Timeout)
		})
	}
}

func TestRegister_RequiresDeps(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := jobs.Register(f.eng, jobs.Deps{CRM: f.store})
	assert.Error(t, err)
	_, err = jobs.Register(f.eng, jobs.Deps{Kit: toolkit.New(nil, provider.Set{})})
	assert.Error(t, err)
}

func TestIngestEmail_PositiveReplyChainsSDRReply(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	jobID, err := engine.Enqueue(ctx, f.eng, f.jobs.IngestEmail, jobs.IngestEmailArgs{
		EmailData: jobs.EmailData{Subject: "Hi", Body: "Let's talk pricing", FromEmail: "pat@acme.io", ThreadID: "gm_1"},
	}, job.WithWorkspace("ws_1"))
	require.NoError(t, err)

	j, err := f.run(t, jobID)
	require.NoError(t, err)
	assert.Equal(t, job.StateSucceeded, j.State)

	res := decode[jobs.IngestEmailResult](t, j)
	assert.Equal(t, jobs.StatusSuccess, res.Status)
	assert.Equal(t, toolkit.ReplyPositive, res.Intent.ReplyType)
	require.NotEmpty(t, res.ReplyJobID)

	replies := f.queued(t, "ws_1", jobs.FnSDRReply)
	require.Len(t, replies, 1)
	assert.Equal(t, res.ReplyJobID, replies[0].ID.String())
	assert.Equal(t, innosupps.QueueHigh, replies[0].Queue)

	thread, err := f.store.FindThreadByProviderID(ctx, "ws_1", "gm_1")
	require.NoError(t, err)
	assert.Equal(t, res.ThreadID, thread.ID.String())
	msgs, err := f.store.ListMessages(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, crm.Inbound, msgs[0].Direction)
	assert.Equal(t, "Let's talk pricing", msgs[0].BodyText)
}

func TestIngestEmail_ReusesProviderThread(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	var threadIDs []string
	for _, body := range []string{"first", "second"} {
		jobID, err := engine.Enqueue(ctx, f.eng, f.jobs.IngestEmail, jobs.IngestEmailArgs{
			EmailData: jobs.EmailData{Body: body, ThreadID: "gm_7"},
		}, job.WithWorkspace("ws_1"))
		require.NoError(t, err)
		j, err := f.run(t, jobID)
		require.NoError(t, err)
		threadIDs = append(threadIDs, decode[jobs.IngestEmailResult](t, j).ThreadID)
	}
	assert.Equal(t, threadIDs[0], threadIDs[1])

	tid, err := id.ParseThreadID(threadIDs[0])
	require.NoError(t, err)
	msgs, err := f.store.ListMessages(ctx, tid)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestIngestEmail_RedeliveredMessageFiledOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	mail := jobs.EmailData{Body: "Let's talk pricing", ThreadID: "gm_9", MessageID: "msg_1"}

	var results []jobs.IngestEmailResult
	for i := 0; i < 2; i++ {
		jobID, err := engine.Enqueue(ctx, f.eng, f.jobs.IngestEmail, jobs.IngestEmailArgs{EmailData: mail}, job.WithWorkspace("ws_1"))
		require.NoError(t, err)
		j, err := f.run(t, jobID)
		require.NoError(t, err)
		require.Equal(t, job.StateSucceeded, j.State)
		results = append(results, decode[jobs.IngestEmailResult](t, j))
	}

	assert.Equal(t, jobs.StatusSuccess, results[0].Status)
	assert.Equal(t, jobs.StatusDuplicate, results[1].Status)
	assert.Equal(t, results[0].MessageID, results[1].MessageID)
	assert.Equal(t, results[0].ThreadID, results[1].ThreadID)
	assert.Empty(t, results[1].ReplyJobID)

	tid, err := id.ParseThreadID(results[0].ThreadID)
	require.NoError(t, err)
	msgs, err := f.store.ListMessages(ctx, tid)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Len(t, f.queued(t, "ws_1", jobs.FnSDRReply), 1)
}

func TestIngestEmail_NeutralReplyDoesNotChain(t *testing.T) {
	t.Parallel()

	f := newFixture(t, llm.NewMock(`{"reply_type":"neutral","urgency":"low","book_meeting":false}`))
	jobID, err := engine.Enqueue(context.Background(), f.eng, f.jobs.IngestEmail, jobs.IngestEmailArgs{
		EmailData: jobs.EmailData{Body: "Thanks, not now"},
	}, job.WithWorkspace("ws_1"))
	require.NoError(t, err)

	j, err := f.run(t, jobID)
	require.NoError(t, err)
	res := decode[jobs.IngestEmailResult](t, j)
	assert.Equal(t, toolkit.ReplyNeutral, res.Intent.ReplyType)
	assert.Empty(t, res.ReplyJobID)
	assert.Empty(t, f.queued(t, "ws_1", jobs.FnSDRReply))
}

func TestSDRReply_ChainsAutoBooking(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	ingestID, err := engine.Enqueue(ctx, f.eng, f.jobs.IngestEmail, jobs.IngestEmailArgs{
		EmailData: jobs.EmailData{Subject: "Hi", Body: "Let's talk pricing", FromEmail: "pat@acme.io"},
	}, job.WithWorkspace("ws_1"))
	require.NoError(t, err)
	_, err = f.run(t, ingestID)
	require.NoError(t, err)

	replies := f.queued(t, "ws_1", jobs.FnSDRReply)
	require.Len(t, replies, 1)
	j, err := f.run(t, replies[0].ID)
	require.NoError(t, err)

	res := decode[jobs.SDRReplyResult](t, j)
	assert.Equal(t, jobs.StatusSuccess, res.Status)
	assert.NotEmpty(t, res.SuggestedReply.Subject)
	assert.True(t, res.AutoBookingScheduled)

	bookings := f.queued(t, "ws_1", jobs.FnAutoBookMeeting)
	require.Len(t, bookings, 1)
	assert.JSONEq(t, `{"prospect_email":"pat@acme.io"}`, string(bookings[0].Payload.Kwargs))
}

func TestSDRReply_UnknownThreadIsNotRetried(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	jobID, err := engine.Enqueue(context.Background(), f.eng, f.jobs.SDRReply, jobs.SDRReplyArgs{
		ThreadID: id.NewThreadID().String(),
	}, job.WithWorkspace("ws_1"))
	require.NoError(t, err)

	j, err := f.run(t, jobID)
	require.Error(t, err)
	assert.ErrorIs(t, err, innosupps.ErrThreadNotFound)
	assert.Equal(t, job.StateFailed, j.State)
	assert.Equal(t, 0, j.Retries)
}

func TestAutoBookMeeting_BooksFirstSlot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	p := &crm.Prospect{Entity: innosupps.NewEntity(), ID: id.NewProspectID(), WorkspaceID: "ws_1", Email: "pat@acme.io"}
	require.NoError(t, f.store.InsertProspect(ctx, p))

	jobID, err := engine.Enqueue(ctx, f.eng, f.jobs.AutoBookMeeting, jobs.AutoBookArgs{ProspectEmail: "PAT@acme.io"},
		job.WithWorkspace("ws_1"))
	require.NoError(t, err)
	j, err := f.run(t, jobID)
	require.NoError(t, err)

	res := decode[jobs.AutoBookResult](t, j)
	assert.True(t, res.MeetingBooked)
	assert.Equal(t, toolkit.MockBookingID, res.BookingID)

	meetings, err := f.store.ListMeetings(ctx, "ws_1")
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	m := meetings[0]
	assert.Equal(t, crm.SourceAutoBooked, m.Source)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), m.StartsAt.UTC())
	assert.Equal(t, time.Hour, m.EndsAt.Sub(m.StartsAt))
	require.NotNil(t, m.ProspectID)
	assert.Equal(t, p.ID, *m.ProspectID)
}

func TestAutoBookMeeting_UnknownProspectFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	jobID, err := engine.Enqueue(context.Background(), f.eng, f.jobs.AutoBookMeeting,
		jobs.AutoBookArgs{ProspectEmail: "ghost@acme.io"}, job.WithWorkspace("ws_1"))
	require.NoError(t, err)

	j, err := f.run(t, jobID)
	assert.ErrorIs(t, err, innosupps.ErrProspectNotFound)
	assert.ErrorIs(t, err, innosupps.ErrValidation)
	assert.Equal(t, job.StateFailed, j.State)
}

func TestSendEmail_CooldownBlocksSecondSend(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	send := func(subject string) jobs.SendEmailResult {
		jobID, err := engine.Enqueue(ctx, f.eng, f.jobs.SendEmail, jobs.SendEmailArgs{
			ProspectEmail: "pat@acme.io",
			EmailData:     jobs.EmailData{Subject: subject, Body: "Hello"},
		}, job.WithWorkspace("ws_1"))
		require.NoError(t, err)
		j, err := f.run(t, jobID)
		require.NoError(t, err)
		assert.Equal(t, job.StateSucceeded, j.State)
		return decode[jobs.SendEmailResult](t, j)
	}

	first := send("Intro")
	assert.Equal(t, jobs.StatusSuccess, first.Status)
	assert.NotEmpty(t, first.MessageID)

	second := send("Follow up")
	assert.Equal(t, jobs.StatusRateLimited, second.Status)
	assert.Equal(t, ratelimit.ReasonCooldown, second.Reason)

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Intro", sent[0].Subject)
}

func TestZoomWebhook(t *testing.T) {
	t.Parallel()

	t.Run("missing recording url", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		jobID, err := engine.Enqueue(context.Background(), f.eng, f.jobs.ZoomWebhook,
			jobs.ZoomWebhookArgs{WebhookData: map[string]any{"topic": "demo"}}, job.WithWorkspace("ws_1"))
		require.NoError(t, err)

		j, err := f.run(t, jobID)
		assert.ErrorIs(t, err, innosupps.ErrValidation)
		assert.Equal(t, job.StateFailed, j.State)
		assert.Empty(t, f.queued(t, "ws_1", jobs.FnTranscribeCall))
	})

	t.Run("chains transcription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		jobID, err := engine.Enqueue(context.Background(), f.eng, f.jobs.ZoomWebhook,
			jobs.ZoomWebhookArgs{WebhookData: map[string]any{"recording_url": "https://zoom.us/rec/1"}},
			job.WithWorkspace("ws_1"))
		require.NoError(t, err)

		j, err := f.run(t, jobID)
		require.NoError(t, err)
		res := decode[jobs.ZoomWebhookResult](t, j)

		pending := f.queued(t, "ws_1", jobs.FnTranscribeCall)
		require.Len(t, pending, 1)
		assert.Equal(t, res.TranscriptionJobID, pending[0].ID.String())

		tj, err := f.run(t, pending[0].ID)
		require.NoError(t, err)
		tres := decode[jobs.TranscribeResult](t, tj)
		assert.Equal(t, len(provider.MockTranscript), tres.TranscriptLength)
		assert.NotEmpty(t, tres.Analysis.Objections)

		calls := f.store.Calls("ws_1")
		require.Len(t, calls, 1)
		assert.Equal(t, "https://zoom.us/rec/1", calls[0].RecordingURL)
		assert.Equal(t, provider.MockTranscript, calls[0].Transcript)
	})
}

func TestNicheResearch_StoresBrief(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	jobID, err := engine.Enqueue(context.Background(), f.eng, f.jobs.NicheResearch, jobs.NicheResearchArgs{
		ResearchInputs: jobs.NicheInputs{Keywords: []string{"dental clinics"}},
	}, job.WithWorkspace("ws_1"))
	require.NoError(t, err)

	j, err := f.run(t, jobID)
	require.NoError(t, err)
	res := decode[jobs.NicheResearchResult](t, j)

	briefs := f.store.ResearchBriefs("ws_1")
	require.Len(t, briefs, 1)
	assert.Equal(t, res.ResearchBriefID, briefs[0].ID.String())
	assert.Equal(t, len(briefs[0].OutputMD), res.ReportLength)
	assert.JSONEq(t, `{"keywords":["dental clinics"],"region":"US","size_range":"1-50"}`, string(briefs[0].Inputs))
}

func TestNicheResearch_NoKeywordsFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	jobID, err := engine.Enqueue(context.Background(), f.eng, f.jobs.NicheResearch, jobs.NicheResearchArgs{},
		job.WithWorkspace("ws_1"))
	require.NoError(t, err)

	j, err := f.run(t, jobID)
	assert.ErrorIs(t, err, innosupps.ErrValidation)
	assert.Equal(t, job.StateFailed, j.State)
	assert.Empty(t, f.store.ResearchBriefs("ws_1"))
}

func TestGrowthPlan_StoresPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	jobID, err := engine.Enqueue(context.Background(), f.eng, f.jobs.GrowthPlan, jobs.GrowthPlanArgs{
		PlanInputs: map[string]any{"company_name": "Acme", "target_revenue": 1200000},
	}, job.WithWorkspace("ws_1"))
	require.NoError(t, err)

	j, err := f.run(t, jobID)
	require.NoError(t, err)
	res := decode[jobs.GrowthPlanResult](t, j)
	assert.InDelta(t, 100000.0, res.KPIs["monthly_revenue"], 0.001)

	plans := f.store.GrowthPlans("ws_1")
	require.Len(t, plans, 1)
	assert.Contains(t, plans[0].PlanMD, "# Growth Plan for Acme")
	assert.Equal(t, len(plans[0].PlanMD), res.PlanLength)
}

func TestEnrichProspect_SetsScoreAndTimestamp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	p := &crm.Prospect{
		Entity:      innosupps.NewEntity(),
		ID:          id.NewProspectID(),
		WorkspaceID: "ws_1",
		Email:       "pat@acme.io",
		FirstName:   "Pat",
		LastName:    "Lee",
		Company:     "Acme",
	}
	require.NoError(t, f.store.InsertProspect(ctx, p))

	jobID, err := engine.Enqueue(ctx, f.eng, f.jobs.EnrichProspect, jobs.EnrichArgs{ProspectID: p.ID.String()},
		job.WithWorkspace("ws_1"))
	require.NoError(t, err)
	j, err := f.run(t, jobID)
	require.NoError(t, err)

	res := decode[jobs.EnrichResult](t, j)
	assert.Equal(t, float64(jobs.EnrichedScore), res.Score)
	require.NotNil(t, res.Enrichment.Company)
	assert.Equal(t, "acme.io", res.Enrichment.Company.Domain)
	require.NotNil(t, res.Enrichment.Person)
	assert.Equal(t, "Pat Lee", res.Enrichment.Person.Name)

	got, err := f.store.GetProspect(ctx, "ws_1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(85), got.Score)
	require.NotNil(t, got.EnrichedAt)
	assert.True(t, got.EnrichedAt.Equal(fixedNow))
	assert.NotEmpty(t, got.Enrichment)
}

func TestEnrichProspect_OtherWorkspaceIsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	p := &crm.Prospect{Entity: innosupps.NewEntity(), ID: id.NewProspectID(), WorkspaceID: "ws_1", Email: "pat@acme.io"}
	require.NoError(t, f.store.InsertProspect(ctx, p))

	jobID, err := engine.Enqueue(ctx, f.eng, f.jobs.EnrichProspect, jobs.EnrichArgs{ProspectID: p.ID.String()},
		job.WithWorkspace("ws_2"))
	require.NoError(t, err)
	_, err = f.run(t, jobID)
	assert.ErrorIs(t, err, innosupps.ErrProspectNotFound)
}

func TestCalendarSweep_EnqueuesSync(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	n, err := f.eng.RunSweep(ctx, jobs.SweepCalendar)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending := f.queued(t, scope.SystemWorkspace, jobs.FnSyncCalendar)
	require.Len(t, pending, 1)

	// A second run while the first sync is queued dedupes onto it.
	_, err = f.eng.RunSweep(ctx, jobs.SweepCalendar)
	require.NoError(t, err)
	assert.Len(t, f.queued(t, scope.SystemWorkspace, jobs.FnSyncCalendar), 1)

	j, err := f.run(t, pending[0].ID)
	require.NoError(t, err)
	res := decode[jobs.SyncCalendarResult](t, j)
	assert.Equal(t, jobs.DefaultIntegration, res.IntegrationID)
	assert.Equal(t, 7, res.EventsSynced)
}
