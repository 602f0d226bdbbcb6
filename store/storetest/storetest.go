// Package storetest holds the behavioural suite every store.Store backend
// must pass.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/agentmem"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/store"
)

// Factory builds a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// NewJob returns a queued job in workspace ws whose dedupe key is derived
// from function and args.
func NewJob(t *testing.T, ws, function string, args ...any) *job.Job {
	t.Helper()
	key, err := job.DedupeKey(function, args, nil)
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &job.Job{
		Entity:      innosupps.Entity{CreatedAt: now, UpdatedAt: now},
		ID:          id.NewJobID(),
		WorkspaceID: ws,
		Type:        function,
		Queue:       innosupps.QueueDefault,
		Payload:     job.Call{Function: function, Args: args, Kwargs: json.RawMessage(`{}`), DedupeKey: key},
		State:       job.StateQueued,
		MaxRetries:  3,
		Timeout:     time.Minute,
		RunAt:       now,
	}
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	t.Run("Jobs", func(t *testing.T) { runJobs(t, newStore) })
	t.Run("AgentMemory", func(t *testing.T) { runMemory(t, newStore) })
	t.Run("CRM", func(t *testing.T) { runCRM(t, newStore) })
}

func runJobs(t *testing.T, newStore Factory) {
	t.Run("InsertGetRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		j := NewJob(t, "ws-1", "ingest_email", "hello")
		j.Payload.Kwargs = json.RawMessage(`{"subject":"hi"}`)
		require.NoError(t, s.InsertJob(ctx, j))

		got, err := s.GetJob(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, j.ID.String(), got.ID.String())
		assert.Equal(t, "ws-1", got.WorkspaceID)
		assert.Equal(t, job.StateQueued, got.State)
		assert.Equal(t, j.Payload.DedupeKey, got.Payload.DedupeKey)
		assert.Equal(t, "ingest_email", got.Payload.Function)
		assert.JSONEq(t, `{"subject":"hi"}`, string(got.Payload.Kwargs))
		assert.Equal(t, time.Minute, got.Timeout)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetJob(context.Background(), id.NewJobID())
		assert.ErrorIs(t, err, innosupps.ErrJobNotFound)
		assert.ErrorIs(t, err, innosupps.ErrNotFound)
	})

	t.Run("DuplicateActiveRejected", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		first := NewJob(t, "ws-1", "send_email", "a@x.io")
		require.NoError(t, s.InsertJob(ctx, first))

		second := NewJob(t, "ws-1", "send_email", "a@x.io")
		err := s.InsertJob(ctx, second)
		require.ErrorIs(t, err, innosupps.ErrDuplicateJob)

		_, err = s.GetJob(ctx, second.ID)
		assert.ErrorIs(t, err, innosupps.ErrJobNotFound)

		holder, err := s.FindActiveJob(ctx, "ws-1", first.Payload.DedupeKey)
		require.NoError(t, err)
		assert.Equal(t, first.ID.String(), holder.ID.String())
	})

	t.Run("ConcurrentInsertOneWinner", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const writers = 8
		var (
			wg      sync.WaitGroup
			winners atomic.Int32
			errs    = make(chan error, writers)
		)
		for i := 0; i < writers; i++ {
			j := NewJob(t, "ws-1", "send_email", "race@x.io")
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.InsertJob(ctx, j)
				if err == nil {
					winners.Add(1)
					return
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		assert.Equal(t, int32(1), winners.Load())
		for err := range errs {
			assert.ErrorIs(t, err, innosupps.ErrDuplicateJob)
		}
		n, err := s.CountJobs(ctx, job.CountOpts{WorkspaceID: "ws-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("EmptyKeyNeverDeduplicated", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for i := 0; i < 2; i++ {
			j := NewJob(t, innosupps.SystemWorkspace, "calendar_sync")
			j.Payload.DedupeKey = ""
			require.NoError(t, s.InsertJob(ctx, j))
		}
		n, err := s.CountJobs(ctx, job.CountOpts{WorkspaceID: innosupps.SystemWorkspace})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("UpdateKeepsCallerTimestamp", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		j := NewJob(t, "ws-1", "noop")
		require.NoError(t, s.InsertJob(ctx, j))

		stamp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, j.Transition(job.StateRunning, stamp))
		require.NoError(t, s.UpdateJobFrom(ctx, j, job.StateQueued))

		got, err := s.GetJob(ctx, j.ID)
		require.NoError(t, err)
		assert.True(t, stamp.Equal(got.UpdatedAt), "updated_at %s", got.UpdatedAt)
	})

	t.Run("SameKeyOtherWorkspaceAllowed", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.InsertJob(ctx, NewJob(t, "ws-1", "send_email", "a@x.io")))
		require.NoError(t, s.InsertJob(ctx, NewJob(t, "ws-2", "send_email", "a@x.io")))
	})

	t.Run("TerminalReleasesKey", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		first := NewJob(t, "ws-1", "send_email", "a@x.io")
		require.NoError(t, s.InsertJob(ctx, first))
		require.NoError(t, first.Transition(job.StateRunning, time.Now()))
		require.NoError(t, first.Transition(job.StateSucceeded, time.Now()))
		require.NoError(t, s.UpdateJob(ctx, first))

		_, err := s.FindActiveJob(ctx, "ws-1", first.Payload.DedupeKey)
		assert.ErrorIs(t, err, innosupps.ErrJobNotFound)

		again := NewJob(t, "ws-1", "send_email", "a@x.io")
		require.NoError(t, s.InsertJob(ctx, again))
	})

	t.Run("UpdatePersistsFields", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		j := NewJob(t, "ws-1", "sdr_reply", "thr")
		require.NoError(t, s.InsertJob(ctx, j))

		require.NoError(t, j.Transition(job.StateRunning, time.Now()))
		j.Attempts = 2
		j.Retries = 1
		j.LastError = "boom"
		j.Result = json.RawMessage(`{"ok":true}`)
		require.NoError(t, s.UpdateJob(ctx, j))

		got, err := s.GetJob(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, job.StateRunning, got.State)
		assert.Equal(t, 2, got.Attempts)
		assert.Equal(t, 1, got.Retries)
		assert.Equal(t, "boom", got.LastError)
		assert.JSONEq(t, `{"ok":true}`, string(got.Result))
		require.NotNil(t, got.StartedAt)
	})

	t.Run("UpdateFromGuardsStatus", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		j := NewJob(t, "ws-1", "send_email", "b@x.io")
		require.NoError(t, s.InsertJob(ctx, j))

		stale := *j
		require.NoError(t, j.Transition(job.StateRunning, time.Now()))
		require.NoError(t, s.UpdateJobFrom(ctx, j, job.StateQueued))

		// A second writer still holding the queued copy loses.
		require.NoError(t, stale.Transition(job.StateFailed, time.Now()))
		err := s.UpdateJobFrom(ctx, &stale, job.StateQueued)
		require.ErrorIs(t, err, innosupps.ErrInvalidState)

		got, err := s.GetJob(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, job.StateRunning, got.State)

		err = s.UpdateJobFrom(ctx, NewJob(t, "ws-1", "noop"), job.StateQueued)
		assert.ErrorIs(t, err, innosupps.ErrJobNotFound)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateJob(context.Background(), NewJob(t, "ws-1", "noop"))
		assert.ErrorIs(t, err, innosupps.ErrJobNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		j := NewJob(t, "ws-1", "noop")
		require.NoError(t, s.InsertJob(ctx, j))
		require.NoError(t, s.DeleteJob(ctx, j.ID))
		_, err := s.GetJob(ctx, j.ID)
		assert.ErrorIs(t, err, innosupps.ErrJobNotFound)
		assert.ErrorIs(t, s.DeleteJob(ctx, j.ID), innosupps.ErrJobNotFound)
	})

	t.Run("ListByWorkspaceNewestFirst", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		base := time.Now().UTC().Truncate(time.Microsecond)
		var ids []string
		for i := 0; i < 3; i++ {
			j := NewJob(t, "ws-1", "noop", i)
			j.CreatedAt = base.Add(time.Duration(i) * time.Second)
			require.NoError(t, s.InsertJob(ctx, j))
			ids = append(ids, j.ID.String())
		}
		require.NoError(t, s.InsertJob(ctx, NewJob(t, "ws-2", "noop")))

		got, err := s.ListJobsByWorkspace(ctx, "ws-1", job.ListOpts{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, ids[2], got[0].ID.String())
		assert.Equal(t, ids[0], got[2].ID.String())

		page, err := s.ListJobsByWorkspace(ctx, "ws-1", job.ListOpts{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, ids[1], page[0].ID.String())
	})

	t.Run("ListByStateAndCount", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		q := NewJob(t, "ws-1", "noop", 1)
		r := NewJob(t, "ws-1", "noop", 2)
		r.Queue = innosupps.QueueHigh
		require.NoError(t, r.Transition(job.StateRunning, time.Now()))
		other := NewJob(t, "ws-2", "noop", 3)
		for _, j := range []*job.Job{q, r, other} {
			require.NoError(t, s.InsertJob(ctx, j))
		}

		running, err := s.ListJobsByState(ctx, job.StateRunning, job.ListOpts{})
		require.NoError(t, err)
		require.Len(t, running, 1)
		assert.Equal(t, r.ID.String(), running[0].ID.String())

		n, err := s.CountJobs(ctx, job.CountOpts{State: job.StateQueued})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.CountJobs(ctx, job.CountOpts{WorkspaceID: "ws-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.CountJobs(ctx, job.CountOpts{Queue: innosupps.QueueHigh})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("HeartbeatAndReap", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		stale := NewJob(t, "ws-1", "noop", "stale")
		require.NoError(t, stale.Transition(job.StateRunning, time.Now().Add(-time.Hour)))
		fresh := NewJob(t, "ws-1", "noop", "fresh")
		require.NoError(t, fresh.Transition(job.StateRunning, time.Now().Add(-time.Hour)))
		require.NoError(t, s.InsertJob(ctx, stale))
		require.NoError(t, s.InsertJob(ctx, fresh))

		require.NoError(t, s.HeartbeatJob(ctx, fresh.ID))

		reaped, err := s.ReapStaleJobs(ctx, 10*time.Minute)
		require.NoError(t, err)
		require.Len(t, reaped, 1)
		assert.Equal(t, stale.ID.String(), reaped[0].ID.String())
	})
}

func runMemory(t *testing.T, newStore Factory) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("ScopeIsolation", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		clock := func() time.Time { return now }

		ws := agentmem.New(s, "ws-1", "", agentmem.WithClock(clock))
		user := agentmem.New(s, "ws-1", "user-1", agentmem.WithClock(clock))

		require.NoError(t, ws.Set(ctx, "tone", "formal", 0))
		require.NoError(t, user.Set(ctx, "tone", "casual", 0))

		var v string
		ok, err := ws.GetInto(ctx, "tone", &v)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "formal", v)

		ok, err = user.GetInto(ctx, "tone", &v)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "casual", v)
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		m := agentmem.New(s, "ws-1", "", agentmem.WithClock(func() time.Time { return now }))

		require.NoError(t, m.Set(ctx, "k", map[string]int{"n": 1}, 0))
		require.NoError(t, m.Set(ctx, "k", map[string]int{"n": 2}, time.Hour))

		raw, ok, err := m.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"n":2}`, string(raw))

		keys, err := m.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"k"}, keys)
	})

	t.Run("ExpiryHidesAndPurges", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		current := now
		m := agentmem.New(s, "ws-1", "", agentmem.WithClock(func() time.Time { return current }))

		require.NoError(t, m.Set(ctx, "short", 1, time.Minute))
		require.NoError(t, m.Set(ctx, "forever", 2, 0))

		current = now.Add(2 * time.Minute)

		_, ok, err := m.Get(ctx, "short")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = m.Get(ctx, "forever")
		require.NoError(t, err)
		assert.True(t, ok)

		keys, err := m.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"forever"}, keys)

		n, err := m.ClearExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("DeleteAndClearAll", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		m := agentmem.New(s, "ws-1", "u", agentmem.WithClock(func() time.Time { return now }))
		other := agentmem.New(s, "ws-1", "", agentmem.WithClock(func() time.Time { return now }))

		require.NoError(t, m.Set(ctx, "a", 1, 0))
		require.NoError(t, m.Set(ctx, "b", 2, 0))
		require.NoError(t, other.Set(ctx, "a", 3, 0))

		deleted, err := m.Delete(ctx, "a")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = m.Delete(ctx, "a")
		require.NoError(t, err)
		assert.False(t, deleted)

		n, err := m.ClearAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, ok, err := other.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("GlobalPurge", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		clock := func() time.Time { return now }

		require.NoError(t, agentmem.New(s, "ws-1", "", agentmem.WithClock(clock)).Set(ctx, "x", 1, time.Second))
		require.NoError(t, agentmem.New(s, "ws-2", "", agentmem.WithClock(clock)).Set(ctx, "y", 1, time.Second))

		n, err := s.PurgeExpiredMemory(ctx, "", now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func runCRM(t *testing.T, newStore Factory) {
	t.Run("ThreadsAndMessages", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		th := &crm.Thread{Entity: innosupps.NewEntity(), ID: id.NewThreadID(), WorkspaceID: "ws-1", ProviderThreadID: "gmail-1", Subject: "Pricing"}
		require.NoError(t, s.InsertThread(ctx, th))

		got, err := s.FindThreadByProviderID(ctx, "ws-1", "gmail-1")
		require.NoError(t, err)
		assert.Equal(t, th.ID.String(), got.ID.String())

		_, err = s.GetThread(ctx, "ws-2", th.ID)
		assert.ErrorIs(t, err, innosupps.ErrThreadNotFound)

		_, err = s.LatestMessage(ctx, th.ID)
		assert.ErrorIs(t, err, innosupps.ErrMessageNotFound)

		base := time.Now().UTC().Truncate(time.Microsecond)
		for i, body := range []string{"first", "second"} {
			msg := &crm.Message{
				Entity:    innosupps.Entity{CreatedAt: base.Add(time.Duration(i) * time.Second)},
				ID:        id.NewMessageID(),
				ThreadID:  th.ID,
				Direction: crm.Inbound,
				FromEmail: "lead@acme.io",
				BodyText:  body,
				Headers:   map[string]string{"X-Seq": body},
			}
			require.NoError(t, s.InsertMessage(ctx, msg))
		}

		latest, err := s.LatestMessage(ctx, th.ID)
		require.NoError(t, err)
		assert.Equal(t, "second", latest.BodyText)
		assert.Equal(t, "second", latest.Headers["X-Seq"])

		all, err := s.ListMessages(ctx, th.ID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "first", all[0].BodyText)
	})

	t.Run("MessageProviderIDUnique", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		th := &crm.Thread{Entity: innosupps.NewEntity(), ID: id.NewThreadID(), WorkspaceID: "ws-1", ProviderThreadID: "gmail-9"}
		require.NoError(t, s.InsertThread(ctx, th))

		newMsg := func(providerID string) *crm.Message {
			return &crm.Message{
				Entity:            innosupps.NewEntity(),
				ID:                id.NewMessageID(),
				ThreadID:          th.ID,
				ProviderMessageID: providerID,
				Direction:         crm.Inbound,
			}
		}
		first := newMsg("pm-1")
		require.NoError(t, s.InsertMessage(ctx, first))
		err := s.InsertMessage(ctx, newMsg("pm-1"))
		require.ErrorIs(t, err, innosupps.ErrDuplicateMessage)

		// Messages without a provider id are never collapsed.
		require.NoError(t, s.InsertMessage(ctx, newMsg("")))
		require.NoError(t, s.InsertMessage(ctx, newMsg("")))

		got, err := s.FindMessageByProviderID(ctx, th.ID, "pm-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID.String(), got.ID.String())

		_, err = s.FindMessageByProviderID(ctx, th.ID, "pm-2")
		assert.ErrorIs(t, err, innosupps.ErrMessageNotFound)

		all, err := s.ListMessages(ctx, th.ID)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("Prospects", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		p := &crm.Prospect{Entity: innosupps.NewEntity(), ID: id.NewProspectID(), WorkspaceID: "ws-1", Email: "Lead@Acme.io", Company: "Acme"}
		require.NoError(t, s.InsertProspect(ctx, p))

		got, err := s.FindProspectByEmail(ctx, "ws-1", "lead@acme.io")
		require.NoError(t, err)
		assert.Equal(t, p.ID.String(), got.ID.String())

		now := time.Now().UTC().Truncate(time.Microsecond)
		got.Score = 85
		got.EnrichedAt = &now
		got.Enrichment = json.RawMessage(`{"industry":"saas"}`)
		require.NoError(t, s.UpdateProspect(ctx, got))

		again, err := s.GetProspect(ctx, "ws-1", p.ID)
		require.NoError(t, err)
		assert.InDelta(t, 85, again.Score, 0.001)
		require.NotNil(t, again.EnrichedAt)
		assert.JSONEq(t, `{"industry":"saas"}`, string(again.Enrichment))

		_, err = s.GetProspect(ctx, "ws-2", p.ID)
		assert.ErrorIs(t, err, innosupps.ErrProspectNotFound)
	})

	t.Run("MeetingsOrderedByStart", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		base := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
		for _, offset := range []int{2, 1} {
			m := &crm.Meeting{
				Entity:      innosupps.NewEntity(),
				ID:          id.NewMeetingID(),
				WorkspaceID: "ws-1",
				StartsAt:    base.Add(time.Duration(offset) * 24 * time.Hour),
				EndsAt:      base.Add(time.Duration(offset)*24*time.Hour + time.Hour),
				Source:      crm.SourceAutoBooked,
			}
			require.NoError(t, s.InsertMeeting(ctx, m))
		}

		got, err := s.ListMeetings(ctx, "ws-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].StartsAt.Before(got[1].StartsAt))
		assert.Equal(t, crm.SourceAutoBooked, got[0].Source)
	})

	t.Run("ArtifactsInsert", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.InsertCall(ctx, &crm.Call{
			Entity: innosupps.NewEntity(), ID: id.NewCallID(), WorkspaceID: "ws-1",
			RecordingURL: "https://rec/1", Transcript: "hi", Analysis: json.RawMessage(`{}`),
		}))
		require.NoError(t, s.InsertResearchBrief(ctx, &crm.ResearchBrief{
			Entity: innosupps.NewEntity(), ID: id.NewBriefID(), WorkspaceID: "ws-1",
			Inputs: json.RawMessage(`{"niche":"dental"}`), OutputMD: "# Brief",
		}))
		require.NoError(t, s.InsertGrowthPlan(ctx, &crm.GrowthPlan{
			Entity: innosupps.NewEntity(), ID: id.NewPlanID(), WorkspaceID: "ws-1",
			Inputs: json.RawMessage(`{}`), PlanMD: "# Plan", KPIs: json.RawMessage(`["mrr"]`),
		}))
	})

	t.Run("Memberships", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.GetMembership(ctx, "ws-1", "u-1")
		assert.ErrorIs(t, err, innosupps.ErrNotMember)

		require.NoError(t, s.PutMembership(ctx, &crm.Membership{Entity: innosupps.NewEntity(), UserID: "u-1", WorkspaceID: "ws-1", Role: crm.RoleViewer}))
		require.NoError(t, s.PutMembership(ctx, &crm.Membership{Entity: innosupps.NewEntity(), UserID: "u-1", WorkspaceID: "ws-1", Role: crm.RoleAdmin}))

		mb, err := s.GetMembership(ctx, "ws-1", "u-1")
		require.NoError(t, err)
		assert.Equal(t, crm.RoleAdmin, mb.Role)
	})
}
