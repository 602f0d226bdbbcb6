package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/backoff"
	"github.com/simd-personal/Inno-Supps/broker"
	brokermem "github.com/simd-personal/Inno-Supps/broker/memory"
	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/middleware"
	"github.com/simd-personal/Inno-Supps/store/memory"
	"github.com/simd-personal/Inno-Supps/worker"
)

type payload struct {
	Body string `json:"body"`
}

type fixture struct {
	store    *memory.Store
	broker   *brokermem.Broker
	registry *job.Registry
	exec     *worker.Executor
}

func newFixture(t *testing.T, b broker.Broker) *fixture {
	t.Helper()
	logger := slog.Default()
	s := memory.New()
	mb := brokermem.New()
	if b == nil {
		b = mb
	}
	reg := job.NewRegistry()
	exec := worker.NewExecutor(reg, ext.NewRegistry(logger), s, b,
		backoff.Constant(time.Minute), logger, middleware.Recover(logger))
	return &fixture{store: s, broker: mb, registry: reg, exec: exec}
}

// insert persists a queued job for function.
func (f *fixture) insert(t *testing.T, function string, maxRetries int) *job.Job {
	t.Helper()
	j := &job.Job{
		Entity:      innosupps.NewEntity(),
		ID:          id.NewJobID(),
		WorkspaceID: "ws_1",
		Type:        function,
		Queue:       innosupps.QueueDefault,
		Payload: job.Call{
			Function:  function,
			Kwargs:    json.RawMessage(`{"body":"Let's talk pricing"}`),
			DedupeKey: id.NewJobID().String(),
		},
		State:      job.StateQueued,
		MaxRetries: maxRetries,
		Timeout:    time.Minute,
	}
	require.NoError(t, f.store.InsertJob(context.Background(), j))
	return j
}

func (f *fixture) get(t *testing.T, jobID id.JobID) *job.Job {
	t.Helper()
	j, err := f.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	return j
}

func TestExecutor_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	job.RegisterDefinition(f.registry, job.NewDefinition("ingest_email", func(_ context.Context, p payload) (any, error) {
		return map[string]string{"echo": p.Body}, nil
	}))
	j := f.insert(t, "ingest_email", 3)

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateSucceeded, state)

	got := f.get(t, j.ID)
	assert.Equal(t, job.StateSucceeded, got.State)
	assert.Equal(t, 2, got.Attempts)
	assert.JSONEq(t, `{"echo":"Let's talk pricing"}`, string(got.Result))
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.FinishedAt)
}

func TestExecutor_SkipsJobThatIsNotQueued(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	calls := 0
	job.RegisterDefinition(f.registry, job.NewDefinition("ingest_email", func(context.Context, payload) (any, error) {
		calls++
		return nil, nil
	}))
	j := f.insert(t, "ingest_email", 3)

	_, err := f.exec.Execute(context.Background(), j.ID)
	require.NoError(t, err)

	// Duplicate delivery.
	state, err := f.exec.Execute(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateSucceeded, state)
	assert.Equal(t, 1, calls)
}

func TestExecutor_UnknownFunctionFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	j := f.insert(t, "gone_function", 3)

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, innosupps.ErrUnknownFunction)
	assert.Equal(t, job.StateFailed, state)
	assert.Contains(t, f.get(t, j.ID).LastError, "gone_function")
}

func TestExecutor_RetrySchedulesBackoff(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	job.RegisterDefinition(f.registry, job.NewDefinition("sdr_reply", func(context.Context, payload) (any, error) {
		return nil, errors.New("llm timeout")
	}))
	j := f.insert(t, "sdr_reply", 2)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.exec.SetClock(func() time.Time { return now })

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, innosupps.ErrJobExecution)
	assert.Equal(t, job.StateQueued, state)

	got := f.get(t, j.ID)
	assert.Equal(t, job.StateQueued, got.State)
	assert.Equal(t, 1, got.Retries)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "llm timeout", got.LastError)
	assert.Equal(t, now.Add(time.Minute), got.RunAt)

	stats, err := f.broker.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[innosupps.QueueDefault].Scheduled)
}

func TestExecutor_FailsWhenRetriesExhausted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	job.RegisterDefinition(f.registry, job.NewDefinition("sdr_reply", func(context.Context, payload) (any, error) {
		return nil, errors.New("llm timeout")
	}))
	j := f.insert(t, "sdr_reply", 0)

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.Error(t, err)
	assert.Equal(t, job.StateFailed, state)

	got := f.get(t, j.ID)
	assert.Equal(t, "llm timeout", got.LastError)
	assert.Equal(t, 2, got.Attempts)
}

func TestExecutor_PanicIsRecoveredAsFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	job.RegisterDefinition(f.registry, job.NewDefinition("enrich_prospect_data", func(context.Context, payload) (any, error) {
		panic("nil prospect")
	}))
	j := f.insert(t, "enrich_prospect_data", 0)

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.Error(t, err)
	assert.Equal(t, job.StateFailed, state)
	assert.Contains(t, f.get(t, j.ID).LastError, "nil prospect")
}

func TestExecutor_CancellingJobFailsAsCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	var jobID id.JobID

	job.RegisterDefinition(f.registry, job.NewDefinition("transcribe", func(hctx context.Context, _ payload) (any, error) {
		// Simulate Cancel flipping the row while the handler runs.
		cur, err := f.store.GetJob(context.Background(), jobID)
		if err != nil {
			return nil, err
		}
		if err := cur.Transition(job.StateCancelling, time.Now()); err != nil {
			return nil, err
		}
		if err := f.store.UpdateJob(context.Background(), cur); err != nil {
			return nil, err
		}
		cancel()
		<-hctx.Done()
		return nil, hctx.Err()
	}))
	j := f.insert(t, "transcribe", 3)
	jobID = j.ID

	state, err := f.exec.Execute(ctx, j.ID)
	require.ErrorIs(t, err, innosupps.ErrJobCancelled)
	assert.Equal(t, job.StateFailed, state)

	got := f.get(t, j.ID)
	assert.Equal(t, job.CancelledMessage, got.LastError)
	assert.Equal(t, 0, got.Retries)
}

func TestExecutor_CancellingJobThatSucceededIsRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	var jobID id.JobID
	job.RegisterDefinition(f.registry, job.NewDefinition("send_email", func(context.Context, payload) (any, error) {
		cur, err := f.store.GetJob(context.Background(), jobID)
		if err != nil {
			return nil, err
		}
		if err := cur.Transition(job.StateCancelling, time.Now()); err != nil {
			return nil, err
		}
		return "sent", f.store.UpdateJob(context.Background(), cur)
	}))
	j := f.insert(t, "send_email", 3)
	jobID = j.ID

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateSucceeded, state)
}

// hookStore runs after once, right after the at-th GetJob returns. It
// lets a test land a concurrent write between the executor's read and its
// next write.
type hookStore struct {
	*memory.Store
	at    int
	after func()

	mu    sync.Mutex
	reads int
}

func (s *hookStore) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := s.Store.GetJob(ctx, jobID)
	s.mu.Lock()
	s.reads++
	fire := s.reads == s.at
	s.mu.Unlock()
	if fire {
		s.after()
	}
	return j, err
}

// newHookFixture is newFixture with the executor reading through a
// hookStore. The fixture's store bypasses the hook.
func newHookFixture(t *testing.T, at int) (*fixture, *hookStore) {
	t.Helper()
	logger := slog.Default()
	hs := &hookStore{Store: memory.New(), at: at, after: func() {}}
	mb := brokermem.New()
	reg := job.NewRegistry()
	exec := worker.NewExecutor(reg, ext.NewRegistry(logger), hs, mb,
		backoff.Constant(time.Minute), logger, middleware.Recover(logger))
	return &fixture{store: hs.Store, broker: mb, registry: reg, exec: exec}, hs
}

// transition moves the stored job from one state to another the way a
// concurrent writer would.
func (f *fixture) transition(t *testing.T, jobID id.JobID, from, to job.State, lastError string) {
	t.Helper()
	cur := f.get(t, jobID)
	require.NoError(t, cur.Transition(to, time.Now()))
	cur.LastError = lastError
	require.NoError(t, f.store.UpdateJobFrom(context.Background(), cur, from))
}

func TestExecutor_CancelBeforeRunningWriteWins(t *testing.T) {
	t.Parallel()

	f, hs := newHookFixture(t, 1)
	calls := 0
	job.RegisterDefinition(f.registry, job.NewDefinition("send_email", func(context.Context, payload) (any, error) {
		calls++
		return "sent", nil
	}))
	j := f.insert(t, "send_email", 3)
	hs.after = func() { f.transition(t, j.ID, job.StateQueued, job.StateFailed, job.CancelledMessage) }

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateFailed, state)
	assert.Zero(t, calls)

	got := f.get(t, j.ID)
	assert.Equal(t, job.StateFailed, got.State)
	assert.Equal(t, job.CancelledMessage, got.LastError)
	assert.Zero(t, got.Attempts)
}

func TestExecutor_CancelAfterHandlerCheckIsHonoured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handlerErr error
		wantState  job.State
		wantErr    error
		wantLast   string
	}{
		{name: "handler succeeded", wantState: job.StateSucceeded},
		{
			name:       "handler failed with retries left",
			handlerErr: errors.New("smtp timeout"),
			wantState:  job.StateFailed,
			wantErr:    innosupps.ErrJobCancelled,
			wantLast:   job.CancelledMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// The second read is the post-handler cancel check; the cancel
			// lands just after it.
			f, hs := newHookFixture(t, 2)
			job.RegisterDefinition(f.registry, job.NewDefinition("send_email", func(context.Context, payload) (any, error) {
				if tt.handlerErr != nil {
					return nil, tt.handlerErr
				}
				return "sent", nil
			}))
			j := f.insert(t, "send_email", 3)
			hs.after = func() { f.transition(t, j.ID, job.StateRunning, job.StateCancelling, "") }

			state, err := f.exec.Execute(context.Background(), j.ID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, state)

			got := f.get(t, j.ID)
			assert.Equal(t, tt.wantState, got.State)
			assert.Equal(t, tt.wantLast, got.LastError)
			assert.Zero(t, got.Retries, "a cancelled job is never re-queued")
			if tt.wantState == job.StateSucceeded {
				assert.JSONEq(t, `"sent"`, string(got.Result))
			}
		})
	}
}

func TestExecutor_ConcurrentDuplicateDeliveryRunsOnce(t *testing.T) {
	t.Parallel()

	f, hs := newHookFixture(t, 1)
	calls := 0
	job.RegisterDefinition(f.registry, job.NewDefinition("send_email", func(context.Context, payload) (any, error) {
		calls++
		return "sent", nil
	}))
	j := f.insert(t, "send_email", 3)

	// A second delivery completes the job while the first still holds its
	// queued copy.
	var nested job.State
	hs.after = func() {
		var err error
		nested, err = f.exec.Execute(context.Background(), j.ID)
		require.NoError(t, err)
	}

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateSucceeded, nested)
	assert.Equal(t, job.StateSucceeded, state)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, f.get(t, j.ID).Attempts)
}

// scheduleFailBroker refuses delayed submissions.
type scheduleFailBroker struct {
	*brokermem.Broker
}

func (scheduleFailBroker) Schedule(context.Context, broker.Envelope, time.Time) error {
	return errors.New("redis unavailable")
}

func TestExecutor_RetryScheduleFailureFailsJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, scheduleFailBroker{brokermem.New()})
	job.RegisterDefinition(f.registry, job.NewDefinition("sdr_reply", func(context.Context, payload) (any, error) {
		return nil, errors.New("llm timeout")
	}))
	j := f.insert(t, "sdr_reply", 3)

	state, err := f.exec.Execute(context.Background(), j.ID)
	require.Error(t, err)
	assert.Equal(t, job.StateFailed, state)
	assert.Equal(t, worker.BrokerFailurePrefix+"redis unavailable", f.get(t, j.ID).LastError)
}

func TestEnvelope(t *testing.T) {
	t.Parallel()

	j := &job.Job{
		ID:          id.NewJobID(),
		WorkspaceID: "ws_9",
		Queue:       innosupps.QueueHigh,
		Payload:     job.Call{Function: "sdr_reply"},
		Timeout:     10 * time.Minute,
	}
	env := worker.Envelope(j)
	assert.Equal(t, j.ID.String(), env.JobID)
	assert.Equal(t, "ws_9", env.WorkspaceID)
	assert.Equal(t, "sdr_reply", env.Function)
	assert.Equal(t, innosupps.QueueHigh, env.Queue)
	assert.Equal(t, 10*time.Minute, env.Timeout)
}
