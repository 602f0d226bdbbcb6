package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/stream"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newHub(opts ...stream.Option) *stream.Hub {
	opts = append([]stream.Option{stream.WithClock(func() time.Time { return fixedNow })}, opts...)
	return stream.NewHub(nil, opts...)
}

func newJob(ws, queue string) *job.Job {
	return &job.Job{
		ID:          id.NewJobID(),
		WorkspaceID: ws,
		Type:        "ingest_email",
		Queue:       queue,
		Payload:     job.Call{Function: "ingest_email"},
		State:       job.StateQueued,
	}
}

func receive(t *testing.T, s *stream.Subscriber) *stream.Event {
	t.Helper()
	select {
	case evt, ok := <-s.C():
		require.True(t, ok, "subscriber closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func assertEmpty(t *testing.T, s *stream.Subscriber) {
	t.Helper()
	select {
	case evt := <-s.C():
		t.Fatalf("unexpected event %s", evt.Type)
	default:
	}
}

func TestHub_RoutesByWorkspaceQueueAndJob(t *testing.T) {
	t.Parallel()
	h := newHub()
	ctx := context.Background()

	ws1 := h.Subscribe("ws1", stream.WorkspaceTopic("ws_1"))
	ws2 := h.Subscribe("ws2", stream.WorkspaceTopic("ws_2"))
	high := h.Subscribe("high", stream.QueueTopic("high"))
	low := h.Subscribe("low", stream.QueueTopic("low"))
	all := h.Subscribe("all", stream.TopicFirehose)

	j := newJob("ws_1", "high")
	single := h.Subscribe("single", stream.JobTopic(j.ID.String()))

	require.NoError(t, h.OnJobEnqueued(ctx, j))

	for _, s := range []*stream.Subscriber{ws1, high, all, single} {
		evt := receive(t, s)
		assert.Equal(t, stream.EventJobEnqueued, evt.Type)
		assert.Equal(t, "ws_1", evt.WorkspaceID)
		assert.Equal(t, fixedNow, evt.Timestamp)
		assert.Equal(t, stream.JobTopic(j.ID.String()), evt.Topic)
	}
	assertEmpty(t, ws2)
	assertEmpty(t, low)
}

func TestHub_DeliversOncePerSubscriber(t *testing.T) {
	t.Parallel()
	h := newHub()

	s := h.Subscribe("multi", stream.WorkspaceTopic("ws_1"), stream.TopicJobs, stream.TopicFirehose)
	require.NoError(t, h.OnJobStarted(context.Background(), newJob("ws_1", "default")))

	receive(t, s)
	assertEmpty(t, s)
	assert.Equal(t, int64(1), h.Stats().Published)
}

func TestHub_JobEventPayloadIsRedacted(t *testing.T) {
	t.Parallel()
	h := newHub()
	s := h.Subscribe("s", stream.TopicJobs)

	j := newJob("ws_1", "low")
	j.State = job.StateFailed
	j.Attempts = 3
	j.LastError = "bounce from jane.doe@acme.io"
	require.NoError(t, h.OnJobFailed(context.Background(), j, errors.New("boom")))

	evt := receive(t, s)
	assert.Equal(t, stream.EventJobFailed, evt.Type)

	var data stream.JobEventData
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	assert.Equal(t, j.ID.String(), data.JobID)
	assert.Equal(t, "failed", data.State)
	assert.Equal(t, 3, data.Attempts)
	assert.Equal(t, "low", data.Queue)
	assert.NotContains(t, data.Error, "jane.doe@")
	assert.Contains(t, data.Error, "@acme.io")
}

func TestHub_RetryingCarriesSchedule(t *testing.T) {
	t.Parallel()
	h := newHub()
	s := h.Subscribe("s", stream.TopicJobs)

	next := fixedNow.Add(30 * time.Second)
	require.NoError(t, h.OnJobRetrying(context.Background(), newJob("ws_1", "default"), 2, next))

	var data stream.JobEventData
	require.NoError(t, json.Unmarshal(receive(t, s).Data, &data))
	assert.Equal(t, 2, data.Retry)
	assert.Equal(t, "2026-03-02T08:00:30Z", data.NextRunAt)
}

func TestHub_SweepOnlyReachesFirehose(t *testing.T) {
	t.Parallel()
	h := newHub()
	jobs := h.Subscribe("jobs", stream.TopicJobs)
	all := h.Subscribe("all", stream.TopicFirehose)

	require.NoError(t, h.OnSweepCompleted(context.Background(), "orphans", 2, time.Second))

	evt := receive(t, all)
	assert.Equal(t, stream.EventSweepCompleted, evt.Type)
	var data stream.SweepEventData
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	assert.Equal(t, stream.SweepEventData{Name: "orphans", Affected: 2, ElapsedMs: 1000}, data)
	assertEmpty(t, jobs)
}

func TestHub_FullBufferDrops(t *testing.T) {
	t.Parallel()
	h := newHub(stream.WithBufferSize(1))
	s := h.Subscribe("slow", stream.TopicJobs)
	ctx := context.Background()

	require.NoError(t, h.OnJobEnqueued(ctx, newJob("ws_1", "default")))
	require.NoError(t, h.OnJobEnqueued(ctx, newJob("ws_1", "default")))

	assert.Equal(t, int64(1), s.Dropped())
	assert.Equal(t, int64(1), h.Stats().Dropped)
}

func TestHub_UnsubscribeAndShutdownClose(t *testing.T) {
	t.Parallel()
	h := newHub()

	a := h.Subscribe("a", stream.TopicJobs)
	b := h.Subscribe("b", stream.TopicJobs)
	assert.Equal(t, 2, h.Stats().Subscribers)

	h.Unsubscribe("a")
	_, ok := <-a.C()
	assert.False(t, ok)

	require.NoError(t, h.OnShutdown(context.Background()))
	_, ok = <-b.C()
	assert.False(t, ok)
	assert.Equal(t, stream.Stats{}, h.Stats())

	// Publishing after shutdown is a no-op.
	require.NoError(t, h.OnJobEnqueued(context.Background(), newJob("ws_1", "default")))
}

func TestValidateTopic(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"jobs", "firehose", "workspace:ws_1", "job:job_1", "queue:high"} {
		assert.NoError(t, stream.ValidateTopic(ok), ok)
	}
	for _, bad := range []string{"", "workspace:", "tenant:x", "nope"} {
		assert.Error(t, stream.ValidateTopic(bad), bad)
	}
}

type failingRelay struct{}

func (failingRelay) Publish(context.Context, *stream.Event) error { return errors.New("down") }

func TestHub_RelayFailureDeliversLocally(t *testing.T) {
	t.Parallel()
	h := newHub(stream.WithRelay(failingRelay{}))
	s := h.Subscribe("s", stream.TopicJobs)

	require.NoError(t, h.OnJobCancelled(context.Background(), newJob("ws_1", "default")))
	assert.Equal(t, stream.EventJobCancelled, receive(t, s).Type)
}

func TestRedisRelay_CrossesHubs(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	relay := stream.NewRedisRelay(client, "test:events", nil)

	// The worker side publishes through the relay; the API side only
	// listens.
	worker := newHub(stream.WithRelay(relay))
	api := newHub()
	s := api.Subscribe("s", stream.WorkspaceTopic("ws_1"))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ready := make(chan struct{})
	errc := make(chan error, 1)
	go func() { errc <- relay.Run(ctx, api, ready) }()
	<-ready

	j := newJob("ws_1", "high")
	require.NoError(t, worker.OnJobSucceeded(ctx, j, 1500*time.Millisecond))

	evt := receive(t, s)
	assert.Equal(t, stream.EventJobSucceeded, evt.Type)
	assert.Equal(t, "high", evt.Queue)

	var data stream.JobEventData
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	assert.Equal(t, j.ID.String(), data.JobID)
	assert.Equal(t, int64(1500), data.ElapsedMs)

	cancel()
	require.NoError(t, <-errc)
}

func TestServeWS_StreamsWorkspaceEvents(t *testing.T) {
	t.Parallel()
	h := newHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, r.URL.Query().Get("ws"))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?ws=ws_1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = resp.Body.Close()

	require.Eventually(t, func() bool { return h.Stats().Subscribers == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, h.OnJobEnqueued(ctx, newJob("ws_2", "default")))
	j := newJob("ws_1", "default")
	require.NoError(t, h.OnJobEnqueued(ctx, j))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt stream.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "ws_1", evt.WorkspaceID)
	assert.Equal(t, stream.JobTopic(j.ID.String()), evt.Topic)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return h.Stats().Subscribers == 0 }, 2*time.Second, 10*time.Millisecond)
}
