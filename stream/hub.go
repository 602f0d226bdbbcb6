package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simd-personal/Inno-Supps/ext"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/redact"
)

var (
	_ ext.Extension      = (*Hub)(nil)
	_ ext.JobEnqueued    = (*Hub)(nil)
	_ ext.JobStarted     = (*Hub)(nil)
	_ ext.JobSucceeded   = (*Hub)(nil)
	_ ext.JobFailed      = (*Hub)(nil)
	_ ext.JobRetrying    = (*Hub)(nil)
	_ ext.JobCancelled   = (*Hub)(nil)
	_ ext.JobOrphaned    = (*Hub)(nil)
	_ ext.SweepCompleted = (*Hub)(nil)
	_ ext.Shutdown       = (*Hub)(nil)
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 256

// Relay carries events between processes. When a hub has a relay it
// publishes only through it, and the relay feeds every event (its own
// included) back through Deliver.
type Relay interface {
	Publish(ctx context.Context, evt *Event) error
}

// Hub publishes lifecycle events to topic subscribers.
type Hub struct {
	topics *topics
	logger *slog.Logger
	relay  Relay
	now    func() time.Time

	bufferSize int

	mu   sync.Mutex
	subs map[string]*Subscriber

	published atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets the per-subscriber buffer.
func WithBufferSize(n int) Option {
	return func(h *Hub) { h.bufferSize = n }
}

// WithRelay routes events through r so subscribers in other processes see
// them.
func WithRelay(r Relay) Option {
	return func(h *Hub) { h.relay = r }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub creates a Hub.
func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		topics:     newTopics(),
		logger:     logger,
		now:        time.Now,
		bufferSize: DefaultBufferSize,
		subs:       make(map[string]*Subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Hub) Name() string { return "stream-hub" }

// Subscribe registers a subscriber on the given topics. Subscribing an
// existing id adds topics to it.
func (h *Hub) Subscribe(id string, topicNames ...string) *Subscriber {
	h.mu.Lock()
	s, ok := h.subs[id]
	if !ok {
		s = newSubscriber(id, h.bufferSize)
		h.subs[id] = s
	}
	h.mu.Unlock()

	for _, t := range topicNames {
		h.topics.add(t, s)
	}
	return s
}

// Unsubscribe removes the subscriber from every topic and closes it.
func (h *Hub) Unsubscribe(id string) {
	h.topics.removeAll(id)
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		s.close()
	}
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Topics      int   `json:"topics"`
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

// Stats returns the hub counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	n := len(h.subs)
	h.mu.Unlock()
	return Stats{
		Topics:      h.topics.count(),
		Subscribers: n,
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// Deliver hands evt to local subscribers. Relays call it for every event
// they receive.
func (h *Hub) Deliver(evt *Event) {
	delivered, dropped := h.topics.broadcast(routes(evt), evt)
	h.published.Add(int64(delivered))
	h.dropped.Add(int64(dropped))
}

func (h *Hub) publish(ctx context.Context, evt *Event) {
	if h.relay == nil {
		h.Deliver(evt)
		return
	}
	if err := h.relay.Publish(ctx, evt); err != nil {
		h.logger.Warn("stream relay publish failed; delivering locally",
			slog.String("type", string(evt.Type)),
			slog.String("error", err.Error()),
		)
		h.Deliver(evt)
	}
}

func (h *Hub) jobEvent(typ EventType, j *job.Job, data JobEventData) *Event {
	data.JobID = j.ID.String()
	data.Type = j.Type
	data.Function = j.Payload.Function
	data.Queue = j.Queue
	data.State = string(j.State)
	data.Attempts = j.Attempts
	data.Error = redact.Text(data.Error)

	raw, err := json.Marshal(data)
	if err != nil {
		// JobEventData holds only strings and ints.
		panic("stream: marshal job event: " + err.Error())
	}
	return &Event{
		Type:        typ,
		Timestamp:   h.now().UTC(),
		Topic:       JobTopic(data.JobID),
		WorkspaceID: j.WorkspaceID,
		Queue:       j.Queue,
		Data:        raw,
	}
}

func (h *Hub) publishJob(ctx context.Context, typ EventType, j *job.Job, data JobEventData) {
	h.publish(ctx, h.jobEvent(typ, j, data))
}

// OnJobEnqueued implements ext.JobEnqueued.
func (h *Hub) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	h.publishJob(ctx, EventJobEnqueued, j, JobEventData{})
	return nil
}

// OnJobStarted implements ext.JobStarted.
func (h *Hub) OnJobStarted(ctx context.Context, j *job.Job) error {
	h.publishJob(ctx, EventJobStarted, j, JobEventData{})
	return nil
}

// OnJobSucceeded implements ext.JobSucceeded.
func (h *Hub) OnJobSucceeded(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	h.publishJob(ctx, EventJobSucceeded, j, JobEventData{ElapsedMs: elapsed.Milliseconds()})
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (h *Hub) OnJobFailed(ctx context.Context, j *job.Job, err error) error {
	h.publishJob(ctx, EventJobFailed, j, JobEventData{Error: j.LastError})
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (h *Hub) OnJobRetrying(ctx context.Context, j *job.Job, retry int, nextRunAt time.Time) error {
	h.publishJob(ctx, EventJobRetrying, j, JobEventData{
		Error:     j.LastError,
		Retry:     retry,
		NextRunAt: nextRunAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (h *Hub) OnJobCancelled(ctx context.Context, j *job.Job) error {
	h.publishJob(ctx, EventJobCancelled, j, JobEventData{})
	return nil
}

// OnJobOrphaned implements ext.JobOrphaned.
func (h *Hub) OnJobOrphaned(ctx context.Context, j *job.Job) error {
	h.publishJob(ctx, EventJobOrphaned, j, JobEventData{Error: j.LastError})
	return nil
}

// OnSweepCompleted implements ext.SweepCompleted.
func (h *Hub) OnSweepCompleted(ctx context.Context, name string, affected int, elapsed time.Duration) error {
	raw, _ := json.Marshal(SweepEventData{Name: name, Affected: affected, ElapsedMs: elapsed.Milliseconds()}) //nolint:errcheck // plain struct
	h.publish(ctx, &Event{Type: EventSweepCompleted, Timestamp: h.now().UTC(), Data: raw})
	return nil
}

// OnShutdown implements ext.Shutdown. It closes every subscriber.
func (h *Hub) OnShutdown(_ context.Context) error {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()

	for id, s := range subs {
		h.topics.removeAll(id)
		s.close()
	}
	h.logger.Info("stream hub shut down", slog.Int("subscribers", len(subs)))
	return nil
}
