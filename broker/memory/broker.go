// Package memory implements broker.Broker in process memory. It is meant
// for tests and single-process deployments; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/simd-personal/Inno-Supps/broker"
)

// Compile-time interface check.
var _ broker.Broker = (*Broker)(nil)

type scheduled struct {
	env broker.Envelope
	at  time.Time
}

// Broker is an in-memory queue broker.
type Broker struct {
	mu        sync.Mutex
	now       func() time.Time
	envelopes map[string]broker.Envelope
	queues    map[string][]string
	schedule  map[string][]scheduled
	started   map[string]map[string]struct{}
	finished  map[string]int64
	failed    map[string]int64
}

// Option configures the Broker.
type Option func(*Broker)

// WithClock overrides the time source used to promote scheduled entries.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

// New creates an empty in-memory broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		now:       time.Now,
		envelopes: make(map[string]broker.Envelope),
		queues:    make(map[string][]string),
		schedule:  make(map[string][]scheduled),
		started:   make(map[string]map[string]struct{}),
		finished:  make(map[string]int64),
		failed:    make(map[string]int64),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Ping always succeeds.
func (b *Broker) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (b *Broker) Close() error { return nil }

// Submit appends env to its queue.
func (b *Broker) Submit(_ context.Context, env broker.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.track(env)
	b.queues[env.Queue] = append(b.queues[env.Queue], env.JobID)
	return nil
}

// Schedule holds env until at.
func (b *Broker) Schedule(_ context.Context, env broker.Envelope, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.track(env)
	b.schedule[env.Queue] = append(b.schedule[env.Queue], scheduled{env: env, at: at})
	return nil
}

func (b *Broker) track(env broker.Envelope) {
	b.envelopes[env.JobID] = env
	if _, ok := b.queues[env.Queue]; !ok {
		b.queues[env.Queue] = nil
	}
	delete(b.started[env.Queue], env.JobID)
}

// Dequeue promotes due entries then pops FIFO in queue order.
func (b *Broker) Dequeue(_ context.Context, queues []string, n int) ([]broker.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for _, q := range queues {
		sched := b.schedule[q]
		sort.SliceStable(sched, func(i, j int) bool { return sched[i].at.Before(sched[j].at) })
		keep := sched[:0]
		for _, s := range sched {
			if !s.at.After(now) {
				b.queues[q] = append(b.queues[q], s.env.JobID)
				continue
			}
			keep = append(keep, s)
		}
		b.schedule[q] = keep
	}

	var out []broker.Envelope
	for _, q := range queues {
		for len(out) < n && len(b.queues[q]) > 0 {
			jobID := b.queues[q][0]
			b.queues[q] = b.queues[q][1:]
			if env, ok := b.envelopes[jobID]; ok {
				out = append(out, env)
			}
		}
	}
	return out, nil
}

// Has reports whether jobID is still tracked.
func (b *Broker) Has(_ context.Context, jobID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.envelopes[jobID]
	return ok, nil
}

// Pending reports whether jobID sits on a queue or schedule.
func (b *Broker) Pending(_ context.Context, jobID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	env, ok := b.envelopes[jobID]
	if !ok {
		return false, nil
	}
	for _, v := range b.queues[env.Queue] {
		if v == jobID {
			return true, nil
		}
	}
	for _, s := range b.schedule[env.Queue] {
		if s.env.JobID == jobID {
			return true, nil
		}
	}
	return false, nil
}

// Cancel removes jobID from any waiting queue or schedule.
func (b *Broker) Cancel(_ context.Context, jobID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for q, ids := range b.queues {
		for i, v := range ids {
			if v == jobID {
				b.queues[q] = append(ids[:i:i], ids[i+1:]...)
				delete(b.envelopes, jobID)
				return true, nil
			}
		}
	}
	for q, entries := range b.schedule {
		for i, s := range entries {
			if s.env.JobID == jobID {
				b.schedule[q] = append(entries[:i:i], entries[i+1:]...)
				delete(b.envelopes, jobID)
				return true, nil
			}
		}
	}
	return false, nil
}

// MarkStarted records env as claimed.
func (b *Broker) MarkStarted(_ context.Context, env broker.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started[env.Queue] == nil {
		b.started[env.Queue] = make(map[string]struct{})
	}
	b.started[env.Queue][env.JobID] = struct{}{}
	return nil
}

// MarkFinished counts a success and forgets env.
func (b *Broker) MarkFinished(_ context.Context, env broker.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settle(env)
	b.finished[env.Queue]++
	return nil
}

// MarkFailed counts a failure and forgets env.
func (b *Broker) MarkFailed(_ context.Context, env broker.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settle(env)
	b.failed[env.Queue]++
	return nil
}

func (b *Broker) settle(env broker.Envelope) {
	delete(b.started[env.Queue], env.JobID)
	delete(b.envelopes, env.JobID)
}

// Stats returns counts for every queue seen so far.
func (b *Broker) Stats(_ context.Context) (map[string]broker.Counts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]broker.Counts, len(b.queues))
	for q := range b.queues {
		out[q] = broker.Counts{
			Queued:    int64(len(b.queues[q])),
			Scheduled: int64(len(b.schedule[q])),
			Started:   int64(len(b.started[q])),
			Failed:    b.failed[q],
			Finished:  b.finished[q],
		}
	}
	return out, nil
}
