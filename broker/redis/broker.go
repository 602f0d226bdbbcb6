// Package redis implements broker.Broker on Redis.
//
// Waiting jobs sit in one List per queue, delayed jobs in one Sorted Set
// per queue scored by due time, claimed jobs in a Set, and finished or
// failed jobs in Sorted Sets trimmed to a retention window. Envelopes are
// stored once under their own key, encoded with msgpack by default.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	b := redisbroker.New(client)
//	if err := b.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/simd-personal/Inno-Supps/broker"
)

// Compile-time interface check.
var _ broker.Broker = (*Broker)(nil)

// Option configures the Broker.
type Option func(*Broker)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

// WithPrefix sets the key prefix.
func WithPrefix(p string) Option {
	return func(b *Broker) { b.prefix = p }
}

// WithCodec sets the envelope codec.
func WithCodec(c broker.Codec) Option {
	return func(b *Broker) { b.codec = c }
}

// WithRetention sets how long finished and failed IDs count towards Stats.
func WithRetention(d time.Duration) Option {
	return func(b *Broker) { b.retention = d }
}

// WithClock overrides the time source used for schedule and retention
// scores.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

// Broker is a Redis-backed queue broker.
type Broker struct {
	client    goredis.Cmdable
	logger    *slog.Logger
	codec     broker.Codec
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// New creates a Redis-backed broker. The caller owns the client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Broker {
	b := &Broker{
		client:    client,
		logger:    slog.Default(),
		codec:     broker.MsgpackCodec{},
		prefix:    "innosupps:",
		retention: 24 * time.Hour,
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Ping verifies the Redis connection is alive.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (b *Broker) Close() error { return nil }

// Submit stores the envelope and pushes its ID onto the queue.
func (b *Broker) Submit(ctx context.Context, env broker.Envelope) error {
	data, err := b.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("broker/redis: encode envelope %s: %w", env.JobID, err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.envelopeKey(env.JobID), data, 0)
	pipe.SAdd(ctx, b.queuesKey(), env.Queue)
	pipe.SRem(ctx, b.startedKey(env.Queue), env.JobID)
	pipe.LPush(ctx, b.queueKey(env.Queue), env.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broker/redis: submit %s: %w", env.JobID, err)
	}
	return nil
}

// Schedule stores the envelope and adds its ID to the queue's schedule.
func (b *Broker) Schedule(ctx context.Context, env broker.Envelope, at time.Time) error {
	data, err := b.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("broker/redis: encode envelope %s: %w", env.JobID, err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.envelopeKey(env.JobID), data, 0)
	pipe.SAdd(ctx, b.queuesKey(), env.Queue)
	pipe.SRem(ctx, b.startedKey(env.Queue), env.JobID)
	pipe.ZAdd(ctx, b.scheduledKey(env.Queue), goredis.Z{
		Score:  float64(at.UnixMilli()),
		Member: env.JobID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broker/redis: schedule %s: %w", env.JobID, err)
	}
	return nil
}

// Dequeue promotes due scheduled IDs and then pops waiting IDs in queue
// order. Each RPOP is atomic, so two workers never claim the same ID.
func (b *Broker) Dequeue(ctx context.Context, queues []string, n int) ([]broker.Envelope, error) {
	if n <= 0 {
		return nil, nil
	}
	for _, q := range queues {
		if err := b.promote(ctx, q); err != nil {
			return nil, err
		}
	}

	out := make([]broker.Envelope, 0, n)
	for _, q := range queues {
		for len(out) < n {
			jobID, err := b.client.RPop(ctx, b.queueKey(q)).Result()
			if errors.Is(err, goredis.Nil) {
				break
			}
			if err != nil {
				return out, fmt.Errorf("broker/redis: dequeue %s: %w", q, err)
			}

			env, err := b.load(ctx, jobID)
			if err != nil {
				b.logger.Warn("dropping queue entry without envelope",
					slog.String("queue", q),
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
				continue
			}
			out = append(out, env)
		}
		if len(out) >= n {
			break
		}
	}
	return out, nil
}

// promote moves due IDs from the schedule onto the queue. ZREM decides
// which caller wins when several workers promote at once.
func (b *Broker) promote(ctx context.Context, queue string) error {
	due, err := b.client.ZRangeByScore(ctx, b.scheduledKey(queue), &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(b.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("broker/redis: scan schedule %s: %w", queue, err)
	}
	for _, jobID := range due {
		removed, err := b.client.ZRem(ctx, b.scheduledKey(queue), jobID).Result()
		if err != nil {
			return fmt.Errorf("broker/redis: promote %s: %w", jobID, err)
		}
		if removed == 0 {
			continue
		}
		if err := b.client.LPush(ctx, b.queueKey(queue), jobID).Err(); err != nil {
			return fmt.Errorf("broker/redis: promote %s: %w", jobID, err)
		}
	}
	return nil
}

// Has reports whether the envelope is still tracked.
func (b *Broker) Has(ctx context.Context, jobID string) (bool, error) {
	n, err := b.client.Exists(ctx, b.envelopeKey(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("broker/redis: exists %s: %w", jobID, err)
	}
	return n > 0, nil
}

// Pending looks for jobID on its envelope's schedule and queue.
func (b *Broker) Pending(ctx context.Context, jobID string) (bool, error) {
	env, err := b.load(ctx, jobID)
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("broker/redis: pending %s: %w", jobID, err)
	}

	err = b.client.ZScore(ctx, b.scheduledKey(env.Queue), jobID).Err()
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("broker/redis: pending scheduled %s: %w", jobID, err)
	}

	err = b.client.LPos(ctx, b.queueKey(env.Queue), jobID, goredis.LPosArgs{}).Err()
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("broker/redis: pending queued %s: %w", jobID, err)
	}
	return false, nil
}

// Cancel scans every known queue and schedule for jobID and removes it.
func (b *Broker) Cancel(ctx context.Context, jobID string) (bool, error) {
	queues, err := b.client.SMembers(ctx, b.queuesKey()).Result()
	if err != nil {
		return false, fmt.Errorf("broker/redis: cancel list queues: %w", err)
	}

	for _, q := range queues {
		removed, err := b.client.LRem(ctx, b.queueKey(q), 0, jobID).Result()
		if err != nil {
			return false, fmt.Errorf("broker/redis: cancel %s in %s: %w", jobID, q, err)
		}
		if removed == 0 {
			removed, err = b.client.ZRem(ctx, b.scheduledKey(q), jobID).Result()
			if err != nil {
				return false, fmt.Errorf("broker/redis: cancel scheduled %s in %s: %w", jobID, q, err)
			}
		}
		if removed > 0 {
			if err := b.client.Del(ctx, b.envelopeKey(jobID)).Err(); err != nil {
				return true, fmt.Errorf("broker/redis: cancel drop envelope %s: %w", jobID, err)
			}
			return true, nil
		}
	}
	return false, nil
}

// MarkStarted adds the ID to the queue's started set.
func (b *Broker) MarkStarted(ctx context.Context, env broker.Envelope) error {
	if err := b.client.SAdd(ctx, b.startedKey(env.Queue), env.JobID).Err(); err != nil {
		return fmt.Errorf("broker/redis: mark started %s: %w", env.JobID, err)
	}
	return nil
}

// MarkFinished moves the ID to the finished registry and drops the envelope.
func (b *Broker) MarkFinished(ctx context.Context, env broker.Envelope) error {
	return b.settle(ctx, env, b.finishedKey(env.Queue))
}

// MarkFailed moves the ID to the failed registry and drops the envelope.
func (b *Broker) MarkFailed(ctx context.Context, env broker.Envelope) error {
	return b.settle(ctx, env, b.failedKey(env.Queue))
}

func (b *Broker) settle(ctx context.Context, env broker.Envelope, registry string) error {
	now := b.now()
	pipe := b.client.TxPipeline()
	pipe.SRem(ctx, b.startedKey(env.Queue), env.JobID)
	pipe.Del(ctx, b.envelopeKey(env.JobID))
	pipe.ZAdd(ctx, registry, goredis.Z{Score: float64(now.UnixMilli()), Member: env.JobID})
	pipe.ZRemRangeByScore(ctx, registry, "-inf",
		strconv.FormatInt(now.Add(-b.retention).UnixMilli(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broker/redis: settle %s: %w", env.JobID, err)
	}
	return nil
}

// Stats reads the counters of every known queue.
func (b *Broker) Stats(ctx context.Context) (map[string]broker.Counts, error) {
	queues, err := b.client.SMembers(ctx, b.queuesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("broker/redis: stats list queues: %w", err)
	}

	pipe := b.client.Pipeline()
	type cmds struct {
		queued, scheduled, started, failed, finished *goredis.IntCmd
	}
	pending := make(map[string]cmds, len(queues))
	for _, q := range queues {
		pending[q] = cmds{
			queued:    pipe.LLen(ctx, b.queueKey(q)),
			scheduled: pipe.ZCard(ctx, b.scheduledKey(q)),
			started:   pipe.SCard(ctx, b.startedKey(q)),
			failed:    pipe.ZCard(ctx, b.failedKey(q)),
			finished:  pipe.ZCard(ctx, b.finishedKey(q)),
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("broker/redis: stats: %w", err)
	}

	out := make(map[string]broker.Counts, len(queues))
	for q, c := range pending {
		out[q] = broker.Counts{
			Queued:    c.queued.Val(),
			Scheduled: c.scheduled.Val(),
			Started:   c.started.Val(),
			Failed:    c.failed.Val(),
			Finished:  c.finished.Val(),
		}
	}
	return out, nil
}

func (b *Broker) load(ctx context.Context, jobID string) (broker.Envelope, error) {
	data, err := b.client.Get(ctx, b.envelopeKey(jobID)).Bytes()
	if err != nil {
		return broker.Envelope{}, err
	}
	return b.codec.Decode(data)
}
