package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

var _ Relay = (*RedisRelay)(nil)

// DefaultChannel is the Redis pub/sub channel events travel on.
const DefaultChannel = "innosupps:events"

// RedisRelay carries events between processes over Redis pub/sub, so an
// API process streams events raised by worker processes.
type RedisRelay struct {
	client  goredis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewRedisRelay creates a relay on channel, or DefaultChannel when empty.
func NewRedisRelay(client goredis.UniversalClient, channel string, logger *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{client: client, channel: channel, logger: logger}
}

// Publish implements Relay.
func (r *RedisRelay) Publish(ctx context.Context, evt *Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("stream: encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("stream: publish: %w", err)
	}
	return nil
}

// Run subscribes to the channel and delivers every received event to hub
// until ctx is done. The subscription is confirmed before Run blocks, so
// events published after ready is closed are not missed.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("stream: subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				r.logger.Warn("stream relay dropped malformed event",
					slog.String("error", err.Error()),
				)
				continue
			}
			hub.Deliver(&evt)
		}
	}
}
