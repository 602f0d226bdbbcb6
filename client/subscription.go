package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simd-personal/Inno-Supps/stream"
)

// Subscribe streams the job events of the client's workspace (or the
// token's when none is set). The channel is closed when ctx is done or the
// stream drops for good.
func (c *Client) Subscribe(ctx context.Context) (<-chan *stream.Event, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan *stream.Event, 64)
	go func() {
		defer close(ch)
		for {
			c.readEvents(ctx, conn, ch)
			if ctx.Err() != nil || !c.reconnect {
				return
			}
			if conn = c.redial(ctx); conn == nil {
				return
			}
		}
	}()
	return ch, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL + "/jobs/events")
	if err != nil {
		return nil, fmt.Errorf("innosupps/client: events url: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	if c.workspace != "" {
		header.Set("X-Workspace-ID", c.workspace)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && errors.Is(err, websocket.ErrBadHandshake) {
			return nil, &Error{Status: resp.StatusCode, Message: "event stream handshake refused"}
		}
		return nil, fmt.Errorf("innosupps/client: dial events: %w", err)
	}
	return conn, nil
}

// readEvents pumps events into ch until the connection fails or ctx is
// done. It always closes conn.
func (c *Client) readEvents(ctx context.Context, conn *websocket.Conn, ch chan<- *stream.Event) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		var evt stream.Event
		if err := conn.ReadJSON(&evt); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("event stream read error", slog.String("error", err.Error()))
			}
			return
		}
		select {
		case ch <- &evt:
		case <-ctx.Done():
			return
		}
	}
}

// redial reconnects with exponential backoff, returning nil when retries
// run out or ctx is done.
func (c *Client) redial(ctx context.Context) *websocket.Conn {
	delay := c.baseDelay
	for i := range c.maxRetries {
		c.logger.Info("event stream reconnecting",
			slog.Int("attempt", i+1),
			slog.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("event stream reconnect failed", slog.String("error", err.Error()))
			delay = min(delay*2, 30*time.Second)
			continue
		}
		c.logger.Info("event stream reconnected")
		return conn
	}
	c.logger.Error("event stream: max reconnection attempts reached")
	return nil
}
