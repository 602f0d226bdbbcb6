// Package client is a Go client for the job HTTP API.
//
// Usage:
//
//	c := client.New("https://api.example.com",
//	    client.WithToken(token),
//	    client.WithWorkspace("ws_1"),
//	)
//
//	// Queue an email ingestion and poll it.
//	res, err := c.IngestEmail(ctx, jobs.EmailData{Subject: "Pricing", Body: "..."})
//	st, err := c.Status(ctx, res.JobID)
//
//	// Follow the workspace's job events.
//	events, err := c.Subscribe(ctx)
//	for evt := range events {
//	    fmt.Println(evt.Type, evt.Topic)
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
)

// Client talks to a remote API server. It is safe for concurrent use.
type Client struct {
	baseURL   string
	token     string
	workspace string
	http      *http.Client
	logger    *slog.Logger

	// Event stream reconnection.
	reconnect  bool
	maxRetries int
	baseDelay  time.Duration
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		maxRetries: 5,
		baseDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error is a non-2xx response. It unwraps to the innosupps error kind its
// status maps to, so callers can use errors.Is.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("innosupps/client: %d %s", e.Status, e.Message)
}

// Unwrap returns the error kind for the status.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return innosupps.ErrValidation
	case http.StatusUnauthorized:
		return innosupps.ErrUnauthorized
	case http.StatusForbidden:
		return innosupps.ErrForbidden
	case http.StatusNotFound:
		return innosupps.ErrNotFound
	case http.StatusConflict:
		return innosupps.ErrInvalidState
	case http.StatusTooManyRequests:
		return innosupps.ErrRateLimited
	case http.StatusBadGateway:
		return innosupps.ErrUpstream
	}
	return nil
}

// do sends a request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("innosupps/client: encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("innosupps/client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.workspace != "" {
		req.Header.Set("X-Workspace-ID", c.workspace)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("innosupps/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("innosupps/client: decode response: %w", err)
	}
	return nil
}

// Health reports whether the server and its backends are reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}
