package ratelimit

import (
	"context"
	"time"
)

// APILimiter paces API calls per workspace.
type APILimiter struct {
	limiter *Limiter
	limit   int
	window  time.Duration
}

// NewAPILimiter creates an APILimiter allowing limit calls per window.
func NewAPILimiter(l *Limiter, limit int, window time.Duration) *APILimiter {
	return &APILimiter{limiter: l, limit: limit, window: window}
}

func apiRateKey(workspaceID string) string { return "api_rate:" + workspaceID }

// IsAllowed consumes one call for the workspace.
func (a *APILimiter) IsAllowed(ctx context.Context, workspaceID string) (bool, error) {
	return a.limiter.IsAllowed(ctx, apiRateKey(workspaceID), a.limit, a.window)
}

// Remaining reports the workspace's unused calls in the window.
func (a *APILimiter) Remaining(ctx context.Context, workspaceID string) (int, error) {
	return a.limiter.Remaining(ctx, apiRateKey(workspaceID), a.limit, a.window)
}

// Limit returns the configured calls per window.
func (a *APILimiter) Limit() int { return a.limit }
