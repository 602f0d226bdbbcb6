package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/simd-personal/Inno-Supps/cache"
)

// Reasons returned when a send is blocked.
const (
	ReasonCooldown  = "recipient_cooldown"
	ReasonRateLimit = "workspace_rate_limit"
)

// EmailConfig holds the email pacing policy.
type EmailConfig struct {
	Limit    int
	Window   time.Duration
	Cooldown time.Duration
}

// EmailLimiter enforces a hard per-recipient cooldown before consulting
// the workspace-wide email bucket.
type EmailLimiter struct {
	limiter *Limiter
	cache   cache.Cache
	cfg     EmailConfig
}

// NewEmailLimiter creates an EmailLimiter sharing l's cache.
func NewEmailLimiter(l *Limiter, cfg EmailConfig) *EmailLimiter {
	return &EmailLimiter{limiter: l, cache: l.cache, cfg: cfg}
}

func cooldownKey(workspaceID, email string) string {
	return "email_cooldown:" + workspaceID + ":" + strings.ToLower(email)
}

func emailRateKey(workspaceID string) string { return "email_rate:" + workspaceID }

// CanSend reports whether an email to recipient may go out now. A blocked
// send returns false with the reason; the bucket is only consumed when the
// recipient is not cooling down.
func (e *EmailLimiter) CanSend(ctx context.Context, workspaceID, recipient string) (bool, string, error) {
	cooling, err := e.cache.Exists(ctx, cooldownKey(workspaceID, recipient))
	if err != nil {
		return false, "", fmt.Errorf("ratelimit: cooldown check: %w", err)
	}
	if cooling {
		return false, ReasonCooldown, nil
	}

	ok, err := e.limiter.IsAllowed(ctx, emailRateKey(workspaceID), e.cfg.Limit, e.cfg.Window)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, ReasonRateLimit, nil
	}
	return true, "", nil
}

// RecordSent starts the recipient's cooldown.
func (e *EmailLimiter) RecordSent(ctx context.Context, workspaceID, recipient string) error {
	if err := e.cache.Set(ctx, cooldownKey(workspaceID, recipient), []byte("true"), e.cfg.Cooldown); err != nil {
		return fmt.Errorf("ratelimit: record sent: %w", err)
	}
	return nil
}

// CooldownRemaining returns how long the recipient stays blocked, or zero.
func (e *EmailLimiter) CooldownRemaining(ctx context.Context, workspaceID, recipient string) (time.Duration, error) {
	ttl, err := e.cache.TTL(ctx, cooldownKey(workspaceID, recipient))
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// RemainingEmails reports the workspace's unused sends in the window.
func (e *EmailLimiter) RemainingEmails(ctx context.Context, workspaceID string) (int, error) {
	return e.limiter.Remaining(ctx, emailRateKey(workspaceID), e.cfg.Limit, e.cfg.Window)
}
