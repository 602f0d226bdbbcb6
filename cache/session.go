package cache

import (
	"context"
	"time"
)

// DefaultSessionTTL matches the access token lifetime.
const DefaultSessionTTL = 30 * time.Minute

func sessionKey(id string) string { return "session:" + id }

// Session is the cached state of an authenticated API session.
type Session struct {
	UserID      string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// SetSession stores s under the session id. A zero ttl uses
// DefaultSessionTTL.
func SetSession(ctx context.Context, c Cache, sessionID string, s Session, ttl time.Duration) error {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return SetJSON(ctx, c, sessionKey(sessionID), s, ttl)
}

// GetSession loads a session. It returns false when absent or expired.
func GetSession(ctx context.Context, c Cache, sessionID string) (Session, bool, error) {
	var s Session
	ok, err := GetJSON(ctx, c, sessionKey(sessionID), &s)
	return s, ok, err
}

// DeleteSession removes a session.
func DeleteSession(ctx context.Context, c Cache, sessionID string) error {
	_, err := c.Delete(ctx, sessionKey(sessionID))
	return err
}
