// Package auth issues and verifies bearer tokens and checks workspace
// membership.
//
// Tokens are HS256 JWTs whose subject is the user ID and whose
// workspace_id claim names the user's current workspace. A token opened as
// a session also carries a jti that must still name a cached session;
// revoking the session ends the token before it expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/cache"
	"github.com/simd-personal/Inno-Supps/crm"
)

// Claims is the token payload.
type Claims struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string { return c.Subject }

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	secret   []byte
	method   jwt.SigningMethod
	expiry   time.Duration
	now      func() time.Time
	sessions cache.Cache
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time source for expiry stamping and checks.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// WithSessions keeps session state in c. Without it Open and Revoke fail
// and session tokens are checked by signature alone.
func WithSessions(c cache.Cache) IssuerOption {
	return func(i *Issuer) { i.sessions = c }
}

// NewIssuer creates an Issuer from cfg. Only HMAC algorithms are accepted.
func NewIssuer(cfg innosupps.AuthConfig, opts ...IssuerOption) (*Issuer, error) {
	if cfg.JWTSecret == "" {
		return nil, innosupps.Invalid("auth: jwt secret is required")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, innosupps.Invalid("auth: unsupported algorithm %q", alg)
	}
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	i := &Issuer{secret: []byte(cfg.JWTSecret), method: method, expiry: expiry, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a stateless token for userID scoped to workspaceID.
func (i *Issuer) Issue(userID, workspaceID string) (string, error) {
	return i.sign(userID, workspaceID, "", i.now())
}

// Open signs a token backed by a cached session that lives as long as the
// token does.
func (i *Issuer) Open(ctx context.Context, userID, workspaceID string) (string, error) {
	if i.sessions == nil {
		return "", innosupps.Invalid("auth: sessions are not configured")
	}
	now := i.now()
	sessionID := uuid.NewString()
	tok, err := i.sign(userID, workspaceID, sessionID, now)
	if err != nil {
		return "", err
	}
	sess := cache.Session{UserID: userID, WorkspaceID: workspaceID, IssuedAt: now.UTC()}
	if err := cache.SetSession(ctx, i.sessions, sessionID, sess, i.expiry); err != nil {
		return "", fmt.Errorf("auth: store session: %w", err)
	}
	return tok, nil
}

func (i *Issuer) sign(userID, workspaceID, sessionID string, now time.Time) (string, error) {
	if userID == "" {
		return "", innosupps.Invalid("auth: user id is required")
	}
	claims := Claims{
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates token. Every failure wraps
// innosupps.ErrInvalidToken.
func (i *Issuer) Verify(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", innosupps.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", innosupps.ErrInvalidToken)
	}
	return &claims, nil
}

// Authenticate verifies token and, for a session token, that its session
// is still open and belongs to the token subject.
func (i *Issuer) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || i.sessions == nil {
		return claims, nil
	}
	sess, ok, err := cache.GetSession(ctx, i.sessions, claims.ID)
	if err != nil {
		return nil, innosupps.Upstream("cache", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: session ended", innosupps.ErrInvalidToken)
	}
	if sess.UserID != claims.Subject {
		return nil, fmt.Errorf("%w: session belongs to another user", innosupps.ErrInvalidToken)
	}
	return claims, nil
}

// Revoke ends the session behind claims. Stateless tokens cannot be
// revoked.
func (i *Issuer) Revoke(ctx context.Context, claims *Claims) error {
	if i.sessions == nil || claims.ID == "" {
		return innosupps.Invalid("auth: token is not a session token")
	}
	if err := cache.DeleteSession(ctx, i.sessions, claims.ID); err != nil {
		return innosupps.Upstream("cache", err)
	}
	return nil
}

// Access is the level a request needs on a workspace.
type Access int

const (
	Read Access = iota
	Write
)

// MembershipStore is the part of crm.Store the authorizer reads.
type MembershipStore interface {
	GetMembership(ctx context.Context, workspaceID, userID string) (*crm.Membership, error)
}

// Authorizer checks a user's role in a workspace.
type Authorizer struct {
	store MembershipStore
}

// NewAuthorizer creates an Authorizer backed by store.
func NewAuthorizer(store MembershipStore) *Authorizer {
	return &Authorizer{store: store}
}

// Authorize returns nil when userID may perform access on workspaceID.
// Non-members get innosupps.ErrNotMember; members whose role is too low get
// innosupps.ErrForbidden.
func (a *Authorizer) Authorize(ctx context.Context, userID, workspaceID string, access Access) (*crm.Membership, error) {
	if workspaceID == "" {
		return nil, innosupps.Invalid("workspace id is required")
	}
	m, err := a.store.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, innosupps.ErrNotMember) {
			return nil, err
		}
		return nil, fmt.Errorf("auth: membership lookup: %w", err)
	}
	allowed := m.Role.CanRead()
	if access == Write {
		allowed = m.Role.CanWrite()
	}
	if !allowed {
		return nil, fmt.Errorf("%w: role %s cannot %s workspace %s", innosupps.ErrForbidden, m.Role, access, workspaceID)
	}
	return m, nil
}

func (a Access) String() string {
	if a == Write {
		return "write"
	}
	return "read"
}
