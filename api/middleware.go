package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/auth"
	"github.com/simd-personal/Inno-Supps/scope"
)

const (
	headerRequestID   = "X-Request-ID"
	headerWorkspaceID = "X-Workspace-ID"
	headerRateLimit   = "X-RateLimit-Limit"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	claimsKey
)

func requestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// requestID propagates the caller's X-Request-ID or assigns a new one.
func (a *API) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(headerRequestID, rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, rid)))
	})
}

// statusRecorder captures the response status for the access log. It
// forwards Hijack so websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer cannot hijack")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		a.Logger.LogAttrs(r.Context(), level, "http request",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (a *API) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				a.writeError(w, r, fmt.Errorf("panic: %v", p))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// public adapts h without authentication.
func (a *API) public(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			a.writeError(w, r, err)
		}
	})
}

// private adapts h behind bearer authentication and the per-workspace
// request limit. The verified user and token workspace are attached to
// the request scope.
func (a *API) private(h handlerFunc) http.Handler {
	return a.public(func(w http.ResponseWriter, r *http.Request) error {
		claims, err := a.authenticate(r)
		if err != nil {
			return err
		}
		if err := a.throttle(w, r, claims); err != nil {
			return err
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = scope.With(ctx, scope.Scope{WorkspaceID: claims.WorkspaceID, UserID: claims.UserID()})
		return h(w, r.WithContext(ctx))
	})
}

// authenticate verifies the bearer token. Websocket clients that cannot
// set headers pass it as the token query parameter.
func (a *API) authenticate(r *http.Request) (*auth.Claims, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		token = r.URL.Query().Get("token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", innosupps.ErrUnauthorized)
	}
	return a.Issuer.Authenticate(r.Context(), token)
}

// throttle spends one request from the caller's workspace budget. A cache
// failure lets the request through.
func (a *API) throttle(w http.ResponseWriter, r *http.Request, claims *auth.Claims) error {
	if a.Limiter == nil {
		return nil
	}
	key := r.Header.Get(headerWorkspaceID)
	if key == "" {
		key = claims.WorkspaceID
	}
	if key == "" {
		key = "user:" + claims.UserID()
	}
	w.Header().Set(headerRateLimit, strconv.Itoa(a.Limiter.Limit()))

	allowed, err := a.Limiter.IsAllowed(r.Context(), key)
	if err != nil {
		a.Logger.Warn("rate limiter unavailable",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !allowed {
		return fmt.Errorf("%w: too many requests for %s", innosupps.ErrRateLimited, key)
	}
	return nil
}

// workspace resolves the workspace a request acts on: the explicit route
// value, then X-Workspace-ID, then the token claim.
func workspace(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if ws := r.Header.Get(headerWorkspaceID); ws != "" {
		return ws
	}
	if c := claimsFrom(r.Context()); c != nil {
		return c.WorkspaceID
	}
	return ""
}

// authorize checks the caller's access to workspaceID and narrows the
// request scope to it.
func (a *API) authorize(r *http.Request, workspaceID string, access auth.Access) (*http.Request, error) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		return nil, innosupps.ErrUnauthorized
	}
	if _, err := a.Authorizer.Authorize(r.Context(), claims.UserID(), workspaceID, access); err != nil {
		return nil, err
	}
	ctx := scope.With(r.Context(), scope.Scope{WorkspaceID: workspaceID, UserID: claims.UserID()})
	return r.WithContext(ctx), nil
}
