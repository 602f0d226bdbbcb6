// Package scope carries the workspace identity of a request or job through
// context.Context.
//
// The API attaches the authenticated workspace and user; the engine
// captures the workspace at enqueue time when no explicit workspace is
// given, and the Scope middleware restores it before a handler runs, so a
// job body that enqueues follow-up work stays in its workspace.
package scope

import "context"

// SystemWorkspace owns jobs enqueued without a workspace.
const SystemWorkspace = "system"

// Scope identifies who is acting.
type Scope struct {
	WorkspaceID string
	UserID      string
	JobID       string
}

type ctxKey struct{}

// With attaches s to ctx.
func With(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From returns the scope attached to ctx.
func From(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	return s, ok
}

// Capture returns the workspace in ctx, or "" when none is attached.
func Capture(ctx context.Context) string {
	s, _ := From(ctx)
	return s.WorkspaceID
}

// Restore attaches a job's workspace and ID to ctx, keeping any user
// already present. An empty workspace leaves ctx unchanged.
func Restore(ctx context.Context, workspaceID, jobID string) context.Context {
	if workspaceID == "" {
		return ctx
	}
	s, _ := From(ctx)
	s.WorkspaceID = workspaceID
	s.JobID = jobID
	return With(ctx, s)
}

// Resolve returns workspaceID, falling back to the workspace in ctx and
// then to SystemWorkspace.
func Resolve(ctx context.Context, workspaceID string) string {
	if workspaceID != "" {
		return workspaceID
	}
	if ws := Capture(ctx); ws != "" {
		return ws
	}
	return SystemWorkspace
}
