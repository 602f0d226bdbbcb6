package middleware

import (
	"context"

	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/scope"
)

// Scope returns middleware that restores the job's workspace and ID into
// the context, so follow-up jobs enqueued by the handler inherit the
// workspace.
func Scope() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		return next(scope.Restore(ctx, j.WorkspaceID, j.ID.String()))
	}
}
