package middleware

import (
	"context"
	"log/slog"

	"github.com/simd-personal/Inno-Supps/job"
)

// Timeout returns middleware that enforces the job's execution deadline.
// A zero Timeout leaves the context untouched.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout > 0 {
			logger.Debug("job timeout set",
				slog.String("job_id", j.ID.String()),
				slog.Duration("timeout", j.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, j.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
