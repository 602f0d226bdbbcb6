package innosupps

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core wraps exactly one of these
// so callers can classify it with errors.Is.
var (
	ErrNotFound     = errors.New("innosupps: not found")
	ErrValidation   = errors.New("innosupps: validation failed")
	ErrUnauthorized = errors.New("innosupps: unauthorized")
	ErrForbidden    = errors.New("innosupps: forbidden")
	ErrUpstream     = errors.New("innosupps: upstream failure")
	ErrRateLimited  = errors.New("innosupps: rate limited")
	ErrJobExecution = errors.New("innosupps: job execution failed")
)

var (
	// Store errors.
	ErrNoStore         = errors.New("innosupps: no store configured")
	ErrNoBroker        = errors.New("innosupps: no broker configured")
	ErrStoreClosed     = errors.New("innosupps: store closed")
	ErrMigrationFailed = errors.New("innosupps: migration failed")

	// Not found errors.
	ErrJobNotFound      = fmt.Errorf("%w: job", ErrNotFound)
	ErrMemoryNotFound   = fmt.Errorf("%w: memory entry", ErrNotFound)
	ErrToolNotFound     = fmt.Errorf("%w: tool", ErrNotFound)
	ErrThreadNotFound   = fmt.Errorf("%w: thread", ErrNotFound)
	ErrMessageNotFound  = fmt.Errorf("%w: message", ErrNotFound)
	ErrProspectNotFound = fmt.Errorf("%w: prospect", ErrNotFound)

	// Validation errors.
	ErrInvalidArguments = fmt.Errorf("%w: invalid arguments", ErrValidation)
	ErrUnknownFunction  = fmt.Errorf("%w: unknown job function", ErrValidation)
	ErrUnknownQueue     = fmt.Errorf("%w: unknown queue", ErrValidation)

	// Conflict errors.
	ErrDuplicateJob     = errors.New("innosupps: duplicate active job")
	ErrDuplicateTool    = errors.New("innosupps: duplicate tool")
	ErrDuplicateMessage = errors.New("innosupps: duplicate message")

	// State errors.
	ErrInvalidState = errors.New("innosupps: invalid state transition")
	ErrJobCancelled = errors.New("innosupps: job cancelled")

	// Auth errors.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrNotMember    = fmt.Errorf("%w: not a workspace member", ErrForbidden)
)

// Upstream wraps err as an upstream failure attributed to the named
// provider. A nil err yields nil.
func Upstream(provider string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, provider, err)
}

// Invalid returns a validation error with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
