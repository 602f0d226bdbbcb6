// Package toolkit implements the agent tools. Every tool is a typed method
// on Kit, so job bodies call them with compile-time checking, and Register
// exposes the same methods through a tool.Registry for dynamic callers.
//
// In mock mode the LLM-backed tools return fixed outputs and never call the
// provider. Otherwise a provider failure or an unparseable completion
// selects an explicit fallback result rather than an error, matching how
// the job bodies treat classification and drafting as best effort.
package toolkit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/llm"
	"github.com/simd-personal/Inno-Supps/provider"
)

// Kit holds the dependencies shared by the tools.
type Kit struct {
	llm       llm.Provider
	providers provider.Set
	mock      bool
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Kit.
type Option func(*Kit)

// WithMockMode returns canned outputs from the LLM-backed tools.
func WithMockMode(on bool) Option {
	return func(k *Kit) { k.mock = on }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(k *Kit) { k.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kit) { k.logger = l }
}

// New returns a Kit over the given completion provider and integrations.
func New(p llm.Provider, providers provider.Set, opts ...Option) *Kit {
	k := &Kit{
		llm:       p,
		providers: providers,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// MockMode reports whether canned outputs are in use.
func (k *Kit) MockMode() bool { return k.mock }

// Providers returns the integrations the kit was built with.
func (k *Kit) Providers() provider.Set { return k.providers }

// outcome classifies a completion error for the fallback branches.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeUpstream
	outcomeUnparseable
)

func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, llm.ErrUnparseable):
		return outcomeUnparseable
	default:
		return outcomeUpstream
	}
}

// completeJSON asks the provider for JSON and decodes it into v. A
// cancelled context is returned as an error; any other failure is
// reported through the outcome so the caller can pick its fallback.
func (k *Kit) completeJSON(ctx context.Context, tool string, req llm.Request, v any) (outcome, error) {
	err := llm.CompleteJSON(ctx, k.llm, req, v)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcomeUpstream, ctxErr
	}
	o := classify(err)
	if o != outcomeOK {
		k.logger.Warn("tool falling back",
			slog.String("tool", tool),
			slog.String("error", err.Error()),
		)
	}
	return o, nil
}

func (k *Kit) requireLLM() error {
	if k.llm == nil {
		return innosupps.Upstream("llm", errors.New("no provider configured"))
	}
	return nil
}

func str(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}
