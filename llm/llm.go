// Package llm abstracts chat completion behind Provider. OpenAI talks to
// the real API; Mock answers deterministically for tests and mock mode.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	innosupps "github.com/simd-personal/Inno-Supps"
)

// Request is one completion call.
type Request struct {
	// System is the optional system prompt.
	System string
	// Prompt is the user message.
	Prompt string
	// Temperature overrides the provider default when non-nil.
	Temperature *float32
	// MaxTokens overrides the provider default when positive.
	MaxTokens int
	// JSON asks the model for a single JSON object.
	JSON bool
}

// Temp is a helper for Request.Temperature.
func Temp(t float32) *float32 { return &t }

// Provider completes prompts.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleteJSON runs req in JSON mode and decodes the reply into v. A reply
// that is not valid JSON yields an error wrapping ErrUnparseable so callers
// can branch on it separately from transport failures.
func CompleteJSON(ctx context.Context, p Provider, req Request, v any) error {
	req.JSON = true
	out, err := p.Complete(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripFence(out)), v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnparseable, p.Name(), err)
	}
	return nil
}

// ErrUnparseable marks a completion that did not decode as expected.
var ErrUnparseable = fmt.Errorf("%w: unparseable completion", innosupps.ErrUpstream)

// stripFence removes a surrounding ```json fence some models emit even in
// JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
