package llm

import (
	"context"
	"sync"
)

var _ Provider = (*Mock)(nil)

// Mock is a deterministic Provider. It records every request.
type Mock struct {
	mu    sync.Mutex
	reply func(Request) (string, error)
	calls []Request
}

// NewMock returns a provider that always answers reply.
func NewMock(reply string) *Mock {
	return NewMockFunc(func(Request) (string, error) { return reply, nil })
}

// NewMockFunc returns a provider that answers with fn.
func NewMockFunc(fn func(Request) (string, error)) *Mock {
	return &Mock{reply: fn}
}

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// Complete implements Provider.
func (m *Mock) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.reply(req)
}

// Calls returns the recorded requests.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
