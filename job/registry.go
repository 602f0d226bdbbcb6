package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	innosupps "github.com/simd-personal/Inno-Supps"
)

// HandlerFunc is a type-erased handler that receives the bound keyword
// payload as JSON.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Entry is what the registry keeps per function name.
type Entry struct {
	Name    string
	Params  []string
	Opts    Options
	Handler HandlerFunc
}

// Registry maps function names to handlers. It is built once at startup
// and is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// RegisterDefinition registers a typed job definition. The typed handler
// is wrapped in a closure that decodes the payload into T first.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	handler := func(ctx context.Context, payload json.RawMessage) (any, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("%w: payload for job %q: %v", innosupps.ErrInvalidArguments, def.Name, err)
			}
		}
		return def.Handler(ctx, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Name] = &Entry{
		Name:    def.Name,
		Params:  def.Params,
		Opts:    def.Opts,
		Handler: handler,
	}
}

// Get returns the entry for the given function name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns all registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
