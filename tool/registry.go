package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	innosupps "github.com/simd-personal/Inno-Supps"
)

// Registry holds tools by name. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t. A parameter declared without a default and not through
// Optional is marked required.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return innosupps.Invalid("tool name must not be empty")
	}
	if t.Func == nil {
		return innosupps.Invalid("tool %s has no func", t.Name)
	}
	if t.Returns == "" {
		t.Returns = String
	}
	if !t.Returns.Valid() {
		return innosupps.Invalid("tool %s: unknown return type %q", t.Name, t.Returns)
	}

	params := make([]Param, len(t.Params))
	seen := make(map[string]struct{}, len(t.Params))
	for i, p := range t.Params {
		if !p.Type.Valid() {
			return innosupps.Invalid("tool %s: param %s has unknown type %q", t.Name, p.Name, p.Type)
		}
		if _, dup := seen[p.Name]; dup {
			return innosupps.Invalid("tool %s: param %s declared twice", t.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Default == nil && !p.optional {
			p.Required = true
		}
		params[i] = p
	}
	t.Params = params

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", innosupps.ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister is Register that panics, for static tool tables.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Schema returns the schema of the named tool.
func (r *Registry) Schema(name string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t.Schema, ok
}

// Schemas returns every schema sorted by name.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Schema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Schema)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	schemas := r.Schemas()
	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	return names
}

// ValidateCall reports whether name is registered and every required
// parameter is present in args. Argument types are not checked.
func (r *Registry) ValidateCall(name string, args Args) bool {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	return ok && missing(t.Schema, args) == ""
}

// Call fills defaults and runs the named tool.
func (r *Registry) Call(ctx context.Context, name string, args Args) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", innosupps.ErrToolNotFound, name)
	}
	if p := missing(t.Schema, args); p != "" {
		return nil, fmt.Errorf("%w: tool %s: missing required parameter %q",
			innosupps.ErrInvalidArguments, name, p)
	}

	filled := make(Args, len(t.Params))
	for k, v := range args {
		filled[k] = v
	}
	for _, p := range t.Params {
		if _, ok := filled[p.Name]; !ok && p.Default != nil {
			filled[p.Name] = p.Default
		}
	}
	return t.Func(ctx, filled)
}

func missing(s Schema, args Args) string {
	for _, p := range s.Params {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return p.Name
		}
	}
	return ""
}
