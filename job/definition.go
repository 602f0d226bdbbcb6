package job

import "context"

// Definition is a typed job definition. T is the keyword payload and must
// be JSON-serializable; its field names are the function's parameters.
type Definition[T any] struct {
	// Name is the stable function name stored with every job.
	Name string

	// Params lists parameter names in positional order, used to bind
	// positional args onto T's JSON fields.
	Params []string

	// Handler processes the payload. A non-nil result is stored on the job.
	Handler func(ctx context.Context, payload T) (any, error)

	// Opts configures queue, timeout and retries.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) (any, error), opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// WithParams sets the positional parameter order and returns def.
func (d *Definition[T]) WithParams(names ...string) *Definition[T] {
	d.Params = names
	return d
}
