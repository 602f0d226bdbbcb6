package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
)

type greetIn struct {
	Name  string `json:"name"`
	Style string `json:"style"`
}

func greetTool() Tool {
	return New(Schema{
		Name:        "greet",
		Description: "Say hello",
		Params: []Param{
			Required("name", String, "who to greet"),
			Optional("style", String, "tone", "formal"),
		},
		Returns: String,
	}, func(_ context.Context, in greetIn) (any, error) {
		return in.Style + ":" + in.Name, nil
	})
}

func TestRegisterAndSchemas(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	require.NoError(t, r.Register(greetTool()))
	require.NoError(t, r.Register(Tool{
		Schema: Schema{Name: "alpha", Returns: Object},
		Func:   func(context.Context, Args) (any, error) { return nil, nil },
	}))

	assert.Equal(t, []string{"alpha", "greet"}, r.Names())

	s, ok := r.Schema("greet")
	require.True(t, ok)
	require.Len(t, s.Params, 2)
	assert.True(t, s.Params[0].Required)
	assert.False(t, s.Params[1].Required)
	assert.Equal(t, "formal", s.Params[1].Default)

	_, ok = r.Schema("missing")
	assert.False(t, ok)
}

func TestRegisterRejects(t *testing.T) {
	t.Parallel()
	noop := func(context.Context, Args) (any, error) { return nil, nil }

	tests := []struct {
		name string
		tool Tool
		err  error
	}{
		{"empty name", Tool{Func: noop}, innosupps.ErrValidation},
		{"nil func", Tool{Schema: Schema{Name: "x"}}, innosupps.ErrValidation},
		{"bad param type", Tool{Schema: Schema{Name: "x", Params: []Param{{Name: "a", Type: "date"}}}, Func: noop}, innosupps.ErrValidation},
		{"bad return type", Tool{Schema: Schema{Name: "x", Returns: "tuple"}, Func: noop}, innosupps.ErrValidation},
		{"dup param", Tool{Schema: Schema{Name: "x", Params: []Param{Required("a", String, ""), Required("a", String, "")}}, Func: noop}, innosupps.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, NewRegistry().Register(tt.tool), tt.err)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	require.NoError(t, r.Register(greetTool()))
	assert.ErrorIs(t, r.Register(greetTool()), innosupps.ErrDuplicateTool)
}

func TestParamWithoutDefaultIsRequired(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	require.NoError(t, r.Register(Tool{
		Schema: Schema{Name: "x", Params: []Param{{Name: "a", Type: Integer}}},
		Func:   func(context.Context, Args) (any, error) { return nil, nil },
	}))
	assert.False(t, r.ValidateCall("x", Args{}))
	assert.True(t, r.ValidateCall("x", Args{"a": 1}))
}

func TestOptionalWithoutDefaultStaysOptional(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	var got Args
	require.NoError(t, r.Register(Tool{
		Schema: Schema{Name: "x", Params: []Param{
			Required("a", Integer, ""),
			Optional("cursor", String, "page cursor", nil),
		}},
		Func: func(_ context.Context, args Args) (any, error) {
			got = args
			return nil, nil
		},
	}))

	s, ok := r.Schema("x")
	require.True(t, ok)
	assert.False(t, s.Params[1].Required)
	assert.True(t, r.ValidateCall("x", Args{"a": 1}))

	_, err := r.Call(context.Background(), "x", Args{"a": 1})
	require.NoError(t, err)
	assert.NotContains(t, got, "cursor")
}

func TestValidateCall(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	require.NoError(t, r.Register(greetTool()))

	assert.True(t, r.ValidateCall("greet", Args{"name": "Ada"}))
	assert.True(t, r.ValidateCall("greet", Args{"name": 42}), "types are not checked")
	assert.False(t, r.ValidateCall("greet", Args{"style": "casual"}))
	assert.False(t, r.ValidateCall("nope", Args{}))
}

func TestCall(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	require.NoError(t, r.Register(greetTool()))
	ctx := context.Background()

	out, err := r.Call(ctx, "greet", Args{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "formal:Ada", out)

	out, err = r.Call(ctx, "greet", Args{"name": "Ada", "style": "casual"})
	require.NoError(t, err)
	assert.Equal(t, "casual:Ada", out)

	_, err = r.Call(ctx, "greet", Args{})
	assert.ErrorIs(t, err, innosupps.ErrInvalidArguments)
	assert.ErrorIs(t, err, innosupps.ErrValidation)

	_, err = r.Call(ctx, "nope", Args{})
	assert.ErrorIs(t, err, innosupps.ErrToolNotFound)
	assert.ErrorIs(t, err, innosupps.ErrNotFound)
}

func TestCallDoesNotMutateArgs(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	require.NoError(t, r.Register(greetTool()))

	args := Args{"name": "Ada"}
	_, err := r.Call(context.Background(), "greet", args)
	require.NoError(t, err)
	assert.NotContains(t, args, "style")
}
