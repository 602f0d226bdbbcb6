// Package tool is a registry of statically described agent tools. Each
// tool carries a Schema declaring its parameters and a Func that runs it;
// nothing is derived by reflection.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Type is the JSON type of a parameter or return value.
type Type string

const (
	String  Type = "string"
	Integer Type = "integer"
	Number  Type = "number"
	Boolean Type = "boolean"
	Array   Type = "array"
	Object  Type = "object"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case String, Integer, Number, Boolean, Array, Object:
		return true
	}
	return false
}

// Param describes one named argument.
type Param struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`

	// optional is set by Optional so a nil default still leaves the
	// parameter optional.
	optional bool
}

// Required declares a parameter the caller must supply.
func Required(name string, t Type, description string) Param {
	return Param{Name: name, Type: t, Description: description, Required: true}
}

// Optional declares a parameter filled with def when omitted. A nil def
// leaves an omitted parameter absent.
func Optional(name string, t Type, description string, def any) Param {
	return Param{Name: name, Type: t, Description: description, Default: def, optional: true}
}

// Schema is the static description of a tool.
type Schema struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"parameters"`
	Returns     Type    `json:"returns"`
}

// Args are the named arguments of a call.
type Args map[string]any

// Decode copies the arguments into the struct pointed to by v using its
// json tags.
func (a Args) Decode(v any) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Func runs a tool.
type Func func(ctx context.Context, args Args) (any, error)

// Tool pairs a schema with its implementation.
type Tool struct {
	Schema
	Func Func
}

// New builds a tool whose arguments are decoded into T before fn runs.
func New[T any](schema Schema, fn func(ctx context.Context, in T) (any, error)) Tool {
	return Tool{
		Schema: schema,
		Func: func(ctx context.Context, args Args) (any, error) {
			var in T
			if err := args.Decode(&in); err != nil {
				return nil, fmt.Errorf("tool %s: decode arguments: %w", schema.Name, err)
			}
			return fn(ctx, in)
		},
	}
}
