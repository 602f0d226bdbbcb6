package redact

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"email", Email, "jane.doe@acme.io", "j******e@acme.io"},
		{"short email", Email, "jo@acme.io", "**@acme.io"},
		{"not an email", Email, "nobody", "nobody"},
		{"us phone", Phone, "555-123-4567", "555*****4567"},
		{"short phone", Phone, "12-34567", "12****67"},
		{"tiny phone", Phone, "123", "***"},
		{"card", Card, "4111 1111 1111 1111", "4111***********1111"},
		{"ssn", SSN, "123-45-6789", "123-**-6789"},
		{"ssn wrong length", SSN, "1234", "****"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestText(t *testing.T) {
	t.Parallel()

	out := Text("Reach jane.doe@acme.io or 555-123-4567, card 4111 1111 1111 1111, ssn 123-45-6789.")
	assert.NotContains(t, out, "jane.doe@")
	assert.Contains(t, out, "j******e@acme.io")
	assert.NotContains(t, out, "123-4567")
	assert.Contains(t, out, "4111***********1111")
	assert.Contains(t, out, "123-**-6789")

	assert.Equal(t, "", Text(""))
	assert.Equal(t, "Let's talk pricing", Text("Let's talk pricing"))
}

func TestValueRecurses(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"from":  "jane.doe@acme.io",
		"count": 3.0,
		"to":    []any{"bob.smith@acme.io", 7.0},
		"nested": map[string]any{
			"ok": true,
		},
	}
	out := Value(in).(map[string]any)
	assert.Equal(t, "j******e@acme.io", out["from"])
	assert.Equal(t, 3.0, out["count"])
	assert.Equal(t, []any{"b*******h@acme.io", 7.0}, out["to"])
	assert.Equal(t, map[string]any{"ok": true}, out["nested"])
	assert.Equal(t, "jane.doe@acme.io", in["from"], "input is not modified")
}

func TestJSON(t *testing.T) {
	t.Parallel()

	out := JSON(json.RawMessage(`{"email":"jane.doe@acme.io"}`))
	assert.JSONEq(t, `{"email":"j******e@acme.io"}`, string(out))

	bad := json.RawMessage(`{not json`)
	assert.Equal(t, bad, JSON(bad))
}
