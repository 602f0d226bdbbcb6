package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/id"
)

func TestConstructorsCarryPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"job", id.NewJobID, "job_"},
		{"memory", id.NewMemoryID, "mem_"},
		{"thread", id.NewThreadID, "thr_"},
		{"message", id.NewMessageID, "msg_"},
		{"meeting", id.NewMeetingID, "mtg_"},
		{"call", id.NewCallID, "call_"},
		{"prospect", id.NewProspectID, "pros_"},
		{"brief", id.NewBriefID, "brief_"},
		{"plan", id.NewPlanID, "plan_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			assert.True(t, strings.HasPrefix(got, tt.prefix), "got %q", got)
		})
	}
}

func TestParseJobID(t *testing.T) {
	t.Parallel()

	original := id.NewJobID()
	parsed, err := id.ParseJobID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original.String(), parsed.String())

	_, err = id.ParseJobID(id.NewThreadID().String())
	assert.Error(t, err, "thread ID must not parse as a job ID")

	_, err = id.Parse("")
	assert.Error(t, err)

	_, err = id.Parse("not-a-typeid")
	assert.Error(t, err)
}

func TestNilID(t *testing.T) {
	t.Parallel()

	var i id.ID
	assert.True(t, i.IsNil())
	assert.Empty(t, i.String())
	assert.Empty(t, i.Prefix())

	val, err := i.Value()
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		ID id.ID `json:"id"`
	}
	original := wrapper{ID: id.NewProspectID()}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored wrapper
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, original.ID.String(), restored.ID.String())
}

func TestValueScan(t *testing.T) {
	t.Parallel()

	original := id.NewMemoryID()
	val, err := original.Value()
	require.NoError(t, err)

	var fromString id.ID
	require.NoError(t, fromString.Scan(val))
	assert.Equal(t, original.String(), fromString.String())

	var fromBytes id.ID
	require.NoError(t, fromBytes.Scan([]byte(original.String())))
	assert.Equal(t, original.String(), fromBytes.String())

	var fromNil id.ID
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsNil())

	var bad id.ID
	assert.Error(t, bad.Scan(42))
}

func TestUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 100)
	for range 100 {
		s := id.NewJobID().String()
		_, dup := seen[s]
		require.False(t, dup, "duplicate id %q", s)
		seen[s] = struct{}{}
	}
}
