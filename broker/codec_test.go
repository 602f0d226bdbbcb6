package broker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/broker"
)

func TestCodecs(t *testing.T) {
	t.Parallel()

	env := broker.Envelope{
		JobID:       "job_01h2xcejqtf2nbrexx3vqjhp41",
		WorkspaceID: "ws_acme",
		Function:    "ingest_email",
		Queue:       "default",
		Timeout:     5 * time.Minute,
		EnqueuedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	for _, name := range []string{broker.CodecNameMsgpack, broker.CodecNameJSON} {
		t.Run(name, func(t *testing.T) {
			c := broker.GetCodec(name)
			assert.Equal(t, name, c.Name())

			data, err := c.Encode(env)
			require.NoError(t, err)
			got, err := c.Decode(data)
			require.NoError(t, err)

			assert.Equal(t, env.JobID, got.JobID)
			assert.Equal(t, env.Function, got.Function)
			assert.Equal(t, env.Queue, got.Queue)
			assert.Equal(t, env.Timeout, got.Timeout)
			assert.True(t, env.EnqueuedAt.Equal(got.EnqueuedAt))
		})
	}
}

func TestGetCodec_DefaultsToMsgpack(t *testing.T) {
	t.Parallel()
	assert.Equal(t, broker.CodecNameMsgpack, broker.GetCodec("").Name())
	assert.Equal(t, broker.CodecNameMsgpack, broker.GetCodec("protobuf").Name())
}
