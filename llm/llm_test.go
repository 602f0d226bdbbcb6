package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
)

func TestCompleteJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var out struct {
		Reply string `json:"reply_type"`
	}
	require.NoError(t, CompleteJSON(ctx, NewMock("```json\n{\"reply_type\":\"positive\"}\n```"), Request{Prompt: "x"}, &out))
	assert.Equal(t, "positive", out.Reply)

	err := CompleteJSON(ctx, NewMock("not json"), Request{Prompt: "x"}, &out)
	assert.ErrorIs(t, err, ErrUnparseable)
	assert.ErrorIs(t, err, innosupps.ErrUpstream)

	boom := innosupps.Upstream("mock", errors.New("down"))
	err = CompleteJSON(ctx, NewMockFunc(func(Request) (string, error) { return "", boom }), Request{}, &out)
	assert.ErrorIs(t, err, innosupps.ErrUpstream)
	assert.NotErrorIs(t, err, ErrUnparseable)
}

func TestMockRecordsCalls(t *testing.T) {
	t.Parallel()
	m := NewMock("ok")
	_, err := m.Complete(context.Background(), Request{Prompt: "one"})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), Request{Prompt: "two", JSON: true})
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "one", calls[0].Prompt)
	assert.True(t, calls[1].JSON)
}

func TestMockHonoursCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMock("ok").Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func fakeOpenAI(t *testing.T, status int, handle func(openai.ChatCompletionRequest) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req openai.ChatCompletionRequest
		require.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: handle(req)},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() innosupps.LLMConfig {
	cfg := innosupps.DefaultConfig().LLM
	cfg.APIKey = "sk-test"
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()
	var seen openai.ChatCompletionRequest
	srv := fakeOpenAI(t, http.StatusOK, func(req openai.ChatCompletionRequest) string {
		seen = req
		return `{"ok":true}`
	})

	p, err := NewOpenAI(testConfig(), []func(*openai.ClientConfig){WithBaseURL(srv.URL + "/v1")})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "hi", Temperature: Temp(0.1), JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "gpt-4o-mini", seen.Model)
	assert.InDelta(t, 0.1, seen.Temperature, 0.0001)
	assert.Equal(t, 1000, seen.MaxTokens)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, seen.Messages[0].Role)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, seen.ResponseFormat.Type)
}

func TestOpenAIRateLimited(t *testing.T) {
	t.Parallel()
	srv := fakeOpenAI(t, http.StatusTooManyRequests, nil)

	cfg := testConfig()
	p, err := NewOpenAI(cfg, []func(*openai.ClientConfig){WithBaseURL(srv.URL + "/v1")})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, innosupps.ErrUpstream)
	assert.ErrorIs(t, err, innosupps.ErrRateLimited)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := NewOpenAI(innosupps.DefaultConfig().LLM, nil)
	assert.ErrorIs(t, err, innosupps.ErrValidation)
}
