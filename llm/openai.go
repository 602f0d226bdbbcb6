package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	innosupps "github.com/simd-personal/Inno-Supps"
)

var _ Provider = (*OpenAI)(nil)

// OpenAI is a Provider backed by the OpenAI chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) func(*openai.ClientConfig) {
	return func(c *openai.ClientConfig) { c.BaseURL = url }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OpenAIOption {
	return func(o *OpenAI) { o.logger = l }
}

// NewOpenAI builds a provider from cfg. clientOpts adjust the underlying
// client configuration.
func NewOpenAI(cfg innosupps.LLMConfig, clientOpts []func(*openai.ClientConfig), opts ...OpenAIOption) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, innosupps.Invalid("llm: api key is required")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	for _, fn := range clientOpts {
		fn(&cc)
	}
	o := &OpenAI{
		client:      openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

// Client returns the underlying API client, shared with the transcriber.
func (o *OpenAI) Client() *openai.Client { return o.client }

// Complete implements Provider.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	creq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		creq.MaxTokens = req.MaxTokens
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
			return "", innosupps.Upstream(o.Name(), errors.Join(innosupps.ErrRateLimited, err))
		}
		return "", innosupps.Upstream(o.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", innosupps.Upstream(o.Name(), errors.New("no choices returned"))
	}

	o.logger.Debug("llm completion",
		slog.String("model", o.model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}
