package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
)

// OpenAIBackend translates through an OpenAI-compatible chat completion API.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a backend. baseURL may be empty to use the public API.
func NewOpenAIBackend(apiKey, model, baseURL string, timeout time.Duration) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = defaultHTTPBackendTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

// Translate sends one chat completion request and returns the reply text.
func (b *OpenAIBackend) Translate(ctx context.Context, req BackendRequest) (string, error) {
	prompt := fmt.Sprintf("Translate the following user interface text from %s to %s. Respond with only the translation, nothing else.",
		req.SourceLanguage, req.TargetLanguage)
	if req.Batch {
		prompt += " " + batchInstructions(req.Delimiter)
	}

	chatReq := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Text,
			},
		},
		Temperature: 0.2,
	}

	startTime := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	metrics.TranslationAPILatency.Observe(time.Since(startTime).Seconds())
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	translation := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translation == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}
	return translation, nil
}

func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: OpenAI API error: %v", ErrBackendUnavailable, err)
}
