package scorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

// ModelClient issues one scoring request and returns the raw response text.
type ModelClient interface {
	// Complete sends the prompt pair and returns the model's text response.
	Complete(ctx context.Context, system, user string) (string, error)
	// Version identifies the model plus prompt revision; it is part of the
	// insight cache key so model upgrades invalidate cached results.
	Version() string
}

// OpenAIClient is the production ModelClient backed by the OpenAI chat
// completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given API key and model.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Complete performs one chat completion call.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classifyProviderError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choice list", domain.ErrMalformedOutput)
	}

	return resp.Choices[0].Message.Content, nil
}

// Version returns the cache invalidation key component for this client.
func (c *OpenAIClient) Version() string {
	return c.model + "/" + promptVersion
}

func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		// Quota exhaustion and provider outages are retryable later; other
		// API errors (bad request, auth) are not, but neither should fail a
		// whole batch, so both map into the provider taxonomy.
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("model call failed: %w", err)
	}

	return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
}
