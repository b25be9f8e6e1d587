package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mike-a-ellis/prepme-rag/internal/embedding"
)

const (
	// DefaultBaseURL points at OpenRouter, which speaks the OpenAI chat API.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "x-ai/grok-4.1-fast:free"

	// DefaultTemperature keeps answers close to the context.
	DefaultTemperature = 0.2
)

var (
	// ErrMissingAPIKey is returned when no generation API key is configured.
	ErrMissingAPIKey = errors.New("generation API key not set")

	// ErrEmptyResponse is returned when the model answers with no content.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Generator sends chat messages to an OpenAI-compatible endpoint and returns the reply.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewGenerator creates a Generator. An empty baseURL selects DefaultBaseURL and an empty
// model selects DefaultModel.
func NewGenerator(apiKey, baseURL, model string, temperature float64) (*Generator, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHeader("X-Title", "PrepMe RAG"),
	)

	return &Generator{
		client:      &client,
		model:       model,
		temperature: temperature,
	}, nil
}

// Model returns the chat model name.
func (g *Generator) Model() string {
	return g.model
}

// Complete returns the model's reply to messages. Rate limit errors are retried with
// exponential backoff; anything else fails immediately.
func (g *Generator) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    toParams(messages),
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(g.temperature),
	}

	var content string
	operation := func() error {
		resp, err := g.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if embedding.IsRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(ErrEmptyResponse)
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return backoff.Permanent(ErrEmptyResponse)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return content, nil
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
