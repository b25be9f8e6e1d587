package embedding

import (
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrMissingAPIKey is returned when no embedding API key is configured.
var ErrMissingAPIKey = errors.New("embedding API key not set")

// Client wraps an OpenAI-compatible client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI-compatible client. baseURL may be empty to use the
// OpenAI default endpoint.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client.
func (c *Client) Client() *openai.Client {
	return c.client
}
