package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// DefaultModel is the cost-efficient model used when none is configured.
// Extraction and dedup are both single-turn text tasks.
const DefaultModel = "claude-haiku-4-5-20251001"

// ErrEmptyResponse is returned when the model answers without any text block.
var ErrEmptyResponse = errors.New("model returned no text content")

// Completer turns one prompt into one completion. It is the seam the
// extractor and the duplicate filter share, and the one tests fake.
type Completer interface {
	Complete(ctx context.Context, prompt, operation string, maxTokens int) (string, error)
}

// Config holds client configuration
type Config struct {
	APIKey  string        // Anthropic API key (required)
	Model   string        // Model to use (default: DefaultModel)
	Timeout time.Duration // Per-request timeout (default: 120s)
	BaseURL string        // Override API endpoint (tests, proxies)
}

// Client is a single-turn Anthropic Messages client. It keeps no
// conversation state between calls and does not retry: a failed call is
// retried by leaving the intake file for the next run.
type Client struct {
	client *anthropic.Client
	model  string
	logger zerolog.Logger
}

// Compile-time check that Client implements Completer
var _ Completer = (*Client)(nil)

// NewClient creates a new oracle client
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &Client{
		client: &client,
		model:  model,
		logger: logger.With().Str("component", "oracle").Str("model", model).Logger(),
	}, nil
}

// Model returns the model name used for completions.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the
// concatenated text of the reply.
func (c *Client) Complete(ctx context.Context, prompt, operation string, maxTokens int) (string, error) {
	startTime := time.Now()

	if maxTokens <= 0 {
		maxTokens = 4096
	}

	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed (%s): %w", operation, err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	c.logger.Debug().
		Str("operation", operation).
		Int64("input_tokens", response.Usage.InputTokens).
		Int64("output_tokens", response.Usage.OutputTokens).
		Dur("duration", time.Since(startTime)).
		Msg("AI call complete")

	if responseText == "" {
		return "", fmt.Errorf("%s: %w", operation, ErrEmptyResponse)
	}
	return responseText, nil
}
