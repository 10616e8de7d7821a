// Package openai implements reasoning.Reasoner over OpenAI-compatible chat
// completion APIs.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/tiermem/pkg/reasoning"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Config holds configuration for the OpenAI reasoner.
type Config struct {
	APIKey string

	// BaseURL overrides the API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	Model string

	// MaxTokens bounds the completion length. Zero leaves it to the server.
	MaxTokens int
}

// Reasoner completes prompts with a chat completion call.
type Reasoner struct {
	client    *goopenai.Client
	model     string
	maxTokens int
}

// Ensure Reasoner implements reasoning.Reasoner.
var _ reasoning.Reasoner = (*Reasoner)(nil)

// New creates an OpenAI reasoner.
func New(cfg Config) (*Reasoner, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	config := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Reasoner{
		client:    goopenai.NewClientWithConfig(config),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Complete sends prompt as a single user message.
func (r *Reasoner) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: r.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", reasoning.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
