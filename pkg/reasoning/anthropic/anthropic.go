// Package anthropic implements reasoning.Reasoner over the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/papercomputeco/tiermem/pkg/reasoning"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-haiku-4-5-20251001"

	// DefaultMaxTokens bounds the completion when none is configured.
	DefaultMaxTokens = 16
)

// Config holds configuration for the Anthropic reasoner.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// Reasoner completes prompts with a single Messages call.
type Reasoner struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// Ensure Reasoner implements reasoning.Reasoner.
var _ reasoning.Reasoner = (*Reasoner)(nil)

// New creates an Anthropic reasoner.
func New(cfg Config) (*Reasoner, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Reasoner{
		client:    sdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Complete sends prompt as a single user message and joins the text blocks
// of the reply.
func (r *Reasoner) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := r.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(r.model),
		MaxTokens: r.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var out strings.Builder
	for _, blockUnion := range message.Content {
		if block, ok := blockUnion.AsAny().(sdk.TextBlock); ok {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", reasoning.ErrEmptyCompletion
	}
	return out.String(), nil
}
