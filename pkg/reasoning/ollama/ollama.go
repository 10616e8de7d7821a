// Package ollama implements reasoning.Reasoner over a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/papercomputeco/tiermem/pkg/reasoning"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Config holds configuration for the Ollama reasoner.
type Config struct {
	// BaseURL is the Ollama API URL. Empty means the OLLAMA_HOST environment
	// or DefaultBaseURL.
	BaseURL string

	Model string
}

// Reasoner completes prompts with a non-streaming chat call.
type Reasoner struct {
	client *api.Client
	model  string
}

// Ensure Reasoner implements reasoning.Reasoner.
var _ reasoning.Reasoner = (*Reasoner)(nil)

// New creates an Ollama reasoner.
func New(cfg Config) (*Reasoner, error) {
	var client *api.Client
	if cfg.BaseURL != "" {
		base, err := parseHost(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host: %w", err)
		}
		client = api.NewClient(base, &http.Client{Timeout: 2 * time.Minute})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Reasoner{client: client, model: model}, nil
}

func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Complete sends prompt as a single user message.
func (r *Reasoner) Complete(ctx context.Context, prompt string) (string, error) {
	stream := false
	var out strings.Builder

	err := r.client.Chat(ctx, &api.ChatRequest{
		Model:    r.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	if out.Len() == 0 {
		return "", reasoning.ErrEmptyCompletion
	}
	return out.String(), nil
}
