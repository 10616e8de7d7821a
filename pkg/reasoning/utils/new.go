// Package reasoningutils builds a reasoning.Reasoner from configuration.
package reasoningutils

import (
	"fmt"

	"github.com/papercomputeco/tiermem/pkg/credentials"
	"github.com/papercomputeco/tiermem/pkg/reasoning"
	"github.com/papercomputeco/tiermem/pkg/reasoning/anthropic"
	"github.com/papercomputeco/tiermem/pkg/reasoning/ollama"
	"github.com/papercomputeco/tiermem/pkg/reasoning/openai"
)

type NewReasonerOpts struct {
	ProviderType string
	TargetURL    string
	Model        string

	// APIKey overrides stored and environment credentials.
	APIKey string

	// Credentials is consulted when APIKey is empty. May be nil.
	Credentials *credentials.Store
}

func NewReasoner(o *NewReasonerOpts) (reasoning.Reasoner, error) {
	switch o.ProviderType {
	case "openai":
		return openai.New(openai.Config{
			APIKey:  credentials.Resolve(o.Credentials, "openai", o.APIKey),
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:  credentials.Resolve(o.Credentials, "anthropic", o.APIKey),
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported reasoning provider: %s", o.ProviderType)
	}
}
