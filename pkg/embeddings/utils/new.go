// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/tiermem/pkg/credentials"
	"github.com/papercomputeco/tiermem/pkg/embeddings"
	"github.com/papercomputeco/tiermem/pkg/embeddings/ollama"
	"github.com/papercomputeco/tiermem/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string

	// Credentials, when set, supplies API keys not given explicitly.
	Credentials *credentials.Store
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		return openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:  credentials.Resolve(o.Credentials, "openai", o.APIKey),
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
