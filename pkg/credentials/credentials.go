// Package credentials stores provider API keys in .tiermem/credentials.toml
// and resolves the key a reasoning or embedding provider should use.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"

	"github.com/papercomputeco/tiermem/pkg/dotdir"
)

const (
	fileName = "credentials.toml"

	fileVersion = 0
)

// envVars maps providers that need an API key to their environment variable.
var envVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// Store reads and writes credentials.toml.
type Store struct {
	path string
}

// NewStore opens the credentials file in the resolved .tiermem directory.
func NewStore(override string) (*Store, error) {
	path, err := dotdir.NewManager().File(override, fileName)
	if err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// Path is the location of credentials.toml.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) read() (*File, error) {
	f := &File{Version: fileVersion, Providers: map[string]APIKey{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if f.Providers == nil {
		f.Providers = map[string]APIKey{}
	}
	return f, nil
}

func (s *Store) write(f *File) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Set stores key for provider.
func (s *Store) Set(provider, key string) error {
	f, err := s.read()
	if err != nil {
		return err
	}
	f.Providers[provider] = APIKey{Key: key}
	return s.write(f)
}

// Get returns the stored key for provider, or "" when none is stored.
func (s *Store) Get(provider string) (string, error) {
	f, err := s.read()
	if err != nil {
		return "", err
	}
	return f.Providers[provider].Key, nil
}

// Remove deletes the stored key for provider.
func (s *Store) Remove(provider string) error {
	f, err := s.read()
	if err != nil {
		return err
	}
	delete(f.Providers, provider)
	return s.write(f)
}

// Providers lists the providers with a stored key, sorted.
func (s *Store) Providers() ([]string, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}
	names := lo.Keys(f.Providers)
	slices.Sort(names)
	return names, nil
}

// Resolve picks the key for provider: explicit wins, then the stored key,
// then the provider's environment variable. A nil store skips the file.
func Resolve(s *Store, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if s != nil {
		if key, err := s.Get(provider); err == nil && key != "" {
			return key
		}
	}
	if env := EnvVar(provider); env != "" {
		return os.Getenv(env)
	}
	return ""
}

// EnvVar returns the environment variable holding provider's key.
func EnvVar(provider string) string {
	return envVars[provider]
}

// Supported lists the providers that take an API key.
func Supported() []string {
	names := lo.Keys(envVars)
	slices.Sort(names)
	return names
}

// IsSupported reports whether provider takes an API key.
func IsSupported(provider string) bool {
	_, ok := envVars[provider]
	return ok
}
