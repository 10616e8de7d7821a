// Package config loads, validates and persists the tiermem configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/tiermem/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Supported provider names per section.
var (
	CacheProviders     = []string{"memory", "redis"}
	VectorProviders    = []string{"chroma", "postgres", "qdrant", "sqlite"}
	EmbeddingProviders = []string{"ollama", "openai"}
	ScorerProviders    = []string{"anthropic", "fixed", "ollama", "openai"}
	EventsProviders    = []string{"kafka", "nop"}
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{ddm: dotdir.NewManager()}

	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(target, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Set even when the file is missing so SaveConfig can create it.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns all supported configuration key names in TOML
// section order.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(orderedKeys))
	for _, k := range orderedKeys {
		keys = append(keys, k.name)
	}
	return keys
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target
// .tiermem/ directory. A missing file yields NewDefaultConfig(); fields
// absent from the file keep their defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills unset fields in cfg with values from NewDefaultConfig().
// Booleans are left alone since false is a meaningful setting.
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	for _, k := range orderedKeys {
		switch k.get(cfg) {
		case "", "0":
		default:
			continue
		}
		if k.get(defaults) == "false" {
			continue
		}
		_ = k.set(cfg, k.get(defaults))
	}
}

// Validate checks provider names and threshold ranges.
func (cfg *Config) Validate() error {
	var errs []error

	check := func(section, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("unsupported %s provider %q (available: %s)",
				section, value, strings.Join(allowed, ", ")))
		}
	}
	check("cache", cfg.Cache.Provider, CacheProviders)
	check("vector_store", cfg.VectorStore.Provider, VectorProviders)
	check("embedding", cfg.Embedding.Provider, EmbeddingProviders)
	check("scorer", cfg.Scorer.Provider, ScorerProviders)
	check("events", cfg.Events.Provider, EventsProviders)

	for name, n := range map[string]int{
		"memory.weekly_threshold":    cfg.Memory.WeeklyThreshold,
		"memory.promotion_threshold": cfg.Memory.PromotionThreshold,
		"retention.keep_importance":  cfg.Retention.KeepImportance,
	} {
		if n < 1 || n > 10 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 10, got %d", name, n))
		}
	}

	return errors.Join(errs...)
}

// SaveConfig persists the configuration to config.toml in the target .tiermem/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a default Config whose scorer and embedding sections
// point at the named provider.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openai":
		cfg.Scorer = ScorerConfig{Provider: "openai", Model: "gpt-4o-mini", Timeout: defaultScorerTimeout}
		cfg.Embedding = EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536}
	case "anthropic":
		cfg.Scorer = ScorerConfig{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Timeout: defaultScorerTimeout}
	case "ollama":
	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "anthropic", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
