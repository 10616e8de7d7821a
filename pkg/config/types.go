package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent tiermem configuration stored as
// config.toml in the .tiermem/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Cache       CacheConfig       `toml:"cache"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Scorer      ScorerConfig      `toml:"scorer"`
	Memory      MemoryConfig      `toml:"memory"`
	Events      EventsConfig      `toml:"events"`
	Retention   RetentionConfig   `toml:"retention"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// server (tiermem remember, tiermem recall, tiermem windows).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// CacheConfig selects the recency tier backend.
type CacheConfig struct {
	// Provider is "redis" or "memory".
	Provider  string `toml:"provider,omitempty"`
	Target    string `toml:"target,omitempty"`
	Password  string `toml:"password,omitempty"`
	DB        int    `toml:"db,omitempty"`
	Namespace string `toml:"namespace,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// ScorerConfig holds importance scoring settings.
type ScorerConfig struct {
	// Provider is "openai", "anthropic", "ollama" or "fixed".
	Provider      string  `toml:"provider,omitempty"`
	Target        string  `toml:"target,omitempty"`
	Model         string  `toml:"model,omitempty"`
	Timeout       string  `toml:"timeout,omitempty"`
	RatePerSecond float64 `toml:"rate_per_second,omitempty"`
}

// MemoryConfig holds tier promotion and worker settings.
type MemoryConfig struct {
	WeeklyThreshold    int    `toml:"weekly_threshold,omitempty"`
	PromotionThreshold int    `toml:"promotion_threshold,omitempty"`
	Workers            uint   `toml:"workers,omitempty"`
	QueueSize          uint   `toml:"queue_size,omitempty"`
	WriteTimeout       string `toml:"write_timeout,omitempty"`
	RecallLimit        int    `toml:"recall_limit,omitempty"`
}

// EventsConfig selects the promotion event publisher.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// RetentionConfig controls the long-term compaction job.
type RetentionConfig struct {
	Enabled        bool   `toml:"enabled"`
	Schedule       string `toml:"schedule,omitempty"`
	MaxAge         string `toml:"max_age,omitempty"`
	KeepImportance int    `toml:"keep_importance,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	name string
	get  func(c *Config) string
	set  func(c *Config, v string) error
}

func stringKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		name: name,
		get:  func(c *Config) string { return *field(c) },
		set:  func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		name: name,
		get:  func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		name: name,
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		name: name,
		get:  func(c *Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		name: name,
		get:  func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// durationKey stores a duration as its string form after validating it.
func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		name: name,
		get:  func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// orderedKeys lists every supported key in TOML section order.
var orderedKeys = []configKeyInfo{
	stringKey("api.listen", func(c *Config) *string { return &c.API.Listen }),
	stringKey("client.api_target", func(c *Config) *string { return &c.Client.APITarget }),

	stringKey("cache.provider", func(c *Config) *string { return &c.Cache.Provider }),
	stringKey("cache.target", func(c *Config) *string { return &c.Cache.Target }),
	stringKey("cache.password", func(c *Config) *string { return &c.Cache.Password }),
	intKey("cache.db", func(c *Config) *int { return &c.Cache.DB }),
	stringKey("cache.namespace", func(c *Config) *string { return &c.Cache.Namespace }),

	stringKey("vector_store.provider", func(c *Config) *string { return &c.VectorStore.Provider }),
	stringKey("vector_store.target", func(c *Config) *string { return &c.VectorStore.Target }),
	stringKey("vector_store.api_key", func(c *Config) *string { return &c.VectorStore.APIKey }),

	stringKey("embedding.provider", func(c *Config) *string { return &c.Embedding.Provider }),
	stringKey("embedding.target", func(c *Config) *string { return &c.Embedding.Target }),
	stringKey("embedding.model", func(c *Config) *string { return &c.Embedding.Model }),
	uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),

	stringKey("scorer.provider", func(c *Config) *string { return &c.Scorer.Provider }),
	stringKey("scorer.target", func(c *Config) *string { return &c.Scorer.Target }),
	stringKey("scorer.model", func(c *Config) *string { return &c.Scorer.Model }),
	durationKey("scorer.timeout", func(c *Config) *string { return &c.Scorer.Timeout }),
	floatKey("scorer.rate_per_second", func(c *Config) *float64 { return &c.Scorer.RatePerSecond }),

	intKey("memory.weekly_threshold", func(c *Config) *int { return &c.Memory.WeeklyThreshold }),
	intKey("memory.promotion_threshold", func(c *Config) *int { return &c.Memory.PromotionThreshold }),
	uintKey("memory.workers", func(c *Config) *uint { return &c.Memory.Workers }),
	uintKey("memory.queue_size", func(c *Config) *uint { return &c.Memory.QueueSize }),
	durationKey("memory.write_timeout", func(c *Config) *string { return &c.Memory.WriteTimeout }),
	intKey("memory.recall_limit", func(c *Config) *int { return &c.Memory.RecallLimit }),

	stringKey("events.provider", func(c *Config) *string { return &c.Events.Provider }),
	stringKey("events.brokers", func(c *Config) *string { return &c.Events.Brokers }),
	stringKey("events.topic", func(c *Config) *string { return &c.Events.Topic }),

	boolKey("retention.enabled", func(c *Config) *bool { return &c.Retention.Enabled }),
	stringKey("retention.schedule", func(c *Config) *string { return &c.Retention.Schedule }),
	durationKey("retention.max_age", func(c *Config) *string { return &c.Retention.MaxAge }),
	intKey("retention.keep_importance", func(c *Config) *int { return &c.Retention.KeepImportance }),
}

// configKeys is the authoritative map of all supported config keys.
var configKeys = func() map[string]configKeyInfo {
	m := make(map[string]configKeyInfo, len(orderedKeys))
	for _, k := range orderedKeys {
		m[k.name] = k
	}
	return m
}()

// Duration parses a duration field, falling back to def when the value is
// empty or invalid.
func Duration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
