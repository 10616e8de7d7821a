package config

const (
	defaultAPIListen       = ":8090"
	defaultClientAPITarget = "http://localhost:8090"

	defaultCacheProvider  = "memory"
	defaultCacheTarget    = "localhost:6379"
	defaultCacheNamespace = "tiermem"

	defaultVectorProvider = "sqlite"

	defaultOllamaTarget        = "http://localhost:11434"
	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultScorerProvider = "ollama"
	defaultScorerModel    = "llama3.2"
	defaultScorerTimeout  = "5s"

	defaultWeeklyThreshold    = 7
	defaultPromotionThreshold = 5
	defaultWorkers            = 3
	defaultQueueSize          = 256
	defaultWriteTimeout       = "5s"
	defaultRecallLimit        = 5

	defaultEventsProvider = "nop"
	defaultEventsBrokers  = "localhost:9092"
	defaultEventsTopic    = "tiermem.memory"

	defaultRetentionSchedule = "@daily"
	defaultRetentionMaxAge   = "2160h"
	defaultKeepImportance    = 8
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Cache: CacheConfig{
			Provider:  defaultCacheProvider,
			Target:    defaultCacheTarget,
			Namespace: defaultCacheNamespace,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultOllamaTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Scorer: ScorerConfig{
			Provider: defaultScorerProvider,
			Target:   defaultOllamaTarget,
			Model:    defaultScorerModel,
			Timeout:  defaultScorerTimeout,
		},
		Memory: MemoryConfig{
			WeeklyThreshold:    defaultWeeklyThreshold,
			PromotionThreshold: defaultPromotionThreshold,
			Workers:            defaultWorkers,
			QueueSize:          defaultQueueSize,
			WriteTimeout:       defaultWriteTimeout,
			RecallLimit:        defaultRecallLimit,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Brokers:  defaultEventsBrokers,
			Topic:    defaultEventsTopic,
		},
		Retention: RetentionConfig{
			Enabled:        false,
			Schedule:       defaultRetentionSchedule,
			MaxAge:         defaultRetentionMaxAge,
			KeepImportance: defaultKeepImportance,
		},
	}
}
