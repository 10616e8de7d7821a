package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// cannot drift between "tiermem serve" and the client commands.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen             = "listen"
	FlagAPITarget          = "api-target"
	FlagCacheProvider      = "cache-provider"
	FlagCacheTarget        = "cache-target"
	FlagVectorStoreProv    = "vector-store-provider"
	FlagVectorStoreTgt     = "vector-store-target"
	FlagEmbeddingProv      = "embedding-provider"
	FlagEmbeddingTgt       = "embedding-target"
	FlagEmbeddingModel     = "embedding-model"
	FlagEmbeddingDims      = "embedding-dimensions"
	FlagScorerProv         = "scorer-provider"
	FlagScorerTgt          = "scorer-target"
	FlagScorerModel        = "scorer-model"
	FlagWeeklyThreshold    = "weekly-threshold"
	FlagPromotionThreshold = "promotion-threshold"
	FlagWorkers            = "workers"
	FlagEventsProv         = "events-provider"
	FlagEventsBrokers      = "events-brokers"
	FlagRetention          = "retention"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagListen:             {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:          {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "tiermem API server URL"},
	FlagCacheProvider:      {Name: "cache-provider", ViperKey: "cache.provider", Description: "Recency cache backend (memory, redis)"},
	FlagCacheTarget:        {Name: "cache-target", ViperKey: "cache.target", Description: "Redis address for the recency cache"},
	FlagVectorStoreProv:    {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store backend (sqlite, chroma, qdrant, postgres)"},
	FlagVectorStoreTgt:     {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store URL, path or connection string"},
	FlagEmbeddingProv:      {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, openai)"},
	FlagEmbeddingTgt:       {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:     {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:      {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	FlagScorerProv:         {Name: "scorer-provider", ViperKey: "scorer.provider", Description: "Importance scorer provider (ollama, openai, anthropic, fixed)"},
	FlagScorerTgt:          {Name: "scorer-target", ViperKey: "scorer.target", Description: "Importance scorer URL"},
	FlagScorerModel:        {Name: "scorer-model", ViperKey: "scorer.model", Description: "Importance scorer model name"},
	FlagWeeklyThreshold:    {Name: "weekly-threshold", ViperKey: "memory.weekly_threshold", Description: "Minimum importance admitted to the weekly window"},
	FlagPromotionThreshold: {Name: "promotion-threshold", ViperKey: "memory.promotion_threshold", Description: "Minimum importance written to long-term memory"},
	FlagWorkers:            {Name: "workers", ViperKey: "memory.workers", Description: "Number of background scoring workers"},
	FlagEventsProv:         {Name: "events-provider", ViperKey: "events.provider", Description: "Promotion event publisher (nop, kafka)"},
	FlagEventsBrokers:      {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagRetention:          {Name: "retention", ViperKey: "retention.enabled", Description: "Enable the long-term retention job"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaults().GetString(def.ViperKey), def.Description)
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	def, ok := fs[key]
	if !ok {
		return
	}

	cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaults().GetUint(def.ViperKey), def.Description)
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaults().GetInt(def.ViperKey), def.Description)
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaults().GetBool(def.ViperKey), def.Description)
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
