package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/papercomputeco/tiermem/pkg/config"
	"github.com/papercomputeco/tiermem/pkg/credentials"
	embeddingutils "github.com/papercomputeco/tiermem/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/tiermem/pkg/eventstream/utils"
	"github.com/papercomputeco/tiermem/pkg/importance"
	"github.com/papercomputeco/tiermem/pkg/longterm"
	"github.com/papercomputeco/tiermem/pkg/recency"
	"github.com/papercomputeco/tiermem/pkg/recency/inmemory"
	"github.com/papercomputeco/tiermem/pkg/recency/redis"
	reasoningutils "github.com/papercomputeco/tiermem/pkg/reasoning/utils"
	"github.com/papercomputeco/tiermem/pkg/retention"
	"github.com/papercomputeco/tiermem/pkg/tiered"
	vectorutils "github.com/papercomputeco/tiermem/pkg/vector/utils"
)

// stack is everything serve builds from a Config.
type stack struct {
	memory    *tiered.Memory
	compactor *retention.Compactor
}

func closeAll(cs ...io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}

// buildStack constructs every client from cfg. On error, whatever was
// already opened is closed.
func buildStack(ctx context.Context, cfg *config.Config, creds *credentials.Store, logger *slog.Logger) (*stack, error) {
	backend, err := newRecencyBackend(cfg.Cache)
	if err != nil {
		return nil, err
	}
	cache, err := recency.New(recency.Config{
		Backend:         backend,
		Namespace:       cfg.Cache.Namespace,
		WeeklyThreshold: cfg.Memory.WeeklyThreshold,
		Logger:          logger,
	})
	if err != nil {
		closeAll(backend)
		return nil, err
	}

	store, err := newLongTerm(ctx, cfg, creds, logger)
	if err != nil {
		closeAll(cache)
		return nil, err
	}

	scorer, err := newScorer(cfg.Scorer, creds, logger)
	if err != nil {
		closeAll(cache, store)
		return nil, err
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       logger,
	})
	if err != nil {
		closeAll(cache, store)
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	mem, err := tiered.New(tiered.Config{
		Recency:            cache,
		LongTerm:           store,
		Scorer:             scorer,
		Publisher:          publisher,
		WeeklyThreshold:    cfg.Memory.WeeklyThreshold,
		PromotionThreshold: cfg.Memory.PromotionThreshold,
		NumWorkers:         cfg.Memory.Workers,
		QueueSize:          cfg.Memory.QueueSize,
		RecallLimit:        cfg.Memory.RecallLimit,
		Logger:             logger,
	})
	if err != nil {
		closeAll(cache, store, publisher)
		return nil, err
	}

	s := &stack{memory: mem}
	if !cfg.Retention.Enabled {
		return s, nil
	}

	s.compactor, err = retention.New(retention.Config{
		Pruner:         store,
		Schedule:       cfg.Retention.Schedule,
		MaxAge:         config.Duration(cfg.Retention.MaxAge, retention.DefaultMaxAge),
		KeepImportance: cfg.Retention.KeepImportance,
		Logger:         logger,
	})
	if err != nil {
		closeAll(mem)
		return nil, err
	}
	return s, nil
}

func newRecencyBackend(c config.CacheConfig) (recency.Backend, error) {
	switch c.Provider {
	case "memory":
		return inmemory.New(time.Minute), nil
	case "redis":
		rc := redis.DefaultConfig()
		if c.Target != "" {
			rc.Addr = c.Target
		}
		rc.Password = c.Password
		rc.DB = c.DB
		b, err := redis.New(rc)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", rc.Addr, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", c.Provider)
	}
}

func newLongTerm(ctx context.Context, cfg *config.Config, creds *credentials.Store, logger *slog.Logger) (*longterm.Store, error) {
	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Dimensions:   cfg.Embedding.Dimensions,
		APIKey:       cfg.VectorStore.APIKey,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Credentials:  creds,
	})
	if err != nil {
		closeAll(driver)
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	store, err := longterm.New(longterm.Config{
		Driver:   driver,
		Embedder: embedder,
		Timeout:  config.Duration(cfg.Memory.WriteTimeout, longterm.DefaultTimeout),
		Logger:   logger,
	})
	if err != nil {
		closeAll(driver, embedder)
		return nil, err
	}
	return store, nil
}

func newScorer(c config.ScorerConfig, creds *credentials.Store, logger *slog.Logger) (importance.Scorer, error) {
	if c.Provider == "fixed" {
		return importance.Fixed(importance.DefaultScore), nil
	}

	reasoner, err := reasoningutils.NewReasoner(&reasoningutils.NewReasonerOpts{
		ProviderType: c.Provider,
		TargetURL:    c.Target,
		Model:        c.Model,
		Credentials:  creds,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scorer: %w", err)
	}

	return importance.New(importance.Config{
		Reasoner:      reasoner,
		Timeout:       config.Duration(c.Timeout, importance.DefaultTimeout),
		RatePerSecond: c.RatePerSecond,
		Logger:        logger,
	})
}
