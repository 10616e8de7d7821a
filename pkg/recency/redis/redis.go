// Package redis provides a Redis-backed recency.Backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/tiermem/pkg/recency"
)

// Backend stores recency windows as Redis lists.
type Backend struct {
	client goredis.UniversalClient
}

// Ensure Backend implements recency.Backend.
var _ recency.Backend = (*Backend)(nil)

// Config holds connection settings for a Redis server or cluster.
type Config struct {
	// Addr is the single-node address, e.g. "localhost:6379".
	Addr     string
	Password string
	DB       int

	// ClusterAddrs switches to a cluster client when set.
	ClusterAddrs []string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config) (*Backend, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	var client goredis.UniversalClient
	if len(cfg.ClusterAddrs) > 0 {
		client = goredis.NewClusterClient(&goredis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	} else {
		client = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Backend{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client goredis.UniversalClient) *Backend {
	return &Backend{client: client}
}

// Push prepends payload, trims the list to limit entries and resets the
// key's TTL inside a single MULTI/EXEC transaction.
func (b *Backend) Push(ctx context.Context, key string, payload []byte, limit int, ttl time.Duration) error {
	if limit <= 0 {
		return errors.New("list limit must be positive")
	}

	_, err := b.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(limit-1))
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pushing to %s: %w", key, err)
	}
	return nil
}

// Range returns the list at key, newest first.
func (b *Backend) Range(ctx context.Context, key string) ([][]byte, error) {
	values, err := b.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return [][]byte{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}
