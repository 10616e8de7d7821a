// Package inmemory provides a process-local recency.Backend for single-node
// deployments and tests.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/papercomputeco/tiermem/pkg/recency"
)

// DefaultCleanupInterval is how often expired windows are purged.
const DefaultCleanupInterval = 5 * time.Minute

type list struct {
	items   [][]byte
	expires time.Time
}

// Backend keeps recency windows in a go-cache map. A single mutex serializes
// pushes so the trim-to-limit step is atomic per key.
type Backend struct {
	mu    sync.Mutex
	cache *gocache.Cache
	now   func() time.Time
}

// Ensure Backend implements recency.Backend.
var _ recency.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces the wall clock used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates an in-memory backend.
func New(cleanupInterval time.Duration, opts ...Option) *Backend {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	b := &Backend{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Push prepends payload, trims to limit and resets the TTL.
func (b *Backend) Push(_ context.Context, key string, payload []byte, limit int, ttl time.Duration) error {
	if limit <= 0 {
		return errors.New("list limit must be positive")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var existing [][]byte
	if current, ok := b.live(key); ok {
		existing = current.items
	}

	items := make([][]byte, 0, min(len(existing)+1, limit))
	items = append(items, payload)
	for _, item := range existing {
		if len(items) == limit {
			break
		}
		items = append(items, item)
	}

	entry := &list{items: items}
	expiration := gocache.NoExpiration
	if ttl > 0 {
		entry.expires = b.now().Add(ttl)
		expiration = ttl
	}
	b.cache.Set(key, entry, expiration)
	return nil
}

// Range returns a copy of the list at key, newest first.
func (b *Backend) Range(_ context.Context, key string) ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.live(key)
	if !ok {
		return [][]byte{}, nil
	}

	out := make([][]byte, len(current.items))
	copy(out, current.items)
	return out, nil
}

// Close drops every window.
func (b *Backend) Close() error {
	b.cache.Flush()
	return nil
}

// live returns the list at key unless it has expired on the backend clock.
func (b *Backend) live(key string) (*list, bool) {
	value, ok := b.cache.Get(key)
	if !ok {
		return nil, false
	}
	current, _ := value.(*list)
	if current == nil {
		return nil, false
	}
	if !current.expires.IsZero() && !b.now().Before(current.expires) {
		b.cache.Delete(key)
		return nil, false
	}
	return current, true
}
