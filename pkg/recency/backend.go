package recency

import (
	"context"
	"time"
)

// Backend is a keyed list store with push-to-front, trim and expire
// primitives. Implementations must apply Push atomically per key so that a
// list never exceeds its limit, even under concurrent writers.
type Backend interface {
	// Push prepends payload to the list at key, trims the list to limit
	// entries and resets the key's time-to-live to ttl.
	Push(ctx context.Context, key string, payload []byte, limit int, ttl time.Duration) error

	// Range returns the list at key in push order (newest first). A missing
	// or expired key yields an empty result and no error.
	Range(ctx context.Context, key string) ([][]byte, error)

	// Close releases backend resources.
	Close() error
}
