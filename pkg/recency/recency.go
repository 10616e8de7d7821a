// Package recency implements the short-term memory tier: per-scope lists of
// recent records bucketed into time windows, each bounded by a length cap and
// a time-to-live that is refreshed on every append.
package recency

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/metrics"
)

const (
	// DefaultNamespace prefixes every backend key.
	DefaultNamespace = "tiermem"

	// MergedLimit is the number of records returned by a merged read.
	MergedLimit = 10
)

// Config configures a Cache.
type Config struct {
	// Backend stores the window lists. Required.
	Backend Backend

	// Namespace prefixes every key. Defaults to DefaultNamespace.
	Namespace string

	// Windows overrides the caps and TTLs. Missing windows use the defaults.
	Windows map[Window]WindowSpec

	// WeeklyThreshold is the minimum importance admitted to Weekly.
	// Defaults to DefaultWeeklyThreshold.
	WeeklyThreshold int

	Logger *slog.Logger
}

// Cache is the recency tier. Reads never fail: a missing window or an
// unavailable backend yields an empty result. Writes log backend failures
// and carry on.
type Cache struct {
	backend         Backend
	namespace       string
	windows         map[Window]WindowSpec
	weeklyThreshold atomic.Int64
	logger          *slog.Logger
}

// New creates a Cache from the given configuration.
func New(c Config) (*Cache, error) {
	if c.Backend == nil {
		return nil, errors.New("recency backend is required")
	}

	windows := DefaultWindowSpecs()
	for w, spec := range c.Windows {
		if _, ok := windows[w]; !ok {
			return nil, ErrUnknownWindow
		}
		if spec.Cap > 0 {
			windows[w] = WindowSpec{Cap: spec.Cap, TTL: windows[w].TTL}
		}
		if spec.TTL > 0 {
			windows[w] = WindowSpec{Cap: windows[w].Cap, TTL: spec.TTL}
		}
	}

	namespace := c.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cache := &Cache{
		backend:   c.Backend,
		namespace: namespace,
		windows:   windows,
		logger:    logger.With("component", "recency"),
	}

	threshold := c.WeeklyThreshold
	if threshold <= 0 {
		threshold = DefaultWeeklyThreshold
	}
	cache.weeklyThreshold.Store(int64(threshold))

	return cache, nil
}

// Spec returns the cap and TTL in effect for a window.
func (c *Cache) Spec(w Window) WindowSpec {
	return c.windows[w]
}

// WeeklyThreshold returns the importance needed to enter the Weekly window.
func (c *Cache) WeeklyThreshold() int {
	return int(c.weeklyThreshold.Load())
}

// SetWeeklyThreshold changes the Weekly admission threshold at runtime.
func (c *Cache) SetWeeklyThreshold(n int) {
	c.weeklyThreshold.Store(int64(memory.ClampImportance(n)))
}

// Key returns the backend key for a scope and window. Scope parts are
// query-escaped so ids containing ':' cannot collide with another scope.
func (c *Cache) Key(scope memory.Scope, w Window) string {
	parts := []string{c.namespace, url.QueryEscape(scope.OwnerID), url.QueryEscape(scope.ActorID)}
	if scope.TopicTag != "" {
		parts = append(parts, url.QueryEscape(scope.TopicTag))
	}
	parts = append(parts, string(w))
	return strings.Join(parts, ":")
}

// Append prepends rec to the window for its scope, truncates the window to
// its cap and resets the window's TTL. Backend errors are logged.
func (c *Cache) Append(ctx context.Context, rec memory.Record, w Window) {
	spec, ok := c.windows[w]
	if !ok {
		c.logger.Warn("append to unknown window", "window", w)
		return
	}

	rec.Importance = memory.ClampImportance(rec.Importance)
	payload, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error("encoding recency record", "error", err)
		return
	}

	err = c.backend.Push(ctx, c.Key(rec.Scope(), w), payload, spec.Cap, spec.TTL)
	metrics.RecordRecencyWrite(string(w), err)
	if err != nil {
		c.logger.Warn("recency write failed",
			"owner_id", rec.OwnerID,
			"actor_id", rec.ActorID,
			"window", w,
			"error", err,
		)
	}
}

// AppendIfImportant writes rec to Recent and Today, and to Weekly when its
// importance meets the weekly threshold.
func (c *Cache) AppendIfImportant(ctx context.Context, rec memory.Record) {
	c.Append(ctx, rec, Recent)
	c.Append(ctx, rec, Today)
	if memory.ClampImportance(rec.Importance) >= c.WeeklyThreshold() {
		c.Append(ctx, rec, Weekly)
	}
}

// Records returns the window's records, newest first.
func (c *Cache) Records(ctx context.Context, scope memory.Scope, w Window) []memory.Record {
	if _, ok := c.windows[w]; !ok {
		return []memory.Record{}
	}

	payloads, err := c.backend.Range(ctx, c.Key(scope, w))
	if err != nil {
		c.logger.Warn("recency read failed",
			"owner_id", scope.OwnerID,
			"actor_id", scope.ActorID,
			"window", w,
			"error", err,
		)
		return []memory.Record{}
	}

	records := make([]memory.Record, 0, len(payloads))
	for _, payload := range payloads {
		var rec memory.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			c.logger.Debug("skipping undecodable recency entry", "window", w, "error", err)
			continue
		}
		if rec.Scope() != scope {
			c.logger.Warn("skipping recency entry from another scope",
				"owner_id", scope.OwnerID,
				"actor_id", scope.ActorID,
				"window", w,
			)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Read returns the window's records as formatted lines, newest first.
func (c *Cache) Read(ctx context.Context, scope memory.Scope, w Window) []string {
	return memory.FormatAll(c.Records(ctx, scope, w))
}

// MergedRecords returns the union of Recent and Today for the scope with
// exact-text duplicates removed, ordered oldest to newest, limited to the
// MergedLimit most recent records.
func (c *Cache) MergedRecords(ctx context.Context, scope memory.Scope) []memory.Record {
	combined := append(c.Records(ctx, scope, Recent), c.Records(ctx, scope, Today)...)
	unique := lo.UniqBy(combined, func(r memory.Record) string {
		return r.Format()
	})

	slices.SortStableFunc(unique, func(a, b memory.Record) int {
		return cmp.Compare(a.Timestamp.UnixNano(), b.Timestamp.UnixNano())
	})

	if len(unique) > MergedLimit {
		unique = unique[len(unique)-MergedLimit:]
	}
	return unique
}

// ReadMerged returns MergedRecords as formatted lines.
func (c *Cache) ReadMerged(ctx context.Context, scope memory.Scope) []string {
	return memory.FormatAll(c.MergedRecords(ctx, scope))
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
