// Package longterm implements the durable memory tier: records are embedded
// and stored in one vector collection per owner, and recalled by semantic
// similarity with metadata filters.
package longterm

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/papercomputeco/tiermem/pkg/embeddings"
	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/metrics"
	"github.com/papercomputeco/tiermem/pkg/vector"
)

// DefaultTimeout bounds each Store and Query call.
const DefaultTimeout = 5 * time.Second

// Metadata keys written alongside every document.
const (
	KeyTimestamp  = "timestamp"
	KeyType       = "type"
	KeyActorID    = "actor_id"
	KeyOwnerID    = "owner_id"
	KeyImportance = "importance"
	KeyTopicTag   = "topic_tag"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Config configures a Store.
type Config struct {
	Driver   vector.Driver
	Embedder embeddings.Embedder

	// Timeout bounds each operation. Defaults to DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Store is the long-term tier.
type Store struct {
	driver   vector.Driver
	embedder embeddings.Embedder
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Store.
func New(c Config) (*Store, error) {
	if c.Driver == nil {
		return nil, errors.New("vector driver is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		driver:   c.Driver,
		embedder: c.Embedder,
		timeout:  timeout,
		logger:   logger.With("component", "longterm"),
	}, nil
}

// maxNameLen bounds the readable part of a collection name so the whole
// name stays within Chroma's 63 character limit.
const maxNameLen = 36

// CollectionName returns the collection holding owner's memories: a
// sanitized, readable form of the owner id followed by a digest of the raw
// id, so owners that sanitize alike never share a collection.
func CollectionName(owner string) string {
	name := unsafeChars.ReplaceAllString(strings.ToLower(owner), "_")
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	sum := sha256.Sum256([]byte(owner))
	return "user_" + name + "_" + hex.EncodeToString(sum[:6]) + "_memories"
}

// IsCollection reports whether name follows the per-owner naming scheme.
func IsCollection(name string) bool {
	return strings.HasPrefix(name, "user_") && strings.HasSuffix(name, "_memories")
}

// NewID derives a record id. The ulid suffix keeps ids distinct for identical
// records written in the same nanosecond.
func NewID(rec memory.Record) string {
	return fmt.Sprintf("%s_%s_%s_%d_%s",
		rec.OwnerID, rec.Type, rec.ActorID, rec.Timestamp.UnixNano(), ulid.Make())
}

// Metadata returns the flat metadata stored with rec.
func Metadata(rec memory.Record) map[string]string {
	return map[string]string{
		KeyTimestamp:  rec.Timestamp.UTC().Format(time.RFC3339Nano),
		KeyType:       rec.Type,
		KeyActorID:    rec.ActorID,
		KeyOwnerID:    rec.OwnerID,
		KeyImportance: strconv.Itoa(memory.ClampImportance(rec.Importance)),
		KeyTopicTag:   rec.TopicTag,
	}
}

// FromDocument rebuilds a record from a stored document. Unparseable
// metadata falls back to zero time and provisional importance.
func FromDocument(doc vector.Document) memory.Record {
	md := doc.Metadata
	ts, _ := time.Parse(time.RFC3339Nano, md[KeyTimestamp])

	importance, err := strconv.Atoi(md[KeyImportance])
	if err != nil {
		importance = memory.ProvisionalImportance
	}

	return memory.Record{
		ID:         doc.ID,
		OwnerID:    md[KeyOwnerID],
		ActorID:    md[KeyActorID],
		Content:    doc.Content,
		Type:       md[KeyType],
		Timestamp:  ts,
		Importance: memory.ClampImportance(importance),
		TopicTag:   md[KeyTopicTag],
	}
}

// Store embeds rec and inserts it into its owner's collection, returning the
// assigned id. Nothing is written when embedding fails.
func (s *Store) Store(ctx context.Context, rec memory.Record) (string, error) {
	if rec.OwnerID == "" {
		return "", memory.ErrOwnerRequired
	}
	if strings.TrimSpace(rec.Content) == "" {
		return "", memory.ErrEmptyContent
	}
	if rec.Type == "" {
		rec.Type = memory.TypeChat
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.store(ctx, rec)
	metrics.RecordLongTerm("store", err)
	if err != nil {
		s.logger.Warn("long-term write failed",
			"owner_id", rec.OwnerID,
			"actor_id", rec.ActorID,
			"error", err,
		)
		return "", err
	}

	s.logger.Debug("long-term write",
		"id", id,
		"owner_id", rec.OwnerID,
		"importance", rec.Importance,
	)
	return id, nil
}

func (s *Store) store(ctx context.Context, rec memory.Record) (string, error) {
	embedding, err := s.embedder.Embed(ctx, rec.Content)
	if err != nil {
		return "", fmt.Errorf("embedding content: %w", err)
	}

	doc := vector.Document{
		ID:        NewID(rec),
		Content:   rec.Content,
		Metadata:  Metadata(rec),
		Embedding: embedding,
	}
	if err := s.driver.Add(ctx, CollectionName(rec.OwnerID), []vector.Document{doc}); err != nil {
		return "", fmt.Errorf("adding document: %w", err)
	}
	return doc.ID, nil
}

// Query returns the owner's records most similar to q.Text, filtered by
// q.Type and q.ActorID when set. A blank text returns the newest records.
// Failures are logged and yield an empty slice.
func (s *Store) Query(ctx context.Context, q memory.Query) []memory.Record {
	if q.OwnerID == "" {
		return []memory.Record{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.query(ctx, q)
	metrics.RecordLongTerm("query", err)
	if err != nil {
		s.logger.Warn("long-term query failed",
			"owner_id", q.OwnerID,
			"error", err,
		)
		return []memory.Record{}
	}
	return records
}

func (s *Store) query(ctx context.Context, q memory.Query) ([]memory.Record, error) {
	collection := CollectionName(q.OwnerID)
	limit := q.NormalizedLimit()
	filter := vector.Filter{KeyOwnerID: q.OwnerID}
	if q.Type != "" {
		filter[KeyType] = q.Type
	}
	if q.ActorID != "" {
		filter[KeyActorID] = q.ActorID
	}

	if strings.TrimSpace(q.Text) == "" {
		docs, err := s.driver.Scan(ctx, collection, filter)
		if err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		records := make([]memory.Record, 0, len(docs))
		for _, doc := range docs {
			records = append(records, FromDocument(doc))
		}
		slices.SortStableFunc(records, func(a, b memory.Record) int {
			return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
		})
		return records[:min(limit, len(records))], nil
	}

	embedding, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.driver.Query(ctx, collection, embedding, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	records := make([]memory.Record, 0, len(results))
	for _, r := range results {
		// Backends that cannot push the owner filter down still get it here.
		if r.Metadata[KeyOwnerID] != q.OwnerID {
			continue
		}
		records = append(records, FromDocument(r.Document))
	}
	return records, nil
}

// Prune deletes records written before cutoff whose importance is below
// keepImportance, across every owner collection. It returns the number of
// deleted records.
func (s *Store) Prune(ctx context.Context, cutoff time.Time, keepImportance int) (int, error) {
	collections, err := s.driver.Collections(ctx)
	if err != nil {
		metrics.RecordLongTerm("prune", err)
		return 0, fmt.Errorf("listing collections: %w", err)
	}

	deleted := 0
	var errs []error
	for _, name := range collections {
		if !IsCollection(name) {
			continue
		}

		n, err := s.pruneCollection(ctx, name, cutoff, keepImportance)
		deleted += n
		if err != nil {
			errs = append(errs, fmt.Errorf("pruning %s: %w", name, err))
		}
	}

	err = errors.Join(errs...)
	metrics.RecordLongTerm("prune", err)
	return deleted, err
}

func (s *Store) pruneCollection(ctx context.Context, name string, cutoff time.Time, keepImportance int) (int, error) {
	docs, err := s.driver.Scan(ctx, name, nil)
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, doc := range docs {
		rec := FromDocument(doc)
		if rec.Timestamp.IsZero() || !rec.Timestamp.Before(cutoff) {
			continue
		}
		if rec.Importance >= keepImportance {
			continue
		}
		ids = append(ids, doc.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.driver.Delete(ctx, name, ids); err != nil {
		return 0, err
	}
	s.logger.Info("pruned long-term records", "collection", name, "count", len(ids))
	return len(ids), nil
}

// Close releases the driver and embedder.
func (s *Store) Close() error {
	return errors.Join(s.driver.Close(), s.embedder.Close())
}
