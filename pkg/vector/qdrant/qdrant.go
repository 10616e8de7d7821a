// Package qdrant provides a Qdrant vector driver over the gRPC client.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/tiermem/pkg/vector"
)

const (
	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// Payload keys reserved by the driver.
	payloadID      = "doc_id"
	payloadContent = "content"

	scrollPage = 256
)

// Driver implements vector.Driver with one Qdrant collection per
// vector.Driver collection. Point IDs are UUIDv5 digests of document IDs so
// that deletes address points directly.
type Driver struct {
	client     *qc.Client
	dimensions uint64
	logger     *slog.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// Ensure Driver implements vector.Driver.
var _ vector.Driver = (*Driver)(nil)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is "host" or "host:port" of the gRPC endpoint.
	Target string

	APIKey string
	UseTLS bool

	// Dimensions is the vector size used when creating collections.
	Dimensions uint
}

// NewDriver creates a Qdrant driver.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Target == "" {
		return nil, errors.New("qdrant target is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, err
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	logger.Info("qdrant vector driver initialized", "host", host, "port", port)

	return &Driver{
		client:     client,
		dimensions: uint64(c.Dimensions),
		logger:     logger.With("component", "qdrant"),
		ensured:    map[string]bool{},
	}, nil
}

func splitTarget(target string) (string, int, error) {
	target = strings.TrimPrefix(strings.TrimPrefix(target, "http://"), "https://")
	if !strings.Contains(target, ":") {
		return target, DefaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

// PointID maps a document ID to its deterministic point UUID.
func PointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

// Conditions renders a filter as must-match payload conditions, sorted by key.
func Conditions(f vector.Filter) *qc.Filter {
	if len(f) == 0 {
		return nil
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	must := make([]*qc.Condition, 0, len(keys))
	for _, k := range keys {
		must = append(must, qc.NewMatch(k, f[k]))
	}
	return &qc.Filter{Must: must}
}

// Payload flattens a document into a point payload.
func Payload(doc vector.Document) map[string]any {
	payload := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		payload[k] = v
	}
	payload[payloadID] = doc.ID
	payload[payloadContent] = doc.Content
	return payload
}

// FromPayload restores a document from a point payload.
func FromPayload(payload map[string]*qc.Value) vector.Document {
	doc := vector.Document{Metadata: map[string]string{}}
	for k, v := range payload {
		switch k {
		case payloadID:
			doc.ID = v.GetStringValue()
		case payloadContent:
			doc.Content = v.GetStringValue()
		default:
			doc.Metadata[k] = v.GetStringValue()
		}
	}
	return doc
}

func (d *Driver) exists(ctx context.Context, collection string) (bool, error) {
	d.mu.Lock()
	ok := d.ensured[collection]
	d.mu.Unlock()
	if ok {
		return true, nil
	}

	exists, err := d.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("checking collection %q: %w", collection, err)
	}
	if exists {
		d.mu.Lock()
		d.ensured[collection] = true
		d.mu.Unlock()
	}
	return exists, nil
}

func (d *Driver) ensure(ctx context.Context, collection string) error {
	exists, err := d.exists(ctx, collection)
	if err != nil || exists {
		return err
	}

	err = d.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     d.dimensions,
			Distance: qc.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", collection, err)
	}

	d.mu.Lock()
	d.ensured[collection] = true
	d.mu.Unlock()
	return nil
}

// Add upserts documents in one request and waits for them to be applied.
func (d *Driver) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := d.ensure(ctx, collection); err != nil {
		return err
	}

	points := make([]*qc.PointStruct, len(docs))
	for i, doc := range docs {
		if uint64(len(doc.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: doc %s has %d, store has %d", vector.ErrDimensions, doc.ID, len(doc.Embedding), d.dimensions)
		}
		points[i] = &qc.PointStruct{
			Id:      qc.NewIDUUID(PointID(doc.ID)),
			Vectors: qc.NewVectors(doc.Embedding...),
			Payload: qc.NewValueMap(Payload(doc)),
		}
	}

	_, err := d.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: collection,
		Wait:           qc.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "collection", collection, "count", len(docs))
	return nil
}

// Query finds the topK nearest points matching filter.
func (d *Driver) Query(ctx context.Context, collection string, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	exists, err := d.exists(ctx, collection)
	if err != nil || !exists {
		return []vector.QueryResult{}, err
	}

	points, err := d.client.Query(ctx, &qc.QueryPoints{
		CollectionName: collection,
		Query:          qc.NewQuery(embedding...),
		Filter:         Conditions(filter),
		Limit:          qc.PtrOf(uint64(topK)),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: FromPayload(p.GetPayload()),
			Score:    p.GetScore(),
		})
	}
	return results, nil
}

// Scan pages through every point matching filter.
func (d *Driver) Scan(ctx context.Context, collection string, filter vector.Filter) ([]vector.Document, error) {
	exists, err := d.exists(ctx, collection)
	if err != nil || !exists {
		return []vector.Document{}, err
	}

	docs := []vector.Document{}
	var offset *qc.PointId
	for {
		points, err := d.client.Scroll(ctx, &qc.ScrollPoints{
			CollectionName: collection,
			Filter:         Conditions(filter),
			Limit:          qc.PtrOf(uint32(scrollPage + 1)),
			Offset:         offset,
			WithPayload:    qc.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scrolling points: %w", err)
		}

		// The extra point marks the start of the next page.
		page := points
		if len(points) > scrollPage {
			page = points[:scrollPage]
		}
		for _, p := range page {
			docs = append(docs, FromPayload(p.GetPayload()))
		}

		if len(points) <= scrollPage {
			return docs, nil
		}
		offset = points[scrollPage].GetId()
	}
}

// Delete removes points by document ID.
func (d *Driver) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	exists, err := d.exists(ctx, collection)
	if err != nil || !exists {
		return err
	}

	pointIDs := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qc.NewIDUUID(PointID(id))
	}

	_, err = d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: collection,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// Collections lists collection names.
func (d *Driver) Collections(ctx context.Context) ([]string, error) {
	names, err := d.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
