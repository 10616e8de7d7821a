// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/papercomputeco/tiermem/pkg/vector"
)

const (
	apiRoot = "/api/v2/tenants/default_tenant/databases/default_database"

	// DefaultMaxRetries bounds the start-up heartbeat attempts.
	DefaultMaxRetries = 5
)

var errNotFound = errors.New("not found")

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu  sync.RWMutex
	ids map[string]string // collection name -> chroma id
}

// Ensure Driver implements vector.Driver.
var _ vector.Driver = (*Driver)(nil)

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// MaxRetries is the number of heartbeat attempts made by NewDriver.
	// Defaults to DefaultMaxRetries.
	MaxRetries int

	// RetryDelay is the initial delay between attempts. Defaults to 500ms.
	RetryDelay time.Duration

	// MaxRetryDelay caps the exponential delay. Defaults to 10s.
	MaxRetryDelay time.Duration

	Timeout time.Duration
}

// NewDriver creates a Chroma driver and waits for the server heartbeat.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	d := &Driver{
		baseURL:    strings.TrimRight(c.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "chroma"),
		ids:        map[string]string{},
	}

	if err := d.waitForHeartbeat(c); err != nil {
		return nil, err
	}

	d.logger.Info("connected to Chroma", "url", d.baseURL)
	return d, nil
}

func (d *Driver) waitForHeartbeat(c Config) error {
	attempts := c.MaxRetries
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	if c.RetryDelay > 0 {
		eb.InitialInterval = c.RetryDelay
	}
	eb.MaxInterval = 10 * time.Second
	if c.MaxRetryDelay > 0 {
		eb.MaxInterval = c.MaxRetryDelay
	}
	eb.Reset()

	err := backoff.RetryNotify(func() error {
		return d.do(context.Background(), http.MethodGet, "/api/v2/heartbeat", nil, nil)
	}, backoff.WithMaxRetries(eb, uint64(attempts-1)), func(err error, next time.Duration) {
		d.logger.Warn("chroma not ready, retrying", "error", err, "retry_in", next)
	})
	if err != nil {
		return fmt.Errorf("%w: %s after %d attempts: %v", vector.ErrConnection, d.baseURL, attempts, err)
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma %s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// collectionID resolves a collection name, optionally creating it. A missing
// collection with create=false yields "" and no error.
func (d *Driver) collectionID(ctx context.Context, name string, create bool) (string, error) {
	d.mu.RLock()
	id, ok := d.ids[name]
	d.mu.RUnlock()
	if ok {
		return id, nil
	}

	var collection chromaCollection
	var err error
	if create {
		err = d.do(ctx, http.MethodPost, apiRoot+"/collections", chromaCreateRequest{
			Name:        name,
			GetOrCreate: true,
			Metadata:    map[string]any{"hnsw:space": "cosine"},
		}, &collection)
	} else {
		err = d.do(ctx, http.MethodGet, apiRoot+"/collections/"+name, nil, &collection)
	}
	if errors.Is(err, errNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving collection %q: %w", name, err)
	}

	d.mu.Lock()
	d.ids[name] = collection.ID
	d.mu.Unlock()
	return collection.ID, nil
}

// where renders a filter as a Chroma where clause. Chroma rejects more than
// one top-level key, so multiple equalities are wrapped in $and.
func where(f vector.Filter) map[string]any {
	if len(f) == 0 {
		return nil
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	clauses := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, map[string]any{k: map[string]any{"$eq": f[k]}})
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return map[string]any{"$and": clauses}
}

// Add stores documents in one request.
func (d *Driver) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	id, err := d.collectionID(ctx, collection, true)
	if err != nil {
		return err
	}

	req := chromaAddRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]string, len(docs)),
		Documents:  make([]string, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = doc.Metadata
		req.Documents[i] = doc.Content
	}

	if err := d.do(ctx, http.MethodPost, apiRoot+"/collections/"+id+"/add", req, nil); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "collection", collection, "count", len(docs))
	return nil
}

// Query finds the topK nearest documents matching filter.
func (d *Driver) Query(ctx context.Context, collection string, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	id, err := d.collectionID(ctx, collection, false)
	if err != nil || id == "" {
		return []vector.QueryResult{}, err
	}

	var resp chromaQueryResponse
	err = d.do(ctx, http.MethodPost, apiRoot+"/collections/"+id+"/query", chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Where:           where(filter),
		Include:         []string{"documents", "metadatas", "distances"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	results := []vector.QueryResult{}
	if len(resp.IDs) == 0 {
		return results, nil
	}

	for i, docID := range resp.IDs[0] {
		result := vector.QueryResult{Document: vector.Document{ID: docID}}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) && resp.Documents[0][i] != nil {
			result.Content = *resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			result.Metadata = resp.Metadatas[0][i]
		}
		// Cosine distance is in [0, 2].
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			result.Score = 1 - resp.Distances[0][i]
		}
		results = append(results, result)
	}

	d.logger.Debug("queried chroma", "collection", collection, "results", len(results))
	return results, nil
}

// Scan returns every document in collection matching filter.
func (d *Driver) Scan(ctx context.Context, collection string, filter vector.Filter) ([]vector.Document, error) {
	id, err := d.collectionID(ctx, collection, false)
	if err != nil || id == "" {
		return []vector.Document{}, err
	}

	var resp chromaGetResponse
	err = d.do(ctx, http.MethodPost, apiRoot+"/collections/"+id+"/get", chromaGetRequest{
		Where:   where(filter),
		Include: []string{"documents", "metadatas"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}

	docs := make([]vector.Document, len(resp.IDs))
	for i, docID := range resp.IDs {
		docs[i].ID = docID
		if i < len(resp.Documents) && resp.Documents[i] != nil {
			docs[i].Content = *resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			docs[i].Metadata = resp.Metadatas[i]
		}
	}
	return docs, nil
}

// Delete removes documents by ID.
func (d *Driver) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	id, err := d.collectionID(ctx, collection, false)
	if err != nil || id == "" {
		return err
	}

	if err := d.do(ctx, http.MethodPost, apiRoot+"/collections/"+id+"/delete", chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma", "collection", collection, "count", len(ids))
	return nil
}

// Collections lists collection names.
func (d *Driver) Collections(ctx context.Context) ([]string, error) {
	var collections []chromaCollection
	if err := d.do(ctx, http.MethodGet, apiRoot+"/collections", nil, &collections); err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.Name
	}
	slices.Sort(names)
	return names, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}
