// Package vector provides interfaces and implementations for collection-scoped
// vector storage with metadata filtering.
package vector

import "context"

// Document is a stored item with its embedding and metadata.
type Document struct {
	// ID uniquely identifies the document within its collection.
	ID string

	// Content is the text the embedding was computed from.
	Content string

	// Metadata holds flat string attributes usable in equality filters.
	Metadata map[string]string

	// Embedding is the vector representation of Content. Scan may leave it
	// empty.
	Embedding []float32
}

// QueryResult is a search hit with its similarity score.
type QueryResult struct {
	Document

	// Score is the similarity to the query (higher = more similar).
	Score float32
}

// Filter restricts results to documents whose metadata equals every entry.
type Filter map[string]string

// Matches reports whether metadata satisfies every equality in f.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, v := range f {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// Driver handles collection-scoped storage and retrieval of embeddings.
// A collection is created on first Add; reading a collection that does not
// exist yields an empty result, not an error.
type Driver interface {
	// Add stores documents in collection, creating the collection if needed.
	// Each call is all-or-nothing.
	Add(ctx context.Context, collection string, docs []Document) error

	// Query returns up to topK documents nearest to embedding, restricted to
	// filter, ordered by descending score.
	Query(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]QueryResult, error)

	// Scan returns every document in collection matching filter.
	Scan(ctx context.Context, collection string, filter Filter) ([]Document, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, collection string, ids []string) error

	// Collections lists the known collection names.
	Collections(ctx context.Context) ([]string, error)

	// Close releases any resources held by the driver.
	Close() error
}
