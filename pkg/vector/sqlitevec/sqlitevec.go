// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	sq "github.com/Masterminds/squirrel"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/tiermem/pkg/vector"
)

// Driver implements vector.Driver using SQLite with sqlite-vec.
//
// Document rows live in memory_documents; their embeddings live in the
// memory_embeddings vec0 table under the same rowid. Filtered queries
// compute exact cosine distance over the matching rows.
type Driver struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// Ensure Driver implements vector.Driver.
var _ vector.Driver = (*Driver)(nil)

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver opens the database and creates the tables if needed.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS memory_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			UNIQUE(collection, doc_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_documents_collection ON memory_documents(collection)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS memory_embeddings USING vec0(embedding float[%d])`, c.Dimensions),
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:         db,
		dimensions: int(c.Dimensions),
		logger:     logger.With("component", "sqlitevec"),
	}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func withFilter(q sq.SelectBuilder, collection string, f vector.Filter) sq.SelectBuilder {
	q = q.Where(sq.Eq{"d.collection": collection})

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		q = q.Where("json_extract(d.metadata, ?) = ?", "$."+k, f[k])
	}
	return q
}

// Add inserts documents in a single transaction.
func (d *Driver) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if len(doc.Embedding) != d.dimensions {
			return fmt.Errorf("%w: doc %s has %d, store has %d", vector.ErrDimensions, doc.ID, len(doc.Embedding), d.dimensions)
		}

		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for doc %s: %w", doc.ID, err)
		}

		result, err := sq.Insert("memory_documents").
			Columns("collection", "doc_id", "content", "metadata").
			Values(collection, doc.ID, doc.Content, string(metadata)).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("inserting document %s: %w", doc.ID, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(doc.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec", "collection", collection, "count", len(docs))
	return nil
}

// Query ranks the filtered rows of collection by cosine distance.
func (d *Driver) Query(ctx context.Context, collection string, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if len(embedding) != d.dimensions {
		return nil, fmt.Errorf("%w: query has %d, store has %d", vector.ErrDimensions, len(embedding), d.dimensions)
	}

	q := sq.Select("d.doc_id", "d.content", "d.metadata").
		Column(sq.Expr("vec_distance_cosine(e.embedding, ?) AS distance", serializeFloat32(embedding))).
		From("memory_documents d").
		Join("memory_embeddings e ON e.rowid = d.rowid")
	q = withFilter(q, collection, filter).
		OrderBy("distance").
		Limit(uint64(topK))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := []vector.QueryResult{}
	for rows.Next() {
		var (
			result   vector.QueryResult
			metadata string
			distance float64
		)
		if err := rows.Scan(&result.ID, &result.Content, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &result.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for doc %s: %w", result.ID, err)
		}
		result.Score = float32(1 - distance)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "collection", collection, "results", len(results))
	return results, nil
}

// Scan returns the filtered documents of collection in insertion order.
func (d *Driver) Scan(ctx context.Context, collection string, filter vector.Filter) ([]vector.Document, error) {
	q := withFilter(sq.Select("d.doc_id", "d.content", "d.metadata").From("memory_documents d"), collection, filter).
		OrderBy("d.rowid")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning documents: %w", err)
	}
	defer rows.Close()

	docs := []vector.Document{}
	for rows.Next() {
		var (
			doc      vector.Document
			metadata string
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for doc %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// Delete removes documents and their embeddings in one transaction.
func (d *Driver) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	match := sq.Eq{"collection": collection, "doc_id": ids}

	query, args, err := sq.Select("rowid").From("memory_documents").Where(match).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	// vec0 tables only support single-row deletes by rowid.
	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE rowid = ?`, rowID); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := sq.Delete("memory_documents").Where(match).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted documents from sqlite-vec", "collection", collection, "count", len(rowIDs))
	return nil
}

// Collections lists the distinct collection names.
func (d *Driver) Collections(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("DISTINCT collection").From("memory_documents").OrderBy("collection").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}
