package testutils

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/papercomputeco/tiermem/pkg/vector"
)

// MockVectorDriver is an in-memory vector driver with exact cosine search.
type MockVectorDriver struct {
	mu          sync.Mutex
	collections map[string][]vector.Document

	// Err, when set, is returned by every operation.
	Err error
}

// Ensure MockVectorDriver implements vector.Driver.
var _ vector.Driver = (*MockVectorDriver)(nil)

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{collections: map[string][]vector.Document{}}
}

func (m *MockVectorDriver) Add(_ context.Context, collection string, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, doc := range docs {
		if slices.ContainsFunc(m.collections[collection], func(d vector.Document) bool { return d.ID == doc.ID }) {
			return fmt.Errorf("duplicate document id %s", doc.ID)
		}
	}
	m.collections[collection] = append(m.collections[collection], docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, collection string, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	results := []vector.QueryResult{}
	for _, doc := range m.collections[collection] {
		if !filter.Matches(doc.Metadata) {
			continue
		}
		results = append(results, vector.QueryResult{Document: doc, Score: cosine(embedding, doc.Embedding)})
	}

	slices.SortStableFunc(results, func(a, b vector.QueryResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorDriver) Scan(_ context.Context, collection string, filter vector.Filter) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return lo.Filter(m.collections[collection], func(d vector.Document, _ int) bool {
		return filter.Matches(d.Metadata)
	}), nil
}

func (m *MockVectorDriver) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.collections[collection] = lo.Reject(m.collections[collection], func(d vector.Document, _ int) bool {
		return slices.Contains(ids, d.ID)
	})
	return nil
}

func (m *MockVectorDriver) Collections(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	names := lo.Keys(m.collections)
	slices.Sort(names)
	return names, nil
}

// Documents returns a copy of a collection's documents in insertion order.
func (m *MockVectorDriver) Documents(collection string) []vector.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.collections[collection])
}

func (m *MockVectorDriver) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
