package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// MockDimensions is the size of MockEmbedder vectors.
const MockDimensions = 256

// MockEmbedder is a test embedder that hashes words into a fixed number of
// buckets, so texts sharing words land close together.
type MockEmbedder struct {
	mu         sync.Mutex
	embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches.
	FailOn string

	// Err, when set, is returned by every call.
	Err error

	calls atomic.Int64
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{embeddings: map[string][]float32{}}
}

// Set pins the embedding returned for text.
func (m *MockEmbedder) Set(text string, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[text] = embedding
}

// Calls reports how many times Embed ran.
func (m *MockEmbedder) Calls() int {
	return int(m.calls.Load())
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)

	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	m.mu.Lock()
	emb, ok := m.embeddings[text]
	m.mu.Unlock()
	if ok {
		return emb, nil
	}

	return BagOfWords(text), nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

// BagOfWords returns the normalized word-bucket vector for text.
func BagOfWords(text string) []float32 {
	v := make([]float32, MockDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%MockDimensions]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / math.Sqrt(norm))
	}
	return v
}
