package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store with the same filter and ranking
// semantics as the Postgres adapter. It backs tests and the RAG playground.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]memEntry
}

type memEntry struct {
	vector  []float32
	payload Payload
}

func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{dim: dim, entries: make(map[string]memEntry)}
}

func (s *MemoryStore) Upsert(_ context.Context, id string, vector []float32, payload Payload) error {
	if len(vector) != s.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, store expects %d", len(vector), s.dim)
	}
	v := make([]float32, len(vector))
	copy(v, vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memEntry{vector: v, payload: payload}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, limit int, filter *Filter) ([]SearchResult, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("vector dimension mismatch: got %d, store expects %d", len(vector), s.dim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for id, e := range s.entries {
		if !filter.Matches(e.payload.OwnerBotID, e.payload.IsGlobal) {
			continue
		}
		results = append(results, SearchResult{
			ID:      id,
			Score:   cosineSimilarity(vector, e.vector),
			Payload: e.payload,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
