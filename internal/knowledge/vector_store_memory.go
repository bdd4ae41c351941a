package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
)

// memoryVectorStore 进程内向量存储，暴力余弦相似度检索。
// 默认provider，无外部依赖即可跑通整条链路，也用于单元测试。
type memoryVectorStore struct {
	mu      sync.RWMutex
	records map[string]VectorRecord
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{
		records: make(map[string]VectorRecord),
	}
}

func (s *memoryVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		s.records[record.ID] = record
	}
	return nil
}

func (s *memoryVectorStore) Query(ctx context.Context, query VectorQuery) ([]Match, error) {
	if len(query.Vector) == 0 {
		return nil, nil
	}
	topK := query.TopK
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.records))
	for _, record := range s.records {
		match := Match{
			ID:    record.ID,
			Score: cosineSimilarity(query.Vector, record.Values),
		}
		if query.IncludeMetadata {
			match.Metadata = record.Metadata
		}
		if query.IncludeValues {
			match.Values = record.Values
		}
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
