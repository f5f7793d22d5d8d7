package vectorstore

import (
    "context"
    "fmt"
    "sort"
    "sync"

    "github.com/google/uuid"

    "github.com/PrescottClub/aurawell-rag/pkg/embedding"
)

// MemoryStore 暴力余弦检索的内存实现，测试和本地开发用
type MemoryStore struct {
    mu      sync.RWMutex
    dim     int
    ids     []string
    vectors [][]float32
    meta    []map[string]string
}

func NewMemoryStore() *MemoryStore {
    return &MemoryStore{}
}

func (m *MemoryStore) EnsureCollection(ctx context.Context, dim int) error {
    if dim <= 0 {
        return fmt.Errorf("invalid dimension: %d", dim)
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.dim != 0 && m.dim != dim {
        return fmt.Errorf("collection already exists with dimension %d", m.dim)
    }
    m.dim = dim
    return nil
}

func (m *MemoryStore) Insert(ctx context.Context, vector []float32, metadata map[string]string) (string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.dim == 0 {
        return "", fmt.Errorf("collection not initialized")
    }
    if len(vector) != m.dim {
        return "", fmt.Errorf("vector dimension mismatch: want %d got %d", m.dim, len(vector))
    }

    id := uuid.NewString()
    metaCopy := make(map[string]string, len(metadata))
    for k, v := range metadata {
        metaCopy[k] = v
    }
    m.ids = append(m.ids, id)
    m.vectors = append(m.vectors, vector)
    m.meta = append(m.meta, metaCopy)
    return id, nil
}

func (m *MemoryStore) Query(ctx context.Context, vector []float32, topK int, outputFields []string) ([]Hit, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if topK <= 0 {
        return nil, nil
    }

    type scored struct {
        idx   int
        score float32
    }
    scores := make([]scored, len(m.vectors))
    for i, v := range m.vectors {
        scores[i] = scored{idx: i, score: embedding.Similarity(v, vector)}
    }
    sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

    if topK > len(scores) {
        topK = len(scores)
    }
    hits := make([]Hit, 0, topK)
    for _, s := range scores[:topK] {
        meta := m.meta[s.idx]
        out := make(map[string]string)
        if len(outputFields) == 0 {
            for k, v := range meta {
                out[k] = v
            }
        } else {
            for _, f := range outputFields {
                if v, ok := meta[f]; ok {
                    out[f] = v
                }
            }
        }
        hits = append(hits, Hit{ID: m.ids[s.idx], Score: s.score, Metadata: out})
    }
    return hits, nil
}

// Len 当前记录条数，测试断言用
func (m *MemoryStore) Len() int {
    m.mu.RLock()
    defer m.mu.RUnlock()
    return len(m.ids)
}

func (m *MemoryStore) Close() error {
    return nil
}
