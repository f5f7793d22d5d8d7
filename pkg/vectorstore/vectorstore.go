package vectorstore

import (
    "context"
    "fmt"
    "strings"

    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// 向量记录携带的元数据字段
const (
    FieldRawText  = "raw_text"
    FieldSubTitle = "sub_title"
)

// Hit 单条检索命中
type Hit struct {
    ID       string
    Score    float32
    Metadata map[string]string
}

// RawText 命中的原文字段
func (h Hit) RawText() string {
    return h.Metadata[FieldRawText]
}

// Store 向量库客户端。写入只追加：每次 Insert 生成新 id，
// 不查重也不覆盖既有内容。
type Store interface {
    // EnsureCollection 确保集合存在，不存在则按维度创建
    EnsureCollection(ctx context.Context, dim int) error
    // Insert 写入一条向量记录，返回分配的 id
    Insert(ctx context.Context, vector []float32, metadata map[string]string) (string, error)
    // Query 相似度检索，outputFields 指定要带回的元数据字段
    Query(ctx context.Context, vector []float32, topK int, outputFields []string) ([]Hit, error)
    Close() error
}

// NewStore 按后端名创建向量库客户端
func NewStore(backend string, log logger.Logger) (Store, error) {
    switch strings.ToLower(backend) {
    case "qdrant", "":
        return NewQdrantStore(log)
    case "memory":
        return NewMemoryStore(), nil
    default:
        return nil, fmt.Errorf("unsupported vector store backend: %s", backend)
    }
}
