package embedding

import (
    "context"
    "fmt"
    "math"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// Client 向量化后端客户端接口
type Client interface {
    EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
    Dimensions() int
}

// Service 在客户端之上做批量切分：后端一次只接受有限条数，
// 超出的输入按批提交，输出按原始顺序还原。
type Service struct {
    cfg    *config.EmbeddingConfig
    client Client
    log    logger.Logger
}

func NewService(log logger.Logger) (*Service, error) {
    cfg := config.GetEmbeddingConfig()
    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    return &Service{
        cfg:    cfg,
        client: newRESTClient(cfg),
        log:    log,
    }, nil
}

// NewServiceWithClient 注入自定义后端，测试用
func NewServiceWithClient(cfg *config.EmbeddingConfig, client Client, log logger.Logger) *Service {
    return &Service{cfg: cfg, client: client, log: log}
}

// Embed 向量化单条文本
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
    if text == "" {
        return nil, fmt.Errorf("cannot embed empty text")
    }
    vectors, err := s.EmbedBatch(ctx, []string{text})
    if err != nil {
        return nil, err
    }
    return vectors[0], nil
}

// EmbedBatch 向量化多条文本，结果与输入一一对应。
// 空串不发给后端，对应位置返回 nil 向量。
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
    if len(texts) == 0 {
        return nil, nil
    }

    validTexts := make([]string, 0, len(texts))
    validIndices := make([]int, 0, len(texts))
    for i, text := range texts {
        if text != "" {
            validTexts = append(validTexts, text)
            validIndices = append(validIndices, i)
        }
    }
    if len(validTexts) == 0 {
        return nil, fmt.Errorf("no valid texts to embed")
    }

    batchSize := s.cfg.BatchLimit
    if batchSize <= 0 {
        batchSize = 10
    }

    results := make([][]float32, len(texts))
    for i := 0; i < len(validTexts); i += batchSize {
        end := i + batchSize
        if end > len(validTexts) {
            end = len(validTexts)
        }

        embeddings, err := s.client.EmbedBatch(ctx, validTexts[i:end])
        if err != nil {
            return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
        }
        for j, emb := range embeddings {
            results[validIndices[i+j]] = emb
        }
    }
    return results, nil
}

// Dimensions 返回向量维度
func (s *Service) Dimensions() int {
    return s.client.Dimensions()
}

// Similarity 两个向量的余弦相似度
func Similarity(a, b []float32) float32 {
    if len(a) != len(b) {
        panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
    }

    var dot, normA, normB float32
    for i := 0; i < len(a); i++ {
        dot += a[i] * b[i]
        normA += a[i] * a[i]
        normB += b[i] * b[i]
    }
    if normA == 0 || normB == 0 {
        return 0
    }
    return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
