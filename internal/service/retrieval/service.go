package retrieval

import (
    "context"
    "fmt"

    "golang.org/x/sync/errgroup"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/internal/translate"
    "github.com/PrescottClub/aurawell-rag/pkg/embedding"
    "github.com/PrescottClub/aurawell-rag/pkg/llm"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/vectorstore"
)

// Translator 双语查询依赖
type Translator interface {
    QueryTranslation(ctx context.Context, userText string) models.BilingualQuery
}

// Embedder 查询向量化依赖
type Embedder interface {
    Embed(ctx context.Context, text string) ([]float32, error)
}

// Service 双通道检索引擎：原文和译文各查一路，
// 合并时原文通道优先，按 raw_text 精确去重。
type Service struct {
    translator Translator
    embedder   Embedder
    vectors    vectorstore.Store
    logger     logger.Logger
}

func NewService(translator Translator, embedder Embedder, vectors vectorstore.Store, log logger.Logger) *Service {
    return &Service{
        translator: translator,
        embedder:   embedder,
        vectors:    vectors,
        logger:     log,
    }
}

// GetService 按配置组装完整的生产依赖
func GetService(log logger.Logger) (*Service, error) {
    llmClient, err := llm.NewClient(log)
    if err != nil {
        return nil, fmt.Errorf("failed to initialize llm client: %w", err)
    }

    embedSvc, err := embedding.NewService(log)
    if err != nil {
        return nil, fmt.Errorf("failed to initialize embedding service: %w", err)
    }

    vectors, err := vectorstore.NewStore(config.GetAppConfig().VectorBackend, log)
    if err != nil {
        return nil, fmt.Errorf("failed to initialize vector store: %w", err)
    }

    return NewService(translate.NewTranslator(llmClient, log), embedSvc, vectors, log), nil
}

// RetrieveTopK 返回与查询最相关的至多 k 条原文片段。
// 两个语言通道各取 ceil(k/2) 条并行检索；翻译或译文通道失败时
// 退化为单通道，不报错。
func (s *Service) RetrieveTopK(ctx context.Context, userText string, k int) ([]string, error) {
    if k <= 0 {
        return nil, fmt.Errorf("k must be positive, got %d", k)
    }

    query := s.translator.QueryTranslation(ctx, userText)
    kPerChannel := (k + 1) / 2

    // 翻译失败时 Translate 返回原文，此时只查一个通道
    bilingual := query.Translated.Text != query.Original.Text

    var originalHits, translatedHits []vectorstore.Hit
    g, gctx := errgroup.WithContext(ctx)

    g.Go(func() error {
        hits, err := s.searchChannel(gctx, query.Original.Text, kPerChannel)
        if err != nil {
            return fmt.Errorf("original channel: %w", err)
        }
        originalHits = hits
        return nil
    })
    if bilingual {
        g.Go(func() error {
            hits, err := s.searchChannel(gctx, query.Translated.Text, kPerChannel)
            if err != nil {
                // 译文通道失败不拖垮整次检索
                s.logger.Warn("translated channel search failed",
                    logger.String("language", string(query.Translated.Language)),
                    logger.Error(err),
                )
                return nil
            }
            translatedHits = hits
            return nil
        })
    }
    if err := g.Wait(); err != nil {
        return nil, err
    }

    results := mergeHits(originalHits, translatedHits, k)
    s.logger.Info("retrieval finished",
        logger.String("language", string(query.Original.Language)),
        logger.Bool("bilingual", bilingual),
        logger.Int("k", k),
        logger.Int("results", len(results)),
    )
    return results, nil
}

func (s *Service) searchChannel(ctx context.Context, text string, topK int) ([]vectorstore.Hit, error) {
    vec, err := s.embedder.Embed(ctx, text)
    if err != nil {
        return nil, fmt.Errorf("embed query: %w", err)
    }
    return s.vectors.Query(ctx, vec, topK,
        []string{vectorstore.FieldRawText, vectorstore.FieldSubTitle})
}

// mergeHits 原文通道在前保持各自排名，raw_text 精确去重，截断到 k
func mergeHits(original, translated []vectorstore.Hit, k int) []string {
    seen := make(map[string]struct{}, len(original)+len(translated))
    var out []string
    for _, h := range append(original, translated...) {
        text := h.RawText()
        if text == "" {
            continue
        }
        if _, ok := seen[text]; ok {
            continue
        }
        seen[text] = struct{}{}
        out = append(out, text)
        if len(out) == k {
            break
        }
    }
    return out
}
