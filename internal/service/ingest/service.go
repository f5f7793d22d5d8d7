package ingest

import (
    "bytes"
    "context"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/internal/extract"
    "github.com/PrescottClub/aurawell-rag/internal/fileindex"
    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/internal/parser"
    "github.com/PrescottClub/aurawell-rag/pkg/embedding"
    "github.com/PrescottClub/aurawell-rag/pkg/llm"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/storage"
    "github.com/PrescottClub/aurawell-rag/pkg/vectorstore"
)

// UploadPrefix 上传文件在对象存储中的目录
const UploadPrefix = "uploads/"

// ContentPrefix 抽取出的 markdown 镜像目录
const ContentPrefix = "contents/"

// Embedder 向量化依赖，由 pkg/embedding 的 Service 实现
type Embedder interface {
    EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
    Dimensions() int
}

// Filter 高密度过滤依赖
type Filter interface {
    Filter(ctx context.Context, fullText string) ([]models.ExtractedSegment, error)
}

// Service 摄取编排器：解析 → 抽取 → 过滤 → 向量化 → 更新索引，
// 整条流水线按文件幂等。
type Service struct {
    storage  storage.Storage
    index    *fileindex.Store
    parser   parser.Client
    filter   Filter
    embedder Embedder
    vectors  vectorstore.Store
    logger   logger.Logger
    config   *ServiceConfig
}

type ServiceConfig struct {
    // PollInterval 解析任务的轮询间隔
    PollInterval time.Duration
    // ParseTimeout 单个解析任务的墙钟预算，超出按超时处理
    ParseTimeout time.Duration
    // MirrorMarkdown 是否把抽取出的 markdown 写回对象存储
    MirrorMarkdown bool
}

func NewService(
    store storage.Storage,
    index *fileindex.Store,
    parserClient parser.Client,
    filter Filter,
    embedder Embedder,
    vectors vectorstore.Store,
    log logger.Logger,
    cfg *ServiceConfig,
) *Service {
    if cfg == nil {
        cfg = &ServiceConfig{
            PollInterval:   5 * time.Second,
            ParseTimeout:   10 * time.Minute,
            MirrorMarkdown: true,
        }
    }
    return &Service{
        storage:  store,
        index:    index,
        parser:   parserClient,
        filter:   filter,
        embedder: embedder,
        vectors:  vectors,
        logger:   log,
        config:   cfg,
    }
}

// GetService 按配置组装完整的生产依赖
func GetService(log logger.Logger) (*Service, error) {
    app := config.GetAppConfig()

    store, err := storage.NewStorage(storage.StorageType(app.StorageBackend), log)
    if err != nil {
        return nil, fmt.Errorf("failed to initialize storage: %w", err)
    }

    parserClient, err := parser.NewClient(app.ParserProvider, log)
    if err != nil {
        return nil, fmt.Errorf("failed to initialize parser client: %w", err)
    }

    llmClient, err := llm.NewClient(log)
    if err != nil {
        return nil, fmt.Errorf("failed to initialize llm client: %w", err)
    }

    embedSvc, err := embedding.NewService(log)
    if err != nil {
        return nil, fmt.Errorf("failed to initialize embedding service: %w", err)
    }

    vectors, err := vectorstore.NewStore(app.VectorBackend, log)
    if err != nil {
        return nil, fmt.Errorf("failed to initialize vector store: %w", err)
    }
    if err := vectors.EnsureCollection(context.Background(), embedSvc.Dimensions()); err != nil {
        return nil, fmt.Errorf("failed to ensure collection: %w", err)
    }

    return NewService(
        store,
        fileindex.NewStore(store, log),
        parserClient,
        extract.NewHighDensityFilter(llmClient, log),
        embedSvc,
        vectors,
        log,
        nil,
    ), nil
}

// Index 暴露文件索引，供 API 层查询状态
func (s *Service) Index() *fileindex.Store {
    return s.index
}

// Storage 暴露对象存储，供 API 层接收上传
func (s *Service) Storage() storage.Storage {
    return s.storage
}

// Ingest 摄取单个文件。已向量化的文件直接返回成功；
// 任何一步失败都保持 vectorized=false，下次从头重跑。
func (s *Service) Ingest(ctx context.Context, filename string, useFilter bool) error {
    rec := s.index.Get(ctx, filename)
    if rec != nil && rec.Vectorized {
        s.logger.Info("file already vectorized, skipping",
            logger.String("filename", filename),
        )
        return nil
    }

    storageKey := UploadPrefix + filename
    if rec != nil {
        storageKey = rec.StorageKey
    } else if err := s.index.Add(ctx, filename, storageKey); err != nil {
        return fmt.Errorf("register file %s: %w", filename, err)
    }

    s.logger.Info("starting ingestion",
        logger.String("filename", filename),
        logger.String("storageKey", storageKey),
        logger.Bool("useFilter", useFilter),
    )

    doc, err := s.parse(ctx, filename, storageKey)
    if err != nil {
        return err
    }

    markdown := extract.Markdown(doc)
    segments := s.segments(ctx, doc, markdown, useFilter)

    if err := s.vectorize(ctx, segments); err != nil {
        return fmt.Errorf("vectorize %s: %w", filename, err)
    }

    if s.config.MirrorMarkdown {
        s.mirrorMarkdown(ctx, filename, markdown)
    }

    if err := s.index.SetVectorized(ctx, filename, true); err != nil {
        return fmt.Errorf("mark %s vectorized: %w", filename, err)
    }

    s.logger.Info("ingestion completed",
        logger.String("filename", filename),
        logger.Int("segments", len(segments)),
    )
    return nil
}

// parse 下载到临时文件并跑完解析状态机。
// 临时副本在所有退出路径上都会被清理。
func (s *Service) parse(ctx context.Context, filename, storageKey string) (*models.ParsedDocument, error) {
    rc, err := s.storage.Get(ctx, storageKey)
    if err != nil {
        return nil, fmt.Errorf("download %s: %w", storageKey, err)
    }
    defer rc.Close()

    tmpFile, err := os.CreateTemp("", "ingest-*"+filepath.Ext(filename))
    if err != nil {
        return nil, fmt.Errorf("create temp file: %w", err)
    }
    defer os.Remove(tmpFile.Name())
    defer tmpFile.Close()

    if _, err := io.Copy(tmpFile, rc); err != nil {
        return nil, fmt.Errorf("spool %s to temp file: %w", storageKey, err)
    }
    if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
        return nil, fmt.Errorf("rewind temp file: %w", err)
    }

    jobID, err := s.parser.Submit(ctx, tmpFile, filename)
    if err != nil {
        return nil, fmt.Errorf("submit %s: %w", filename, err)
    }

    deadline := time.Now().Add(s.config.ParseTimeout)
    for {
        status, err := s.parser.Poll(ctx, jobID)
        if err != nil {
            return nil, fmt.Errorf("poll job %s: %w", jobID, err)
        }
        switch status {
        case parser.JobSuccess:
            return s.parser.FetchResult(ctx, jobID)
        case parser.JobFailed:
            return nil, fmt.Errorf("parse job %s failed", jobID)
        }

        if time.Now().After(deadline) {
            return nil, fmt.Errorf("parse job %s: %w", jobID, parser.ErrJobTimeout)
        }
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(s.config.PollInterval):
        }
    }
}

// segments 选择过滤路径或逐元素路径。
// 过滤失败或产出为空时退回逐元素切分，不中断摄取。
func (s *Service) segments(ctx context.Context, doc *models.ParsedDocument, markdown string, useFilter bool) []models.ExtractedSegment {
    if useFilter && strings.TrimSpace(markdown) != "" {
        segs, err := s.filter.Filter(ctx, markdown)
        if err != nil {
            s.logger.Warn("high density filter failed, falling back to per-element segmentation",
                logger.Error(err),
            )
        } else if len(segs) > 0 {
            return segs
        }
    }
    return extract.Segments(doc)
}

// vectorize 批量向量化后逐条追加写入向量库
func (s *Service) vectorize(ctx context.Context, segments []models.ExtractedSegment) error {
    if len(segments) == 0 {
        return nil
    }

    texts := make([]string, len(segments))
    for i, seg := range segments {
        texts[i] = seg.Text
    }

    vectors, err := s.embedder.EmbedBatch(ctx, texts)
    if err != nil {
        return fmt.Errorf("embed segments: %w", err)
    }

    for i, seg := range segments {
        _, err := s.vectors.Insert(ctx, vectors[i], map[string]string{
            vectorstore.FieldRawText:  seg.Text,
            vectorstore.FieldSubTitle: seg.SubTitle,
        })
        if err != nil {
            return fmt.Errorf("insert segment %d: %w", i, err)
        }
    }
    return nil
}

// mirrorMarkdown 把抽取结果写回 contents/ 目录，失败只告警
func (s *Service) mirrorMarkdown(ctx context.Context, filename, markdown string) {
    base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
    key := ContentPrefix + base + ".md"
    data := []byte(markdown)
    if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
        s.logger.Warn("mirror markdown failed",
            logger.String("key", key),
            logger.Error(err),
        )
    }
}

// BatchIngest 顺序摄取窗口期内的文件。单个文件失败不影响其余，
// 统计永远完整返回。
func (s *Service) BatchIngest(ctx context.Context, days int, useFilter bool) models.BatchReport {
    recs := s.index.ListUploadedWithin(ctx, days)

    var report models.BatchReport
    for _, rec := range recs {
        report.Total++
        if rec.Vectorized {
            report.Skipped++
            continue
        }
        if err := s.Ingest(ctx, rec.Filename, useFilter); err != nil {
            report.Failed++
            s.logger.Error("batch ingest: file failed",
                logger.String("filename", rec.Filename),
                logger.Error(err),
            )
            continue
        }
        report.Processed++
    }

    s.logger.Info("batch ingest finished",
        logger.Int("total", report.Total),
        logger.Int("processed", report.Processed),
        logger.Int("failed", report.Failed),
        logger.Int("skipped", report.Skipped),
    )
    return report
}
