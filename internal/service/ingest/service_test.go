package ingest

import (
    "context"
    "errors"
    "io"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/PrescottClub/aurawell-rag/internal/fileindex"
    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/internal/parser"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/storage"
    "github.com/PrescottClub/aurawell-rag/pkg/vectorstore"
)

type fakeParser struct {
    mu       sync.Mutex
    submits  int
    statuses []parser.JobStatus
    pollIdx  int
    doc      *models.ParsedDocument
}

func (p *fakeParser) Submit(ctx context.Context, r io.Reader, filename string) (string, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.submits++
    return "job-1", nil
}

func (p *fakeParser) Poll(ctx context.Context, jobID string) (parser.JobStatus, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if len(p.statuses) == 0 {
        return parser.JobSuccess, nil
    }
    st := p.statuses[p.pollIdx]
    if p.pollIdx < len(p.statuses)-1 {
        p.pollIdx++
    }
    return st, nil
}

func (p *fakeParser) FetchResult(ctx context.Context, jobID string) (*models.ParsedDocument, error) {
    return p.doc, nil
}

func (p *fakeParser) submitCount() int {
    p.mu.Lock()
    defer p.mu.Unlock()
    return p.submits
}

type fakeEmbedder struct {
    mu    sync.Mutex
    calls int
    err   error
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
    e.mu.Lock()
    defer e.mu.Unlock()
    e.calls++
    if e.err != nil {
        return nil, e.err
    }
    out := make([][]float32, len(texts))
    for i := range texts {
        vec := make([]float32, 4)
        vec[i%4] = 1
        out[i] = vec
    }
    return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 4 }

type fakeFilter struct {
    segments []models.ExtractedSegment
    err      error
    calls    int
}

func (f *fakeFilter) Filter(ctx context.Context, fullText string) ([]models.ExtractedSegment, error) {
    f.calls++
    return f.segments, f.err
}

type fixture struct {
    svc     *Service
    store   storage.Storage
    index   *fileindex.Store
    parser  *fakeParser
    filter  *fakeFilter
    embed   *fakeEmbedder
    vectors *vectorstore.MemoryStore
    log     *logger.TestLogger
}

func newFixture(t *testing.T, p *fakeParser, f *fakeFilter) *fixture {
    t.Helper()
    log := logger.NewTestLogger()
    store := storage.NewMemoryStorage(log)
    index := fileindex.NewStore(store, log)
    vectors := vectorstore.NewMemoryStore()
    require.NoError(t, vectors.EnsureCollection(context.Background(), 4))

    embed := &fakeEmbedder{}
    cfg := &ServiceConfig{
        PollInterval:   time.Millisecond,
        ParseTimeout:   100 * time.Millisecond,
        MirrorMarkdown: true,
    }
    return &fixture{
        svc:     NewService(store, index, p, f, embed, vectors, log, cfg),
        store:   store,
        index:   index,
        parser:  p,
        filter:  f,
        embed:   embed,
        vectors: vectors,
        log:     log,
    }
}

func (fx *fixture) putObject(t *testing.T, key, content string) {
    t.Helper()
    require.NoError(t, fx.store.Put(context.Background(), key, strings.NewReader(content), int64(len(content))))
}

// 所有已入库文本，方便断言
func (fx *fixture) storedTexts(t *testing.T) []string {
    t.Helper()
    hits, err := fx.vectors.Query(context.Background(), []float32{1, 0, 0, 0}, 100, nil)
    require.NoError(t, err)
    texts := make([]string, 0, len(hits))
    for _, h := range hits {
        texts = append(texts, h.RawText())
    }
    return texts
}

func healthDoc() *models.ParsedDocument {
    return &models.ParsedDocument{
        Layouts: []models.LayoutElement{
            {Type: models.LayoutTitle, Markdown: "蛋白质摄入"},
            {Type: models.LayoutParagraph, Markdown: "每日建议摄入蛋白质60克。"},
            {Type: models.LayoutParagraph, Markdown: "运动人群可以适当增加摄入量。"},
            {Type: models.LayoutParagraph, Markdown: "[12] Smith J, Doe A, et al. Nutrition study[J]. Journal of Health, 2020, 5(2): 100-110."},
        },
    }
}

func TestIngest_EndToEnd(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    fx := newFixture(t, p, &fakeFilter{})
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"指南.pdf", "%PDF-1.4 fake")
    require.NoError(t, fx.index.Add(ctx, "指南.pdf", UploadPrefix+"指南.pdf"))

    require.NoError(t, fx.svc.Ingest(ctx, "指南.pdf", false))

    // 参考文献段不入库
    assert.Equal(t, 2, fx.vectors.Len())
    texts := fx.storedTexts(t)
    assert.Contains(t, texts, "每日建议摄入蛋白质60克。")
    assert.Contains(t, texts, "运动人群可以适当增加摄入量。")

    hits, err := fx.vectors.Query(ctx, []float32{1, 0, 0, 0}, 1, nil)
    require.NoError(t, err)
    require.Len(t, hits, 1)
    assert.Equal(t, "蛋白质摄入", hits[0].Metadata[vectorstore.FieldSubTitle])

    rec := fx.index.Get(ctx, "指南.pdf")
    require.NotNil(t, rec)
    assert.True(t, rec.Vectorized)

    exists, err := fx.store.Exists(ctx, ContentPrefix+"指南.md")
    require.NoError(t, err)
    assert.True(t, exists)

    assert.Equal(t, 1, p.submitCount())
}

func TestIngest_AlreadyVectorizedIsNoOp(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    fx := newFixture(t, p, &fakeFilter{})
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"a.pdf", "%PDF-1.4")
    require.NoError(t, fx.svc.Ingest(ctx, "a.pdf", false))
    require.Equal(t, 1, p.submitCount())
    stored := fx.vectors.Len()

    // 第二次摄取不触发任何解析或写入
    require.NoError(t, fx.svc.Ingest(ctx, "a.pdf", false))
    assert.Equal(t, 1, p.submitCount())
    assert.Equal(t, stored, fx.vectors.Len())
}

func TestIngest_RegistersUnknownFile(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    fx := newFixture(t, p, &fakeFilter{})
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"new.pdf", "%PDF-1.4")
    require.Nil(t, fx.index.Get(ctx, "new.pdf"))

    require.NoError(t, fx.svc.Ingest(ctx, "new.pdf", false))

    rec := fx.index.Get(ctx, "new.pdf")
    require.NotNil(t, rec)
    assert.Equal(t, UploadPrefix+"new.pdf", rec.StorageKey)
    assert.True(t, rec.Vectorized)
}

func TestIngest_FilterPath(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    f := &fakeFilter{segments: []models.ExtractedSegment{
        {Text: "每天保证60克蛋白质摄入", Source: models.SourceFiltered},
        {Text: "运动人群适当增加蛋白质", Source: models.SourceFiltered},
    }}
    fx := newFixture(t, p, f)
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"a.pdf", "%PDF-1.4")
    require.NoError(t, fx.svc.Ingest(ctx, "a.pdf", true))

    assert.Equal(t, 1, f.calls)
    texts := fx.storedTexts(t)
    assert.Contains(t, texts, "每天保证60克蛋白质摄入")
    assert.NotContains(t, texts, "每日建议摄入蛋白质60克。")
}

func TestIngest_FilterFailureFallsBack(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    f := &fakeFilter{err: errors.New("llm unavailable")}
    fx := newFixture(t, p, f)
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"a.pdf", "%PDF-1.4")
    require.NoError(t, fx.svc.Ingest(ctx, "a.pdf", true))

    assert.True(t, fx.log.Contains("WARN", "falling back"))
    assert.Contains(t, fx.storedTexts(t), "每日建议摄入蛋白质60克。")
}

func TestIngest_FilterEmptyOutputFallsBack(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    f := &fakeFilter{segments: nil}
    fx := newFixture(t, p, f)
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"a.pdf", "%PDF-1.4")
    require.NoError(t, fx.svc.Ingest(ctx, "a.pdf", true))

    assert.Equal(t, 1, f.calls)
    assert.Contains(t, fx.storedTexts(t), "每日建议摄入蛋白质60克。")
}

func TestIngest_ParseFailure(t *testing.T) {
    p := &fakeParser{statuses: []parser.JobStatus{parser.JobFailed}}
    fx := newFixture(t, p, &fakeFilter{})
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"bad.pdf", "%PDF-1.4")
    err := fx.svc.Ingest(ctx, "bad.pdf", false)
    require.Error(t, err)
    assert.Contains(t, err.Error(), "failed")

    rec := fx.index.Get(ctx, "bad.pdf")
    require.NotNil(t, rec)
    assert.False(t, rec.Vectorized)
    assert.Equal(t, 0, fx.vectors.Len())
}

func TestIngest_ParseTimeout(t *testing.T) {
    p := &fakeParser{statuses: []parser.JobStatus{parser.JobProcessing}}
    fx := newFixture(t, p, &fakeFilter{})
    fx.svc.config.ParseTimeout = 5 * time.Millisecond
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"slow.pdf", "%PDF-1.4")
    err := fx.svc.Ingest(ctx, "slow.pdf", false)
    require.Error(t, err)
    assert.ErrorIs(t, err, parser.ErrJobTimeout)

    rec := fx.index.Get(ctx, "slow.pdf")
    require.NotNil(t, rec)
    assert.False(t, rec.Vectorized)
}

func TestIngest_MissingObject(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    fx := newFixture(t, p, &fakeFilter{})

    err := fx.svc.Ingest(context.Background(), "ghost.pdf", false)
    require.Error(t, err)
    assert.Contains(t, err.Error(), "download")
    assert.Equal(t, 0, p.submitCount())
}

func TestIngest_EmbedErrorAborts(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    fx := newFixture(t, p, &fakeFilter{})
    fx.embed.err = errors.New("embedding api down")
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"a.pdf", "%PDF-1.4")
    err := fx.svc.Ingest(ctx, "a.pdf", false)
    require.Error(t, err)
    assert.Contains(t, err.Error(), "vectorize")

    rec := fx.index.Get(ctx, "a.pdf")
    require.NotNil(t, rec)
    assert.False(t, rec.Vectorized)
    assert.Equal(t, 0, fx.vectors.Len())
}

func TestIngest_ReferenceOnlyDocument(t *testing.T) {
    p := &fakeParser{doc: &models.ParsedDocument{
        Layouts: []models.LayoutElement{
            {Type: models.LayoutReference, Markdown: "【1】王某. 营养学基础. 2018."},
        },
    }}
    fx := newFixture(t, p, &fakeFilter{})
    ctx := context.Background()

    fx.putObject(t, UploadPrefix+"refs.pdf", "%PDF-1.4")
    require.NoError(t, fx.svc.Ingest(ctx, "refs.pdf", false))

    // 没有可入库的片段也算成功，避免批量任务反复重跑
    assert.Equal(t, 0, fx.vectors.Len())
    rec := fx.index.Get(ctx, "refs.pdf")
    require.NotNil(t, rec)
    assert.True(t, rec.Vectorized)
}

func TestBatchIngest_Accounting(t *testing.T) {
    p := &fakeParser{doc: healthDoc()}
    fx := newFixture(t, p, &fakeFilter{})
    ctx := context.Background()

    // done.pdf 已向量化，good.pdf 正常，broken.pdf 缺对象
    fx.putObject(t, UploadPrefix+"done.pdf", "%PDF-1.4")
    require.NoError(t, fx.index.Add(ctx, "done.pdf", UploadPrefix+"done.pdf"))
    require.NoError(t, fx.index.SetVectorized(ctx, "done.pdf", true))

    fx.putObject(t, UploadPrefix+"good.pdf", "%PDF-1.4")
    require.NoError(t, fx.index.Add(ctx, "good.pdf", UploadPrefix+"good.pdf"))

    require.NoError(t, fx.index.Add(ctx, "broken.pdf", UploadPrefix+"broken.pdf"))

    report := fx.svc.BatchIngest(ctx, 7, false)

    assert.Equal(t, 3, report.Total)
    assert.Equal(t, 1, report.Processed)
    assert.Equal(t, 1, report.Failed)
    assert.Equal(t, 1, report.Skipped)
    assert.Equal(t, report.Total, report.Processed+report.Failed+report.Skipped)

    good := fx.index.Get(ctx, "good.pdf")
    require.NotNil(t, good)
    assert.True(t, good.Vectorized)
}

func TestBatchIngest_EmptyWindow(t *testing.T) {
    fx := newFixture(t, &fakeParser{}, &fakeFilter{})

    report := fx.svc.BatchIngest(context.Background(), 7, false)
    assert.Equal(t, models.BatchReport{}, report)
}
