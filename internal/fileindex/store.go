package fileindex

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "sort"
    "sync"
    "time"

    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/storage"
)

// IndexKey 索引文档在对象存储中的固定位置
const IndexKey = "file_status/file_index.json"

// 统一时区：所有本地时间戳先归一化到这里再比较
var canonicalLoc = loadCanonicalLoc()

func loadCanonicalLoc() *time.Location {
    loc, err := time.LoadLocation("Asia/Shanghai")
    if err != nil {
        return time.FixedZone("CST", 8*3600)
    }
    return loc
}

// Store 维护 filename → FileRecord 的全量索引。
// 每次变更都整读整写：读出整个文档、内存中修改、再整体写回。
// 跨进程没有锁或版本控制，后写者覆盖；进程内用互斥锁串行化。
type Store struct {
    mu      sync.Mutex
    backend storage.Storage
    log     logger.Logger
}

func NewStore(backend storage.Storage, log logger.Logger) *Store {
    return &Store{backend: backend, log: log}
}

// load 读取并解码整个索引。对象缺失视为首次运行，
// 内容损坏降级为空索引并告警，两者都不向上抛错。
func (s *Store) load(ctx context.Context) models.FileIndex {
    rc, err := s.backend.Get(ctx, IndexKey)
    if err != nil {
        if !errors.Is(err, storage.ErrNotFound) {
            s.log.Warn("read file index failed, treating as empty",
                logger.String("key", IndexKey), logger.Error(err))
        }
        return models.FileIndex{}
    }
    defer rc.Close()

    data, err := io.ReadAll(rc)
    if err != nil {
        s.log.Warn("read file index failed, treating as empty",
            logger.String("key", IndexKey), logger.Error(err))
        return models.FileIndex{}
    }

    var index models.FileIndex
    if err := json.Unmarshal(data, &index); err != nil {
        s.log.Warn("file index corrupted, treating as empty",
            logger.String("key", IndexKey), logger.Error(err))
        return models.FileIndex{}
    }
    if index == nil {
        index = models.FileIndex{}
    }
    return index
}

// save 将整个索引写回固定 key
func (s *Store) save(ctx context.Context, index models.FileIndex) error {
    data, err := json.MarshalIndent(index, "", "  ")
    if err != nil {
        return fmt.Errorf("encode file index: %w", err)
    }
    if err := s.backend.Put(ctx, IndexKey, bytes.NewReader(data), int64(len(data))); err != nil {
        return fmt.Errorf("write file index: %w", err)
    }
    return nil
}

// Add 新增（或覆盖）一条未向量化的记录
func (s *Store) Add(ctx context.Context, filename, storageKey string) error {
    s.mu.Lock()
    defer s.mu.Unlock()

    now := time.Now()
    index := s.load(ctx)
    index[filename] = &models.FileRecord{
        Filename:        filename,
        StorageKey:      storageKey,
        UploadTimeUTC:   now.UTC(),
        UploadTimeLocal: now.In(canonicalLoc),
        Vectorized:      false,
        LastUpdated:     now.UTC(),
    }
    return s.save(ctx, index)
}

// SetVectorized 更新向量化标记。记录不存在时返回错误。
func (s *Store) SetVectorized(ctx context.Context, filename string, vectorized bool) error {
    s.mu.Lock()
    defer s.mu.Unlock()

    index := s.load(ctx)
    rec, ok := index[filename]
    if !ok {
        return fmt.Errorf("file %q not in index", filename)
    }
    rec.Vectorized = vectorized
    rec.LastUpdated = time.Now().UTC()
    return s.save(ctx, index)
}

// Exists 判断文件是否已登记
func (s *Store) Exists(ctx context.Context, filename string) bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    _, ok := s.load(ctx)[filename]
    return ok
}

// Get 返回单条记录，不存在时返回 nil
func (s *Store) Get(ctx context.Context, filename string) *models.FileRecord {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.load(ctx)[filename]
}

// Remove 删除记录，返回是否真的删除了
func (s *Store) Remove(ctx context.Context, filename string) (bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    index := s.load(ctx)
    if _, ok := index[filename]; !ok {
        return false, nil
    }
    delete(index, filename)
    if err := s.save(ctx, index); err != nil {
        return false, err
    }
    return true, nil
}

// ListUploadedWithin 返回最近 days 天内上传的记录。
// 比较前把双方时间都换算到统一时区，避免时区口径不一致。
func (s *Store) ListUploadedWithin(ctx context.Context, days int) []*models.FileRecord {
    s.mu.Lock()
    defer s.mu.Unlock()

    cutoff := time.Now().In(canonicalLoc).AddDate(0, 0, -days)
    var out []*models.FileRecord
    for _, rec := range s.load(ctx) {
        if !rec.UploadTimeLocal.In(canonicalLoc).Before(cutoff) {
            out = append(out, rec)
        }
    }
    sortRecords(out)
    return out
}

// ListUnvectorized 返回尚未向量化的记录
func (s *Store) ListUnvectorized(ctx context.Context) []*models.FileRecord {
    s.mu.Lock()
    defer s.mu.Unlock()

    var out []*models.FileRecord
    for _, rec := range s.load(ctx) {
        if !rec.Vectorized {
            out = append(out, rec)
        }
    }
    sortRecords(out)
    return out
}

// ListAll 返回整个索引。底层对象缺失或损坏时返回空映射。
func (s *Store) ListAll(ctx context.Context) models.FileIndex {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.load(ctx)
}

// 上传时间升序，同一时刻按文件名,保证列表顺序稳定
func sortRecords(recs []*models.FileRecord) {
    sort.Slice(recs, func(i, j int) bool {
        if recs[i].UploadTimeUTC.Equal(recs[j].UploadTimeUTC) {
            return recs[i].Filename < recs[j].Filename
        }
        return recs[i].UploadTimeUTC.Before(recs[j].UploadTimeUTC)
    })
}
