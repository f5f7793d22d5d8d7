package storage

import (
    "bytes"
    "context"
    "io"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// MemoryStorage 内存存储实现，用于本地开发和测试
type MemoryStorage struct {
    mu      sync.RWMutex
    objects map[string]memoryObject
    log     logger.Logger
}

type memoryObject struct {
    data     []byte
    modified time.Time
}

func NewMemoryStorage(log logger.Logger) *MemoryStorage {
    return &MemoryStorage{
        objects: make(map[string]memoryObject),
        log:     log,
    }
}

func (m *MemoryStorage) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
    data, err := io.ReadAll(reader)
    if err != nil {
        return err
    }
    m.mu.Lock()
    m.objects[key] = memoryObject{data: data, modified: time.Now()}
    m.mu.Unlock()
    return nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
    m.mu.RLock()
    obj, ok := m.objects[key]
    m.mu.RUnlock()
    if !ok {
        return nil, ErrNotFound
    }
    // 返回副本，调用方读取期间允许并发覆盖
    buf := make([]byte, len(obj.data))
    copy(buf, obj.data)
    return io.NopCloser(bytes.NewReader(buf)), nil
}

func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
    m.mu.RLock()
    _, ok := m.objects[key]
    m.mu.RUnlock()
    return ok, nil
}

func (m *MemoryStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    var infos []ObjectInfo
    for key, obj := range m.objects {
        if strings.HasPrefix(key, prefix) {
            infos = append(infos, ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
        }
    }
    sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
    return infos, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
    m.mu.Lock()
    delete(m.objects, key)
    m.mu.Unlock()
    return nil
}
