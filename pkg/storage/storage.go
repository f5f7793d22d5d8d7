package storage

import (
    "context"
    "errors"
    "fmt"
    "io"
    "time"

    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// StorageType 定义存储类型
type StorageType string

const (
    StorageTypeS3     StorageType = "s3"
    StorageTypeMinio  StorageType = "minio"
    StorageTypeMemory StorageType = "memory"
)

// ErrNotFound 表示指定 key 不存在
var ErrNotFound = errors.New("storage: object not found")

// ObjectInfo 列表操作返回的条目
type ObjectInfo struct {
    Key          string
    Size         int64
    LastModified time.Time
}

// Storage 接口定义。所有操作按 key 幂等：重复 Put 覆盖旧值。
type Storage interface {
    // Put 写入对象，size 未知时传 -1
    Put(ctx context.Context, key string, reader io.Reader, size int64) error
    // Get 读取对象，key 不存在时返回 ErrNotFound
    Get(ctx context.Context, key string) (io.ReadCloser, error)
    // Exists 判断对象是否存在
    Exists(ctx context.Context, key string) (bool, error)
    // List 列出指定前缀下的对象
    List(ctx context.Context, prefix string) ([]ObjectInfo, error)
    // Delete 删除对象，key 不存在时不报错
    Delete(ctx context.Context, key string) error
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(storageType StorageType, log logger.Logger) (Storage, error) {
    switch storageType {
    case StorageTypeS3:
        return NewS3Storage(log)
    case StorageTypeMinio:
        return NewMinioStorage(log)
    case StorageTypeMemory:
        return NewMemoryStorage(log), nil
    default:
        return nil, fmt.Errorf("unsupported storage type: %s", storageType)
    }
}
