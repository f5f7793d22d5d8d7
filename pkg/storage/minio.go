package storage

import (
    "context"
    "fmt"
    "io"
    "sort"

    "github.com/minio/minio-go/v7"
    "github.com/minio/minio-go/v7/pkg/credentials"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// MinioStorage MinIO 存储实现
type MinioStorage struct {
    client *minio.Client
    bucket string
    log    logger.Logger
}

// NewMinioStorage 创建 MinIO 客户端并确保 bucket 存在
func NewMinioStorage(log logger.Logger) (*MinioStorage, error) {
    cfg := config.GetMinioConfig()
    if err := cfg.Validate(); err != nil {
        return nil, err
    }

    client, err := minio.New(cfg.Endpoint, &minio.Options{
        Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
        Secure: cfg.UseSSL,
    })
    if err != nil {
        return nil, fmt.Errorf("create minio client: %w", err)
    }

    ctx := context.Background()
    exists, err := client.BucketExists(ctx, cfg.BucketName)
    if err != nil {
        return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
    }
    if !exists {
        if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
            return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
        }
        log.Info("created bucket", logger.String("bucket", cfg.BucketName))
    }

    return &MinioStorage{client: client, bucket: cfg.BucketName, log: log}, nil
}

func (m *MinioStorage) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
    _, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{})
    if err != nil {
        return fmt.Errorf("put object %s: %w", key, err)
    }
    return nil
}

func (m *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
    // GetObject 是惰性的，先 Stat 以便把缺失 key 映射为 ErrNotFound
    if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
        if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
            return nil, ErrNotFound
        }
        return nil, fmt.Errorf("stat object %s: %w", key, err)
    }
    obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
    if err != nil {
        return nil, fmt.Errorf("get object %s: %w", key, err)
    }
    return obj, nil
}

func (m *MinioStorage) Exists(ctx context.Context, key string) (bool, error) {
    _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
    if err != nil {
        if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
            return false, nil
        }
        return false, fmt.Errorf("stat object %s: %w", key, err)
    }
    return true, nil
}

func (m *MinioStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
    var infos []ObjectInfo
    for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
        Prefix:    prefix,
        Recursive: true,
    }) {
        if obj.Err != nil {
            return nil, fmt.Errorf("list objects %s: %w", prefix, obj.Err)
        }
        infos = append(infos, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
    }
    sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
    return infos, nil
}

func (m *MinioStorage) Delete(ctx context.Context, key string) error {
    if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
        return fmt.Errorf("remove object %s: %w", key, err)
    }
    return nil
}
