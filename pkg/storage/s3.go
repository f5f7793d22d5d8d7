package storage

import (
    "context"
    "errors"
    "fmt"
    "io"
    "sort"

    "github.com/aws/aws-sdk-go-v2/aws"
    awsconfig "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/credentials"
    "github.com/aws/aws-sdk-go-v2/service/s3"
    "github.com/aws/aws-sdk-go-v2/service/s3/types"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// S3Storage AWS S3 存储实现
type S3Storage struct {
    client *s3.Client
    bucket string
    log    logger.Logger
}

// NewS3Storage 创建 S3 客户端
func NewS3Storage(log logger.Logger) (*S3Storage, error) {
    cfg := config.GetS3Config()
    if err := cfg.Validate(); err != nil {
        return nil, err
    }

    opts := []func(*awsconfig.LoadOptions) error{
        awsconfig.WithRegion(cfg.Region),
    }
    if cfg.AccessKey != "" {
        opts = append(opts, awsconfig.WithCredentialsProvider(
            credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
        ))
    }
    awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
    if err != nil {
        return nil, fmt.Errorf("load aws config: %w", err)
    }

    client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
        // 兼容 minio 等 S3 协议实现
        if cfg.Endpoint != "" {
            o.BaseEndpoint = aws.String(cfg.Endpoint)
            o.UsePathStyle = true
        }
    })

    return &S3Storage{
        client: client,
        bucket: cfg.BucketName,
        log:    log,
    }, nil
}

func (s *S3Storage) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
    input := &s3.PutObjectInput{
        Bucket: aws.String(s.bucket),
        Key:    aws.String(key),
        Body:   reader,
    }
    if size >= 0 {
        input.ContentLength = aws.Int64(size)
    }
    if _, err := s.client.PutObject(ctx, input); err != nil {
        return fmt.Errorf("put object %s: %w", key, err)
    }
    return nil
}

func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
    out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
        Bucket: aws.String(s.bucket),
        Key:    aws.String(key),
    })
    if err != nil {
        var noKey *types.NoSuchKey
        if errors.As(err, &noKey) {
            return nil, ErrNotFound
        }
        return nil, fmt.Errorf("get object %s: %w", key, err)
    }
    return out.Body, nil
}

func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
    _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
        Bucket: aws.String(s.bucket),
        Key:    aws.String(key),
    })
    if err != nil {
        var notFound *types.NotFound
        if errors.As(err, &notFound) {
            return false, nil
        }
        return false, fmt.Errorf("head object %s: %w", key, err)
    }
    return true, nil
}

func (s *S3Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
    var infos []ObjectInfo
    paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
        Bucket: aws.String(s.bucket),
        Prefix: aws.String(prefix),
    })
    for paginator.HasMorePages() {
        page, err := paginator.NextPage(ctx)
        if err != nil {
            return nil, fmt.Errorf("list objects %s: %w", prefix, err)
        }
        for _, obj := range page.Contents {
            info := ObjectInfo{Key: aws.ToString(obj.Key)}
            if obj.Size != nil {
                info.Size = *obj.Size
            }
            if obj.LastModified != nil {
                info.LastModified = *obj.LastModified
            }
            infos = append(infos, info)
        }
    }
    sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
    return infos, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
    if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
        Bucket: aws.String(s.bucket),
        Key:    aws.String(key),
    }); err != nil {
        return fmt.Errorf("delete object %s: %w", key, err)
    }
    return nil
}
