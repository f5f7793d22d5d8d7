package config

import (
	"os"
	"sync"
)

var (
	minioOnce   sync.Once
	minioConfig *MinioConfig
)

type MinioConfig struct {
	AccessKey  string
	SecretKey  string
	Endpoint   string
	UseSSL     bool
	Region     string
	BucketName string
}

// Validate 校验必填项，缺失时返回 *Error
func (c *MinioConfig) Validate() error {
	return missing("minio",
		[2]string{"MINIO_ENDPOINT", c.Endpoint},
		[2]string{"MINIO_ACCESS_KEY", c.AccessKey},
		[2]string{"MINIO_SECRET_KEY", c.SecretKey},
		[2]string{"MINIO_BUCKET_NAME", c.BucketName},
	)
}

func GetMinioConfig() *MinioConfig {
	minioOnce.Do(func() {
		loadEnv()

		minioConfig = &MinioConfig{
			AccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey:  os.Getenv("MINIO_SECRET_KEY"),
			Endpoint:   os.Getenv("MINIO_ENDPOINT"),
			UseSSL:     getenvBool("MINIO_USE_SSL", false),
			Region:     os.Getenv("MINIO_REGION"),
			BucketName: os.Getenv("MINIO_BUCKET_NAME"),
		}
	})
	return minioConfig
}
