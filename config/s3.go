package config

import (
	"os"
	"sync"
)

var (
	s3Once   sync.Once
	s3Config *S3Config
)

type S3Config struct {
	BucketName string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
}

// Validate 校验必填项，缺失时返回 *Error
func (c *S3Config) Validate() error {
	return missing("s3",
		[2]string{"AWS_S3_BUCKET_NAME", c.BucketName},
		[2]string{"AWS_REGION", c.Region},
		[2]string{"AWS_ACCESS_KEY", c.AccessKey},
		[2]string{"AWS_SECRET_KEY", c.SecretKey},
	)
}

func GetS3Config() *S3Config {
	s3Once.Do(func() {
		loadEnv()

		s3Config = &S3Config{
			BucketName: os.Getenv("AWS_S3_BUCKET_NAME"),
			Region:     os.Getenv("AWS_REGION"),
			Endpoint:   os.Getenv("AWS_ENDPOINT"),
			AccessKey:  os.Getenv("AWS_ACCESS_KEY"),
			SecretKey:  os.Getenv("AWS_SECRET_KEY"),
		}
	})
	return s3Config
}
