package config

import (
	"os"
	"sync"
	"time"
)

var (
	embeddingOnce   sync.Once
	embeddingConfig *EmbeddingConfig
)

// EmbeddingConfig 向量化服务（OpenAI 兼容接口）的配置。
// BatchLimit 是单次请求的最大文本数，超出由客户端分批。
type EmbeddingConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int
	BatchLimit int
	Timeout    time.Duration
}

// Validate 校验必填项，缺失时返回 *Error
func (c *EmbeddingConfig) Validate() error {
	return missing("embedding",
		[2]string{"EMBEDDING_ENDPOINT", c.Endpoint},
		[2]string{"EMBEDDING_API_KEY", c.APIKey},
	)
}

func GetEmbeddingConfig() *EmbeddingConfig {
	embeddingOnce.Do(func() {
		loadEnv()

		embeddingConfig = &EmbeddingConfig{
			Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      getenv("EMBEDDING_MODEL", "text-embedding-v2"),
			Dimensions: getenvInt("EMBEDDING_DIMENSIONS", 1024),
			BatchLimit: getenvInt("EMBEDDING_BATCH_LIMIT", 25),
			Timeout:    time.Duration(getenvInt("EMBEDDING_TIMEOUT_SECONDS", 30)) * time.Second,
		}
	})
	return embeddingConfig
}
