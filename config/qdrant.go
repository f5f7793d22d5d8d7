package config

import (
	"os"
	"sync"
)

var (
	qdrantOnce   sync.Once
	qdrantConfig *QdrantConfig
)

// QdrantConfig 向量检索服务的配置
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
}

// Validate 校验必填项，缺失时返回 *Error
func (c *QdrantConfig) Validate() error {
	return missing("qdrant",
		[2]string{"QDRANT_HOST", c.Host},
		[2]string{"QDRANT_COLLECTION", c.Collection},
	)
}

func GetQdrantConfig() *QdrantConfig {
	qdrantOnce.Do(func() {
		loadEnv()

		qdrantConfig = &QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       getenvInt("QDRANT_PORT", 6334),
			Collection: getenv("QDRANT_COLLECTION", "aurawell_knowledge"),
		}
	})
	return qdrantConfig
}
