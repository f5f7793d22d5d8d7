package config

import (
	"sync"
)

var (
	appOnce   sync.Once
	appConfig *AppConfig
)

// AppConfig 进程级配置：监听端口与各后端实现的选择
type AppConfig struct {
	ServerAddr     string
	StorageBackend string // minio | s3 | memory
	ParserProvider string // docmind | textract
	VectorBackend  string // qdrant | memory
	LogLevel       string
}

func GetAppConfig() *AppConfig {
	appOnce.Do(func() {
		loadEnv()

		appConfig = &AppConfig{
			ServerAddr:     getenv("SERVER_ADDR", ":8080"),
			StorageBackend: getenv("STORAGE_BACKEND", "minio"),
			ParserProvider: getenv("PARSER_PROVIDER", "docmind"),
			VectorBackend:  getenv("VECTOR_BACKEND", "qdrant"),
			LogLevel:       getenv("LOG_LEVEL", "info"),
		}
	})
	return appConfig
}
