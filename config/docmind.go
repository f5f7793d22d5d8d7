package config

import (
	"os"
	"sync"
	"time"
)

var (
	docmindOnce   sync.Once
	docmindConfig *DocMindConfig
)

// DocMindConfig 版面解析服务（DocMind 风格 REST API）的配置
type DocMindConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	PageSize int
}

// Validate 校验必填项，缺失时返回 *Error
func (c *DocMindConfig) Validate() error {
	return missing("docmind",
		[2]string{"DOCMIND_ENDPOINT", c.Endpoint},
		[2]string{"DOCMIND_API_KEY", c.APIKey},
	)
}

func GetDocMindConfig() *DocMindConfig {
	docmindOnce.Do(func() {
		loadEnv()

		docmindConfig = &DocMindConfig{
			Endpoint: os.Getenv("DOCMIND_ENDPOINT"),
			APIKey:   os.Getenv("DOCMIND_API_KEY"),
			Timeout:  time.Duration(getenvInt("DOCMIND_TIMEOUT_SECONDS", 30)) * time.Second,
			PageSize: getenvInt("DOCMIND_RESULT_PAGE_SIZE", 100),
		}
	})
	return docmindConfig
}
