package config

import (
	"os"
	"sync"
	"time"
)

var (
	llmOnce   sync.Once
	llmConfig *LLMConfig
)

// LLMConfig 翻译/过滤所用对话模型（OpenAI 兼容接口）的配置
type LLMConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

// Validate 校验必填项，缺失时返回 *Error
func (c *LLMConfig) Validate() error {
	return missing("llm",
		[2]string{"LLM_ENDPOINT", c.Endpoint},
		[2]string{"LLM_API_KEY", c.APIKey},
	)
}

func GetLLMConfig() *LLMConfig {
	llmOnce.Do(func() {
		loadEnv()

		llmConfig = &LLMConfig{
			Endpoint:    os.Getenv("LLM_ENDPOINT"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       getenv("LLM_MODEL", "qwen-plus"),
			Temperature: 0.1,
			MaxRetries:  getenvInt("LLM_MAX_RETRIES", 2),
			Timeout:     time.Duration(getenvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		}
	})
	return llmConfig
}
