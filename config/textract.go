package config

import (
	"os"
	"sync"
)

var (
	textractOnce   sync.Once
	textractConfig *TextractConfig
)

// TextractConfig 使用 Textract 作为版面解析后端时的配置。
// 异步分析要求文件先落在 S3，ScratchPrefix 指定中转目录。
type TextractConfig struct {
	Region        string
	AccessKey     string
	SecretKey     string
	ScratchBucket string
	ScratchPrefix string
}

// Validate 校验必填项，缺失时返回 *Error
func (c *TextractConfig) Validate() error {
	return missing("textract",
		[2]string{"AWS_REGION", c.Region},
		[2]string{"AWS_ACCESS_KEY", c.AccessKey},
		[2]string{"AWS_SECRET_KEY", c.SecretKey},
		[2]string{"TEXTRACT_SCRATCH_BUCKET", c.ScratchBucket},
	)
}

func GetTextractConfig() *TextractConfig {
	textractOnce.Do(func() {
		loadEnv()

		textractConfig = &TextractConfig{
			Region:        os.Getenv("AWS_REGION"),
			AccessKey:     os.Getenv("AWS_ACCESS_KEY"),
			SecretKey:     os.Getenv("AWS_SECRET_KEY"),
			ScratchBucket: os.Getenv("TEXTRACT_SCRATCH_BUCKET"),
			ScratchPrefix: getenv("TEXTRACT_SCRATCH_PREFIX", "textract-scratch/"),
		}
	})
	return textractConfig
}
