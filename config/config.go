package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Error 表示后端配置缺失或无效；客户端在构造阶段遇到它应直接失败
type Error struct {
	Backend string
	Missing []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s configuration: missing %s", e.Backend, strings.Join(e.Missing, ", "))
}

var envOnce sync.Once

// loadEnv 加载项目根目录的 .env 文件，只执行一次
func loadEnv() {
	envOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found, falling back to environment variables")
		}
	})
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using default %d", key, v, def)
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a boolean, using default %v", key, v, def)
		return def
	}
	return b
}

// missing 收集为空的必填项，全部齐备时返回 nil
func missing(backend string, pairs ...[2]string) error {
	var absent []string
	for _, p := range pairs {
		if p[1] == "" {
			absent = append(absent, p[0])
		}
	}
	if len(absent) > 0 {
		return &Error{Backend: backend, Missing: absent}
	}
	return nil
}
