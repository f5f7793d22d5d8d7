package worker

import (
    "context"
    "sync"

    "github.com/hibiken/asynq"

    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

type Worker interface {
    Start(ctx context.Context) error
    Stop() error
}

type Config struct {
    RedisAddr   string
    RedisDB     int
    Concurrency int
    Queues      map[string]int
}

type BaseWorker struct {
    server   *asynq.Server
    mux      *asynq.ServeMux
    logger   logger.Logger
    stopChan chan struct{}
    stopOnce sync.Once
}

// Stop 信号路径和 ctx 取消路径都会走到这里，只执行一次
func (w *BaseWorker) Stop() error {
    w.stopOnce.Do(func() {
        close(w.stopChan)
        w.server.Stop()
    })
    return nil
}
