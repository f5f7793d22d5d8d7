package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/internal/service/ingest"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/queue"
    "github.com/PrescottClub/aurawell-rag/pkg/worker"
)

func main() {
    appCfg := config.GetAppConfig()
    redisCfg := config.GetRedisConfig()

    log, err := logger.NewLogger(
        logger.WithLevel(appCfg.LogLevel),
        logger.WithEncoding("json"),
        logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
    )
    if err != nil {
        panic("failed to initialize logger: " + err.Error())
    }
    defer log.Sync()

    svc, err := ingest.GetService(log)
    if err != nil {
        log.Fatal("failed to initialize ingest service", logger.Error(err))
    }

    q, err := queue.GetQueue()
    if err != nil {
        log.Fatal("failed to initialize task queue", logger.Error(err))
    }
    defer q.Close()

    workerCfg := &worker.Config{
        RedisAddr:   redisCfg.Addr,
        RedisDB:     redisCfg.DB,
        Concurrency: 10,
        Queues: map[string]int{
            "critical": 6,
            "default":  3,
            "low":      1,
        },
    }

    w, err := worker.NewIngestWorker(workerCfg, svc, q, log)
    if err != nil {
        log.Fatal("failed to create ingest worker", logger.Error(err))
    }

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    if err := w.Start(ctx); err != nil {
        log.Fatal("failed to start worker", logger.Error(err))
    }
    log.Info("ingest worker started", logger.String("redis", redisCfg.Addr))

    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    <-quit

    log.Info("shutting down worker...")
    if err := w.Stop(); err != nil {
        log.Error("worker forced to shutdown", logger.Error(err))
    }
    log.Info("worker exited")
}
