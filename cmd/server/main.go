package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/gin-gonic/gin"

    "github.com/PrescottClub/aurawell-rag/api/handlers"
    "github.com/PrescottClub/aurawell-rag/api/routes"
    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/internal/service/ingest"
    "github.com/PrescottClub/aurawell-rag/internal/service/retrieval"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/queue"
)

func main() {
    appCfg := config.GetAppConfig()

    log, err := logger.NewLogger(
        logger.WithLevel(appCfg.LogLevel),
        logger.WithEncoding("json"),
        logger.WithOutputPaths([]string{"stdout", "logs/kb.log"}),
    )
    if err != nil {
        panic("failed to initialize logger: " + err.Error())
    }
    defer log.Sync()

    ingestSvc, err := ingest.GetService(log)
    if err != nil {
        log.Fatal("failed to initialize ingest service", logger.Error(err))
    }

    retrievalSvc, err := retrieval.GetService(log)
    if err != nil {
        log.Fatal("failed to initialize retrieval service", logger.Error(err))
    }

    q, err := queue.GetQueue()
    if err != nil {
        log.Fatal("failed to initialize task queue", logger.Error(err))
    }
    defer q.Close()

    h := handlers.NewHandlers(ingestSvc, retrievalSvc, q, log)

    if appCfg.LogLevel != "debug" {
        gin.SetMode(gin.ReleaseMode)
    }
    router := gin.New()
    router.Use(gin.Recovery())
    routes.SetupRoutes(router, h)

    srv := &http.Server{
        Addr:    appCfg.ServerAddr,
        Handler: router,
    }

    go func() {
        log.Info("knowledge base server starting", logger.String("addr", appCfg.ServerAddr))
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal("server failed", logger.Error(err))
        }
    }()

    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    <-quit

    log.Info("shutting down server...")
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    if err := srv.Shutdown(ctx); err != nil {
        log.Error("server forced to shutdown", logger.Error(err))
    }
    log.Info("server exited")
}
