package worker

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/hibiken/asynq"

    "github.com/PrescottClub/aurawell-rag/internal/service/ingest"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/queue"
)

// 夜间批量摄取的默认参数：每天凌晨两点，回看七天
const (
    nightlyBatchCron = "0 2 * * *"
    nightlyBatchDays = 7
)

// IngestWorker 消费摄取任务的 worker，附带夜间批量调度
type IngestWorker struct {
    BaseWorker
    svc       *ingest.Service
    queue     queue.Queue
    scheduler *asynq.Scheduler
}

func NewIngestWorker(cfg *Config, svc *ingest.Service, q queue.Queue, log logger.Logger) (*IngestWorker, error) {
    redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}

    server := asynq.NewServer(redisOpt, asynq.Config{
        Concurrency: cfg.Concurrency,
        Queues:      cfg.Queues,
        RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
            return time.Duration(n) * time.Minute
        },
    })

    w := &IngestWorker{
        BaseWorker: BaseWorker{
            server:   server,
            mux:      asynq.NewServeMux(),
            logger:   log,
            stopChan: make(chan struct{}),
        },
        svc:       svc,
        queue:     q,
        scheduler: asynq.NewScheduler(redisOpt, nil),
    }

    w.registerHandlers()
    if err := w.registerSchedules(); err != nil {
        return nil, err
    }
    return w, nil
}

func (w *IngestWorker) registerHandlers() {
    w.mux.HandleFunc(queue.TaskTypeIngestFile, w.handleIngestFile)
    w.mux.HandleFunc(queue.TaskTypeIngestBatch, w.handleIngestBatch)
}

// registerSchedules 注册夜间批量摄取
func (w *IngestWorker) registerSchedules() error {
    payload, err := json.Marshal(queue.Task{
        Type:      queue.TaskTypeIngestBatch,
        Payload:   mustMarshal(queue.IngestBatchPayload{Days: nightlyBatchDays, UseFilter: true}),
        CreatedAt: time.Now(),
    })
    if err != nil {
        return fmt.Errorf("marshal nightly batch task: %w", err)
    }
    if _, err := w.scheduler.Register(nightlyBatchCron,
        asynq.NewTask(queue.TaskTypeIngestBatch, payload)); err != nil {
        return fmt.Errorf("register nightly batch schedule: %w", err)
    }
    return nil
}

func (w *IngestWorker) handleIngestFile(ctx context.Context, t *asynq.Task) error {
    task, err := w.decodeTask(ctx, t)
    if err != nil {
        return err
    }

    var payload queue.IngestFilePayload
    if err := json.Unmarshal(task.Payload, &payload); err != nil {
        return fmt.Errorf("failed to unmarshal ingest payload: %w", err)
    }
    if payload.Filename == "" {
        return fmt.Errorf("invalid task data: missing filename")
    }

    w.saveStatus(ctx, &queue.TaskStatus{
        TaskID:    task.ID,
        Status:    "running",
        Progress:  0.1,
        StartedAt: time.Now(),
    })

    if err := w.svc.Ingest(ctx, payload.Filename, payload.UseFilter); err != nil {
        w.saveStatus(ctx, &queue.TaskStatus{
            TaskID:     task.ID,
            Status:     "failed",
            Error:      err.Error(),
            StartedAt:  task.CreatedAt,
            FinishedAt: time.Now(),
        })
        return err
    }

    w.saveStatus(ctx, &queue.TaskStatus{
        TaskID:     task.ID,
        Status:     "completed",
        Progress:   1.0,
        StartedAt:  task.CreatedAt,
        FinishedAt: time.Now(),
    })
    return nil
}

func (w *IngestWorker) handleIngestBatch(ctx context.Context, t *asynq.Task) error {
    task, err := w.decodeTask(ctx, t)
    if err != nil {
        return err
    }

    var payload queue.IngestBatchPayload
    if err := json.Unmarshal(task.Payload, &payload); err != nil {
        return fmt.Errorf("failed to unmarshal batch payload: %w", err)
    }
    if payload.Days <= 0 {
        payload.Days = nightlyBatchDays
    }

    w.saveStatus(ctx, &queue.TaskStatus{
        TaskID:    task.ID,
        Status:    "running",
        Progress:  0.1,
        StartedAt: time.Now(),
    })

    report := w.svc.BatchIngest(ctx, payload.Days, payload.UseFilter)
    result, _ := json.Marshal(report)

    status := &queue.TaskStatus{
        TaskID:     task.ID,
        Status:     "completed",
        Progress:   1.0,
        Result:     string(result),
        StartedAt:  task.CreatedAt,
        FinishedAt: time.Now(),
    }
    if report.Failed > 0 {
        status.Error = fmt.Sprintf("%d of %d files failed", report.Failed, report.Total)
    }
    w.saveStatus(ctx, status)
    return nil
}

// decodeTask 解出任务信封，信封没带 ID 时用 asynq 分配的
func (w *IngestWorker) decodeTask(ctx context.Context, t *asynq.Task) (*queue.Task, error) {
    w.logger.Info("Received task",
        logger.String("type", t.Type()),
        logger.String("payload", string(t.Payload())),
    )

    var task queue.Task
    if err := json.Unmarshal(t.Payload(), &task); err != nil {
        w.logger.Error("Failed to unmarshal task",
            logger.Error(err),
            logger.String("payload", string(t.Payload())),
        )
        return nil, fmt.Errorf("failed to unmarshal task: %w", err)
    }
    if task.ID == "" {
        if id, ok := asynq.GetTaskID(ctx); ok {
            task.ID = id
        }
    }
    return &task, nil
}

func (w *IngestWorker) saveStatus(ctx context.Context, status *queue.TaskStatus) {
    if err := w.queue.SaveFinalStatus(ctx, status); err != nil {
        w.logger.Error("Failed to save task status",
            logger.String("taskId", status.TaskID),
            logger.Error(err),
        )
    }
}

func (w *IngestWorker) Start(ctx context.Context) error {
    go func() {
        if err := w.server.Run(w.mux); err != nil {
            w.logger.Error("Worker server stopped", logger.Error(err))
        }
    }()

    go func() {
        if err := w.scheduler.Run(); err != nil {
            w.logger.Error("Scheduler stopped", logger.Error(err))
        }
    }()

    go func() {
        <-ctx.Done()
        w.Stop()
    }()

    return nil
}

func (w *IngestWorker) Stop() error {
    w.stopOnce.Do(func() {
        w.scheduler.Shutdown()
        close(w.stopChan)
        w.server.Stop()
    })
    return nil
}

func mustMarshal(v interface{}) json.RawMessage {
    data, err := json.Marshal(v)
    if err != nil {
        panic(err)
    }
    return data
}
