package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/hibiken/asynq"
    "github.com/redis/go-redis/v9"

    "github.com/PrescottClub/aurawell-rag/config"
)

// TaskType 定义任务类型
const (
    TaskTypeIngestFile  = "kb:ingest_file"
    TaskTypeIngestBatch = "kb:ingest_batch"
)

// IngestFilePayload 单文件摄取任务参数
type IngestFilePayload struct {
    Filename  string `json:"filename"`
    UseFilter bool   `json:"useFilter"`
}

// IngestBatchPayload 批量摄取任务参数
type IngestBatchPayload struct {
    Days      int  `json:"days"`
    UseFilter bool `json:"useFilter"`
}

// Queue 接口定义
type Queue interface {
    Enqueue(ctx context.Context, task *Task) error
    GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
    CancelTask(ctx context.Context, taskID string) error
    SaveFinalStatus(ctx context.Context, status *TaskStatus) error
}

// Task 定义任务结构
type Task struct {
    ID        string            `json:"id"`
    Type      string            `json:"type"`
    Priority  int               `json:"priority"`
    Payload   json.RawMessage   `json:"payload"`
    Metadata  map[string]string `json:"metadata"`
    CreatedAt time.Time         `json:"createdAt"`
}

// TaskStatus 定义任务状态
type TaskStatus struct {
    TaskID     string    `json:"taskId"`
    Status     string    `json:"status"`
    Progress   float64   `json:"progress"`
    Error      string    `json:"error,omitempty"`
    Result     string    `json:"result,omitempty"`
    StartedAt  time.Time `json:"startedAt"`
    FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// AsynqQueue 实现
type AsynqQueue struct {
    client    *asynq.Client
    inspector *asynq.Inspector
    redis     *redis.Client
}

// QueueConfig 定义队列配置
type QueueConfig struct {
    RedisAddr      string
    RedisDB        int
    MaxRetries     int
    ProcessTimeout time.Duration
}

// GetQueue 获取队列实例，redis 地址来自环境配置
func GetQueue() (*AsynqQueue, error) {
    redisCfg := config.GetRedisConfig()
    return NewAsynqQueue(&QueueConfig{
        RedisAddr:      redisCfg.Addr,
        RedisDB:        redisCfg.DB,
        MaxRetries:     3,
        ProcessTimeout: 30 * time.Minute,
    })
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(cfg *QueueConfig) (*AsynqQueue, error) {
    redisOpt := asynq.RedisClientOpt{
        Addr: cfg.RedisAddr,
        DB:   cfg.RedisDB,
    }

    return &AsynqQueue{
        client:    asynq.NewClient(redisOpt),
        inspector: asynq.NewInspector(redisOpt),
        redis: redis.NewClient(&redis.Options{
            Addr: cfg.RedisAddr,
            DB:   cfg.RedisDB,
        }),
    }, nil
}

// Enqueue 将任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
    payload, err := json.Marshal(task)
    if err != nil {
        return fmt.Errorf("failed to marshal task: %w", err)
    }

    opts := []asynq.Option{
        asynq.MaxRetry(3),
        asynq.Timeout(30 * time.Minute),
        asynq.TaskID(task.ID),
    }

    // 根据优先级选择队列
    switch task.Priority {
    case 1:
        opts = append(opts, asynq.Queue("critical"))
    case 2:
        opts = append(opts, asynq.Queue("default"))
    default:
        opts = append(opts, asynq.Queue("low"))
    }

    t := asynq.NewTask(task.Type, payload, opts...)
    info, err := q.client.EnqueueContext(ctx, t)
    if err != nil {
        return fmt.Errorf("failed to enqueue task: %w", err)
    }
    task.ID = info.ID
    return nil
}

// GetTaskStatus 获取任务状态。优先读 Redis 中保存的状态，
// 没有再查 asynq 各队列。
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
    key := statusKey(taskID)
    data, err := q.redis.Get(ctx, key).Bytes()
    if err != nil && err != redis.Nil {
        return nil, fmt.Errorf("failed to get status from redis: %w", err)
    }
    if err == nil {
        var status TaskStatus
        if err := json.Unmarshal(data, &status); err != nil {
            return nil, fmt.Errorf("failed to unmarshal status: %w", err)
        }
        return &status, nil
    }

    queues := []string{"critical", "default", "low"}
    var info *asynq.TaskInfo
    var lastErr error
    for _, queueName := range queues {
        info, err = q.inspector.GetTaskInfo(queueName, taskID)
        if err == nil {
            break
        }
        lastErr = err
    }
    if lastErr != nil {
        return nil, fmt.Errorf("task not found in any queue: %w", lastErr)
    }

    return convertAsynqStatus(info), nil
}

// CancelTask 取消任务
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
    queues := []string{"critical", "default", "low"}
    var lastErr error
    for _, queueName := range queues {
        if err := q.inspector.DeleteTask(queueName, taskID); err == nil {
            return nil
        } else {
            lastErr = err
        }
    }
    return fmt.Errorf("failed to cancel task: %w", lastErr)
}

// SaveFinalStatus 保存最终任务状态，24 小时后过期
func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, status *TaskStatus) error {
    data, err := json.Marshal(status)
    if err != nil {
        return fmt.Errorf("failed to marshal status: %w", err)
    }
    if err := q.redis.Set(ctx, statusKey(status.TaskID), data, 24*time.Hour).Err(); err != nil {
        return fmt.Errorf("failed to save status: %w", err)
    }
    return nil
}

// Close 释放底层连接
func (q *AsynqQueue) Close() error {
    if err := q.client.Close(); err != nil {
        return err
    }
    if err := q.inspector.Close(); err != nil {
        return err
    }
    return q.redis.Close()
}

func statusKey(taskID string) string {
    return fmt.Sprintf("task_status:%s", taskID)
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
    status := &TaskStatus{
        TaskID:    info.ID,
        StartedAt: info.NextProcessAt,
    }

    switch info.State {
    case asynq.TaskStatePending:
        status.Status = "pending"
    case asynq.TaskStateActive:
        status.Status = "running"
        status.Progress = 0.5
    case asynq.TaskStateCompleted:
        status.Status = "completed"
        status.Progress = 1.0
        status.FinishedAt = info.CompletedAt
    case asynq.TaskStateRetry, asynq.TaskStateArchived:
        status.Status = "failed"
        status.Error = info.LastErr
    }
    return status
}
