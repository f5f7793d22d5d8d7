package queue

import (
    "testing"
    "time"

    "github.com/hibiken/asynq"
    "github.com/stretchr/testify/assert"
)

func TestStatusKey(t *testing.T) {
    assert.Equal(t, "task_status:abc-123", statusKey("abc-123"))
}

func TestConvertAsynqStatus(t *testing.T) {
    now := time.Now()

    tests := []struct {
        name         string
        info         *asynq.TaskInfo
        wantStatus   string
        wantProgress float64
        wantErr      string
    }{
        {
            name:       "pending",
            info:       &asynq.TaskInfo{ID: "t1", State: asynq.TaskStatePending},
            wantStatus: "pending",
        },
        {
            name:         "active",
            info:         &asynq.TaskInfo{ID: "t2", State: asynq.TaskStateActive},
            wantStatus:   "running",
            wantProgress: 0.5,
        },
        {
            name:         "completed",
            info:         &asynq.TaskInfo{ID: "t3", State: asynq.TaskStateCompleted, CompletedAt: now},
            wantStatus:   "completed",
            wantProgress: 1.0,
        },
        {
            name:       "retry carries error",
            info:       &asynq.TaskInfo{ID: "t4", State: asynq.TaskStateRetry, LastErr: "parse failed"},
            wantStatus: "failed",
            wantErr:    "parse failed",
        },
        {
            name:       "archived is failed",
            info:       &asynq.TaskInfo{ID: "t5", State: asynq.TaskStateArchived, LastErr: "gave up"},
            wantStatus: "failed",
            wantErr:    "gave up",
        },
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            status := convertAsynqStatus(tt.info)
            assert.Equal(t, tt.info.ID, status.TaskID)
            assert.Equal(t, tt.wantStatus, status.Status)
            assert.Equal(t, tt.wantProgress, status.Progress)
            assert.Equal(t, tt.wantErr, status.Error)
        })
    }
}
