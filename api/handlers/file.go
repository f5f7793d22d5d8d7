package handlers

import (
    "encoding/json"
    "net/http"
    "sort"
    "strconv"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/google/uuid"

    "github.com/PrescottClub/aurawell-rag/internal/fileindex"
    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/internal/service/ingest"
    "github.com/PrescottClub/aurawell-rag/internal/utils/validator"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/queue"
    "github.com/PrescottClub/aurawell-rag/pkg/storage"
)

// FileHandler 文件上传、状态查询与摄取任务下发
type FileHandler struct {
    storage   storage.Storage
    index     *fileindex.Store
    queue     queue.Queue
    validator *validator.DocumentValidator
    logger    logger.Logger
}

// UploadResponse 上传响应
type UploadResponse struct {
    TaskID    string `json:"taskId"`
    Filename  string `json:"filename"`
    FileSize  int64  `json:"fileSize"`
    Status    string `json:"status"`
    CreatedAt string `json:"createdAt"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
    Error   string `json:"error,omitempty"`
    Message string `json:"message"`
}

func NewFileHandler(store storage.Storage, index *fileindex.Store, q queue.Queue, log logger.Logger) *FileHandler {
    return &FileHandler{
        storage:   store,
        index:     index,
        queue:     q,
        validator: validator.NewDocumentValidator(log, nil),
        logger:    log,
    }
}

// UploadFile 接收上传，校验通过后写入对象存储并下发摄取任务
func (h *FileHandler) UploadFile(c *gin.Context) {
    file, header, err := c.Request.FormFile("file")
    if err != nil {
        h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
        return
    }
    defer file.Close()

    result, err := h.validator.ValidateFile(header)
    if err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to validate file", err)
        return
    }
    if !result.IsValid {
        c.JSON(http.StatusBadRequest, gin.H{
            "message": "File validation failed",
            "errors":  result.Errors,
        })
        return
    }

    storageKey := ingest.UploadPrefix + header.Filename
    if err := h.storage.Put(c.Request.Context(), storageKey, file, header.Size); err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to store file", err)
        return
    }
    if err := h.index.Add(c.Request.Context(), header.Filename, storageKey); err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to register file", err)
        return
    }

    useFilter := c.DefaultPostForm("use_filter", "true") != "false"
    task := &queue.Task{
        ID:   uuid.NewString(),
        Type: queue.TaskTypeIngestFile,
        Payload: mustMarshal(queue.IngestFilePayload{
            Filename:  header.Filename,
            UseFilter: useFilter,
        }),
        Metadata:  map[string]string{"filename": header.Filename},
        CreatedAt: time.Now(),
    }
    if err := h.queue.Enqueue(c.Request.Context(), task); err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to enqueue ingestion", err)
        return
    }

    h.logger.Info("file uploaded and queued",
        logger.String("filename", header.Filename),
        logger.String("taskId", task.ID),
    )

    c.JSON(http.StatusAccepted, UploadResponse{
        TaskID:    task.ID,
        Filename:  header.Filename,
        FileSize:  header.Size,
        Status:    "pending",
        CreatedAt: task.CreatedAt.Format(time.RFC3339),
    })
}

// BatchIngestRequest 批量摄取参数
type BatchIngestRequest struct {
    Days      int   `json:"days"`
    UseFilter *bool `json:"useFilter"`
}

// BatchIngest 下发批量摄取任务
func (h *FileHandler) BatchIngest(c *gin.Context) {
    req := BatchIngestRequest{Days: 7}
    if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
        h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
        return
    }
    if req.Days <= 0 {
        req.Days = 7
    }
    useFilter := req.UseFilter == nil || *req.UseFilter

    task := &queue.Task{
        ID:   uuid.NewString(),
        Type: queue.TaskTypeIngestBatch,
        Payload: mustMarshal(queue.IngestBatchPayload{
            Days:      req.Days,
            UseFilter: useFilter,
        }),
        CreatedAt: time.Now(),
    }
    if err := h.queue.Enqueue(c.Request.Context(), task); err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to enqueue batch ingestion", err)
        return
    }

    c.JSON(http.StatusAccepted, gin.H{
        "taskId":    task.ID,
        "days":      req.Days,
        "useFilter": useFilter,
        "status":    "pending",
    })
}

// ListFiles 列出索引中的文件。支持 days 窗口与 unvectorized 过滤。
func (h *FileHandler) ListFiles(c *gin.Context) {
    ctx := c.Request.Context()

    var records []*models.FileRecord
    switch {
    case c.Query("unvectorized") == "true":
        records = h.index.ListUnvectorized(ctx)
    case c.Query("days") != "":
        days, err := strconv.Atoi(c.Query("days"))
        if err != nil || days <= 0 {
            h.handleError(c, http.StatusBadRequest, "Invalid days parameter", err)
            return
        }
        records = h.index.ListUploadedWithin(ctx, days)
    default:
        index := h.index.ListAll(ctx)
        records = make([]*models.FileRecord, 0, len(index))
        for _, rec := range index {
            records = append(records, rec)
        }
        sort.Slice(records, func(i, j int) bool { return records[i].Filename < records[j].Filename })
    }

    c.JSON(http.StatusOK, gin.H{
        "count": len(records),
        "files": records,
    })
}

// GetFileStatus 查询单个文件的索引状态
func (h *FileHandler) GetFileStatus(c *gin.Context) {
    filename := c.Param("filename")
    rec := h.index.Get(c.Request.Context(), filename)
    if rec == nil {
        c.JSON(http.StatusNotFound, ErrorResponse{Message: "File not found in index"})
        return
    }
    c.JSON(http.StatusOK, rec)
}

// DeleteFile 删除存储对象及其索引记录
func (h *FileHandler) DeleteFile(c *gin.Context) {
    filename := c.Param("filename")
    ctx := c.Request.Context()

    rec := h.index.Get(ctx, filename)
    if rec != nil {
        if err := h.storage.Delete(ctx, rec.StorageKey); err != nil {
            h.handleError(c, http.StatusInternalServerError, "Failed to delete stored file", err)
            return
        }
    }

    removed, err := h.index.Remove(ctx, filename)
    if err != nil {
        h.handleError(c, http.StatusInternalServerError, "Failed to remove index record", err)
        return
    }

    c.JSON(http.StatusOK, gin.H{
        "filename": filename,
        "removed":  removed,
    })
}

// GetTaskStatus 查询摄取任务状态
func (h *FileHandler) GetTaskStatus(c *gin.Context) {
    taskID := c.Param("taskId")
    if taskID == "" {
        h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
        return
    }

    status, err := h.queue.GetTaskStatus(c.Request.Context(), taskID)
    if err != nil {
        c.JSON(http.StatusNotFound, ErrorResponse{
            Message: "Task not found",
            Error:   err.Error(),
        })
        return
    }
    c.JSON(http.StatusOK, status)
}

// handleError 统一错误处理
func (h *FileHandler) handleError(c *gin.Context, status int, message string, err error) {
    h.logger.Error(message,
        logger.String("path", c.Request.URL.Path),
        logger.Error(err),
    )

    response := ErrorResponse{Message: message}
    if err != nil {
        response.Error = err.Error()
    }
    c.JSON(status, response)
}

func mustMarshal(v interface{}) json.RawMessage {
    data, err := json.Marshal(v)
    if err != nil {
        panic(err)
    }
    return data
}
