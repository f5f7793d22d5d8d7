package handlers

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/gin-gonic/gin"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/PrescottClub/aurawell-rag/internal/fileindex"
    "github.com/PrescottClub/aurawell-rag/internal/service/ingest"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/queue"
    "github.com/PrescottClub/aurawell-rag/pkg/storage"
)

type fakeQueue struct {
    tasks      []*queue.Task
    status     *queue.TaskStatus
    statusErr  error
    enqueueErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *queue.Task) error {
    if q.enqueueErr != nil {
        return q.enqueueErr
    }
    q.tasks = append(q.tasks, task)
    return nil
}

func (q *fakeQueue) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
    if q.statusErr != nil {
        return nil, q.statusErr
    }
    return q.status, nil
}

func (q *fakeQueue) CancelTask(ctx context.Context, taskID string) error { return nil }

func (q *fakeQueue) SaveFinalStatus(ctx context.Context, status *queue.TaskStatus) error { return nil }

type fileTestEnv struct {
    router *gin.Engine
    store  storage.Storage
    index  *fileindex.Store
    queue  *fakeQueue
}

func newFileTestEnv(t *testing.T) *fileTestEnv {
    t.Helper()
    gin.SetMode(gin.TestMode)

    log := logger.NewTestLogger()
    store := storage.NewMemoryStorage(log)
    index := fileindex.NewStore(store, log)
    q := &fakeQueue{}
    h := NewFileHandler(store, index, q, log)

    router := gin.New()
    v1 := router.Group("/api/v1")
    files := v1.Group("/files")
    files.POST("/upload", h.UploadFile)
    files.POST("/batch-ingest", h.BatchIngest)
    files.GET("", h.ListFiles)
    files.GET("/status/:filename", h.GetFileStatus)
    files.DELETE("/:filename", h.DeleteFile)
    v1.GET("/tasks/:taskId", h.GetTaskStatus)

    return &fileTestEnv{router: router, store: store, index: index, queue: q}
}

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
    t.Helper()
    var buf bytes.Buffer
    mw := multipart.NewWriter(&buf)
    part, err := mw.CreateFormFile("file", filename)
    require.NoError(t, err)
    _, err = part.Write(content)
    require.NoError(t, err)
    for k, v := range fields {
        require.NoError(t, mw.WriteField(k, v))
    }
    require.NoError(t, mw.Close())

    req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
    req.Header.Set("Content-Type", mw.FormDataContentType())
    return req
}

// docx 是 zip 容器，用 zip 魔数通过校验
func docxContent() []byte {
    return append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 64)...)
}

func TestUploadFile_Accepted(t *testing.T) {
    env := newFileTestEnv(t)
    ctx := context.Background()

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, uploadRequest(t, "plan.docx", docxContent(), nil))

    require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

    var resp UploadResponse
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
    assert.NotEmpty(t, resp.TaskID)
    assert.Equal(t, "plan.docx", resp.Filename)
    assert.Equal(t, "pending", resp.Status)

    exists, err := env.store.Exists(ctx, ingest.UploadPrefix+"plan.docx")
    require.NoError(t, err)
    assert.True(t, exists)

    rec := env.index.Get(ctx, "plan.docx")
    require.NotNil(t, rec)
    assert.False(t, rec.Vectorized)

    require.Len(t, env.queue.tasks, 1)
    task := env.queue.tasks[0]
    assert.Equal(t, queue.TaskTypeIngestFile, task.Type)
    assert.Equal(t, resp.TaskID, task.ID)

    var payload queue.IngestFilePayload
    require.NoError(t, json.Unmarshal(task.Payload, &payload))
    assert.Equal(t, "plan.docx", payload.Filename)
    assert.True(t, payload.UseFilter)
}

func TestUploadFile_FilterDisabled(t *testing.T) {
    env := newFileTestEnv(t)

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, uploadRequest(t, "plan.docx", docxContent(), map[string]string{"use_filter": "false"}))

    require.Equal(t, http.StatusAccepted, w.Code)
    require.Len(t, env.queue.tasks, 1)

    var payload queue.IngestFilePayload
    require.NoError(t, json.Unmarshal(env.queue.tasks[0].Payload, &payload))
    assert.False(t, payload.UseFilter)
}

func TestUploadFile_RejectsInvalidType(t *testing.T) {
    env := newFileTestEnv(t)

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, uploadRequest(t, "photo.png", []byte("\x89PNG"), nil))

    assert.Equal(t, http.StatusBadRequest, w.Code)
    assert.Contains(t, w.Body.String(), "validation failed")
    assert.Empty(t, env.queue.tasks)
    assert.False(t, env.index.Exists(context.Background(), "photo.png"))
}

func TestUploadFile_MissingFile(t *testing.T) {
    env := newFileTestEnv(t)

    req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", strings.NewReader(""))
    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, req)

    assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchIngest_Defaults(t *testing.T) {
    env := newFileTestEnv(t)

    req := httptest.NewRequest(http.MethodPost, "/api/v1/files/batch-ingest", strings.NewReader("{}"))
    req.Header.Set("Content-Type", "application/json")
    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, req)

    require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
    require.Len(t, env.queue.tasks, 1)
    assert.Equal(t, queue.TaskTypeIngestBatch, env.queue.tasks[0].Type)

    var payload queue.IngestBatchPayload
    require.NoError(t, json.Unmarshal(env.queue.tasks[0].Payload, &payload))
    assert.Equal(t, 7, payload.Days)
    assert.True(t, payload.UseFilter)
}

func TestBatchIngest_CustomWindow(t *testing.T) {
    env := newFileTestEnv(t)

    body := `{"days": 3, "useFilter": false}`
    req := httptest.NewRequest(http.MethodPost, "/api/v1/files/batch-ingest", strings.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, req)

    require.Equal(t, http.StatusAccepted, w.Code)
    require.Len(t, env.queue.tasks, 1)

    var payload queue.IngestBatchPayload
    require.NoError(t, json.Unmarshal(env.queue.tasks[0].Payload, &payload))
    assert.Equal(t, 3, payload.Days)
    assert.False(t, payload.UseFilter)
}

func TestGetFileStatus(t *testing.T) {
    env := newFileTestEnv(t)
    require.NoError(t, env.index.Add(context.Background(), "plan.docx", "uploads/plan.docx"))

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/status/plan.docx", nil))

    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), "plan.docx")

    w = httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/status/ghost.pdf", nil))
    assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFiles(t *testing.T) {
    env := newFileTestEnv(t)
    ctx := context.Background()
    require.NoError(t, env.index.Add(ctx, "a.pdf", "uploads/a.pdf"))
    require.NoError(t, env.index.Add(ctx, "b.pdf", "uploads/b.pdf"))
    require.NoError(t, env.index.SetVectorized(ctx, "a.pdf", true))

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
    require.Equal(t, http.StatusOK, w.Code)

    var resp struct {
        Count int `json:"count"`
    }
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
    assert.Equal(t, 2, resp.Count)

    w = httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files?unvectorized=true", nil))
    require.Equal(t, http.StatusOK, w.Code)
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
    assert.Equal(t, 1, resp.Count)

    w = httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files?days=abc", nil))
    assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteFile(t *testing.T) {
    env := newFileTestEnv(t)
    ctx := context.Background()

    content := "data"
    require.NoError(t, env.store.Put(ctx, "uploads/a.pdf", strings.NewReader(content), int64(len(content))))
    require.NoError(t, env.index.Add(ctx, "a.pdf", "uploads/a.pdf"))

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/files/a.pdf", nil))

    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), `"removed":true`)

    exists, err := env.store.Exists(ctx, "uploads/a.pdf")
    require.NoError(t, err)
    assert.False(t, exists)
    assert.False(t, env.index.Exists(ctx, "a.pdf"))
}

func TestDeleteFile_NotIndexed(t *testing.T) {
    env := newFileTestEnv(t)

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/files/ghost.pdf", nil))

    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), `"removed":false`)
}

func TestGetTaskStatus(t *testing.T) {
    env := newFileTestEnv(t)
    env.queue.status = &queue.TaskStatus{TaskID: "task-1", Status: "completed"}

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1", nil))

    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), "completed")
}

func TestGetTaskStatus_NotFound(t *testing.T) {
    env := newFileTestEnv(t)
    env.queue.statusErr = errors.New("task not found in any queue")

    w := httptest.NewRecorder()
    env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/ghost", nil))

    assert.Equal(t, http.StatusNotFound, w.Code)
}
