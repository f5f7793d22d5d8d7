package parser

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "mime/multipart"
    "net/http"
    "net/url"
    "strconv"
    "strings"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// DocMindClient 版面解析服务的 REST 客户端。
// 提交 → 轮询 → 分页拉取版面元素。
type DocMindClient struct {
    cfg        *config.DocMindConfig
    httpClient *http.Client
    log        logger.Logger
}

func NewDocMindClient(log logger.Logger) (*DocMindClient, error) {
    cfg := config.GetDocMindConfig()
    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    return &DocMindClient{
        cfg:        cfg,
        httpClient: &http.Client{Timeout: cfg.Timeout},
        log:        log,
    }, nil
}

type submitResponse struct {
    JobID string `json:"job_id"`
}

type statusResponse struct {
    Status  string `json:"status"`
    Message string `json:"message"`
}

type resultResponse struct {
    Layouts []models.LayoutElement `json:"layouts"`
    Total   int                    `json:"total"`
}

func (c *DocMindClient) Submit(ctx context.Context, reader io.Reader, filename string) (string, error) {
    fileType, err := checkFormat(filename)
    if err != nil {
        return "", err
    }

    var body bytes.Buffer
    mw := multipart.NewWriter(&body)
    part, err := mw.CreateFormFile("file", filename)
    if err != nil {
        return "", fmt.Errorf("build multipart: %w", err)
    }
    if _, err := io.Copy(part, reader); err != nil {
        return "", fmt.Errorf("copy file content: %w", err)
    }
    if err := mw.WriteField("file_type", string(fileType)); err != nil {
        return "", fmt.Errorf("build multipart: %w", err)
    }
    if err := mw.Close(); err != nil {
        return "", fmt.Errorf("build multipart: %w", err)
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/v1/jobs", &body)
    if err != nil {
        return "", err
    }
    req.Header.Set("Content-Type", mw.FormDataContentType())
    req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

    var out submitResponse
    if err := c.do(req, &out); err != nil {
        return "", fmt.Errorf("submit parse job: %w", err)
    }
    if out.JobID == "" {
        return "", fmt.Errorf("submit parse job: empty job id in response")
    }

    c.log.Info("parse job submitted",
        logger.String("filename", filename),
        logger.String("jobId", out.JobID),
    )
    return out.JobID, nil
}

func (c *DocMindClient) Poll(ctx context.Context, jobID string) (JobStatus, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet,
        c.cfg.Endpoint+"/api/v1/jobs/"+url.PathEscape(jobID), nil)
    if err != nil {
        return JobFailed, err
    }
    req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

    var out statusResponse
    if err := c.do(req, &out); err != nil {
        return JobFailed, fmt.Errorf("poll job %s: %w", jobID, err)
    }

    switch strings.ToLower(out.Status) {
    case "pending", "processing", "running":
        return JobProcessing, nil
    case "success", "succeeded":
        return JobSuccess, nil
    case "failed", "error":
        return JobFailed, nil
    default:
        return JobFailed, fmt.Errorf("poll job %s: unknown status %q", jobID, out.Status)
    }
}

// FetchResult 按页拉取版面元素并按序拼接成完整文档
func (c *DocMindClient) FetchResult(ctx context.Context, jobID string) (*models.ParsedDocument, error) {
    var layouts []models.LayoutElement
    for page := 1; ; page++ {
        resp, err := c.fetchPage(ctx, jobID, page)
        if err != nil {
            return nil, err
        }
        layouts = append(layouts, resp.Layouts...)
        if len(resp.Layouts) == 0 || len(layouts) >= resp.Total {
            break
        }
    }
    return &models.ParsedDocument{Layouts: layouts}, nil
}

func (c *DocMindClient) fetchPage(ctx context.Context, jobID string, page int) (*resultResponse, error) {
    q := url.Values{}
    q.Set("page", strconv.Itoa(page))
    q.Set("page_size", strconv.Itoa(c.cfg.PageSize))

    req, err := http.NewRequestWithContext(ctx, http.MethodGet,
        c.cfg.Endpoint+"/api/v1/jobs/"+url.PathEscape(jobID)+"/result?"+q.Encode(), nil)
    if err != nil {
        return nil, err
    }
    req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

    var out resultResponse
    if err := c.do(req, &out); err != nil {
        return nil, fmt.Errorf("fetch result page %d of job %s: %w", page, jobID, err)
    }
    return &out, nil
}

// do 发送请求并解码 JSON 响应，非 2xx 时带上响应片段报错
func (c *DocMindClient) do(req *http.Request, out interface{}) error {
    resp, err := c.httpClient.Do(req)
    if err != nil {
        return err
    }
    defer resp.Body.Close()

    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
        return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return fmt.Errorf("decode response: %w", err)
    }
    return nil
}
