package parser

import (
    "context"
    "errors"
    "fmt"
    "io"
    "strings"

    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// JobStatus 解析任务状态
type JobStatus string

const (
    JobProcessing JobStatus = "processing"
    JobSuccess    JobStatus = "success"
    JobFailed     JobStatus = "failed"
)

// ErrJobTimeout 解析超出调用方的墙钟预算
var ErrJobTimeout = errors.New("parser: job timed out")

// UnsupportedFormatError 文件格式不在可解析范围内。
// 在任何网络调用之前返回。
type UnsupportedFormatError struct {
    Filename string
}

func (e *UnsupportedFormatError) Error() string {
    return fmt.Sprintf("unsupported format %q: only pdf, docx and spreadsheet files can be parsed", e.Filename)
}

// Client 异步文档解析客户端。
// 状态机：Submit → (Poll)* → success / failed，超时由调用方裁定。
type Client interface {
    // Submit 提交解析任务，返回任务 id
    Submit(ctx context.Context, reader io.Reader, filename string) (string, error)
    // Poll 查询任务状态，由调用方按固定间隔轮询
    Poll(ctx context.Context, jobID string) (JobStatus, error)
    // FetchResult 拉取解析结果。后端分页时逐页拉取并按序拼接。
    FetchResult(ctx context.Context, jobID string) (*models.ParsedDocument, error)
}

// checkFormat 统一的格式闸门：扩展名必须落在 pdf/docx/spreadsheet 之内
func checkFormat(filename string) (models.FileType, error) {
    ft, ok := models.FileTypeFromName(filename)
    if !ok {
        return "", &UnsupportedFormatError{Filename: filename}
    }
    return ft, nil
}

// NewClient 按 provider 创建解析客户端
func NewClient(provider string, log logger.Logger) (Client, error) {
    switch strings.ToLower(provider) {
    case "docmind", "":
        return NewDocMindClient(log)
    case "textract":
        return NewTextractClient(log)
    default:
        return nil, fmt.Errorf("unsupported parser provider: %s", provider)
    }
}
