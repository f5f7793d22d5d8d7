package validator

import (
    "bytes"
    "crypto/sha256"
    "encoding/hex"
    "fmt"
    "io"
    "mime/multipart"
    "net/http"
    "path/filepath"
    "strings"

    "github.com/ledongthuc/pdf"

    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// DocumentValidator 上传文档验证器
type DocumentValidator struct {
    logger logger.Logger
    config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
    MaxFileSize  int64               // 最大文件大小（字节）
    AllowedTypes map[string][]string // 允许的文件类型 {扩展名: []MIME类型}
    MaxPageCount int                 // PDF最大页数
}

// ValidationResult 验证结果
type ValidationResult struct {
    IsValid  bool              `json:"isValid"`
    Errors   []ValidationError `json:"errors,omitempty"`
    FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
    Code    string `json:"code"`
    Message string `json:"message"`
    Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
    Filename  string `json:"filename"`
    Size      int64  `json:"size"`
    MimeType  string `json:"mimeType"`
    Extension string `json:"extension"`
    Hash      string `json:"hash"`
    Pages     int    `json:"pages,omitempty"`
}

// NewDocumentValidator 创建新的文档验证器。
// 默认只放行流水线能解析的 pdf/docx/表格类型；
// MIME 列表包含嗅探出的容器类型（docx/xlsx 是 zip，doc/xls 是 OLE）。
func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
    if config == nil {
        config = &ValidatorConfig{
            MaxFileSize: 50 * 1024 * 1024, // 50MB
            AllowedTypes: map[string][]string{
                ".pdf":  {"application/pdf"},
                ".doc":  {"application/x-ole-storage", "application/msword", "application/octet-stream"},
                ".docx": {"application/zip", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
                ".xls":  {"application/x-ole-storage", "application/vnd.ms-excel", "application/octet-stream"},
                ".xlsx": {"application/zip", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
            },
            MaxPageCount: 1000,
        }
    }

    return &DocumentValidator{
        logger: log,
        config: config,
    }
}

// ValidateFile 验证单个上传文件
func (v *DocumentValidator) ValidateFile(file *multipart.FileHeader) (*ValidationResult, error) {
    result := &ValidationResult{
        IsValid: true,
        Errors:  make([]ValidationError, 0),
        FileInfo: FileInfo{
            Filename:  file.Filename,
            Size:      file.Size,
            Extension: strings.ToLower(filepath.Ext(file.Filename)),
        },
    }

    f, err := file.Open()
    if err != nil {
        return nil, fmt.Errorf("failed to open file: %w", err)
    }
    defer f.Close()

    hash, err := v.calculateHash(f)
    if err != nil {
        return nil, fmt.Errorf("failed to calculate hash: %w", err)
    }
    result.FileInfo.Hash = hash

    if _, err := f.Seek(0, io.SeekStart); err != nil {
        return nil, fmt.Errorf("failed to reset file pointer: %w", err)
    }

    if errs := v.performBasicValidation(result.FileInfo); len(errs) > 0 {
        result.IsValid = false
        result.Errors = append(result.Errors, errs...)
        // 类型都不对就没必要再做内容检查
        return result, nil
    }

    mimeType, err := v.detectMimeType(f)
    if err != nil {
        return nil, fmt.Errorf("failed to detect mime type: %w", err)
    }
    result.FileInfo.MimeType = mimeType

    if errs := v.validateMimeType(result.FileInfo); len(errs) > 0 {
        result.IsValid = false
        result.Errors = append(result.Errors, errs...)
    }

    if result.FileInfo.Extension == ".pdf" {
        pages, errs := v.validatePDF(f)
        result.FileInfo.Pages = pages
        if len(errs) > 0 {
            result.IsValid = false
            result.Errors = append(result.Errors, errs...)
        }
    }

    return result, nil
}

// 基本验证
func (v *DocumentValidator) performBasicValidation(fileInfo FileInfo) []ValidationError {
    var errors []ValidationError

    if fileInfo.Size > v.config.MaxFileSize {
        errors = append(errors, ValidationError{
            Code:    "FILE_TOO_LARGE",
            Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
            Field:   "size",
        })
    }

    if _, ok := v.config.AllowedTypes[fileInfo.Extension]; !ok {
        errors = append(errors, ValidationError{
            Code:    "INVALID_FILE_TYPE",
            Message: fmt.Sprintf("File type %s is not allowed", fileInfo.Extension),
            Field:   "extension",
        })
    }

    return errors
}

// MIME类型验证：嗅探出的类型必须与扩展名匹配
func (v *DocumentValidator) validateMimeType(fileInfo FileInfo) []ValidationError {
    allowedMimes := v.config.AllowedTypes[fileInfo.Extension]
    for _, mime := range allowedMimes {
        if mime == fileInfo.MimeType {
            return nil
        }
    }
    return []ValidationError{{
        Code:    "INVALID_MIME_TYPE",
        Message: fmt.Sprintf("Invalid MIME type %s for extension %s", fileInfo.MimeType, fileInfo.Extension),
        Field:   "mimeType",
    }}
}

// 检测MIME类型
func (v *DocumentValidator) detectMimeType(file multipart.File) (string, error) {
    buffer := make([]byte, 512)
    _, err := file.Read(buffer)
    if err != nil && err != io.EOF {
        return "", err
    }
    if _, err := file.Seek(0, io.SeekStart); err != nil {
        return "", err
    }
    return http.DetectContentType(buffer), nil
}

// 计算文件哈希
func (v *DocumentValidator) calculateHash(file multipart.File) (string, error) {
    hash := sha256.New()
    if _, err := io.Copy(hash, file); err != nil {
        return "", err
    }
    return hex.EncodeToString(hash.Sum(nil)), nil
}

// PDF特定验证：能否打开、是否加密、页数是否超限
func (v *DocumentValidator) validatePDF(file multipart.File) (int, []ValidationError) {
    content, err := io.ReadAll(file)
    if err != nil {
        return 0, []ValidationError{{
            Code:    "PDF_UNREADABLE",
            Message: fmt.Sprintf("failed to read pdf content: %v", err),
        }}
    }
    if _, err := file.Seek(0, io.SeekStart); err != nil {
        return 0, []ValidationError{{
            Code:    "PDF_UNREADABLE",
            Message: fmt.Sprintf("failed to reset file pointer: %v", err),
        }}
    }

    reader := bytes.NewReader(content)
    pdfReader, err := pdf.NewReader(reader, reader.Size())
    if err != nil {
        code := "PDF_UNREADABLE"
        if strings.Contains(err.Error(), "encrypt") || strings.Contains(err.Error(), "password") {
            code = "PDF_ENCRYPTED"
        }
        return 0, []ValidationError{{
            Code:    code,
            Message: fmt.Sprintf("cannot open pdf: %v", err),
        }}
    }

    pages := pdfReader.NumPage()
    if pages < 1 {
        return pages, []ValidationError{{
            Code:    "PDF_EMPTY",
            Message: "pdf has no pages",
        }}
    }
    if pages > v.config.MaxPageCount {
        return pages, []ValidationError{{
            Code:    "PDF_TOO_MANY_PAGES",
            Message: fmt.Sprintf("pdf has %d pages, maximum is %d", pages, v.config.MaxPageCount),
            Field:   "pages",
        }}
    }
    return pages, nil
}
