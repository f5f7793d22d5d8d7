package models

import (
    "path/filepath"
    "strings"
    "time"
)

// FileType 支持的文档类型
type FileType string

const (
    PDF         FileType = "pdf"
    DOCX        FileType = "docx"
    Spreadsheet FileType = "spreadsheet"
)

var extToFileType = map[string]FileType{
    ".pdf":  PDF,
    ".docx": DOCX,
    ".doc":  DOCX,
    ".xlsx": Spreadsheet,
    ".xls":  Spreadsheet,
}

// FileTypeFromName 根据扩展名推断文档类型
func FileTypeFromName(filename string) (FileType, bool) {
    ext := strings.ToLower(filepath.Ext(filename))
    t, ok := extToFileType[ext]
    return t, ok
}

// FileRecord 单个文件的索引状态
type FileRecord struct {
    Filename        string    `json:"filename"`
    StorageKey      string    `json:"storage_key"`
    UploadTimeUTC   time.Time `json:"upload_time_utc"`
    UploadTimeLocal time.Time `json:"upload_time_local"`
    Vectorized      bool      `json:"vectorized"`
    LastUpdated     time.Time `json:"last_updated"`
}

// FileIndex 文件名 → 状态记录
type FileIndex map[string]*FileRecord

// BatchReport 批量摄取的统计结果
type BatchReport struct {
    Total     int `json:"total"`
    Processed int `json:"processed"`
    Failed    int `json:"failed"`
    Skipped   int `json:"skipped"`
}
