package parser

import (
    "bytes"
    "context"
    "fmt"
    "io"
    "path/filepath"
    "strings"

    "github.com/aws/aws-sdk-go-v2/aws"
    awsconfig "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/credentials"
    "github.com/aws/aws-sdk-go-v2/service/s3"
    "github.com/aws/aws-sdk-go-v2/service/textract"
    "github.com/aws/aws-sdk-go-v2/service/textract/types"
    "github.com/google/uuid"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// TextractClient 用 AWS Textract 异步分析实现解析客户端。
// 异步 API 只接受 S3 上的文件，Submit 先把内容传到中转目录。
// Textract 侧只支持 PDF，docx/表格请走 docmind 后端。
type TextractClient struct {
    textract *textract.Client
    s3       *s3.Client
    bucket   string
    prefix   string
    log      logger.Logger
}

func NewTextractClient(log logger.Logger) (*TextractClient, error) {
    cfg := config.GetTextractConfig()
    if err := cfg.Validate(); err != nil {
        return nil, err
    }

    awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
        awsconfig.WithRegion(cfg.Region),
        awsconfig.WithCredentialsProvider(
            credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
        ),
    )
    if err != nil {
        return nil, fmt.Errorf("load aws config: %w", err)
    }

    return &TextractClient{
        textract: textract.NewFromConfig(awsCfg),
        s3:       s3.NewFromConfig(awsCfg),
        bucket:   cfg.ScratchBucket,
        prefix:   cfg.ScratchPrefix,
        log:      log,
    }, nil
}

func (c *TextractClient) Submit(ctx context.Context, reader io.Reader, filename string) (string, error) {
    fileType, err := checkFormat(filename)
    if err != nil {
        return "", err
    }
    if fileType != models.PDF {
        return "", &UnsupportedFormatError{Filename: filename}
    }

    key := c.prefix + uuid.NewString() + "-" + filepath.Base(filename)
    data, err := io.ReadAll(reader)
    if err != nil {
        return "", fmt.Errorf("read file content: %w", err)
    }
    if _, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
        Bucket:        aws.String(c.bucket),
        Key:           aws.String(key),
        Body:          bytes.NewReader(data),
        ContentLength: aws.Int64(int64(len(data))),
    }); err != nil {
        return "", fmt.Errorf("upload to scratch bucket: %w", err)
    }

    out, err := c.textract.StartDocumentAnalysis(ctx, &textract.StartDocumentAnalysisInput{
        DocumentLocation: &types.DocumentLocation{
            S3Object: &types.S3Object{
                Bucket: aws.String(c.bucket),
                Name:   aws.String(key),
            },
        },
        FeatureTypes: []types.FeatureType{
            types.FeatureTypeLayout,
            types.FeatureTypeTables,
        },
    })
    if err != nil {
        return "", fmt.Errorf("start document analysis: %w", err)
    }

    jobID := aws.ToString(out.JobId)
    c.log.Info("textract job started",
        logger.String("filename", filename),
        logger.String("jobId", jobID),
        logger.String("scratchKey", key),
    )
    return jobID, nil
}

func (c *TextractClient) Poll(ctx context.Context, jobID string) (JobStatus, error) {
    out, err := c.textract.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
        JobId:      aws.String(jobID),
        MaxResults: aws.Int32(1),
    })
    if err != nil {
        return JobFailed, fmt.Errorf("poll job %s: %w", jobID, err)
    }

    switch out.JobStatus {
    case types.JobStatusInProgress:
        return JobProcessing, nil
    case types.JobStatusSucceeded, types.JobStatusPartialSuccess:
        return JobSuccess, nil
    case types.JobStatusFailed:
        return JobFailed, nil
    default:
        return JobFailed, fmt.Errorf("poll job %s: unknown status %q", jobID, out.JobStatus)
    }
}

// FetchResult 跟随 NextToken 取回全部 block，再组装成版面元素序列
func (c *TextractClient) FetchResult(ctx context.Context, jobID string) (*models.ParsedDocument, error) {
    var blocks []types.Block
    var nextToken *string
    for {
        out, err := c.textract.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
            JobId:     aws.String(jobID),
            NextToken: nextToken,
        })
        if err != nil {
            return nil, fmt.Errorf("fetch result of job %s: %w", jobID, err)
        }
        blocks = append(blocks, out.Blocks...)
        if out.NextToken == nil {
            break
        }
        nextToken = out.NextToken
    }
    return &models.ParsedDocument{Layouts: c.assembleLayouts(blocks)}, nil
}

// assembleLayouts 把 Textract 的 block 树还原成带类型标注的版面元素。
// LAYOUT_* block 通过 CHILD 关系引用行文本；TABLE 单独组装成 markdown 表格。
func (c *TextractClient) assembleLayouts(blocks []types.Block) []models.LayoutElement {
    byID := make(map[string]types.Block, len(blocks))
    for _, b := range blocks {
        if b.Id != nil {
            byID[*b.Id] = b
        }
    }

    var layouts []models.LayoutElement
    for _, b := range blocks {
        switch b.BlockType {
        case types.BlockTypeLayoutTitle, types.BlockTypeLayoutSectionHeader:
            if text := c.childText(b, byID); text != "" {
                layouts = append(layouts, models.LayoutElement{
                    Type:     models.LayoutTitle,
                    SubType:  string(b.BlockType),
                    Markdown: text,
                })
            }
        case types.BlockTypeLayoutText, types.BlockTypeLayoutList:
            if text := c.childText(b, byID); text != "" {
                layouts = append(layouts, models.LayoutElement{
                    Type:     models.LayoutParagraph,
                    SubType:  string(b.BlockType),
                    Markdown: text,
                })
            }
        case types.BlockTypeTable:
            if table := c.tableMarkdown(b, byID); table != "" {
                layouts = append(layouts, models.LayoutElement{
                    Type:     models.LayoutTable,
                    SubType:  string(b.BlockType),
                    Markdown: table,
                })
            }
        }
        // 页眉页脚页码不参与索引，直接跳过
    }
    return layouts
}

// childText 沿 CHILD 关系收集行文本
func (c *TextractClient) childText(block types.Block, byID map[string]types.Block) string {
    var sb strings.Builder
    for _, rel := range block.Relationships {
        if rel.Type != types.RelationshipTypeChild {
            continue
        }
        for _, id := range rel.Ids {
            child, ok := byID[id]
            if !ok || child.Text == nil {
                continue
            }
            if sb.Len() > 0 {
                sb.WriteString(" ")
            }
            sb.WriteString(*child.Text)
        }
    }
    return strings.TrimSpace(sb.String())
}

// tableMarkdown 把 CELL block 按行列坐标排成 markdown 表格
func (c *TextractClient) tableMarkdown(table types.Block, byID map[string]types.Block) string {
    type cell struct {
        row, col int
        text     string
    }
    var cells []cell
    maxRow, maxCol := 0, 0

    for _, rel := range table.Relationships {
        if rel.Type != types.RelationshipTypeChild {
            continue
        }
        for _, id := range rel.Ids {
            child, ok := byID[id]
            if !ok || child.BlockType != types.BlockTypeCell {
                continue
            }
            if child.RowIndex == nil || child.ColumnIndex == nil {
                continue
            }
            cl := cell{
                row:  int(*child.RowIndex),
                col:  int(*child.ColumnIndex),
                text: c.childText(child, byID),
            }
            if cl.row > maxRow {
                maxRow = cl.row
            }
            if cl.col > maxCol {
                maxCol = cl.col
            }
            cells = append(cells, cl)
        }
    }
    if maxRow == 0 || maxCol == 0 {
        return ""
    }

    grid := make([][]string, maxRow)
    for i := range grid {
        grid[i] = make([]string, maxCol)
    }
    for _, cl := range cells {
        grid[cl.row-1][cl.col-1] = cl.text
    }

    var rows []string
    for i, row := range grid {
        rows = append(rows, "| "+strings.Join(row, " | ")+" |")
        if i == 0 {
            sep := make([]string, maxCol)
            for j := range sep {
                sep[j] = "---"
            }
            rows = append(rows, "| "+strings.Join(sep, " | ")+" |")
        }
    }
    return strings.Join(rows, "\n")
}
