package extract

import (
    "context"
    "strings"
    "unicode/utf8"

    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// ChatModel 文本理解模型的最小接口，由 pkg/llm 的客户端实现
type ChatModel interface {
    Chat(ctx context.Context, system, user string) (string, error)
}

// SegmentDelimiter 模型输出中分隔片段的固定定界符
const SegmentDelimiter = "|||"

// 短于该长度的片段视为噪声丢弃
const minSegmentRunes = 8

const filterSystemPrompt = `你是健康知识库的内容提炼助手。从给定文档中抽取可直接使用的健康指导，` +
    `只保留具体可执行的建议、数值指标和明确结论，丢弃寒暄、背景铺垫和参考文献。` +
    `每条建议独立成句，条目之间用 ||| 分隔，不要输出编号或其他说明。`

// HighDensityFilter 调用文本理解模型，把整篇文档压缩成高密度指导片段
type HighDensityFilter struct {
    model ChatModel
    log   logger.Logger
}

func NewHighDensityFilter(model ChatModel, log logger.Logger) *HighDensityFilter {
    return &HighDensityFilter{model: model, log: log}
}

// Filter 返回过滤后的片段。模型失败或输出为空时返回错误/空切片，
// 由调用方退回逐元素路径，这里不做兜底。
func (f *HighDensityFilter) Filter(ctx context.Context, fullText string) ([]models.ExtractedSegment, error) {
    raw, err := f.model.Chat(ctx, filterSystemPrompt, fullText)
    if err != nil {
        return nil, err
    }

    var segments []models.ExtractedSegment
    for _, part := range strings.Split(raw, SegmentDelimiter) {
        text := strings.TrimSpace(part)
        if utf8.RuneCountInString(text) < minSegmentRunes {
            continue
        }
        segments = append(segments, models.ExtractedSegment{
            Text:   text,
            Source: models.SourceFiltered,
        })
    }
    f.log.Info("high density filter finished",
        logger.Int("segments", len(segments)),
    )
    return segments, nil
}

// Segments 逐元素切分：每个非引文段落、每个非引文表格单元格各成一段。
// 标题不单独成段，作为其后片段的 sub_title 上下文。
func Segments(doc *models.ParsedDocument) []models.ExtractedSegment {
    if doc == nil {
        return nil
    }
    var out []models.ExtractedSegment
    var subTitle string
    for _, l := range doc.Layouts {
        text := strings.TrimSpace(l.Markdown)
        if text == "" {
            continue
        }
        switch l.Type {
        case models.LayoutTitle:
            subTitle = text
        case models.LayoutReference:
            // 解析端已标注为参考文献
        case models.LayoutTable:
            for _, cell := range tableCells(text) {
                if IsReferenceLike(cell) {
                    continue
                }
                out = append(out, models.ExtractedSegment{
                    Text:     cell,
                    Source:   models.SourceOriginal,
                    SubTitle: subTitle,
                })
            }
        default:
            if IsReferenceLike(text) {
                continue
            }
            out = append(out, models.ExtractedSegment{
                Text:     text,
                Source:   models.SourceOriginal,
                SubTitle: subTitle,
            })
        }
    }
    return out
}

// tableCells 把 markdown 表格拆成单元格文本，跳过分隔行
func tableCells(table string) []string {
    var cells []string
    for _, row := range strings.Split(table, "\n") {
        row = strings.TrimSpace(row)
        if row == "" || isSeparatorRow(row) {
            continue
        }
        for _, cell := range strings.Split(strings.Trim(row, "|"), "|") {
            cell = strings.TrimSpace(cell)
            if cell != "" {
                cells = append(cells, cell)
            }
        }
    }
    return cells
}

func isSeparatorRow(row string) bool {
    stripped := strings.Map(func(r rune) rune {
        switch r {
        case '|', '-', ':', ' ':
            return -1
        }
        return r
    }, row)
    return stripped == "" && strings.Contains(row, "-")
}
