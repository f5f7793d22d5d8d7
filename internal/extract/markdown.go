package extract

import (
    "strings"

    "github.com/PrescottClub/aurawell-rag/internal/models"
)

// Markdown 把解析结果按文档顺序拼接成整篇文本。
// 空行分隔段落，段内相邻行用单个空格拼成一行，输出每段一行。
func Markdown(doc *models.ParsedDocument) string {
    if doc == nil || len(doc.Layouts) == 0 {
        return ""
    }
    var raw strings.Builder
    for _, l := range doc.Layouts {
        raw.WriteString(l.Markdown)
        raw.WriteString("\n")
    }
    return joinParagraphs(raw.String())
}

func joinParagraphs(text string) string {
    var paragraphs []string
    var current []string
    flush := func() {
        if len(current) > 0 {
            paragraphs = append(paragraphs, strings.Join(current, " "))
            current = nil
        }
    }
    for _, line := range strings.Split(text, "\n") {
        trimmed := strings.TrimSpace(line)
        if trimmed == "" {
            flush()
            continue
        }
        current = append(current, trimmed)
    }
    flush()
    return strings.Join(paragraphs, "\n")
}
