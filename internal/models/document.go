package models

// LayoutType 解析服务返回的布局元素类型
type LayoutType string

const (
    LayoutParagraph LayoutType = "paragraph"
    LayoutTitle     LayoutType = "title"
    LayoutTable     LayoutType = "table"
    LayoutReference LayoutType = "reference"
)

// LayoutElement 文档版面解析结果中的单个元素
type LayoutElement struct {
    Type     LayoutType `json:"type"`
    SubType  string     `json:"sub_type,omitempty"`
    Markdown string     `json:"markdown_content"`
}

// ParsedDocument 按文档顺序排列的布局元素序列
type ParsedDocument struct {
    Layouts []LayoutElement `json:"layouts"`
}

// SegmentSource 标记片段的来源
type SegmentSource string

const (
    // SourceFiltered 高密度过滤产出的片段
    SourceFiltered SegmentSource = "filtered_content"
    // SourceOriginal 原文逐元素切分的片段
    SourceOriginal SegmentSource = "original_content"
)

// ExtractedSegment 清洗后的文本片段及其来源标记。
// SubTitle 是片段所属的最近标题，逐元素切分时填充，过滤路径为空。
type ExtractedSegment struct {
    Text     string        `json:"text"`
    Source   SegmentSource `json:"source"`
    SubTitle string        `json:"sub_title,omitempty"`
}
