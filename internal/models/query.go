package models

// Language 检索支持的语言
type Language string

const (
    LangChinese Language = "zh"
    LangEnglish Language = "en"
)

// Counterpart 返回另一种受支持的语言
func (l Language) Counterpart() Language {
    if l == LangChinese {
        return LangEnglish
    }
    return LangChinese
}

// TaggedText 带语言标记的文本
type TaggedText struct {
    Text     string   `json:"text"`
    Language Language `json:"language"`
}

// BilingualQuery 同一查询的双语形式
type BilingualQuery struct {
    Original   TaggedText `json:"original"`
    Translated TaggedText `json:"translated"`
}
