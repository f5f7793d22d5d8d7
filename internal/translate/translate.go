package translate

import (
    "context"
    "strings"
    "unicode"

    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// Backend 翻译模型后端。具体实现可替换，当前由 pkg/llm 提供。
type Backend interface {
    Chat(ctx context.Context, system, user string) (string, error)
}

// Translator 中英互译器，检索走双语通道前先过这里
type Translator struct {
    backend Backend
    log     logger.Logger
}

func NewTranslator(backend Backend, log logger.Logger) *Translator {
    return &Translator{backend: backend, log: log}
}

// DetectLanguage 根据 CJK 汉字与拉丁字母的占比判断语言。
// 拉丁字母严格多于汉字判英文，其余情况（含空串）一律判中文。
func DetectLanguage(text string) models.Language {
    var han, latin int
    for _, r := range text {
        switch {
        case unicode.Is(unicode.Han, r):
            han++
        case unicode.Is(unicode.Latin, r):
            latin++
        }
    }
    if latin > han {
        return models.LangEnglish
    }
    return models.LangChinese
}

const (
    toChinesePrompt = "你是专业翻译。把用户给出的内容翻译成中文，只输出译文，不要任何解释。"
    toEnglishPrompt = "You are a professional translator. Translate the user's text into English. Output only the translation, nothing else."
)

// Translate 把文本翻译到目标语言。任何失败都返回原文并记告警，从不报错。
func (t *Translator) Translate(ctx context.Context, text string, target models.Language) string {
    if strings.TrimSpace(text) == "" {
        return text
    }

    prompt := toChinesePrompt
    if target == models.LangEnglish {
        prompt = toEnglishPrompt
    }

    out, err := t.backend.Chat(ctx, prompt, text)
    if err != nil {
        t.log.Warn("translation failed, using original text",
            logger.String("target", string(target)),
            logger.Error(err),
        )
        return text
    }
    out = strings.TrimSpace(out)
    if out == "" {
        t.log.Warn("translation returned empty output, using original text",
            logger.String("target", string(target)),
        )
        return text
    }
    return out
}

// QueryTranslation 检测语言、翻到互补语言，返回双语标记形式
func (t *Translator) QueryTranslation(ctx context.Context, userText string) models.BilingualQuery {
    lang := DetectLanguage(userText)
    counter := lang.Counterpart()
    return models.BilingualQuery{
        Original:   models.TaggedText{Text: userText, Language: lang},
        Translated: models.TaggedText{Text: t.Translate(ctx, userText, counter), Language: counter},
    }
}
