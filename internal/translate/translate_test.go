package translate

import (
    "context"
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/PrescottClub/aurawell-rag/internal/models"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

type fakeBackend struct {
    reply string
    err   error
    calls int
}

func (b *fakeBackend) Chat(ctx context.Context, system, user string) (string, error) {
    b.calls++
    return b.reply, b.err
}

func TestDetectLanguage(t *testing.T) {
    tests := []struct {
        name string
        text string
        want models.Language
    }{
        {"pure chinese", "每天喝多少水合适", models.LangChinese},
        {"pure english", "how much water per day", models.LangEnglish},
        {"mixed mostly chinese", "维生素C的每日摄入量", models.LangChinese},
        {"mixed mostly english", "daily intake of 维生素", models.LangEnglish},
        {"empty defaults to chinese", "", models.LangChinese},
        {"digits only defaults to chinese", "12345", models.LangChinese},
        {"equal counts default to chinese", "水w", models.LangChinese},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            assert.Equal(t, tt.want, DetectLanguage(tt.text))
        })
    }
}

func TestLanguageCounterpart(t *testing.T) {
    assert.Equal(t, models.LangEnglish, models.LangChinese.Counterpart())
    assert.Equal(t, models.LangChinese, models.LangEnglish.Counterpart())
}

func TestTranslate_Success(t *testing.T) {
    backend := &fakeBackend{reply: "  How much water should I drink daily?  "}
    tr := NewTranslator(backend, logger.NewTestLogger())

    out := tr.Translate(context.Background(), "每天应该喝多少水？", models.LangEnglish)
    assert.Equal(t, "How much water should I drink daily?", out)
    assert.Equal(t, 1, backend.calls)
}

func TestTranslate_BackendErrorReturnsOriginal(t *testing.T) {
    backend := &fakeBackend{err: errors.New("upstream timeout")}
    log := logger.NewTestLogger()
    tr := NewTranslator(backend, log)

    out := tr.Translate(context.Background(), "每天喝多少水", models.LangEnglish)
    assert.Equal(t, "每天喝多少水", out)
    assert.True(t, log.Contains("WARN", "translation failed"))
}

func TestTranslate_EmptyOutputReturnsOriginal(t *testing.T) {
    backend := &fakeBackend{reply: "   "}
    log := logger.NewTestLogger()
    tr := NewTranslator(backend, log)

    out := tr.Translate(context.Background(), "保持充足睡眠", models.LangEnglish)
    assert.Equal(t, "保持充足睡眠", out)
    assert.True(t, log.Contains("WARN", "empty output"))
}

func TestTranslate_BlankInputSkipsBackend(t *testing.T) {
    backend := &fakeBackend{reply: "should not be used"}
    tr := NewTranslator(backend, logger.NewTestLogger())

    assert.Equal(t, "  ", tr.Translate(context.Background(), "  ", models.LangChinese))
    assert.Equal(t, 0, backend.calls)
}

func TestQueryTranslation_ChineseInput(t *testing.T) {
    backend := &fakeBackend{reply: "benefits of drinking water"}
    tr := NewTranslator(backend, logger.NewTestLogger())

    query := tr.QueryTranslation(context.Background(), "喝水的好处")

    require.Equal(t, "喝水的好处", query.Original.Text)
    assert.Equal(t, models.LangChinese, query.Original.Language)
    assert.Equal(t, "benefits of drinking water", query.Translated.Text)
    assert.Equal(t, models.LangEnglish, query.Translated.Language)
}

func TestQueryTranslation_EnglishInput(t *testing.T) {
    backend := &fakeBackend{reply: "喝水的好处"}
    tr := NewTranslator(backend, logger.NewTestLogger())

    query := tr.QueryTranslation(context.Background(), "benefits of drinking water")

    assert.Equal(t, models.LangEnglish, query.Original.Language)
    assert.Equal(t, models.LangChinese, query.Translated.Language)
    assert.Equal(t, "喝水的好处", query.Translated.Text)
}

func TestQueryTranslation_FailureKeepsOriginalText(t *testing.T) {
    backend := &fakeBackend{err: errors.New("model down")}
    tr := NewTranslator(backend, logger.NewTestLogger())

    query := tr.QueryTranslation(context.Background(), "喝水的好处")

    assert.Equal(t, query.Original.Text, query.Translated.Text)
    assert.Equal(t, models.LangEnglish, query.Translated.Language)
}
