package extract

import (
    "regexp"
    "strings"
    "unicode/utf8"
)

// 参考文献特征的正则族
var (
    // [12] / 【3】 开头的引文编号
    reLeadingCitation = regexp.MustCompile(`^\s*[\[【]\d+[\]】]`)
    // DOI 标记或裸 DOI 号
    reDOI = regexp.MustCompile(`(?i)\bdoi\s*[:：]|\b10\.\d{4,9}/\S+`)
    // 多作者缩写
    reEtAl = regexp.MustCompile(`(?i)\bet\s+al\b`)
    // 书号刊号
    reISBNISSN = regexp.MustCompile(`(?i)\bIS[BS]N\b`)
    // 年份（长文本的辅助信号）
    reYear = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// 长文本启用标点密度启发式的阈值
const (
    longTextRunes    = 60
    punctDensityBar  = 0.08
    punctCandidates  = `,;:.()[]{}/-，、；：。（）【】《》`
)

// IsReferenceLike 判断一段文本是否像参考文献条目。
// 启发式按构造就是近似的：宁可错杀引文，也不让引文噪声进索引。
func IsReferenceLike(text string) bool {
    trimmed := strings.TrimSpace(text)
    if trimmed == "" {
        return false
    }

    if reLeadingCitation.MatchString(trimmed) {
        return true
    }
    if reDOI.MatchString(trimmed) {
        return true
    }
    if reEtAl.MatchString(trimmed) {
        return true
    }
    if reISBNISSN.MatchString(trimmed) {
        return true
    }

    // 长文本：标点密度高且含年份，基本是条目式引文
    if utf8.RuneCountInString(trimmed) >= longTextRunes &&
        punctDensity(trimmed) >= punctDensityBar &&
        reYear.MatchString(trimmed) {
        return true
    }
    return false
}

func punctDensity(text string) float64 {
    total, punct := 0, 0
    for _, r := range text {
        total++
        if strings.ContainsRune(punctCandidates, r) {
            punct++
        }
    }
    if total == 0 {
        return 0
    }
    return float64(punct) / float64(total)
}
