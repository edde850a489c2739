package extract

import (
	"strings"
	"unicode/utf8"
)

// FeedbackSummaryKey holds free-text feedback when the reply had no
// per-dimension breakdown.
const FeedbackSummaryKey = "整体评价"

// SummaryRunes bounds the raw reply quoted as summary feedback.
const SummaryRunes = 200

const emptySummary = "模型未返回可解析的评估内容"

// Default weak aspects and suggestions used when the reply is unusable.
var (
	DefaultWeakAspects = []string{"表达完整性", "技术深度"}
	DefaultSuggestions = []string{
		"建议更详细地阐述技术细节",
		"可以结合实际项目经验进行说明",
		"注意逻辑结构的清晰性",
	}
)

// DefaultEvaluation is the default tier. The score depends only on the
// answer length in runes.
func DefaultEvaluation(raw, answer string) Evaluation {
	return Evaluation{
		Score:                  float64(LengthScore(answer)),
		WeakAspects:            append([]string(nil), DefaultWeakAspects...),
		DetailedFeedback:       map[string]string{FeedbackSummaryKey: Summary(raw)},
		ImprovementSuggestions: append([]string(nil), DefaultSuggestions...),
		Tier:                   TierDefault,
		Degraded:               true,
	}
}

// LengthScore buckets an answer by its length as given: under 50 runes
// scores 30, under 200 scores 60, anything longer 75.
func LengthScore(answer string) int {
	n := utf8.RuneCountInString(answer)
	switch {
	case n < 50:
		return 30
	case n < 200:
		return 60
	default:
		return 75
	}
}

// Summary returns raw trimmed to SummaryRunes runes, marked with "..." when cut.
func Summary(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return emptySummary
	}
	if utf8.RuneCountInString(raw) <= SummaryRunes {
		return raw
	}
	return string([]rune(raw)[:SummaryRunes]) + "..."
}
