package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pavelanni/interviewer/internal/model"
)

var (
	leadingEnumRegex  = regexp.MustCompile(`^(?:10|[1-9])[.．、)）]\s*`)
	inlineEnumRegex   = regexp.MustCompile(`\s(?:10|[1-9])(?:[.．]\s|、)`)
	topicPrefixRegex  = regexp.MustCompile(`^题目\s*\d*\s*[:：.、]?\s*`)
	jsonKeyRegex      = regexp.MustCompile(`^"([A-Za-z_]+)"\s*:\s*"?`)
	markdownLeadChars = "#*->` \t"
)

// SegmentQuestions is the line heuristic tier. A line opens a new question
// when it contains a question mark, starts with an enumeration marker or a
// digit, or starts with the topic marker; other lines continue the current
// question. Lines before the first marker are ignored.
func SegmentQuestions(raw string, spec model.GenerationSpec) ([]model.Question, bool) {
	keywords := spec.KeywordList()
	difficulty := requestedDifficulty(spec)

	var out []model.Question
	flush := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		out = append(out, model.Question{
			Text:            text,
			Difficulty:      difficulty,
			Category:        Categorize(text),
			KnowledgePoints: KnowledgePoints(text, keywords),
		})
	}

	var current strings.Builder
	open := false
	for _, line := range segmentLines(raw) {
		if isMarkerLine(line) {
			if open {
				flush(current.String())
			}
			current.Reset()
			current.WriteString(cleanQuestion(line))
			open = true
			continue
		}
		if open {
			current.WriteString(" ")
			current.WriteString(line)
		}
	}
	if open {
		flush(current.String())
	}

	return out, len(out) > 0
}

// segmentLines splits raw into trimmed, non-empty lines. An enumerated line
// holding several inline items ("1. a? 2. b?") is split into one line per item.
func segmentLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = normalizeLine(line)
		if line == "" {
			continue
		}
		if enumPrefixLen(line) == 0 {
			lines = append(lines, line)
			continue
		}
		prev := 0
		for _, m := range inlineEnumRegex.FindAllStringIndex(line, -1) {
			if part := strings.TrimSpace(line[prev:m[0]]); part != "" {
				lines = append(lines, part)
			}
			prev = m[0] + 1
		}
		if part := strings.TrimSpace(line[prev:]); part != "" {
			lines = append(lines, part)
		}
	}
	return lines
}

// normalizeLine drops markdown decoration and JSON syntax left over from a
// reply that almost parsed.
func normalizeLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, markdownLeadChars)
	line = strings.TrimRight(line, "*` \t")
	if strings.Trim(line, "{}[], ") == "" {
		return ""
	}
	if m := jsonKeyRegex.FindStringSubmatchIndex(strings.TrimLeft(line, "{[ ")); m != nil {
		line = strings.TrimLeft(line, "{[ ")
		switch line[m[2]:m[3]] {
		case "question", "text":
			line = strings.TrimRight(line[m[1]:], `"}], `)
		default:
			return ""
		}
	}
	return strings.TrimSpace(line)
}

func isMarkerLine(line string) bool {
	if strings.ContainsAny(line, "?？") {
		return true
	}
	if strings.HasPrefix(line, "题目") {
		return true
	}
	r := []rune(line)
	return len(r) > 0 && unicode.IsDigit(r[0])
}

// enumPrefixLen returns the byte length of a leading "1." style marker, or 0.
// A decimal such as "3.5" is not a marker.
func enumPrefixLen(line string) int {
	loc := leadingEnumRegex.FindStringIndex(line)
	if loc == nil {
		return 0
	}
	marker := line[:loc[1]]
	if (strings.HasSuffix(marker, ".") || strings.HasSuffix(marker, "．")) && loc[1] < len(line) {
		if unicode.IsDigit(rune(line[loc[1]])) {
			return 0
		}
	}
	return loc[1]
}

func cleanQuestion(line string) string {
	line = line[enumPrefixLen(line):]
	line = topicPrefixRegex.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}
