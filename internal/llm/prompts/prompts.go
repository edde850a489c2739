package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/interviewer/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var delimiterTagRegex = regexp.MustCompile(`(?i)</?\s*(user-answer|resume|knowledge-base|system-instructions)\b[^>]*>`)

// MaxInputRunes caps user-supplied text embedded into a prompt.
const MaxInputRunes = 10000

// Mode names a prompt template.
type Mode string

const (
	ModeCompany    Mode = "company"
	ModeKeyword    Mode = "keyword"
	ModeResume     Mode = "resume"
	ModeEvaluation Mode = "evaluation"
	ModeKnowledge  Mode = "knowledge"
)

var validModes = map[Mode]bool{
	ModeCompany:    true,
	ModeKeyword:    true,
	ModeResume:     true,
	ModeEvaluation: true,
	ModeKnowledge:  true,
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates *template.Template
)

var funcs = template.FuncMap{
	"join": strings.Join,
}

func load() error {
	loadOnce.Do(func() {
		templates, loadErr = template.New("prompts").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse prompt templates: %w", loadErr)
		}
	})
	return loadErr
}

// GenerationData holds template data for the question generation prompts.
type GenerationData struct {
	Company        string
	Position       string
	Keywords       string
	Resume         string
	TargetPosition string
	Difficulty     string
	Count          int
}

// EvaluationData holds template data for the answer evaluation prompt.
type EvaluationData struct {
	Question        string
	Answer          string
	KnowledgePoints []string
}

// KnowledgeData holds template data for knowledge base questions.
type KnowledgeData struct {
	Query   string
	Source  string
	Context string
}

// BuildGeneration renders the generation prompt for spec.Mode. Every
// generation prompt names the requested count and the question fields.
func BuildGeneration(spec model.GenerationSpec) (string, error) {
	var mode Mode
	switch spec.Mode {
	case model.ModeCompany:
		mode = ModeCompany
	case model.ModeKeyword:
		mode = ModeKeyword
	case model.ModeResume:
		mode = ModeResume
	default:
		return "", fmt.Errorf("unknown generation mode %q", spec.Mode)
	}
	if spec.Count <= 0 {
		return "", errors.New("question count must be positive")
	}

	difficulty := spec.Difficulty
	if difficulty == "" {
		difficulty = model.DifficultyIntermediate
	}
	data := GenerationData{
		Company:        strings.TrimSpace(spec.Company),
		Position:       strings.TrimSpace(spec.Position),
		Keywords:       strings.Join(spec.KeywordList(), ", "),
		TargetPosition: strings.TrimSpace(spec.TargetPosition),
		Difficulty:     difficulty.Label(),
		Count:          spec.Count,
	}
	if mode == ModeResume {
		data.Resume = sanitize(spec.ResumeText, "[No resume provided]")
	}
	return Build(mode, data)
}

// BuildEvaluation renders the answer evaluation prompt.
func BuildEvaluation(question, answer string, knowledgePoints []string) (string, error) {
	return Build(ModeEvaluation, EvaluationData{
		Question:        strings.TrimSpace(question),
		Answer:          sanitize(answer, "[No answer provided]"),
		KnowledgePoints: model.Dedupe(knowledgePoints),
	})
}

// BuildKnowledge renders a knowledge base question. An empty context asks the
// question on its own.
func BuildKnowledge(query, source, context string) (string, error) {
	return Build(ModeKnowledge, KnowledgeData{
		Query:   strings.TrimSpace(query),
		Source:  source,
		Context: delimiterTagRegex.ReplaceAllString(context, ""),
	})
}

// Build executes the template for mode with data.
func Build(mode Mode, data any) (string, error) {
	if !validModes[mode] {
		return "", errors.New("invalid prompt mode: " + string(mode))
	}
	if err := load(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(mode)+".tmpl", data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", mode, err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func sanitize(text, empty string) string {
	text = delimiterTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return empty
	}

	if utf8.RuneCountInString(text) > MaxInputRunes {
		runes := []rune(text)
		text = string(runes[:MaxInputRunes]) + "\n\n[Truncated due to length]"
	}

	return text
}
