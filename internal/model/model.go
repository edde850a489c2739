package model

import (
	"strings"
	"time"
)

// Difficulty is the requested or reported level of an interview question.
type Difficulty string

const (
	// DifficultyBeginner is an entry-level question.
	DifficultyBeginner Difficulty = "beginner"
	// DifficultyIntermediate is the default level.
	DifficultyIntermediate Difficulty = "intermediate"
	// DifficultyAdvanced is a senior-level question.
	DifficultyAdvanced Difficulty = "advanced"
)

var difficultyAliases = map[string]Difficulty{
	"beginner":     DifficultyBeginner,
	"easy":         DifficultyBeginner,
	"junior":       DifficultyBeginner,
	"初级":           DifficultyBeginner,
	"简单":           DifficultyBeginner,
	"intermediate": DifficultyIntermediate,
	"medium":       DifficultyIntermediate,
	"middle":       DifficultyIntermediate,
	"中级":           DifficultyIntermediate,
	"中等":           DifficultyIntermediate,
	"advanced":     DifficultyAdvanced,
	"hard":         DifficultyAdvanced,
	"senior":       DifficultyAdvanced,
	"高级":           DifficultyAdvanced,
	"困难":           DifficultyAdvanced,
}

// ParseDifficulty maps English names, easy/medium/hard and the Chinese labels
// onto a canonical Difficulty. The second result is false for unknown input.
func ParseDifficulty(s string) (Difficulty, bool) {
	d, ok := difficultyAliases[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// Label returns the label used when talking to the model.
func (d Difficulty) Label() string {
	switch d {
	case DifficultyBeginner:
		return "初级"
	case DifficultyAdvanced:
		return "高级"
	default:
		return "中级"
	}
}

// Mode selects how a question set is generated.
type Mode string

const (
	ModeCompany Mode = "company"
	ModeKeyword Mode = "keyword"
	ModeResume  Mode = "resume"
)

// Question categories produced by the extractor.
const (
	CategoryGeneral       = "综合类"
	CategoryTheory        = "基础理论"
	CategoryPractice      = "实践应用"
	CategoryArchitecture  = "架构设计"
	CategoryProblem       = "问题解决"
	CategoryComparison    = "对比分析"
	CategoryPerformance   = "性能优化"
	CategoryComprehensive = "综合应用"
)

// Question is a single generated interview question.
type Question struct {
	Text            string     `json:"question"`
	Difficulty      Difficulty `json:"difficulty"`
	Category        string     `json:"category"`
	KnowledgePoints []string   `json:"knowledge_points"`
}

// GenerationSpec describes one question generation request.
type GenerationSpec struct {
	Mode           Mode
	UserID         string
	Company        string
	Position       string
	Keywords       string
	ResumeText     string
	TargetPosition string
	Difficulty     Difficulty
	Count          int
}

// KeywordList splits the comma separated keywords, accepting both ASCII and
// full-width commas.
func (s GenerationSpec) KeywordList() []string {
	return SplitKeywords(s.Keywords)
}

// SplitKeywords splits a comma separated keyword string and drops blanks.
func SplitKeywords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || r == '、' || r == ';' || r == '；'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// EvaluationRecord is one evaluated answer. Records are append-only.
type EvaluationRecord struct {
	ID                     string            `json:"id"`
	Question               string            `json:"question"`
	UserAnswer             string            `json:"user_answer"`
	Score                  int               `json:"score"`
	KnowledgePoints        []string          `json:"knowledge_points"`
	WeakAspects            []string          `json:"weak_aspects"`
	DetailedFeedback       map[string]string `json:"detailed_feedback"`
	ImprovementSuggestions []string          `json:"improvement_suggestions"`
	CreatedAt              time.Time         `json:"created_at"`
	Degraded               bool              `json:"degraded,omitempty"`
}

// WeaknessProfile summarizes a user's evaluation history.
type WeaknessProfile struct {
	WeakKnowledgePoints map[string]int `json:"weak_knowledge_points"`
	WeakAspects         map[string]int `json:"weak_aspects"`
	ImprovementPriority []string       `json:"improvement_priority"`
	SuggestedPractice   []string       `json:"suggested_practice"`
}

// KnowledgeBaseEntry is a named flat knowledge base. Saving replaces it wholesale.
type KnowledgeBaseEntry struct {
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Placeholder used for resume analysis fields the model did not fill.
const Pending = "待分析"

// ResumeAnalysis is the structured view of a resume returned with resume questions.
type ResumeAnalysis struct {
	EducationBackground []string `json:"education_background"`
	WorkExperience      []string `json:"work_experience"`
	Skills              []string `json:"skills"`
	Projects            []string `json:"projects"`
	Keywords            []string `json:"keywords"`
}

// DefaultResumeAnalysis returns an analysis with every field pending.
func DefaultResumeAnalysis() ResumeAnalysis {
	return ResumeAnalysis{
		EducationBackground: []string{Pending},
		WorkExperience:      []string{Pending},
		Skills:              []string{Pending},
		Projects:            []string{Pending},
		Keywords:            []string{Pending},
	}
}

// Citation points at the knowledge base content used for an answer.
type Citation struct {
	Source    string `json:"source"`
	Content   string `json:"content"`
	Relevance string `json:"relevance"`
}

// Dedupe returns the non-blank values of in, trimmed, in first-seen order.
func Dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
