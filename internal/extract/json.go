package extract

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/pavelanni/interviewer/internal/model"
)

// decodeObject parses the text between the first '{' and the last '}' as a
// JSON object. Code fences and surrounding prose are ignored.
func decodeObject(raw string) (map[string]any, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func weakDecode(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

type jsonQuestion struct {
	Question        string   `mapstructure:"question"`
	Text            string   `mapstructure:"text"`
	Difficulty      string   `mapstructure:"difficulty"`
	Category        string   `mapstructure:"category"`
	KnowledgePoints []string `mapstructure:"knowledge_points"`
}

// ParseJSONQuestions is the JSON tier for question sets. It succeeds when the
// reply holds an object whose "questions" member is an array, even an empty
// one. Items without text are dropped.
func ParseJSONQuestions(raw string, spec model.GenerationSpec) ([]model.Question, bool) {
	obj, ok := decodeObject(raw)
	if !ok {
		return nil, false
	}
	if err := validateShape("questions", obj); err != nil {
		slog.Debug("reply does not match question shape", "error", err)
		return nil, false
	}

	items, _ := obj["questions"].([]any)
	out := make([]model.Question, 0, len(items))
	for _, item := range items {
		q, ok := normalizeQuestion(item, spec)
		if !ok {
			continue
		}
		out = append(out, q)
	}
	return out, true
}

func normalizeQuestion(item any, spec model.GenerationSpec) (model.Question, bool) {
	var jq jsonQuestion
	switch v := item.(type) {
	case string:
		jq.Question = v
	case map[string]any:
		if err := weakDecode(v, &jq); err != nil {
			slog.Debug("skipping malformed question item", "error", err)
			return model.Question{}, false
		}
	default:
		return model.Question{}, false
	}

	text := strings.TrimSpace(jq.Question)
	if text == "" {
		text = strings.TrimSpace(jq.Text)
	}
	if text == "" {
		return model.Question{}, false
	}

	difficulty, ok := model.ParseDifficulty(jq.Difficulty)
	if !ok {
		difficulty = requestedDifficulty(spec)
	}
	category := strings.TrimSpace(jq.Category)
	if category == "" {
		category = model.CategoryGeneral
	}

	var points []string
	for _, p := range jq.KnowledgePoints {
		points = append(points, model.SplitKeywords(p)...)
	}

	return model.Question{
		Text:            text,
		Difficulty:      difficulty,
		Category:        category,
		KnowledgePoints: model.Dedupe(points),
	}, true
}

func requestedDifficulty(spec model.GenerationSpec) model.Difficulty {
	if spec.Difficulty == "" {
		return model.DifficultyIntermediate
	}
	return spec.Difficulty
}

type jsonEvaluation struct {
	KnowledgePoints        []string `mapstructure:"knowledge_points"`
	WeakAspects            []string `mapstructure:"weak_aspects"`
	ImprovementSuggestions []string `mapstructure:"improvement_suggestions"`
}

// ParseJSONEvaluation is the JSON tier for evaluations. It requires a
// numeric (or numeric string) score.
func ParseJSONEvaluation(raw string) (Evaluation, bool) {
	obj, ok := decodeObject(raw)
	if !ok {
		return Evaluation{}, false
	}
	if err := validateShape("evaluation", obj); err != nil {
		slog.Debug("reply does not match evaluation shape", "error", err)
		return Evaluation{}, false
	}

	score, ok := coerceFloat(obj["score"])
	if !ok {
		return Evaluation{}, false
	}

	var je jsonEvaluation
	lists := map[string]any{
		"knowledge_points":        obj["knowledge_points"],
		"weak_aspects":            obj["weak_aspects"],
		"improvement_suggestions": obj["improvement_suggestions"],
	}
	if err := weakDecode(lists, &je); err != nil {
		slog.Debug("evaluation lists not decodable", "error", err)
	}

	return Evaluation{
		Score:                  score,
		KnowledgePoints:        model.Dedupe(je.KnowledgePoints),
		WeakAspects:            model.Dedupe(je.WeakAspects),
		DetailedFeedback:       feedbackMap(obj["detailed_feedback"]),
		ImprovementSuggestions: model.Dedupe(je.ImprovementSuggestions),
	}, true
}

func feedbackMap(v any) map[string]string {
	out := make(map[string]string)
	switch fb := v.(type) {
	case map[string]any:
		for k, val := range fb {
			if s := strings.TrimSpace(coerceString(val)); s != "" {
				out[k] = s
			}
		}
	case string:
		if s := strings.TrimSpace(fb); s != "" {
			out[FeedbackSummaryKey] = s
		}
	}
	return out
}

type jsonAnalysis struct {
	EducationBackground []string `mapstructure:"education_background"`
	WorkExperience      []string `mapstructure:"work_experience"`
	Skills              []string `mapstructure:"skills"`
	Projects            []string `mapstructure:"projects"`
	Keywords            []string `mapstructure:"keywords"`
}

// ResumeAnalysis reads the "analysis" member of a resume reply. Fields the
// model left empty are reported as pending.
func ResumeAnalysis(raw string) model.ResumeAnalysis {
	def := model.DefaultResumeAnalysis()
	obj, ok := decodeObject(raw)
	if !ok {
		return def
	}
	a, ok := obj["analysis"].(map[string]any)
	if !ok {
		return def
	}

	var ja jsonAnalysis
	if err := weakDecode(a, &ja); err != nil {
		slog.Debug("resume analysis not decodable", "error", err)
		return def
	}

	orPending := func(in []string) []string {
		if out := model.Dedupe(in); len(out) > 0 {
			return out
		}
		return []string{model.Pending}
	}
	return model.ResumeAnalysis{
		EducationBackground: orPending(ja.EducationBackground),
		WorkExperience:      orPending(ja.WorkExperience),
		Skills:              orPending(ja.Skills),
		Projects:            orPending(ja.Projects),
		Keywords:            orPending(ja.Keywords),
	}
}
