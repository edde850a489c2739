// Package extract turns loosely structured model replies into questions and
// evaluations. Three tiers are tried in order: a strict JSON parse, a
// line-oriented heuristic, and synthesized defaults. Each tier is a pure
// function; the orchestrators never fail and never panic.
package extract

import (
	"log/slog"

	"github.com/pavelanni/interviewer/internal/model"
)

// Tier identifies which extraction strategy produced a result.
type Tier int

const (
	TierJSON Tier = iota + 1
	TierHeuristic
	TierDefault
)

func (t Tier) String() string {
	switch t {
	case TierJSON:
		return "json"
	case TierHeuristic:
		return "heuristic"
	case TierDefault:
		return "default"
	default:
		return "unknown"
	}
}

// QuestionOutcome is the extracted question set. Degraded is set when any
// question came from the default templates.
type QuestionOutcome struct {
	Questions []model.Question
	Tier      Tier
	Padded    int
	Degraded  bool
	Analysis  *model.ResumeAnalysis
}

// Questions extracts exactly spec.Count questions from raw. Model-derived
// questions keep their order; surplus is truncated and a shortfall is padded
// from the default templates.
func Questions(raw string, spec model.GenerationSpec) (out QuestionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("question extraction panicked, using defaults", "panic", r)
			out = QuestionOutcome{
				Questions: DefaultQuestions(spec, 0, max(spec.Count, 0)),
				Tier:      TierDefault,
				Padded:    max(spec.Count, 0),
				Degraded:  true,
			}
		}
	}()

	count := max(spec.Count, 0)
	if spec.Mode == model.ModeResume {
		a := ResumeAnalysis(raw)
		out.Analysis = &a
	}

	if qs, ok := ParseJSONQuestions(raw, spec); ok {
		out.Questions, out.Tier = qs, TierJSON
	} else if qs, ok := SegmentQuestions(raw, spec); ok {
		out.Questions, out.Tier = qs, TierHeuristic
	} else {
		out.Tier = TierDefault
	}

	if len(out.Questions) > count {
		out.Questions = out.Questions[:count]
	}
	if missing := count - len(out.Questions); missing > 0 {
		out.Questions = append(out.Questions, DefaultQuestions(spec, len(out.Questions), missing)...)
		out.Padded = missing
		out.Degraded = true
	}
	if out.Questions == nil {
		out.Questions = []model.Question{}
	}
	return out
}

// Evaluation is an extracted answer assessment before the evaluator applies
// its bounds.
type Evaluation struct {
	Score                  float64
	KnowledgePoints        []string
	WeakAspects            []string
	DetailedFeedback       map[string]string
	ImprovementSuggestions []string
	Tier                   Tier
	Degraded               bool
}

// Evaluate extracts an evaluation from raw. Evaluations have no heuristic
// tier: numbers in prose are too ambiguous to read as a score, so a reply
// without a JSON score gets the default scored from answer's length.
func Evaluate(raw, answer string) (out Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("evaluation extraction panicked, using defaults", "panic", r)
			out = DefaultEvaluation(raw, answer)
		}
	}()

	if ev, ok := ParseJSONEvaluation(raw); ok {
		ev.Tier = TierJSON
		return ev
	}
	return DefaultEvaluation(raw, answer)
}
