// Package evaluator scores free-text interview answers and records the result.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/interviewer/internal/extract"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
)

// RecordStore appends evaluation records to a user's history.
type RecordStore interface {
	AppendRecord(ctx context.Context, userID string, rec model.EvaluationRecord) error
}

// Evaluator turns answers into evaluation records.
type Evaluator struct {
	gateways llm.Resolver
	store    RecordStore
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Evaluator. store may be nil when records are never saved.
func New(gateways llm.Resolver, store RecordStore, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{gateways: gateways, store: store, logger: logger, now: time.Now}
}

// Evaluate scores answer to question. knownPoints are used as the knowledge
// points when the model names none. The record is not persisted.
func (e *Evaluator) Evaluate(ctx context.Context, userID, question, answer string, knownPoints []string) (model.EvaluationRecord, error) {
	prompt, err := prompts.BuildEvaluation(question, answer, knownPoints)
	if err != nil {
		return model.EvaluationRecord{}, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := e.gateways.For(llm.CapabilityWeakness).Send(ctx, llm.Request{
		Prompt:     prompt,
		UserID:     userID,
		Capability: llm.CapabilityWeakness,
		JSON:       true,
	})
	if err != nil {
		return model.EvaluationRecord{}, fmt.Errorf("evaluate answer: %w", err)
	}

	ev := extract.Evaluate(raw, answer)
	if ev.Degraded {
		e.logger.Warn("evaluation extraction degraded", "user_id", userID, "reply", llm.TruncateForLog(raw, 200))
	}

	points := ev.KnowledgePoints
	if len(points) == 0 {
		points = knownPoints
	}
	rec := model.EvaluationRecord{
		Question:               question,
		UserAnswer:             answer,
		Score:                  ClampScore(ev.Score),
		KnowledgePoints:        points,
		WeakAspects:            ev.WeakAspects,
		DetailedFeedback:       ev.DetailedFeedback,
		ImprovementSuggestions: ev.ImprovementSuggestions,
		Degraded:               ev.Degraded,
	}
	if len(rec.DetailedFeedback) == 0 {
		rec.DetailedFeedback = map[string]string{extract.FeedbackSummaryKey: extract.Summary(raw)}
	}
	rec = e.finalize(rec)

	e.logger.Info("answer evaluated", "user_id", userID, "score", rec.Score, "tier", ev.Tier)
	return rec, nil
}

// Save appends rec to userID's history, filling the id and timestamp when
// unset and applying the same bounds as Evaluate.
func (e *Evaluator) Save(ctx context.Context, userID string, rec model.EvaluationRecord) (model.EvaluationRecord, error) {
	if e.store == nil {
		return model.EvaluationRecord{}, errors.New("no record store configured")
	}
	rec.Score = ClampScore(float64(rec.Score))
	if len(rec.DetailedFeedback) == 0 {
		rec.DetailedFeedback = map[string]string{extract.FeedbackSummaryKey: "得分 " + strconv.Itoa(rec.Score) + "/100"}
	}
	rec = e.finalize(rec)

	if err := e.store.AppendRecord(ctx, userID, rec); err != nil {
		return model.EvaluationRecord{}, fmt.Errorf("save evaluation: %w", err)
	}
	e.logger.Info("evaluation saved", "user_id", userID, "record_id", rec.ID)
	return rec, nil
}

func (e *Evaluator) finalize(rec model.EvaluationRecord) model.EvaluationRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = e.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.KnowledgePoints = model.Dedupe(rec.KnowledgePoints)
	rec.WeakAspects = model.Dedupe(rec.WeakAspects)
	rec.ImprovementSuggestions = model.Dedupe(rec.ImprovementSuggestions)
	return rec
}

// ClampScore rounds s and bounds it to [0, 100]. NaN scores zero.
func ClampScore(s float64) int {
	if math.IsNaN(s) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(s))))
}
