package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/interviewer/internal/extract"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/model"
)

type memStore struct {
	mu      sync.Mutex
	records map[string][]model.EvaluationRecord
	err     error
}

func (m *memStore) AppendRecord(_ context.Context, userID string, rec model.EvaluationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.records == nil {
		m.records = make(map[string][]model.EvaluationRecord)
	}
	m.records[userID] = append(m.records[userID], rec)
	return nil
}

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("CST", 8*3600))

func newTestEvaluator(t *testing.T, g llm.Gateway, store RecordStore) *Evaluator {
	t.Helper()
	e := New(llm.NewRegistry(g, nil), store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return fixedNow }
	return e
}

func TestEvaluateJSONReply(t *testing.T) {
	reply := `{"score": 85, "knowledge_points": ["Redis", "持久化"], "weak_aspects": ["AOF重写"],
		"detailed_feedback": {"正确性": "正确"}, "improvement_suggestions": ["补充AOF重写细节"]}`
	m := llm.NewMock(reply)
	e := newTestEvaluator(t, m, nil)

	rec, err := e.Evaluate(context.Background(), "u1", "Redis如何持久化？", "RDB和AOF", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Score != 85 || rec.Degraded {
		t.Errorf("Score = %d, Degraded = %v", rec.Score, rec.Degraded)
	}
	if !reflect.DeepEqual(rec.KnowledgePoints, []string{"Redis", "持久化"}) {
		t.Errorf("KnowledgePoints = %v", rec.KnowledgePoints)
	}
	if rec.ID == "" {
		t.Error("record should get an id")
	}
	if !rec.CreatedAt.Equal(fixedNow) || rec.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want %v in UTC", rec.CreatedAt, fixedNow)
	}
	if rec.Question != "Redis如何持久化？" || rec.UserAnswer != "RDB和AOF" {
		t.Errorf("question/answer not carried over: %+v", rec)
	}
	if m.Calls[0].Capability != llm.CapabilityWeakness || m.Calls[0].UserID != "u1" {
		t.Errorf("request = %+v", m.Calls[0])
	}
}

func TestEvaluateScoreBounds(t *testing.T) {
	tests := []struct {
		reply string
		want  int
	}{
		{`{"score": 140}`, 100},
		{`{"score": -12}`, 0},
		{`{"score": 77.6}`, 78},
		{`{"score": "59.4"}`, 59},
		{`{"score": 100}`, 100},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			e := newTestEvaluator(t, llm.NewMock(tt.reply), nil)
			rec, err := e.Evaluate(context.Background(), "u", "q", "a", nil)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if rec.Score != tt.want {
				t.Errorf("Score = %d, want %d", rec.Score, tt.want)
			}
			if len(rec.DetailedFeedback) == 0 {
				t.Error("detailed feedback must not be empty")
			}
		})
	}
}

func TestEvaluateUnparseableReply(t *testing.T) {
	answer := strings.Repeat("a", 30)
	e := newTestEvaluator(t, llm.NewMock("The answer is somewhat vague and lacks detail."), nil)

	rec, err := e.Evaluate(context.Background(), "u", "What is a B+ tree?", answer, []string{"索引"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Score != 30 {
		t.Errorf("Score = %d, want 30", rec.Score)
	}
	if len(rec.WeakAspects) == 0 {
		t.Error("weak aspects should not be empty")
	}
	if !rec.Degraded {
		t.Error("record should be flagged degraded")
	}
	if !reflect.DeepEqual(rec.KnowledgePoints, []string{"索引"}) {
		t.Errorf("KnowledgePoints = %v, want known points", rec.KnowledgePoints)
	}
	if got := rec.DetailedFeedback[extract.FeedbackSummaryKey]; got != "The answer is somewhat vague and lacks detail." {
		t.Errorf("summary feedback = %q", got)
	}
}

func TestEvaluateEmptyFeedbackFilled(t *testing.T) {
	e := newTestEvaluator(t, llm.NewMock(`{"score": 70, "detailed_feedback": {}}`), nil)
	rec, err := e.Evaluate(context.Background(), "u", "q", "a", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, ok := rec.DetailedFeedback[extract.FeedbackSummaryKey]; !ok {
		t.Errorf("DetailedFeedback = %v, want summary entry", rec.DetailedFeedback)
	}
}

func TestEvaluateGatewayError(t *testing.T) {
	m := llm.NewMock()
	m.Err = &llm.GatewayError{Backend: "mock", StatusCode: 503, Reason: "unavailable"}
	e := newTestEvaluator(t, m, nil)

	_, err := e.Evaluate(context.Background(), "u", "q", "a", nil)
	var gerr *llm.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("error = %v, want *llm.GatewayError", err)
	}
}

func TestSave(t *testing.T) {
	store := &memStore{}
	e := newTestEvaluator(t, llm.NewMock(), store)

	rec, err := e.Save(context.Background(), "u7", model.EvaluationRecord{
		Question:        "q",
		UserAnswer:      "a",
		Score:           120,
		KnowledgePoints: []string{"Go", "Go"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.Score != 100 || rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Errorf("saved record = %+v", rec)
	}
	if len(rec.DetailedFeedback) == 0 {
		t.Error("saved record should have feedback")
	}
	if !reflect.DeepEqual(rec.KnowledgePoints, []string{"Go"}) {
		t.Errorf("KnowledgePoints = %v", rec.KnowledgePoints)
	}
	if got := store.records["u7"]; len(got) != 1 || !reflect.DeepEqual(got[0], rec) {
		t.Errorf("stored = %+v", got)
	}

	store.err = errors.New("disk full")
	if _, err := e.Save(context.Background(), "u7", model.EvaluationRecord{Question: "q"}); err == nil {
		t.Error("expected store error")
	}

	noStore := newTestEvaluator(t, llm.NewMock(), nil)
	if _, err := noStore.Save(context.Background(), "u", model.EvaluationRecord{}); err == nil {
		t.Error("expected error without store")
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-1, 0}, {0, 0}, {49.5, 50}, {99.4, 99}, {1e9, 100}, {math.NaN(), 0}, {math.Inf(1), 100}, {math.Inf(-1), 0},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
