package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/model"
)

var errNotFound = errors.New("not found")

type memKB struct {
	mu      sync.Mutex
	entries map[string]model.KnowledgeBaseEntry
	saveErr error
}

func newMemKB() *memKB {
	return &memKB{entries: make(map[string]model.KnowledgeBaseEntry)}
}

func (m *memKB) SaveKnowledgeBase(_ context.Context, e model.KnowledgeBaseEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[e.Name] = e
	return nil
}

func (m *memKB) KnowledgeBase(_ context.Context, name string) (model.KnowledgeBaseEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return model.KnowledgeBaseEntry{}, errNotFound
	}
	return e, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T, g llm.Gateway, kb KnowledgeStore) *Catalog {
	t.Helper()
	return New(llm.NewRegistry(g, nil), kb, quietLogger())
}

func TestGenerateExactCount(t *testing.T) {
	replies := []string{
		`{"questions": [{"question": "Q1?"}, {"question": "Q2?"}, {"question": "Q3?"}, {"question": "Q4?"}, {"question": "Q5?"}, {"question": "Q6?"}]}`,
		`{"questions": [{"question": "Only one?"}]}`,
		"1. First?\n2. Second?",
		"I cannot do that.",
	}
	specs := []model.GenerationSpec{
		{Mode: model.ModeCompany, Company: "Acme", Position: "SRE", Count: 5},
		{Mode: model.ModeKeyword, Keywords: "Redis", Count: 3},
		{Mode: model.ModeResume, ResumeText: "Go developer", Count: 8},
	}

	for i, reply := range replies {
		for _, spec := range specs {
			t.Run(fmt.Sprintf("reply%d/%s", i, spec.Mode), func(t *testing.T) {
				c := newTestCatalog(t, llm.NewMock(reply), nil)
				res, err := c.Generate(context.Background(), spec)
				if err != nil {
					t.Fatalf("Generate: %v", err)
				}
				if len(res.Questions) != spec.Count {
					t.Errorf("got %d questions, want %d", len(res.Questions), spec.Count)
				}
				if spec.Mode == model.ModeResume && res.Analysis == nil {
					t.Error("resume mode should return an analysis")
				}
				if spec.Mode != model.ModeResume && res.Analysis != nil {
					t.Error("only resume mode returns an analysis")
				}
			})
		}
	}
}

func TestGenerateDefaultsDifficulty(t *testing.T) {
	c := newTestCatalog(t, llm.NewMock("nothing useful"), nil)
	res, err := c.Generate(context.Background(), model.GenerationSpec{Mode: model.ModeKeyword, Keywords: "Go", Count: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Questions[0].Difficulty != model.DifficultyIntermediate {
		t.Errorf("Difficulty = %q, want intermediate", res.Questions[0].Difficulty)
	}
	if !res.Degraded || res.Tier != "default" {
		t.Errorf("Tier = %q, Degraded = %v", res.Tier, res.Degraded)
	}
}

func TestGenerateGatewayFailure(t *testing.T) {
	m := llm.NewMock()
	m.Err = &llm.GatewayError{Backend: "mock", Reason: "timeout"}
	c := newTestCatalog(t, m, nil)

	_, err := c.Generate(context.Background(), model.GenerationSpec{Mode: model.ModeKeyword, Keywords: "Go", Count: 2})
	var gerr *llm.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("error = %v, want *llm.GatewayError", err)
	}
}

func TestGenerateInvalidSpec(t *testing.T) {
	c := newTestCatalog(t, llm.NewMock("x"), nil)
	tests := []model.GenerationSpec{
		{Mode: model.ModeKeyword, Keywords: "Go", Count: 0},
		{Mode: model.ModeKeyword, Keywords: "Go", Count: model.MaxQuestionCount + 1},
		{Mode: "poetry", Count: 1},
	}
	for _, spec := range tests {
		if _, err := c.Generate(context.Background(), spec); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("Generate(%+v) error = %v, want ErrInvalidSpec", spec, err)
		}
	}
}

func TestGenerateRoutesByCapability(t *testing.T) {
	def := llm.NewMock("default reply?")
	company := llm.NewMock("company reply?")
	c := New(llm.NewRegistry(def, map[llm.Capability]llm.Gateway{llm.CapabilityCompany: company}), nil, quietLogger())

	ctx := context.Background()
	if _, err := c.Generate(ctx, model.GenerationSpec{Mode: model.ModeCompany, Company: "Acme", Position: "SRE", Count: 1}); err != nil {
		t.Fatalf("Generate company: %v", err)
	}
	if _, err := c.Generate(ctx, model.GenerationSpec{Mode: model.ModeKeyword, Keywords: "Go", Count: 1}); err != nil {
		t.Fatalf("Generate keyword: %v", err)
	}

	if company.CallCount() != 1 || def.CallCount() != 1 {
		t.Fatalf("calls: company=%d default=%d", company.CallCount(), def.CallCount())
	}
	if got := company.Calls[0].Capability; got != llm.CapabilityCompany {
		t.Errorf("company capability = %q", got)
	}
	if got := def.Calls[0].Capability; got != llm.CapabilitySelf {
		t.Errorf("keyword capability = %q", got)
	}
	if !def.Calls[0].JSON {
		t.Error("generation requests should ask for JSON")
	}
}

func TestResumeStoredAndReused(t *testing.T) {
	kb := newMemKB()
	m := llm.NewMock(`{"analysis": {"skills": ["Go"]}, "questions": [{"question": "Tell me about the Go service?"}]}`)
	c := newTestCatalog(t, m, kb)
	ctx := context.Background()

	_, err := c.Generate(ctx, model.GenerationSpec{
		Mode: model.ModeResume, UserID: "u42", ResumeText: "Built a Go billing service", TargetPosition: "Backend", Count: 3,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	entry, err := kb.KnowledgeBase(ctx, ResumeKnowledgeBase("u42"))
	if err != nil {
		t.Fatalf("resume not stored: %v", err)
	}
	if entry.Content != "Built a Go billing service" || entry.Metadata["target_position"] != "Backend" {
		t.Errorf("stored entry = %+v", entry)
	}

	res, err := c.GenerateFromKnowledgeBase(ctx, "u42", 4)
	if err != nil {
		t.Fatalf("GenerateFromKnowledgeBase: %v", err)
	}
	if len(res.Questions) != 4 {
		t.Errorf("got %d questions, want 4", len(res.Questions))
	}
	last := m.Calls[len(m.Calls)-1]
	if !strings.Contains(last.Prompt, "Built a Go billing service") || !strings.Contains(last.Prompt, "Backend") {
		t.Errorf("prompt should embed the stored resume:\n%s", last.Prompt)
	}
}

func TestResumeStoreFailureIsNotFatal(t *testing.T) {
	kb := newMemKB()
	kb.saveErr = errors.New("disk full")
	c := newTestCatalog(t, llm.NewMock("nothing"), kb)

	res, err := c.Generate(context.Background(), model.GenerationSpec{Mode: model.ModeResume, UserID: "u1", ResumeText: "cv", Count: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Questions) != 2 {
		t.Errorf("got %d questions", len(res.Questions))
	}
}

func TestGenerateFromMissingResume(t *testing.T) {
	c := newTestCatalog(t, llm.NewMock("x"), newMemKB())
	if _, err := c.GenerateFromKnowledgeBase(context.Background(), "nobody", 3); !errors.Is(err, errNotFound) {
		t.Errorf("error = %v, want not found", err)
	}

	noKB := newTestCatalog(t, llm.NewMock("x"), nil)
	if _, err := noKB.GenerateFromKnowledgeBase(context.Background(), "u", 3); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("error = %v, want ErrInvalidSpec", err)
	}
}

func TestStoreResume(t *testing.T) {
	diskFull := errors.New("disk full")
	tests := []struct {
		name    string
		kb      *memKB
		userID  string
		text    string
		wantErr error
	}{
		{"stored", newMemKB(), "u7", "Go developer, five years", nil},
		{"blank text", newMemKB(), "u7", "  ", ErrInvalidSpec},
		{"no user", newMemKB(), "", "Go developer", ErrInvalidSpec},
		{"save fails", &memKB{entries: map[string]model.KnowledgeBaseEntry{}, saveErr: diskFull}, "u7", "Go developer", diskFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCatalog(t, llm.NewMock("x"), tt.kb)
			err := c.StoreResume(context.Background(), tt.userID, tt.text, "SRE")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("StoreResume() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			entry, err := tt.kb.KnowledgeBase(context.Background(), "resume_u7")
			if err != nil {
				t.Fatalf("resume not stored: %v", err)
			}
			if entry.Content != tt.text || entry.Metadata["type"] != "resume" || entry.Metadata["target_position"] != "SRE" {
				t.Errorf("entry = %+v", entry)
			}
		})
	}

	noKB := newTestCatalog(t, llm.NewMock("x"), nil)
	if err := noKB.StoreResume(context.Background(), "u7", "cv", ""); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("without a store: error = %v, want ErrInvalidSpec", err)
	}
}
