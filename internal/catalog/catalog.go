// Package catalog generates interview question sets of an exact size.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/interviewer/internal/extract"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
)

// ErrInvalidSpec is returned for a generation request that cannot be served.
var ErrInvalidSpec = errors.New("invalid generation request")

// KnowledgeStore persists resumes so questions can be generated from them later.
type KnowledgeStore interface {
	SaveKnowledgeBase(ctx context.Context, entry model.KnowledgeBaseEntry) error
	KnowledgeBase(ctx context.Context, name string) (model.KnowledgeBaseEntry, error)
}

// Result is a generated question set.
type Result struct {
	Questions []model.Question     `json:"questions"`
	Analysis  *model.ResumeAnalysis `json:"analysis,omitempty"`
	Tier      string               `json:"extraction_tier"`
	Degraded  bool                 `json:"degraded"`
}

// Catalog turns generation specs into question sets.
type Catalog struct {
	gateways llm.Resolver
	kb       KnowledgeStore
	logger   *slog.Logger
}

// New creates a Catalog. kb may be nil, in which case resumes are not kept.
func New(gateways llm.Resolver, kb KnowledgeStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{gateways: gateways, kb: kb, logger: logger}
}

// ResumeKnowledgeBase names the knowledge base holding a user's resume.
func ResumeKnowledgeBase(userID string) string {
	return "resume_" + userID
}

// Generate asks the model for spec.Count questions and returns exactly that
// many. Only a gateway failure is reported as an error; unusable replies are
// padded from templates and flagged as degraded.
func (c *Catalog) Generate(ctx context.Context, spec model.GenerationSpec) (Result, error) {
	res, err := c.generate(ctx, spec)
	if err != nil {
		return Result{}, err
	}
	if spec.Mode == model.ModeResume && spec.UserID != "" {
		c.keepResume(ctx, spec)
	}
	return res, nil
}

// GenerateFromKnowledgeBase generates resume questions from the resume
// previously stored for userID.
func (c *Catalog) GenerateFromKnowledgeBase(ctx context.Context, userID string, count int) (Result, error) {
	if c.kb == nil {
		return Result{}, fmt.Errorf("%w: no knowledge store configured", ErrInvalidSpec)
	}
	entry, err := c.kb.KnowledgeBase(ctx, ResumeKnowledgeBase(userID))
	if err != nil {
		return Result{}, fmt.Errorf("load resume for %s: %w", userID, err)
	}
	target, _ := entry.Metadata["target_position"].(string)
	return c.generate(ctx, model.GenerationSpec{
		Mode:           model.ModeResume,
		UserID:         userID,
		ResumeText:     entry.Content,
		TargetPosition: target,
		Count:          count,
	})
}

func (c *Catalog) generate(ctx context.Context, spec model.GenerationSpec) (Result, error) {
	capability, err := capabilityFor(spec.Mode)
	if err != nil {
		return Result{}, err
	}
	if spec.Count < 1 || spec.Count > model.MaxQuestionCount {
		return Result{}, fmt.Errorf("%w: count %d outside 1..%d", ErrInvalidSpec, spec.Count, model.MaxQuestionCount)
	}
	if spec.Difficulty == "" {
		spec.Difficulty = model.DifficultyIntermediate
	}

	prompt, err := prompts.BuildGeneration(spec)
	if err != nil {
		return Result{}, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := c.gateways.For(capability).Send(ctx, llm.Request{
		Prompt:     prompt,
		UserID:     spec.UserID,
		Capability: capability,
		JSON:       true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate %s questions: %w", spec.Mode, err)
	}

	out := extract.Questions(raw, spec)
	c.logger.Info("questions generated",
		"mode", spec.Mode,
		"count", spec.Count,
		"tier", out.Tier,
		"padded", out.Padded,
	)
	if out.Degraded {
		c.logger.Warn("question extraction degraded",
			"mode", spec.Mode,
			"reply", llm.TruncateForLog(raw, 200),
		)
	}

	return Result{
		Questions: out.Questions,
		Analysis:  out.Analysis,
		Tier:      out.Tier.String(),
		Degraded:  out.Degraded,
	}, nil
}

// StoreResume saves resume text as the resume knowledge base of userID,
// replacing any earlier resume.
func (c *Catalog) StoreResume(ctx context.Context, userID, resumeText, targetPosition string) error {
	if c.kb == nil {
		return fmt.Errorf("%w: no knowledge store configured", ErrInvalidSpec)
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(resumeText) == "" {
		return fmt.Errorf("%w: user id and resume text are required", ErrInvalidSpec)
	}
	entry := model.KnowledgeBaseEntry{
		Name:    ResumeKnowledgeBase(userID),
		Content: resumeText,
		Metadata: map[string]any{
			"type":            "resume",
			"user_id":         userID,
			"target_position": targetPosition,
			"created_at":      time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := c.kb.SaveKnowledgeBase(ctx, entry); err != nil {
		return fmt.Errorf("store resume for %s: %w", userID, err)
	}
	c.logger.Info("resume stored", "user_id", userID, "kb_name", entry.Name)
	return nil
}

// keepResume stores the resume text for later generation. Failures are
// logged and do not affect the generated questions.
func (c *Catalog) keepResume(ctx context.Context, spec model.GenerationSpec) {
	if c.kb == nil {
		return
	}
	if err := c.StoreResume(ctx, spec.UserID, spec.ResumeText, spec.TargetPosition); err != nil {
		c.logger.Error("failed to store resume", "user_id", spec.UserID, "error", err)
	}
}

func capabilityFor(mode model.Mode) (llm.Capability, error) {
	switch mode {
	case model.ModeCompany:
		return llm.CapabilityCompany, nil
	case model.ModeKeyword:
		return llm.CapabilitySelf, nil
	case model.ModeResume:
		return llm.CapabilityResume, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidSpec, mode)
	}
}
