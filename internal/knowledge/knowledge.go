// Package knowledge manages flat knowledge bases: uploaded documents stored
// as text, and questions answered with that text as context.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
)

const (
	// MaxUploadBytes bounds an uploaded document.
	MaxUploadBytes = 50 << 20
	// ContextRunes bounds the knowledge base text sent with a query.
	ContextRunes = 2000
	// CitationRunes bounds the excerpt returned as a citation.
	CitationRunes = 200

	queryUser = "knowledge_query_system"
)

var (
	// ErrUnsupportedType is returned for a file type ExtractText cannot read.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyContent is returned when a document yields no text, including
	// a document too damaged to parse.
	ErrEmptyContent = errors.New("file has no readable content")
	// ErrTooLarge is returned for a document over MaxUploadBytes.
	ErrTooLarge = errors.New("file too large")
)

// Store is the part of the record store used for knowledge bases.
type Store interface {
	SaveKnowledgeBase(ctx context.Context, entry model.KnowledgeBaseEntry) error
	KnowledgeBase(ctx context.Context, name string) (model.KnowledgeBaseEntry, error)
	ListKnowledgeBases(ctx context.Context) ([]model.KnowledgeBaseEntry, error)
	DeleteKnowledgeBase(ctx context.Context, name string) error
}

// UploadResult describes a stored document.
type UploadResult struct {
	KBName   string `json:"kb_name"`
	Segments int    `json:"segments"`
}

// Answer is a model reply to a knowledge base query.
type Answer struct {
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
}

// Service implements knowledge base uploads and queries.
type Service struct {
	gateways llm.Resolver
	store    Store
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service that answers queries through the knowledge
// capability of gateways. A nil logger uses slog.Default.
func New(gateways llm.Resolver, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateways: gateways, store: store, logger: logger, now: time.Now}
}

// Upload extracts the text of filename and stores it as knowledge base
// kbName, replacing any previous content. An empty kbName is derived from
// the file name.
func (s *Service) Upload(ctx context.Context, filename, kbName string, data []byte) (UploadResult, error) {
	if len(data) > MaxUploadBytes {
		return UploadResult{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), MaxUploadBytes)
	}
	ext := FileType(filename)
	text, err := ExtractText(ext, data)
	if err != nil {
		return UploadResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return UploadResult{}, ErrEmptyContent
	}
	if kbName == "" {
		kbName = DefaultName(filename)
	}

	entry := model.KnowledgeBaseEntry{
		Name:    kbName,
		Content: text,
		Metadata: map[string]any{
			"filename":   filepath.Base(filename),
			"file_type":  ext,
			"file_size":  len(data),
			"created_at": s.now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.store.SaveKnowledgeBase(ctx, entry); err != nil {
		return UploadResult{}, fmt.Errorf("save knowledge base: %w", err)
	}

	res := UploadResult{KBName: kbName, Segments: CountSegments(text)}
	s.logger.Info("knowledge base stored", "kb_name", kbName, "file_type", ext, "segments", res.Segments)
	return res, nil
}

// Query answers query, using knowledge base kbName as context when it is set
// and exists. A missing knowledge base degrades to a plain question.
func (s *Service) Query(ctx context.Context, query, kbName string) (Answer, error) {
	var kbContext string
	if kbName != "" {
		entry, err := s.store.KnowledgeBase(ctx, kbName)
		if err != nil {
			s.logger.Warn("knowledge base unavailable, answering without context", "kb_name", kbName, "error", err)
		} else {
			kbContext = truncate(entry.Content, ContextRunes)
		}
	}

	prompt, err := prompts.BuildKnowledge(query, kbName, kbContext)
	if err != nil {
		return Answer{}, fmt.Errorf("build prompt: %w", err)
	}
	reply, err := s.gateways.For(llm.CapabilityKnowledge).Send(ctx, llm.Request{
		Prompt:     prompt,
		UserID:     queryUser,
		Capability: llm.CapabilityKnowledge,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("query knowledge base: %w", err)
	}

	ans := Answer{Answer: strings.TrimSpace(reply), Citations: []model.Citation{}}
	if kbContext != "" {
		ans.Citations = append(ans.Citations, model.Citation{
			Source:    kbName,
			Content:   truncate(kbContext, CitationRunes),
			Relevance: "high",
		})
	}
	return ans, nil
}

// List returns every stored knowledge base.
func (s *Service) List(ctx context.Context) ([]model.KnowledgeBaseEntry, error) {
	return s.store.ListKnowledgeBases(ctx)
}

// Delete removes knowledge base name.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.store.DeleteKnowledgeBase(ctx, name); err != nil {
		return fmt.Errorf("delete knowledge base %s: %w", name, err)
	}
	s.logger.Info("knowledge base deleted", "kb_name", name)
	return nil
}

// Document is an uploaded file.
type Document struct {
	Filename string
	Data     []byte
}

// ReadDocuments extracts the text of every document and joins them with
// blank lines. Any oversized, unsupported or empty document fails the whole
// batch.
func ReadDocuments(docs []Document) (string, error) {
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		if len(d.Data) > MaxUploadBytes {
			return "", fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, d.Filename, len(d.Data), MaxUploadBytes)
		}
		text, err := ExtractText(FileType(d.Filename), d.Data)
		if err != nil {
			return "", fmt.Errorf("%s: %w", d.Filename, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", fmt.Errorf("%w: %s", ErrEmptyContent, d.Filename)
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n\n"), nil
}

// DefaultName is the knowledge base name used for an upload without one.
func DefaultName(filename string) string {
	base := filepath.Base(filename)
	return "kb_" + strings.TrimSuffix(base, filepath.Ext(base))
}

// CountSegments counts the non-blank paragraphs of text.
func CountSegments(text string) int {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	n := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
