package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/interviewer/internal/catalog"
	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/knowledge"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 2 << 20

// Generator produces question sets and keeps the resumes they are based on.
type Generator interface {
	Generate(ctx context.Context, spec model.GenerationSpec) (catalog.Result, error)
	GenerateFromKnowledgeBase(ctx context.Context, userID string, count int) (catalog.Result, error)
	StoreResume(ctx context.Context, userID, resumeText, targetPosition string) error
}

// Scorer evaluates answers and saves evaluations.
type Scorer interface {
	Evaluate(ctx context.Context, userID, question, answer string, knownPoints []string) (model.EvaluationRecord, error)
	Save(ctx context.Context, userID string, rec model.EvaluationRecord) (model.EvaluationRecord, error)
}

// History reads a user's evaluation records.
type History interface {
	Records(ctx context.Context, userID string) ([]model.EvaluationRecord, error)
}

// Knowledge manages knowledge bases.
type Knowledge interface {
	Upload(ctx context.Context, filename, kbName string, data []byte) (knowledge.UploadResult, error)
	Query(ctx context.Context, query, kbName string) (knowledge.Answer, error)
	List(ctx context.Context) ([]model.KnowledgeBaseEntry, error)
	Delete(ctx context.Context, name string) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	questions Generator
	scorer    Scorer
	history   History
	kb        Knowledge
}

// New creates a new Handler.
func New(questions Generator, scorer Scorer, history History, kb Knowledge) *Handler {
	return &Handler{questions: questions, scorer: scorer, history: history, kb: kb}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/interview", func(r chi.Router) {
		r.Post("/company/generate_company_questions/", h.handleCompanyQuestions)
		r.Post("/self/generate_self_interview/", h.handleSelfInterview)

		r.Post("/weakness/submit_answer/", h.handleSubmitAnswer)
		r.Post("/weakness/save_evaluation/", h.handleSaveEvaluation)
		r.Get("/weakness/wrong_answers/{userID}", h.handleWrongAnswers)
		r.Get("/weakness/weakness_analysis/{userID}", h.handleWeaknessAnalysis)

		r.Post("/resume/upload_resume/", h.handleUploadResume)
		r.Post("/resume/upload_resume_to_kb/", h.handleUploadResumeToKB)
		r.Post("/resume/generate_resume_questions/", h.handleResumeQuestions)
	})

	r.Route("/knowlage", func(r chi.Router) {
		r.Post("/upload_file/", h.handleUploadFile)
		r.Post("/query/", h.handleQuery)
		r.Post("/knowlage_chat/", h.handleKnowledgeChat)
		r.Get("/list_knowledge_bases/", h.handleListKnowledgeBases)
		r.Delete("/delete_knowledge_base/{kbName}", h.handleDeleteKnowledgeBase)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// envelope is the response shape of the history and knowledge base endpoints.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Message: message, Data: data})
}

// validatable is implemented by every request type.
type validatable interface {
	Validate() error
}

// decode reads a JSON body into req and validates it.
func decode(w http.ResponseWriter, r *http.Request, req validatable) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		return badRequest(fmt.Errorf("decode body: %w", err))
	}
	if err := req.Validate(); err != nil {
		return badRequest(err)
	}
	return nil
}

// requestError marks client mistakes.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{err: err} }

// fail maps err to a status code and a localized message. Upstream model
// failures and local storage failures get distinct messages.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		reqErr  *requestError
		gwErr   *llm.GatewayError
		stErr   *store.StoreError
		valErrs validator.ValidationErrors
	)

	status := http.StatusInternalServerError
	var msg string
	switch {
	case errors.As(err, &valErrs):
		status = http.StatusBadRequest
		msg = i18n.Td(ctx, "ErrInvalidRequest", map[string]any{"Detail": validationDetail(valErrs)})
	case errors.Is(err, knowledge.ErrUnsupportedType):
		status = http.StatusBadRequest
		msg = i18n.Td(ctx, "ErrUnsupportedFile", map[string]any{"Types": strings.Join(knowledge.SupportedTypes, ", ")})
	case errors.Is(err, knowledge.ErrEmptyContent):
		status = http.StatusBadRequest
		msg = i18n.T(ctx, "ErrEmptyFile")
	case errors.Is(err, knowledge.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
		msg = i18n.Td(ctx, "ErrFileTooLarge", map[string]any{"Limit": knowledge.MaxUploadBytes >> 20})
	case errors.As(err, &reqErr), errors.Is(err, catalog.ErrInvalidSpec), errors.Is(err, store.ErrInvalidName):
		status = http.StatusBadRequest
		msg = i18n.Td(ctx, "ErrInvalidRequest", map[string]any{"Detail": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		msg = i18n.Td(ctx, "ErrNotFound", map[string]any{"Name": notFoundName(r)})
	case errors.As(err, &gwErr):
		status = http.StatusBadGateway
		msg = i18n.T(ctx, "ErrModelUnavailable")
	case errors.As(err, &stErr):
		msg = i18n.T(ctx, "ErrStorageUnavailable")
	default:
		msg = i18n.T(ctx, "ErrInternal")
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Code: status, Message: msg, Detail: err.Error()})
}

func validationDetail(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// notFoundName names the missing resource from the route parameters.
func notFoundName(r *http.Request) string {
	if kb := chi.URLParam(r, "kbName"); kb != "" {
		return kb
	}
	if user := chi.URLParam(r, "userID"); user != "" {
		return user
	}
	return r.URL.Path
}
