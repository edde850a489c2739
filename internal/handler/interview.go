package handler

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/interviewer/internal/catalog"
	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/knowledge"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/weakness"
)

type questionSet struct {
	Questions      []model.Question `json:"questions"`
	TotalCount     int              `json:"total_count"`
	ExtractionTier string           `json:"extraction_tier"`
	Degraded       bool             `json:"degraded"`
}

func newQuestionSet(res catalog.Result) questionSet {
	return questionSet{
		Questions:      res.Questions,
		TotalCount:     len(res.Questions),
		ExtractionTier: res.Tier,
		Degraded:       res.Degraded,
	}
}

type companyResponse struct {
	questionSet
	CompanyName string `json:"company_name"`
	Position    string `json:"position"`
}

type selfResponse struct {
	questionSet
	Keywords string `json:"keywords"`
}

type resumeResponse struct {
	questionSet
	Analysis model.ResumeAnalysis `json:"analysis"`
	UserID   string               `json:"user_id,omitempty"`
}

// difficultyOrDefault parses an already validated difficulty.
func difficultyOrDefault(s string) model.Difficulty {
	if d, ok := model.ParseDifficulty(s); ok {
		return d
	}
	return model.DifficultyIntermediate
}

func countOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func (h *Handler) handleCompanyQuestions(w http.ResponseWriter, r *http.Request) {
	var req model.CompanyQuestionsRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.questions.Generate(r.Context(), model.GenerationSpec{
		Mode:       model.ModeCompany,
		Company:    req.CompanyName,
		Position:   req.Position,
		Difficulty: difficultyOrDefault(req.Difficulty),
		Count:      countOrDefault(req.QuestionCount, model.DefaultQuestionCount),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companyResponse{
		questionSet: newQuestionSet(res),
		CompanyName: req.CompanyName,
		Position:    req.Position,
	})
}

func (h *Handler) handleSelfInterview(w http.ResponseWriter, r *http.Request) {
	var req model.KeywordQuestionsRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.questions.Generate(r.Context(), model.GenerationSpec{
		Mode:       model.ModeKeyword,
		Keywords:   req.Keywords,
		Difficulty: difficultyOrDefault(req.Difficulty),
		Count:      countOrDefault(req.QuestionCount, model.DefaultQuestionCount),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selfResponse{questionSet: newQuestionSet(res), Keywords: req.Keywords})
}

func (h *Handler) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	var req model.ResumeUploadRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.questions.Generate(r.Context(), model.GenerationSpec{
		Mode:           model.ModeResume,
		UserID:         req.UserID,
		ResumeText:     req.ResumeText,
		TargetPosition: req.TargetPosition,
		Difficulty:     model.DifficultyIntermediate,
		Count:          countOrDefault(req.QuestionCount, model.DefaultResumeQuestionCount),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResumeResponse(res, req.UserID))
}

func (h *Handler) handleResumeQuestions(w http.ResponseWriter, r *http.Request) {
	var req model.ResumeQuestionsRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.questions.GenerateFromKnowledgeBase(r.Context(), req.UserID,
		countOrDefault(req.QuestionCount, model.DefaultResumeQuestionCount))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResumeResponse(res, req.UserID))
}

type uploadedFile struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

type resumeKBResponse struct {
	Code          int            `json:"code"`
	Message       string         `json:"message"`
	KBName        string         `json:"kb_name"`
	UserID        string         `json:"user_id"`
	UploadedFiles []uploadedFile `json:"uploaded_files"`
	TotalFiles    int            `json:"total_files"`
}

// handleUploadResumeToKB stores resume text and files as the user's resume
// knowledge base without generating questions.
func (h *Handler) handleUploadResumeToKB(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := model.ResumeKBRequest{
		UserID:         r.FormValue("user_id"),
		ResumeText:     strings.TrimSpace(r.FormValue("resume_text")),
		TargetPosition: r.FormValue("target_position"),
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, badRequest(err))
		return
	}

	var (
		parts    []string
		uploaded []uploadedFile
	)
	if req.ResumeText != "" {
		parts = append(parts, req.ResumeText)
		uploaded = append(uploaded, uploadedFile{Type: "text", Filename: fmt.Sprintf("resume_text_%s.txt", req.UserID)})
	}
	var docs []knowledge.Document
	for _, fh := range r.MultipartForm.File["files"] {
		if fh.Filename == "" {
			continue
		}
		doc, err := readFormFile(fh)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		docs = append(docs, doc)
		uploaded = append(uploaded, uploadedFile{Type: "file", Filename: fh.Filename})
	}
	if len(uploaded) == 0 {
		h.fail(w, r, badRequest(errors.New("resume_text or files required")))
		return
	}
	if len(docs) > 0 {
		text, err := knowledge.ReadDocuments(docs)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		parts = append(parts, text)
	}

	if err := h.questions.StoreResume(r.Context(), req.UserID, strings.Join(parts, "\n\n"), req.TargetPosition); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resumeKBResponse{
		Code:          http.StatusOK,
		Message:       i18n.T(r.Context(), "MsgResumeStored"),
		KBName:        catalog.ResumeKnowledgeBase(req.UserID),
		UserID:        req.UserID,
		UploadedFiles: uploaded,
		TotalFiles:    len(uploaded),
	})
}

func newResumeResponse(res catalog.Result, userID string) resumeResponse {
	analysis := model.DefaultResumeAnalysis()
	if res.Analysis != nil {
		analysis = *res.Analysis
	}
	return resumeResponse{questionSet: newQuestionSet(res), Analysis: analysis, UserID: userID}
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitAnswerRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.scorer.Evaluate(r.Context(), req.UserID, req.Question, req.UserAnswer, req.KnowledgePoints)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleSaveEvaluation(w http.ResponseWriter, r *http.Request) {
	var req model.SaveEvaluationRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	ev := req.EvaluationResult
	rec, err := h.scorer.Save(r.Context(), req.UserID, model.EvaluationRecord{
		Question:               req.Question,
		UserAnswer:             req.UserAnswer,
		Score:                  ev.Score,
		KnowledgePoints:        ev.KnowledgePoints,
		WeakAspects:            ev.WeakAspects,
		DetailedFeedback:       ev.DetailedFeedback,
		ImprovementSuggestions: ev.ImprovementSuggestions,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, i18n.T(r.Context(), "MsgEvaluationSaved"), rec)
}

func (h *Handler) handleWrongAnswers(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	records, err := h.history.Records(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Newest first. The stored history stays in append order.
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b model.EvaluationRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if sorted == nil {
		sorted = []model.EvaluationRecord{}
	}

	writeOK(w, i18n.Tp(r.Context(), "MsgRecordsFound", len(sorted)), map[string]any{
		"user_id":       userID,
		"wrong_answers": sorted,
		"total_count":   len(sorted),
	})
}

func (h *Handler) handleWeaknessAnalysis(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	records, err := h.history.Records(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	profile, err := weakness.Analyze(records)
	if errors.Is(err, weakness.ErrNoHistory) {
		writeOK(w, i18n.T(r.Context(), "MsgNoHistory"), map[string]any{
			"user_id":             userID,
			"analysis":            nil,
			"total_wrong_answers": 0,
		})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, i18n.T(r.Context(), "MsgAnalysisDone"), map[string]any{
		"user_id":             userID,
		"analysis":            profile,
		"total_wrong_answers": len(records),
	})
}
