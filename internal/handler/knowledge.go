package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/knowledge"
	"github.com/pavelanni/interviewer/internal/model"
)

// multipartOverhead allows for form fields and boundaries around the file.
const multipartOverhead = 1 << 20

// defaultChatUser is reported for a knowledge chat without a user_id.
const defaultChatUser = "default_user"

// parseUpload parses a multipart upload whose files total at most
// knowledge.MaxUploadBytes. Callers remove r.MultipartForm when done.
func parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, knowledge.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: %v", knowledge.ErrTooLarge, err)
		}
		return badRequest(fmt.Errorf("parse form: %w", err))
	}
	return nil
}

// parseForm parses a small urlencoded or multipart form.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return badRequest(fmt.Errorf("parse form: %w", err))
	}
	return nil
}

// readFormFile reads one uploaded file, bounded by knowledge.MaxUploadBytes.
func readFormFile(fh *multipart.FileHeader) (knowledge.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, knowledge.MaxUploadBytes+1))
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return knowledge.Document{Filename: fh.Filename, Data: data}, nil
}

func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, badRequest(fmt.Errorf("file: %w", err)))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, knowledge.MaxUploadBytes+1))
	if err != nil {
		h.fail(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := h.kb.Upload(r.Context(), header.Filename, r.FormValue("kb_name"), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"msg":      i18n.T(r.Context(), "MsgFileIngested"),
		"segments": res.Segments,
		"kb_name":  res.KBName,
	})
}

type chatAnswer struct {
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
	KBName    *string          `json:"kb_name"`
	UserID    string           `json:"user_id"`
}

// handleKnowledgeChat is the form-encoded query endpoint. Its reply wraps
// the answer in the standard envelope.
func (h *Handler) handleKnowledgeChat(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	req := model.KnowledgeChatRequest{
		Query:  r.FormValue("query"),
		KBName: r.FormValue("kb_name"),
		UserID: r.FormValue("user_id"),
	}
	if req.UserID == "" {
		req.UserID = defaultChatUser
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, badRequest(err))
		return
	}

	ans, err := h.kb.Query(r.Context(), req.Query, req.KBName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := chatAnswer{Answer: ans.Answer, Citations: ans.Citations, UserID: req.UserID}
	if req.KBName != "" {
		out.KBName = &req.KBName
	}
	writeOK(w, i18n.T(r.Context(), "MsgQueryDone"), out)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req model.KnowledgeQueryRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	ans, err := h.kb.Query(r.Context(), req.Query, req.KBName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type kbSummary struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

func (h *Handler) handleListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	entries, err := h.kb.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list := make([]kbSummary, 0, len(entries))
	for _, e := range entries {
		list = append(list, kbSummary{Name: e.Name, Metadata: e.Metadata})
	}
	writeOK(w, i18n.T(r.Context(), "MsgKBListed"), map[string]any{
		"knowledge_bases": list,
		"total_count":     len(list),
	})
}

func (h *Handler) handleDeleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "kbName")
	if err := h.kb.Delete(r.Context(), name); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, i18n.Td(r.Context(), "MsgKBDeleted", map[string]any{"Name": name}), nil)
}
