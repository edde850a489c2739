package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxQuestionCount bounds a single generation request.
const MaxQuestionCount = 20

// DefaultQuestionCount is used when a request leaves the count unset.
const DefaultQuestionCount = 5

// DefaultResumeQuestionCount is the resume-mode default.
const DefaultResumeQuestionCount = 8

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		err := validate.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
			_, ok := ParseDifficulty(fl.Field().String())
			return ok
		})
		if err != nil {
			panic(fmt.Sprintf("register difficulty validation: %v", err))
		}
	})
	return validate
}

// CompanyQuestionsRequest asks for questions about a company and position.
type CompanyQuestionsRequest struct {
	CompanyName   string `json:"company_name" validate:"required,max=200"`
	Position      string `json:"position" validate:"required,max=200"`
	Difficulty    string `json:"difficulty" validate:"omitempty,difficulty"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1,max=20"`
}

// Validate validates the CompanyQuestionsRequest using the validator.
func (r *CompanyQuestionsRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// KeywordQuestionsRequest asks for questions around freeform keywords.
type KeywordQuestionsRequest struct {
	Keywords      string `json:"keywords" validate:"required,max=1000"`
	Difficulty    string `json:"difficulty" validate:"omitempty,difficulty"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1,max=20"`
}

// Validate validates the KeywordQuestionsRequest using the validator.
func (r *KeywordQuestionsRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// ResumeUploadRequest carries resume text for analysis and question generation.
type ResumeUploadRequest struct {
	ResumeText     string `json:"resume_text" validate:"required"`
	UserID         string `json:"user_id" validate:"omitempty,max=128"`
	TargetPosition string `json:"target_position" validate:"omitempty,max=200"`
	QuestionCount  int    `json:"question_count" validate:"omitempty,min=1,max=20"`
}

// Validate validates the ResumeUploadRequest using the validator.
func (r *ResumeUploadRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// ResumeQuestionsRequest generates questions from a previously uploaded resume.
type ResumeQuestionsRequest struct {
	UserID        string `json:"user_id" validate:"required,max=128"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1,max=20"`
}

// Validate validates the ResumeQuestionsRequest using the validator.
func (r *ResumeQuestionsRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// SubmitAnswerRequest asks for an evaluation without persisting it.
type SubmitAnswerRequest struct {
	UserID          string   `json:"user_id" validate:"required,max=128"`
	Question        string   `json:"question" validate:"required"`
	UserAnswer      string   `json:"user_answer" validate:"required"`
	KnowledgePoints []string `json:"knowledge_points"`
}

// Validate validates the SubmitAnswerRequest using the validator.
func (r *SubmitAnswerRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// EvaluationResult is the client-supplied evaluation stored by SaveEvaluationRequest.
type EvaluationResult struct {
	Score                  int               `json:"score" validate:"min=0,max=100"`
	KnowledgePoints        []string          `json:"knowledge_points"`
	WeakAspects            []string          `json:"weak_aspects"`
	DetailedFeedback       map[string]string `json:"detailed_feedback"`
	ImprovementSuggestions []string          `json:"improvement_suggestions"`
}

// SaveEvaluationRequest persists an evaluation into the user's history.
type SaveEvaluationRequest struct {
	UserID           string           `json:"user_id" validate:"required,max=128"`
	Question         string           `json:"question" validate:"required"`
	UserAnswer       string           `json:"user_answer" validate:"required"`
	EvaluationResult EvaluationResult `json:"evaluation_result"`
}

// Validate validates the SaveEvaluationRequest using the validator.
func (r *SaveEvaluationRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// KnowledgeQueryRequest asks a question against a stored knowledge base.
type KnowledgeQueryRequest struct {
	Query  string `json:"query" validate:"required"`
	KBName string `json:"kb_name" validate:"omitempty,max=128"`
}

// Validate validates the KnowledgeQueryRequest using the validator.
func (r *KnowledgeQueryRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// KnowledgeChatRequest is the form-encoded variant of a knowledge base query.
type KnowledgeChatRequest struct {
	Query  string `json:"query" validate:"required"`
	KBName string `json:"kb_name" validate:"omitempty,max=128"`
	UserID string `json:"user_id" validate:"max=128"`
}

// Validate validates the KnowledgeChatRequest using the validator.
func (r *KnowledgeChatRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// ResumeKBRequest stores resume text or files in a user's resume knowledge
// base without generating questions.
type ResumeKBRequest struct {
	UserID         string `json:"user_id" validate:"required,max=128"`
	ResumeText     string `json:"resume_text"`
	TargetPosition string `json:"target_position" validate:"omitempty,max=200"`
}

// Validate validates the ResumeKBRequest using the validator.
func (r *ResumeKBRequest) Validate() error {
	return validatorInstance().Struct(r)
}
