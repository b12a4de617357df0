package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// ExamCreateRequest describes a new exam.
type ExamCreateRequest struct {
	CourseID              uint            `json:"course_id" validate:"required,gt=0"`
	Title                 string          `json:"title" validate:"required,min=3,max=255"`
	Description           string          `json:"description"`
	Instructions          string          `json:"instructions"`
	Type                  string          `json:"type" validate:"required,oneof=quiz midterm final placement practice"`
	DurationMinutes       int             `json:"duration_minutes" validate:"gte=0"`
	MaxScore              float64         `json:"max_score" validate:"omitempty,gt=0"`
	PassingScore          float64         `json:"passing_score" validate:"gte=0"`
	StartDate             *time.Time      `json:"start_date"`
	EndDate               *time.Time      `json:"end_date"`
	Questions             json.RawMessage `json:"questions"`
	MaxAttempts           int             `json:"max_attempts" validate:"gte=0"`
	AllowMultipleAttempts bool            `json:"allow_multiple_attempts"`
	ShuffleQuestions      bool            `json:"shuffle_questions"`
	ShowResults           *bool           `json:"show_results"`
}

// ExamPatch is the typed partial update for an exam.
type ExamPatch struct {
	Title                 *string         `json:"title" validate:"omitempty,min=3,max=255"`
	Description           *string         `json:"description"`
	Instructions          *string         `json:"instructions"`
	DurationMinutes       *int            `json:"duration_minutes" validate:"omitempty,gte=0"`
	MaxScore              *float64        `json:"max_score" validate:"omitempty,gt=0"`
	PassingScore          *float64        `json:"passing_score" validate:"omitempty,gte=0"`
	StartDate             *time.Time      `json:"start_date"`
	EndDate               *time.Time      `json:"end_date"`
	Questions             json.RawMessage `json:"questions"`
	MaxAttempts           *int            `json:"max_attempts" validate:"omitempty,gte=0"`
	AllowMultipleAttempts *bool           `json:"allow_multiple_attempts"`
	ShuffleQuestions      *bool           `json:"shuffle_questions"`
	ShowResults           *bool           `json:"show_results"`
}

// ExamStatusRequest advances the exam lifecycle.
type ExamStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=published active closed archived"`
}

// ExamListRequest filters exams.
type ExamListRequest struct {
	ListQuery
	CourseID uint   `query:"course_id"`
	Status   string `query:"status"`
	Type     string `query:"type"`
}

// ExamSubmitRequest hands in an attempt.
type ExamSubmitRequest struct {
	Answers          json.RawMessage `json:"answers" validate:"required"`
	TimeSpentSeconds int             `json:"time_spent_seconds" validate:"gte=0"`
}

// ExamSubmissionListRequest filters exam attempts.
type ExamSubmissionListRequest struct {
	ListQuery
	ExamID    uint   `query:"exam_id"`
	StudentID uint   `query:"student_id"`
	Status    string `query:"status" validate:"omitempty,oneof=draft submitted late graded"`
}

// ExamSubmissionResponse serializes an exam attempt.
type ExamSubmissionResponse struct {
	ID               uint            `json:"id"`
	ExamID           uint            `json:"exam_id"`
	StudentID        uint            `json:"student_id"`
	Attempt          int             `json:"attempt"`
	Answers          json.RawMessage `json:"answers,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
	Grading          GradingResponse `json:"grading"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewExamSubmissionResponse converts a model into a DTO.
func NewExamSubmissionResponse(model models.ExamSubmission) ExamSubmissionResponse {
	response := ExamSubmissionResponse{
		ID:               model.ID,
		ExamID:           model.ExamID,
		StudentID:        model.StudentID,
		Attempt:          model.Attempt,
		StartedAt:        model.StartedAt,
		TimeSpentSeconds: model.TimeSpentSeconds,
		Grading:          NewGradingResponse(model.Grading),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	if len(model.Answers) > 0 {
		response.Answers = json.RawMessage(model.Answers)
	}
	return response
}

// NewExamSubmissionResponseSlice converts a slice of models into DTOs.
func NewExamSubmissionResponseSlice(items []models.ExamSubmission) []ExamSubmissionResponse {
	responses := make([]ExamSubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewExamSubmissionResponse(item))
	}
	return responses
}
