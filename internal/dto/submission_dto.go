package dto

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// SubmissionDraftRequest starts a draft for an assignment.
type SubmissionDraftRequest struct {
	AssignmentID uint   `json:"assignment_id" validate:"required,gt=0"`
	Type         string `json:"type" validate:"omitempty,oneof=text file link other"`
	Title        string `json:"title" validate:"omitempty,max=255"`
	Content      string `json:"content"`
	FileURL      string `json:"file_url" validate:"omitempty,url"`
}

// SubmissionDraftPatch edits a draft before it is submitted.
type SubmissionDraftPatch struct {
	Type    *string `json:"type" validate:"omitempty,oneof=text file link other"`
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content *string `json:"content"`
	FileURL *string `json:"file_url" validate:"omitempty,url"`
}

// SubmitRequest optionally replaces the content at hand-in time.
type SubmitRequest struct {
	Content *string `json:"content"`
	FileURL *string `json:"file_url" validate:"omitempty,url"`
}

// GradeRequest grades or regrades a submission. MaxScore defaults to the parent's maximum.
type GradeRequest struct {
	Score    *float64 `json:"score" validate:"required"`
	MaxScore *float64 `json:"max_score" validate:"omitempty,gt=0"`
	Feedback string   `json:"feedback" validate:"omitempty,max=5000"`
}

// SubmissionListRequest filters submissions.
type SubmissionListRequest struct {
	ListQuery
	AssignmentID uint   `query:"assignment_id"`
	CourseID     uint   `query:"course_id"`
	UserID       uint   `query:"user_id"`
	Status       string `query:"status" validate:"omitempty,oneof=draft submitted late graded"`
}

// GradingResponse serializes the grading cluster.
type GradingResponse struct {
	Status      string     `json:"status"`
	IsLate      bool       `json:"is_late"`
	SubmittedAt *time.Time `json:"submitted_at"`
	Score       *float64   `json:"score"`
	MaxScore    *float64   `json:"max_score"`
	Feedback    string     `json:"feedback"`
	GradedBy    *uint      `json:"graded_by"`
	GradedAt    *time.Time `json:"graded_at"`
}

// NewGradingResponse converts the embedded grading block.
func NewGradingResponse(grading models.Grading) GradingResponse {
	return GradingResponse{
		Status:      string(grading.Status),
		IsLate:      grading.IsLate,
		SubmittedAt: grading.SubmittedAt,
		Score:       grading.Score,
		MaxScore:    grading.MaxScore,
		Feedback:    grading.Feedback,
		GradedBy:    grading.GradedBy,
		GradedAt:    grading.GradedAt,
	}
}

// GradeHistoryResponse serializes one grading event.
type GradeHistoryResponse struct {
	Score    float64   `json:"score"`
	MaxScore float64   `json:"max_score"`
	Feedback string    `json:"feedback"`
	GradedBy uint      `json:"graded_by"`
	GradedAt time.Time `json:"graded_at"`
	Regrade  bool      `json:"regrade"`
}

// SubmissionResponse is the serialized representation of a submission.
type SubmissionResponse struct {
	ID           uint                   `json:"id"`
	UserID       uint                   `json:"user_id"`
	CourseID     uint                   `json:"course_id"`
	LessonID     *uint                  `json:"lesson_id"`
	AssignmentID uint                   `json:"assignment_id"`
	Type         string                 `json:"type"`
	Title        string                 `json:"title"`
	Content      string                 `json:"content"`
	FileURL      string                 `json:"file_url"`
	Grading      GradingResponse        `json:"grading"`
	History      []GradeHistoryResponse `json:"history,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	CreatedBy    *uint                  `json:"created_by"`
	UpdatedBy    *uint                  `json:"updated_by"`
	IsDeleted    bool                   `json:"is_deleted"`
}

// NewSubmissionResponse converts a model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		UserID:       model.UserID,
		CourseID:     model.CourseID,
		LessonID:     model.LessonID,
		AssignmentID: model.AssignmentID,
		Type:         model.Type,
		Title:        model.Title,
		Content:      model.Content,
		FileURL:      model.FileURL,
		Grading:      NewGradingResponse(model.Grading),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
		CreatedBy:    model.CreatedBy,
		UpdatedBy:    model.UpdatedBy,
		IsDeleted:    model.IsDeleted,
	}
	for _, entry := range model.History {
		response.History = append(response.History, GradeHistoryResponse{
			Score:    entry.Score,
			MaxScore: entry.MaxScore,
			Feedback: entry.Feedback,
			GradedBy: entry.GradedBy,
			GradedAt: entry.GradedAt,
			Regrade:  entry.Regrade,
		})
	}
	return response
}

// NewSubmissionResponseSlice converts a slice of models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item))
	}
	return responses
}

// GradeSuggestionResponse is an assistant proposal; it never changes state.
type GradeSuggestionResponse struct {
	SubmissionID uint    `json:"submission_id"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
	Feedback     string  `json:"feedback"`
	Provider     string  `json:"provider"`
}
