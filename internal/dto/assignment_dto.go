package dto

import "time"

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	CourseID      uint      `form:"course_id" json:"course_id" validate:"required,gt=0"`
	LessonID      *uint     `form:"lesson_id" json:"lesson_id" validate:"omitempty,gt=0"`
	Title         string    `form:"title" json:"title" validate:"required,min=3,max=255"`
	Description   string    `form:"description" json:"description"`
	Instructions  string    `form:"instructions" json:"instructions"`
	DueDate       time.Time `form:"due_date" json:"due_date" validate:"required"`
	MaxScore      float64   `form:"max_score" json:"max_score" validate:"omitempty,gt=0"`
	AttachmentURL string    `form:"attachment_url" json:"attachment_url" validate:"omitempty,url"`
}

// AssignmentPatch is the typed partial update for an assignment.
type AssignmentPatch struct {
	Title         *string    `json:"title" validate:"omitempty,min=3,max=255"`
	Description   *string    `json:"description"`
	Instructions  *string    `json:"instructions"`
	DueDate       *time.Time `json:"due_date"`
	MaxScore      *float64   `json:"max_score" validate:"omitempty,gt=0"`
	AttachmentURL *string    `json:"attachment_url" validate:"omitempty,url"`
	Status        *string    `json:"status" validate:"omitempty,oneof=draft published closed"`
}

// AssignmentListRequest filters the assignment listing.
type AssignmentListRequest struct {
	ListQuery
	CourseID uint   `query:"course_id"`
	LessonID uint   `query:"lesson_id"`
	Status   string `query:"status"`
}
